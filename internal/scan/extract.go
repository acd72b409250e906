package scan

import (
	"net/url"
	"regexp"
	"strings"
)

// CodeType distinguishes the two tag URL families.
type CodeType string

const (
	TypeItem CodeType = "item"
	TypeClub CodeType = "club"
)

// Extracted is a validated tag pulled out of a scanned URL.
type Extracted struct {
	Code string   `json:"code"`
	Type CodeType `json:"type"`
}

var (
	codeShape       = regexp.MustCompile(`^[A-Za-z0-9]{8}$`)
	bareQuery       = regexp.MustCompile(`\?([A-Za-z0-9]{8})$`)
	pathCode        = regexp.MustCompile(`(?i)/(?:item|club)/([A-Za-z0-9]{8})`)
	itemFallback    = regexp.MustCompile(`(?i)/item/?\?([A-Za-z0-9]{8})`)
	clubFallback    = regexp.MustCompile(`(?i)/club/?\?([A-Za-z0-9]{8})`)
	genericFallback = regexp.MustCompile(`(?i)(?:item|club)[/?]([A-Za-z0-9]{8})`)
)

// ExtractCode parses a scanned URL into an 8-character alphanumeric tag.
// Only item and club URLs are accepted; the code is upper-cased. Anything
// else reports ok=false.
func ExtractCode(raw string) (Extracted, bool) {
	lower := strings.ToLower(raw)
	if !strings.Contains(lower, "item") && !strings.Contains(lower, "club") {
		return Extracted{}, false
	}

	var code string
	codeType := TypeItem

	parsed, err := url.Parse(raw)
	if err == nil && parsed.Scheme != "" && parsed.Host != "" {
		pathname := strings.ToLower(parsed.Path)
		switch {
		case strings.Contains(pathname, "club"):
			codeType = TypeClub
		case strings.Contains(pathname, "item"):
			codeType = TypeItem
		default:
			return Extracted{}, false
		}

		if parsed.RawQuery != "" {
			// A bare 8-char query ("?ABCD1234") wins over named params.
			if m := bareQuery.FindStringSubmatch("?" + parsed.RawQuery); m != nil {
				code = m[1]
			} else {
				params := parsed.Query()
				for _, key := range []string{"code", "c", "id"} {
					if v := params.Get(key); v != "" {
						code = v
						break
					}
				}
			}
		} else if m := pathCode.FindStringSubmatch(pathname); m != nil {
			code = m[1]
		}
	} else {
		// Schemeless or otherwise unparseable payloads fall back to raw
		// pattern matching.
		switch {
		case itemFallback.MatchString(raw):
			code = itemFallback.FindStringSubmatch(raw)[1]
			codeType = TypeItem
		case clubFallback.MatchString(raw):
			code = clubFallback.FindStringSubmatch(raw)[1]
			codeType = TypeClub
		case genericFallback.MatchString(raw):
			code = genericFallback.FindStringSubmatch(raw)[1]
			if strings.Contains(lower, "club") {
				codeType = TypeClub
			}
		}
	}

	if code == "" || !codeShape.MatchString(code) {
		return Extracted{}, false
	}
	return Extracted{Code: strings.ToUpper(code), Type: codeType}, true
}

package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solyse/club-flow/internal/cache"
	"github.com/solyse/club-flow/pkg/config"
	perrors "github.com/solyse/club-flow/pkg/errors"
	"github.com/solyse/club-flow/pkg/logger"
)

type recordedSink struct {
	session string
	owner   Customer
	code    string
	calls   int
}

func (s *recordedSink) EnrichOwner(_ context.Context, session string, owner Customer, code string) {
	s.session = session
	s.owner = owner
	s.code = code
	s.calls++
}

func newTestClient(t *testing.T, server *httptest.Server) (*Client, *cache.Client) {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "upstream-test", Level: zerolog.Disabled, Output: &bytes.Buffer{}})
	cacheClient, err := cache.NewClient(cache.NewMemoryStore(), "test", logg, nil)
	require.NoError(t, err)

	cfg := config.UpstreamConfig{BaseURL: server.URL, LocationURL: server.URL + "/location"}
	client, err := NewClient(cfg, RatesParcel{
		Quantity:   1,
		Dimensions: Dimensions{Depth: "14", Height: "48", Weight: "48", Width: "14"},
	}, cacheClient, logg, nil)
	require.NoError(t, err)
	return client, cacheClient
}

func envelopeBody(data any) []byte {
	payload, _ := json.Marshal(map[string]any{
		"x":        200,
		"data":     data,
		"duration": 0.01,
		"memory":   "1M",
		"epsid":    "test",
	})
	return payload
}

func TestValidateTagCachesOwnerAndEnriches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/item", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "ABCD1234", body["code"])
		w.Write(envelopeBody(map[string]any{
			"success": true,
			"data": Customer{
				ID:        "cust-1",
				FirstName: "Jordan",
				Items:     []Item{{ItemID: "prod-1", ItemCode: "ABCD1234"}},
			},
		}))
	}))
	defer server.Close()

	client, cacheClient := newTestClient(t, server)
	sink := &recordedSink{}
	client.SetItemSink(sink)

	owner, err := client.ValidateTag(context.Background(), "sess-1", "ABCD1234")
	require.NoError(t, err)
	assert.Equal(t, "cust-1", owner.ID)

	var cached Customer
	require.True(t, cacheClient.Get(context.Background(), "sess-1", cache.KeyItemsOwner, &cached))
	assert.Equal(t, "Jordan", cached.FirstName)

	require.Equal(t, 1, sink.calls)
	assert.Equal(t, "ABCD1234", sink.code)
	assert.Equal(t, "sess-1", sink.session)
}

func TestValidateTagRejectsShortCodeWithoutNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for an invalid code")
	}))
	defer server.Close()

	client, _ := newTestClient(t, server)
	_, err := client.ValidateTag(context.Background(), "sess-1", "ABC")
	require.Error(t, err)
	assert.True(t, perrors.Is(err, perrors.CodeValidation))
}

func TestValidateTagDomainNegative(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(envelopeBody(map[string]any{
			"success": false,
			"status":  404,
			"message": "Tag not registered",
		}))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server)
	_, err := client.ValidateTag(context.Background(), "sess-1", "ABCD1234")
	require.Error(t, err)
	assert.True(t, perrors.Is(err, perrors.CodeDomain))
	assert.Contains(t, err.Error(), "Tag not registered")
}

func TestValidateTagTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server)
	_, err := client.ValidateTag(context.Background(), "sess-1", "ABCD1234")
	require.Error(t, err)
	assert.True(t, perrors.Is(err, perrors.CodeTransport))
}

func TestGetPartnerNotFoundIsNormalBranch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(envelopeBody(map[string]any{
			"success": false,
			"status":  404,
			"message": "Partner not found",
		}))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server)
	partner, err := client.GetPartner(context.Background(), PartnerQuery{Email: "new@example.com"})
	require.NoError(t, err)
	assert.Nil(t, partner)
}

func TestASConfigCachesCountryCodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/fetch-as-config", r.URL.Path)
		w.Write(envelopeBody(ASConfigData{
			Rates:        &ASConfigRates{ShippingService: "ups"},
			CountryCodes: []CountryCode{{ShortName: "US", Code: "+1"}},
		}))
	}))
	defer server.Close()

	client, cacheClient := newTestClient(t, server)
	data, err := client.ASConfig(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "ups", data.Carrier())

	var codes []CountryCode
	require.True(t, cacheClient.Get(context.Background(), "sess-1", cache.KeyCountryCodes, &codes))
	assert.Len(t, codes, 1)
}

func TestLocationCachedAsSideEffect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/location", r.URL.Path)
		w.Write(envelopeBody(LocationInfo{
			IP:              "1.2.3.4",
			Location:        LocationGeo{CountryCode2: "US", City: "Austin"},
			CountryMetadata: &CountryMetadata{CallingCode: "+1"},
		}))
	}))
	defer server.Close()

	client, cacheClient := newTestClient(t, server)
	info, err := client.Location(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "US", info.Location.CountryCode2)

	var cached LocationInfo
	require.True(t, cacheClient.Get(context.Background(), "sess-1", cache.KeyLocation, &cached))
	assert.Equal(t, "Austin", cached.Location.City)
}

func TestCalculateRatesShipsFixedParcel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req RatesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "48", req.Parcels.Dimensions.Height)
		assert.Equal(t, 1, req.Parcels.Quantity)
		w.Write(envelopeBody(map[string]any{
			"success": true,
			"rates": []Rate{
				{ServiceType: "fedex_ground", TransitTime: 5, ActualCosts: ActualCosts{Amount: "50"}},
			},
		}))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server)
	rates, err := client.CalculateRates(context.Background(),
		RatesAddress{City: "Austin", Country: "US"},
		RatesAddress{City: "Scottsdale", Country: "US"})
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, "fedex_ground", rates[0].ServiceType)
}

func TestCreateCustomerThreeWay(t *testing.T) {
	tests := []struct {
		name    string
		body    any
		outcome RegisterOutcome
		enrich  int
	}{
		{
			name: "created",
			body: map[string]any{
				"success": true,
				"message": "Customer created",
				"data": map[string]any{
					"id": "cust-9", "email": "a@b.c", "phone": "+15550001111",
					"firstName": "Sam", "lastName": "Ryder", "displayName": "Sam Ryder",
				},
				"items": Item{ItemID: "prod-1", ItemCode: "ZZZZ9999"},
			},
			outcome: RegisterCreated,
			enrich:  1,
		},
		{
			name: "exists",
			body: map[string]any{
				"success": false,
				"exists":  true,
				"message": "Customer already exists",
				"data": Customer{
					ID: "cust-8", FirstName: "Alex",
					Items: []Item{{ItemID: "prod-2", ItemCode: "YYYY8888"}},
				},
			},
			outcome: RegisterExists,
			enrich:  1,
		},
		{
			name: "failed",
			body: map[string]any{
				"success": false,
				"exists":  false,
				"message": "Invalid phone number",
			},
			outcome: RegisterFailed,
			enrich:  0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write(envelopeBody(tc.body))
			}))
			defer server.Close()

			client, _ := newTestClient(t, server)
			sink := &recordedSink{}
			client.SetItemSink(sink)

			result, err := client.CreateCustomer(context.Background(), "sess-1", CustomerRequest{
				Items:    CustomerRequestItem{ItemID: "prod-1"},
				Personal: CustomerRequestPersonal{FirstName: "Sam", PhoneCode: "+1", Phone: "5550001111"},
			})
			require.NoError(t, err)
			assert.Equal(t, tc.outcome, result.Outcome)
			assert.Equal(t, tc.enrich, sink.calls)
			if tc.outcome != RegisterFailed {
				require.NotNil(t, result.Owner)
			}
		})
	}
}

func TestVerifyAuthWrongCodeIsNormalBranch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(envelopeBody(map[string]any{
			"success": false,
			"status":  401,
			"message": "Incorrect code",
		}))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server)
	ok, message, err := client.VerifyAuth(context.Background(), VerifyRequest{Code: "000000", Email: "a@b.c"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "Incorrect code", message)
}

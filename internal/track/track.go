package track

import (
	"context"
	"sync"
	"time"

	"github.com/solyse/club-flow/pkg/logger"
	"github.com/solyse/club-flow/pkg/metrics"
)

// Debounce window for identical breadcrumbs.
const debounce = 2 * time.Second

// Recorder writes analytics breadcrumbs as structured log events. A repeat
// of the same event+key inside the debounce window is dropped, mirroring
// the double-fire protection the web analytics layer had.
type Recorder struct {
	mu   sync.Mutex
	now  func() time.Time
	seen map[string]time.Time
	logg *logger.Logger
	flow *metrics.FlowMetrics
}

func NewRecorder(logg *logger.Logger, flow *metrics.FlowMetrics) *Recorder {
	return &Recorder{
		now:  time.Now,
		seen: map[string]time.Time{},
		logg: logg,
		flow: flow,
	}
}

// Record emits one breadcrumb. key scopes the debounce, typically the
// session plus the contact or code involved.
func (r *Recorder) Record(ctx context.Context, event, key string, fields map[string]any) {
	if r == nil {
		return
	}
	r.mu.Lock()
	dedupe := event + "|" + key
	now := r.now()
	if last, ok := r.seen[dedupe]; ok && now.Sub(last) < debounce {
		r.mu.Unlock()
		return
	}
	// Entries past the window can never suppress again; sweep them here so
	// the map tracks only the breadcrumbs still inside their debounce.
	for k, at := range r.seen {
		if now.Sub(at) >= debounce {
			delete(r.seen, k)
		}
	}
	r.seen[dedupe] = now
	r.mu.Unlock()

	entry := r.logg.WithField(ctx, "event", event)
	if len(fields) > 0 {
		entry = r.logg.WithFields(entry, fields)
	}
	r.logg.Info(entry, "analytics breadcrumb")
	r.flow.IncBreadcrumb(event)
}

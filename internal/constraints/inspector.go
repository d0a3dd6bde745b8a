package constraints

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
)

// Backends carries one handle per backend. A nil handle means the backend is
// not configured and is skipped.
type Backends struct {
	ContainerRuntime ContainerRuntime
	VPS              VPSProvider
	DNS              DNSProvider
}

// Entry pairs a backend name with its record.
type Entry struct {
	Backend string
	Record  *Record
}

// Result maps backend names to records in the order the backends were
// checked for presence.
type Result struct {
	entries []Entry
}

// Get returns a copy of the record for backend.
func (r *Result) Get(backend string) (*Record, bool) {
	if r == nil {
		return nil, false
	}
	for _, e := range r.entries {
		if e.Backend == backend {
			return e.Record.Clone(), true
		}
	}
	return nil, false
}

// Backends returns the backend names in order.
func (r *Result) Backends() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Backend
	}
	return out
}

// Len returns the number of backends in the result.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// MarshalJSON encodes the result as an object whose keys keep their order.
func (r *Result) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if r != nil {
		for i, e := range r.entries {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, _ := json.Marshal(e.Backend)
			buf.Write(key)
			buf.WriteByte(':')
			val, err := json.Marshal(e.Record)
			if err != nil {
				return nil, fmt.Errorf("encode %s record: %w", e.Backend, err)
			}
			buf.Write(val)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// NewResult builds a result from entries. Records are copied.
func NewResult(entries ...Entry) *Result {
	r := &Result{entries: make([]Entry, len(entries))}
	for i, e := range entries {
		r.entries[i] = Entry{Backend: e.Backend, Record: e.Record.Clone()}
	}
	return r
}

// MetricsRecordFunc is an optional callback invoked once per probed backend.
type MetricsRecordFunc func(backend string, degraded bool)

// Inspector runs the per-backend probes concurrently.
type Inspector struct {
	onMetrics MetricsRecordFunc
	logger    *zap.Logger

	// probe functions, replaceable in tests
	probeContainer func(context.Context, ContainerRuntime) *Record
	probeVPS       func(context.Context, VPSProvider) *Record
	probeDNS       func(context.Context, DNSProvider) *Record
}

// NewInspector creates an Inspector.
func NewInspector(logger *zap.Logger) *Inspector {
	return &Inspector{
		logger:         logger,
		probeContainer: ProbeContainerRuntime,
		probeVPS:       ProbeVPS,
		probeDNS:       ProbeDNS,
	}
}

// SetMetricsRecord configures the metrics recording callback.
func (in *Inspector) SetMetricsRecord(fn MetricsRecordFunc) {
	in.onMetrics = fn
}

// Inspect probes every present backend in parallel and waits for all of
// them. There is no timeout here; each SDK client's transport bounds its own
// calls. A panicking probe yields a detection_failed record for its backend
// only.
func (in *Inspector) Inspect(ctx context.Context, b Backends) *Result {
	passID := uuid.NewString()

	type job struct {
		backend string
		run     func() *Record
	}
	var jobs []job
	if b.ContainerRuntime != nil {
		jobs = append(jobs, job{BackendDocker, func() *Record { return in.probeContainer(ctx, b.ContainerRuntime) }})
	}
	if b.VPS != nil {
		jobs = append(jobs, job{BackendDigitalOcean, func() *Record { return in.probeVPS(ctx, b.VPS) }})
	}
	if b.DNS != nil {
		jobs = append(jobs, job{BackendCloudflare, func() *Record { return in.probeDNS(ctx, b.DNS) }})
	}

	in.logger.Debug("constraints: probing", zap.String("pass_id", passID), zap.Int("backends", len(jobs)))

	entries := make([]Entry, len(jobs))
	var wg sync.WaitGroup
	for i, j := range jobs {
		wg.Add(1)
		go func(i int, j job) {
			defer wg.Done()

			var rec *Record
			var pc panics.Catcher
			pc.Try(func() { rec = j.run() })
			if r := pc.Recovered(); r != nil {
				in.logger.Error("constraints: probe panicked",
					zap.String("pass_id", passID),
					zap.String("backend", j.backend),
					zap.Any("panic", r.Value),
				)
				rec = newRecord()
				rec.restrict("", DetectionFailed, fmt.Sprint(r.Value))
			}
			if rec == nil {
				rec = newRecord()
				rec.restrict("", DetectionFailed, "probe returned no record")
			}
			entries[i] = Entry{Backend: j.backend, Record: rec}
		}(i, j)
	}
	wg.Wait()

	for _, e := range entries {
		degraded := len(e.Record.Restrictions) > 0
		if in.onMetrics != nil {
			in.onMetrics(e.Backend, degraded)
		}
		in.logger.Info("constraints: probed",
			zap.String("pass_id", passID),
			zap.String("backend", e.Backend),
			zap.Int("permissions", len(e.Record.Permissions)),
			zap.Int("restrictions", len(e.Record.Restrictions)),
			zap.Bool("read_only", e.Record.ReadOnly),
		)
	}

	return &Result{entries: entries}
}

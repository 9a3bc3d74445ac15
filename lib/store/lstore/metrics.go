package lstore

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ValentinKolb/objkv/lib/store"
	vmetrics "github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
)

// opSet holds the Prometheus metrics of every store opened in this process.
var opSet = vmetrics.NewSet()

// WritePrometheus writes the operation metrics of all stores in the
// Prometheus text format.
func WritePrometheus(w io.Writer) {
	opSet.WritePrometheus(w)
}

// OpStats summarizes the timings of one operation on one store.
type OpStats struct {
	Count  int64   `json:"count"`
	Errors int64   `json:"errors"`
	MeanMs float64 `json:"mean_ms"`
	P99Ms  float64 `json:"p99_ms"`
	MaxMs  float64 `json:"max_ms"`
}

// Metadata is the DatabaseInfo.Metadata reported by stores of this package.
type Metadata struct {
	Database   any                `json:"database"`   // metadata of the engine
	Operations map[string]OpStats `json:"operations"` // keyed by "<op> <store>"
}

// opMetrics records every operation twice: as Prometheus series in opSet and
// as timers and error meters in a go-metrics registry private to the store.
type opMetrics struct {
	db       string
	registry gometrics.Registry
}

func newOpMetrics(dbName string) *opMetrics {
	return &opMetrics{db: dbName, registry: gometrics.NewRegistry()}
}

func (m *opMetrics) observe(op, name string, start time.Time, err error) {
	elapsed := time.Since(start)
	code := store.CodeOf(err)

	opSet.GetOrCreateCounter(fmt.Sprintf(`objkv_store_ops_total{db=%q,op=%q,store=%q,result=%q}`,
		m.db, op, name, code)).Inc()
	opSet.GetOrCreateHistogram(fmt.Sprintf(`objkv_store_op_duration_seconds{db=%q,op=%q,store=%q}`,
		m.db, op, name)).Update(elapsed.Seconds())

	key := strings.TrimSpace(op + " " + name)
	gometrics.GetOrRegisterTimer(key, m.registry).Update(elapsed)
	if err != nil && code != store.RetCPartialFailure {
		gometrics.GetOrRegisterMeter(key+" errors", m.registry).Mark(1)
	}
}

// snapshot returns the timer and meter values of the registry.
func (m *opMetrics) snapshot() map[string]OpStats {
	out := map[string]OpStats{}
	m.registry.Each(func(key string, metric interface{}) {
		switch v := metric.(type) {
		case gometrics.Timer:
			t := v.Snapshot()
			s := out[key]
			s.Count = t.Count()
			s.MeanMs = t.Mean() / float64(time.Millisecond)
			s.P99Ms = t.Percentile(0.99) / float64(time.Millisecond)
			s.MaxMs = float64(t.Max()) / float64(time.Millisecond)
			out[key] = s
		case gometrics.Meter:
			op := strings.TrimSuffix(key, " errors")
			s := out[op]
			s.Errors = v.Count()
			out[op] = s
		}
	})
	return out
}

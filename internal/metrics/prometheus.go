package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

const (
	eventsMetric = "meeting_signaling_events_total"
	gaugeMetric  = "meeting_signaling_current"
)

var labelEscaper = strings.NewReplacer("\\", "\\\\", "\"", "\\\"", "\n", "\\n")

// PrometheusHandler exposes Metrics in Prometheus' text exposition format.
// Counters share one metric with an `event` label; gauges share one with a
// `gauge` label.
func PrometheusHandler(m *Metrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			http.Error(w, "metrics not configured", http.StatusInternalServerError)
			return
		}

		counters := m.Snapshot()
		gauges := m.sampleGauges()

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = fmt.Fprintf(w, "# HELP %s Signaling event counters.\n", eventsMetric)
		_, _ = fmt.Fprintf(w, "# TYPE %s counter\n", eventsMetric)
		for _, k := range sortedKeys(counters) {
			_, _ = fmt.Fprintf(w, "%s{event=\"%s\"} %d\n", eventsMetric, labelEscaper.Replace(k), counters[k])
		}
		if len(gauges) == 0 {
			return
		}
		_, _ = fmt.Fprintf(w, "# HELP %s Current signaling state sizes.\n", gaugeMetric)
		_, _ = fmt.Fprintf(w, "# TYPE %s gauge\n", gaugeMetric)
		for _, k := range sortedKeys(gauges) {
			_, _ = fmt.Fprintf(w, "%s{gauge=\"%s\"} %d\n", gaugeMetric, labelEscaper.Replace(k), gauges[k])
		}
	})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package summary

import "github.com/prometheus/client_golang/prometheus"

// Metrics exports each peer's CurrentSum counters as Prometheus gauges,
// satisfying the domain-stack wiring for fleet summary export alongside
// the text report line (spec.md §4.10).
type Metrics struct {
	filesReceived    *prometheus.GaugeVec
	bytesReceived    *prometheus.GaugeVec
	filesSend        *prometheus.GaugeVec
	bytesSend        *prometheus.GaugeVec
	connections      *prometheus.GaugeVec
	totalErrors      *prometheus.GaugeVec
	logBytesReceived *prometheus.GaugeVec
}

// NewMetrics builds and registers the gauge vectors, one series per peer
// alias, against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	gauge := func(name, help string) *prometheus.GaugeVec {
		g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "afd_mon",
			Name:      name,
			Help:      help,
		}, []string{"peer"})
		reg.MustRegister(g)
		return g
	}
	return &Metrics{
		filesReceived:    gauge("files_received_total", "Files received from this peer since monitor start."),
		bytesReceived:    gauge("bytes_received_total", "Bytes received from this peer since monitor start."),
		filesSend:        gauge("files_send_total", "Files sent to this peer since monitor start."),
		bytesSend:        gauge("bytes_send_total", "Bytes sent to this peer since monitor start."),
		connections:      gauge("connections_total", "Connections made to this peer since monitor start."),
		totalErrors:      gauge("total_errors", "Errors observed for this peer since monitor start."),
		logBytesReceived: gauge("log_bytes_received_total", "Log bytes received from this peer since monitor start."),
	}
}

// Set updates every gauge for alias from c.CurrentSum.
func (m *Metrics) Set(alias string, c Counters) {
	m.filesReceived.WithLabelValues(alias).Set(float64(c.FilesReceived))
	m.bytesReceived.WithLabelValues(alias).Set(float64(c.BytesReceived))
	m.filesSend.WithLabelValues(alias).Set(float64(c.FilesSend))
	m.bytesSend.WithLabelValues(alias).Set(float64(c.BytesSend))
	m.connections.WithLabelValues(alias).Set(float64(c.Connections))
	m.totalErrors.WithLabelValues(alias).Set(float64(c.TotalErrors))
	m.logBytesReceived.WithLabelValues(alias).Set(float64(c.LogBytesReceived))
}

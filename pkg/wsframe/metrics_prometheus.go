//go:build prometheus

package wsframe

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the frame processor and buffer manager,
// adapted from the donor's buffer_pool_prometheus.go to this module's
// namespace and counters.
var (
	framesParsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wsframe",
			Subsystem: "processor",
			Name:      "frames_parsed_total",
			Help:      "Total number of frames fully decoded",
		},
		[]string{"opcode"},
	)

	messagesReassembled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wsframe",
			Subsystem: "processor",
			Name:      "messages_reassembled_total",
			Help:      "Total number of complete messages handed to TakeMessage",
		},
		[]string{"opcode"},
	)

	fatalErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wsframe",
			Subsystem: "processor",
			Name:      "fatal_errors_total",
			Help:      "Total number of times Consume transitioned to FATAL_ERROR, by kind",
		},
		[]string{"kind"},
	)

	bufferPoolHitRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "wsframe",
			Subsystem: "buffer_pool",
			Name:      "hit_rate",
			Help:      "Current pooled buffer manager hit rate (0-1)",
		},
	)
)

// ObserveFrame records one successfully decoded frame.
func ObserveFrame(opcode Opcode) {
	framesParsed.WithLabelValues(opcodeLabel(opcode)).Inc()
}

// ObserveMessage records one message reassembled end to end.
func ObserveMessage(opcode Opcode) {
	messagesReassembled.WithLabelValues(opcodeLabel(opcode)).Inc()
}

// ObserveFatalError records a processor entering FATAL_ERROR.
func ObserveFatalError(err error) {
	fatalErrors.WithLabelValues(string(Kind(err))).Inc()
}

// ObserveBufferPoolMetrics updates the hit-rate gauge from a point-in-time
// BufferManagerMetrics snapshot. Call this periodically, mirroring the
// donor's UpdatePrometheusMetrics polling convention.
func ObserveBufferPoolMetrics(m BufferManagerMetrics) {
	if m.Gets == 0 {
		bufferPoolHitRate.Set(0)
		return
	}
	bufferPoolHitRate.Set(float64(m.Hits) / float64(m.Gets))
}

func opcodeLabel(op Opcode) string {
	switch op {
	case OpcodeText:
		return "text"
	case OpcodeBinary:
		return "binary"
	case OpcodeClose:
		return "close"
	case OpcodePing:
		return "ping"
	case OpcodePong:
		return "pong"
	case OpcodeContinuation:
		return "continuation"
	default:
		return "unknown"
	}
}

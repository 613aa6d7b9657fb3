//go:build !prometheus

package wsframe

// ObserveFrame, ObserveMessage, ObserveFatalError, and
// ObserveBufferPoolMetrics are no-ops unless built with -tags prometheus
// (mirroring the donor's own +build prometheus gate on
// buffer_pool_prometheus.go), so callers such as the inbound Processor
// can call them unconditionally regardless of build configuration.

func ObserveFrame(Opcode)                    {}
func ObserveMessage(Opcode)                  {}
func ObserveFatalError(error)                {}
func ObserveBufferPoolMetrics(BufferManagerMetrics) {}

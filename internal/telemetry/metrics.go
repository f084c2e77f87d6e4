package telemetry

import (
	"time"

	metrics "github.com/hashicorp/go-metrics"
)

// SetupMetrics installs a global in-memory metrics sink and returns it so it
// can be served over HTTP.
func SetupMetrics(serviceName string) (*metrics.InmemSink, error) {
	sink := metrics.NewInmemSink(10*time.Second, time.Minute)
	cfg := metrics.DefaultConfig(serviceName)
	cfg.EnableHostname = false
	cfg.EnableRuntimeMetrics = true
	if _, err := metrics.NewGlobal(cfg, sink); err != nil {
		return nil, err
	}
	return sink, nil
}

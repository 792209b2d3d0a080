package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Example_basicUsage demonstrates basic metrics configuration.
func Example_basicUsage() {
	// Create a separate registry for this test
	registry := NewRegistry(prometheus.NewRegistry())

	registry.ChunksQueued.WithLabelValues("ingest").Add(10)
	registry.ChunksWritten.WithLabelValues("ingest").Add(8)
	registry.WriteFailures.WithLabelValues("ingest").Add(2)

	fmt.Println(testutil.ToFloat64(registry.ChunksWritten.WithLabelValues("ingest")))

	// Output:
	// 8
}

// Example_customNamespace demonstrates overriding the namespace.
func Example_customNamespace() {
	reg := prometheus.NewRegistry()
	registry := NewRegistryWithConfig(Config{
		Enabled:   true,
		Registry:  reg,
		Namespace: "myapp",
	})
	registry.BackpressureEvents.WithLabelValues("ingest").Inc()

	families, err := reg.Gather()
	if err != nil {
		fmt.Println(err)
		return
	}
	for _, mf := range families {
		fmt.Println(mf.GetName())
	}

	// Output:
	// myapp_backpressure_events_total
}

// Example_configuration demonstrates different metrics configurations.
func Example_configuration() {
	defaultConfig := DefaultConfig()
	fmt.Printf("Default enabled: %v\n", defaultConfig.Enabled)
	fmt.Printf("Default namespace: %s\n", defaultConfig.Namespace)

	disabled := Config{Enabled: false}
	fmt.Printf("Disabled registry is nil: %v\n", disabled.Build() == nil)

	// Output:
	// Default enabled: true
	// Default namespace: sinkflow
	// Disabled registry is nil: true
}

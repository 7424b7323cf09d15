package scenarios

import (
	"context"
	"fmt"
	"time"

	toxiproxy "github.com/Shopify/toxiproxy/v2/client"
)

// LatencyScenario simulates a slow network without dropping the
// connection outright.
type LatencyScenario struct{}

func (s *LatencyScenario) Name() string { return "latency" }

func (s *LatencyScenario) Description() string {
	return "500ms latency (+/- 50ms jitter) - simulates slow network"
}

func (s *LatencyScenario) Run(ctx context.Context, proxies []*toxiproxy.Proxy) error {
	if len(proxies) == 0 {
		return fmt.Errorf("no proxies available")
	}

	toxics := make([]*toxiproxy.Toxic, 0, len(proxies))
	for _, proxy := range proxies {
		toxic, err := proxy.AddToxic("high_latency", "latency", "downstream", 1.0,
			toxiproxy.Attributes{"latency": 500, "jitter": 50})
		if err != nil {
			return fmt.Errorf("failed to add toxic to %s: %w", proxy.Name, err)
		}
		toxics = append(toxics, toxic)
	}

	fmt.Printf("[Scenario] Running with high latency for 30s\n")
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(30 * time.Second):
	}

	fmt.Printf("[Scenario] Removing latency toxics\n")
	for i, proxy := range proxies {
		if err := proxy.RemoveToxic(toxics[i].Name); err != nil {
			return fmt.Errorf("failed to remove toxic from %s: %w", proxy.Name, err)
		}
	}

	fmt.Printf("[Scenario] Allowing 5s recovery time\n")
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
	}

	return nil
}

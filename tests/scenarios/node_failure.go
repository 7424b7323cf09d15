package scenarios

import (
	"context"
	"fmt"
	"time"

	toxiproxy "github.com/Shopify/toxiproxy/v2/client"
)

// NodeDownScenario takes the single upstream fully offline for 15s,
// the window in which a holding-buffer replay (on AUTO_RECONNECT) or a
// disconnected-write rejection (otherwise) should be observable.
type NodeDownScenario struct{}

func (s *NodeDownScenario) Name() string { return "node-down" }

func (s *NodeDownScenario) Description() string {
	return "Node down for 15s - exercises holding-buffer replay on reconnect"
}

func (s *NodeDownScenario) Run(ctx context.Context, proxies []*toxiproxy.Proxy) error {
	if len(proxies) == 0 {
		return fmt.Errorf("no proxies available")
	}

	proxy := proxies[0]
	fmt.Printf("[Scenario] Disabling node %s\n", proxy.Name)
	if err := proxy.Disable(); err != nil {
		return fmt.Errorf("failed to disable proxy: %w", err)
	}

	fmt.Printf("[Scenario] Node down for 15s\n")
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(15 * time.Second):
	}

	fmt.Printf("[Scenario] Re-enabling node %s\n", proxy.Name)
	if err := proxy.Enable(); err != nil {
		return fmt.Errorf("failed to enable proxy: %w", err)
	}

	fmt.Printf("[Scenario] Allowing 10s recovery time\n")
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(10 * time.Second):
	}

	return nil
}

// FlappingNodeScenario simulates a node going up and down repeatedly,
// exercising repeated activate/deactivate cycles on the same Handler.
type FlappingNodeScenario struct{}

func (s *FlappingNodeScenario) Name() string { return "flapping-node" }

func (s *FlappingNodeScenario) Description() string {
	return "Node flapping (up/down every 10s) - simulates unstable node"
}

func (s *FlappingNodeScenario) Run(ctx context.Context, proxies []*toxiproxy.Proxy) error {
	if len(proxies) == 0 {
		return fmt.Errorf("no proxies available")
	}

	proxy := proxies[0]
	fmt.Printf("[Scenario] Node %s flapping (5 cycles of 10s down, 10s up)\n", proxy.Name)

	for range 5 {
		fmt.Printf("[Scenario] Disabling %s\n", proxy.Name)
		if err := proxy.Disable(); err != nil {
			return fmt.Errorf("failed to disable: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Second):
		}

		fmt.Printf("[Scenario] Enabling %s\n", proxy.Name)
		if err := proxy.Enable(); err != nil {
			return fmt.Errorf("failed to enable: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Second):
		}
	}

	fmt.Printf("[Scenario] Allowing 10s final recovery time\n")
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(10 * time.Second):
	}

	return nil
}

package scenarios

import (
	"context"
	"fmt"

	toxiproxy "github.com/Shopify/toxiproxy/v2/client"
)

// Scenario represents a failure scenario that can be executed during testing.
type Scenario interface {
	Name() string
	Description() string

	// Run executes the scenario, applying toxics to the proxies. It
	// blocks for the duration of the scenario.
	Run(ctx context.Context, proxies []*toxiproxy.Proxy) error
}

var registry = make(map[string]Scenario)

func Register(s Scenario) {
	registry[s.Name()] = s
}

func Get(name string) (Scenario, error) {
	s, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("scenario not found: %s", name)
	}
	return s, nil
}

func All() map[string]Scenario {
	return registry
}

func List() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

func init() {
	Register(&NodeDownScenario{})
	Register(&FlappingNodeScenario{})
	Register(&LatencyScenario{})
}

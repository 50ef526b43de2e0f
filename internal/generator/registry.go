package generator

import (
	"fmt"
	"maps"
	"slices"
)

// Registry maps generator names to generator factory functions
var Registry = map[string]func() Generator{
	"combined": func() Generator { return &CombinedLogGenerator{} },
	"noisy":    func() Generator { return &NoisyGenerator{Inner: &CombinedLogGenerator{}, Ratio: 0.05} },
}

// Get returns a generator by name
func Get(name string) (Generator, error) {
	factory, exists := Registry[name]
	if !exists {
		return nil, fmt.Errorf("unknown generator: %s", name)
	}
	return factory(), nil
}

// List returns all available generator names, sorted
func List() []string {
	return slices.Sorted(maps.Keys(Registry))
}

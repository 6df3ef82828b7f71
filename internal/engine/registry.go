package engine

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gosuda/stockai/internal/llm"
)

// ErrUnknownNode is returned when a step targets an unregistered capability.
var ErrUnknownNode = errors.New("engine: unknown capability node")

// Registry maps target_node identifiers to capability nodes. The set is fixed
// at startup; registration is kept safe for concurrent use anyway.
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]Node
}

func NewRegistry() *Registry {
	return &Registry{
		nodes: make(map[string]Node),
	}
}

// Register adds a capability node under its own name.
func (r *Registry) Register(node Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes[node.Name()] = node
}

// Resolve returns the node registered for the given target.
func (r *Registry) Resolve(target string) (Node, error) {
	r.mu.RLock()
	node, ok := r.nodes[target]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("engine.Registry.Resolve(%q): %w", target, ErrUnknownNode)
	}

	return node, nil
}

// Capabilities returns name/description pairs for the planner collaborator,
// sorted by name.
func (r *Registry) Capabilities() []llm.Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps := make([]llm.Capability, 0, len(r.nodes))
	for _, node := range r.nodes {
		caps = append(caps, llm.Capability{Name: node.Name(), Description: node.Description()})
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i].Name < caps[j].Name })

	return caps
}

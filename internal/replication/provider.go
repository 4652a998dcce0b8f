// Package replication provides peer discovery and peer rowset fetching for
// single-replica compaction.
package replication

import (
	"sync"

	"github.com/granitedb/granite/internal/config"
)

// Node is one peer in the replica cluster.
type Node struct {
	ID   string
	Addr string // host:port of the peer HTTP surface
}

// Provider exposes the current replica set. Implementations can be static
// (config-based) or gossip-based.
type Provider interface {
	// Nodes returns the current list of peers.
	Nodes() []Node
	// OnChange registers a callback invoked when membership changes.
	OnChange(func([]Node))
	// Start begins discovery for dynamic providers.
	Start() error
	// Stop halts discovery.
	Stop()
}

// StaticProvider serves a fixed peer list from configuration.
type StaticProvider struct {
	mu        sync.RWMutex
	nodes     []Node
	callbacks []func([]Node)
}

// NewStaticProvider creates a StaticProvider from config.
func NewStaticProvider(cfg config.MembershipConfig) *StaticProvider {
	nodes := make([]Node, 0, len(cfg.Nodes))
	for _, addr := range cfg.Nodes {
		nodes = append(nodes, Node{ID: addr, Addr: addr})
	}
	return &StaticProvider{nodes: nodes}
}

// NewStaticProviderFromNodes creates a StaticProvider from explicit nodes.
func NewStaticProviderFromNodes(nodes []Node) *StaticProvider {
	copied := make([]Node, len(nodes))
	copy(copied, nodes)
	return &StaticProvider{nodes: copied}
}

func (p *StaticProvider) Nodes() []Node {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Node, len(p.nodes))
	copy(out, p.nodes)
	return out
}

func (p *StaticProvider) OnChange(cb func([]Node)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callbacks = append(p.callbacks, cb)
}

func (p *StaticProvider) Start() error { return nil }

func (p *StaticProvider) Stop() {}

// SetNodes replaces the node list and notifies callbacks. Used by tests and
// runtime reconfiguration.
func (p *StaticProvider) SetNodes(nodes []Node) {
	p.mu.Lock()
	p.nodes = make([]Node, len(nodes))
	copy(p.nodes, nodes)
	callbacks := make([]func([]Node), len(p.callbacks))
	copy(callbacks, p.callbacks)
	p.mu.Unlock()

	for _, cb := range callbacks {
		cb(p.Nodes())
	}
}

// NewFromConfig creates the Provider matching the configured membership type.
func NewFromConfig(cfg config.MembershipConfig) Provider {
	switch cfg.Type {
	case "gossip":
		return NewGossipProvider(cfg)
	default:
		return NewStaticProvider(cfg)
	}
}

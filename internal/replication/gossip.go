package replication

import (
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/memberlist"

	"github.com/granitedb/granite/internal/config"
)

// GossipProvider discovers replica peers with hashicorp/memberlist. Each
// member advertises its HTTP surface address in the gossip metadata so
// single-replica compaction can reach it.
type GossipProvider struct {
	mu        sync.RWMutex
	list      *memberlist.Memberlist
	nodes     []Node
	callbacks []func([]Node)
	cfg       config.MembershipConfig
	apiAddr   string
	stopCh    chan struct{}
	updateCh  chan struct{}
	started   bool
	stopped   bool
}

// NewGossipProvider creates a GossipProvider from config.
func NewGossipProvider(cfg config.MembershipConfig) *GossipProvider {
	return &GossipProvider{
		cfg:      cfg,
		stopCh:   make(chan struct{}),
		updateCh: make(chan struct{}, 1),
	}
}

type gossipDelegate struct {
	meta []byte
}

func (d *gossipDelegate) NodeMeta(limit int) []byte {
	if len(d.meta) > limit {
		return d.meta[:limit]
	}
	return d.meta
}

func (d *gossipDelegate) NotifyMsg([]byte)                           {}
func (d *gossipDelegate) GetBroadcasts(overhead, limit int) [][]byte { return nil }
func (d *gossipDelegate) LocalState(join bool) []byte                { return nil }
func (d *gossipDelegate) MergeRemoteState(buf []byte, join bool)     {}

type gossipEvents struct {
	provider *GossipProvider
}

func (e *gossipEvents) NotifyJoin(*memberlist.Node)   { e.provider.scheduleUpdate() }
func (e *gossipEvents) NotifyLeave(*memberlist.Node)  { e.provider.scheduleUpdate() }
func (e *gossipEvents) NotifyUpdate(*memberlist.Node) { e.provider.scheduleUpdate() }

func (p *GossipProvider) Nodes() []Node {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Node, len(p.nodes))
	copy(out, p.nodes)
	return out
}

func (p *GossipProvider) OnChange(cb func([]Node)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callbacks = append(p.callbacks, cb)
}

// Start creates the memberlist and joins the configured seed nodes.
func (p *GossipProvider) Start() error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = true
	p.mu.Unlock()

	mlCfg := memberlist.DefaultLANConfig()
	if p.cfg.Gossip.BindAddr != "" {
		mlCfg.BindAddr = p.cfg.Gossip.BindAddr
	} else {
		mlCfg.BindAddr = "0.0.0.0"
	}
	if p.cfg.Gossip.BindPort > 0 {
		mlCfg.BindPort = p.cfg.Gossip.BindPort
	} else {
		mlCfg.BindPort = 7946
	}
	if p.cfg.Gossip.AdvertiseAddr != "" {
		mlCfg.AdvertiseAddr = p.cfg.Gossip.AdvertiseAddr
	}
	if p.cfg.Gossip.AdvertisePort > 0 {
		mlCfg.AdvertisePort = p.cfg.Gossip.AdvertisePort
	}

	p.apiAddr = resolveSelfAddr(p.cfg, mlCfg)
	mlCfg.Delegate = &gossipDelegate{meta: []byte(p.apiAddr)}
	mlCfg.Events = &gossipEvents{provider: p}
	mlCfg.Logger = log.New(io.Discard, "", 0)

	host, _ := localIP()
	if host == "" {
		host = mlCfg.BindAddr
	}
	mlCfg.Name = fmt.Sprintf("%s:%d", host, mlCfg.BindPort)

	list, err := memberlist.Create(mlCfg)
	if err != nil {
		return fmt.Errorf("create memberlist: %w", err)
	}
	p.mu.Lock()
	p.list = list
	p.mu.Unlock()

	go p.updateLoop()

	if seeds := p.cfg.Gossip.SeedNodes; len(seeds) > 0 {
		if _, err := list.Join(seeds); err != nil {
			list.Shutdown()
			return fmt.Errorf("join gossip cluster: %w", err)
		}
	}

	p.scheduleUpdate()
	return nil
}

func (p *GossipProvider) Stop() {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	list := p.list
	p.mu.Unlock()

	close(p.stopCh)
	if list != nil {
		list.Leave(time.Second)
		list.Shutdown()
	}
}

// SelfAddr returns the HTTP surface address this node advertises.
func (p *GossipProvider) SelfAddr() string { return p.apiAddr }

func (p *GossipProvider) scheduleUpdate() {
	select {
	case p.updateCh <- struct{}{}:
	default:
	}
}

func (p *GossipProvider) updateLoop() {
	for {
		select {
		case <-p.stopCh:
			return
		case <-p.updateCh:
			p.refreshNodes()
		}
	}
}

func (p *GossipProvider) refreshNodes() {
	p.mu.RLock()
	list := p.list
	stopped := p.stopped
	p.mu.RUnlock()
	if list == nil || stopped {
		return
	}

	members := list.Members()
	nodes := make([]Node, 0, len(members))
	for _, member := range members {
		addr := string(member.Meta)
		if addr == "" {
			addr = net.JoinHostPort(member.Addr.String(), "8040")
		}
		nodes = append(nodes, Node{ID: member.Name, Addr: addr})
	}

	p.mu.Lock()
	p.nodes = nodes
	callbacks := make([]func([]Node), len(p.callbacks))
	copy(callbacks, p.callbacks)
	p.mu.Unlock()

	for _, cb := range callbacks {
		cb(nodes)
	}
}

func resolveSelfAddr(cfg config.MembershipConfig, mlCfg *memberlist.Config) string {
	if len(cfg.Nodes) > 0 && cfg.Nodes[0] != "" {
		return cfg.Nodes[0]
	}
	host := cfg.Gossip.AdvertiseAddr
	if host == "" {
		host = mlCfg.AdvertiseAddr
	}
	if host == "" {
		host = cfg.Gossip.BindAddr
	}
	if host == "" || host == "0.0.0.0" {
		if ip, err := localIP(); err == nil && ip != "" {
			host = ip
		} else {
			host = "127.0.0.1"
		}
	}
	return fmt.Sprintf("%s:%d", host, 8040)
}

func localIP() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String(), nil
		}
	}
	return "", nil
}

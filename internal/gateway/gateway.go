package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// personaSetter is implemented by adapters that can show a parrot under
// its own name.
type personaSetter interface {
	SetPersona(agentID string, p *Persona)
}

// Gateway owns the platform adapters. Inbound lines from every adapter go
// to one handler; outbound lines are routed by platform.
type Gateway struct {
	adapters map[string]GatewayAdapter
	personas map[string]*Persona
	handler  MessageHandler
	mu       sync.RWMutex
	logger   *zap.Logger
}

// NewGateway creates a gateway manager.
func NewGateway(logger *zap.Logger) *Gateway {
	return &Gateway{
		adapters: make(map[string]GatewayAdapter),
		personas: make(map[string]*Persona),
		logger:   logger,
	}
}

// SetHandler sets the callback for all inbound messages. It may be called
// before or after adapters are registered.
func (g *Gateway) SetHandler(h MessageHandler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handler = h
}

// Register adds an adapter, wires its inbound messages and hands it every
// persona known so far.
func (g *Gateway) Register(adapter GatewayAdapter) {
	g.mu.Lock()
	defer g.mu.Unlock()

	platform := adapter.Platform()
	g.adapters[platform] = adapter
	adapter.OnMessage(g.dispatch)
	if ps, ok := adapter.(personaSetter); ok {
		for id, p := range g.personas {
			ps.SetPersona(id, p)
		}
	}
	g.logger.Info("registered gateway adapter", zap.String("platform", platform))
}

func (g *Gateway) dispatch(msg *InboundMessage) {
	g.mu.RLock()
	h := g.handler
	g.mu.RUnlock()
	if h != nil {
		h(msg)
	}
}

// sorted returns the adapters in platform order.
func (g *Gateway) sorted() []GatewayAdapter {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]GatewayAdapter, 0, len(g.adapters))
	for _, a := range g.adapters {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform() < out[j].Platform() })
	return out
}

// ConnectAll starts every adapter. A platform that fails to connect does
// not keep the others offline; all failures are returned joined.
func (g *Gateway) ConnectAll(ctx context.Context) error {
	var errs []error
	for _, adapter := range g.sorted() {
		platform := adapter.Platform()
		if err := adapter.Connect(ctx); err != nil {
			g.logger.Error("adapter connect failed",
				zap.String("platform", platform), zap.Error(err))
			errs = append(errs, fmt.Errorf("connect %s: %w", platform, err))
			continue
		}
		g.logger.Info("adapter connected", zap.String("platform", platform))
	}
	return errors.Join(errs...)
}

// Send delivers a message through the adapter of msg.Platform.
func (g *Gateway) Send(ctx context.Context, msg *OutboundMessage) error {
	g.mu.RLock()
	adapter, ok := g.adapters[msg.Platform]
	g.mu.RUnlock()

	if !ok {
		return fmt.Errorf("no adapter for platform: %s", msg.Platform)
	}
	return adapter.Send(ctx, msg)
}

// SetPersona records a parrot's display persona and passes it to every
// adapter that supports one.
func (g *Gateway) SetPersona(agentID string, p *Persona) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.personas[agentID] = p
	for _, a := range g.adapters {
		if ps, ok := a.(personaSetter); ok {
			ps.SetPersona(agentID, p)
		}
	}
}

// Close shuts down all adapters.
func (g *Gateway) Close() error {
	var errs []error
	for _, adapter := range g.sorted() {
		if err := adapter.Close(); err != nil {
			g.logger.Error("adapter close failed",
				zap.String("platform", adapter.Platform()), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Adapters returns the sorted list of registered platform names.
func (g *Gateway) Adapters() []string {
	adapters := g.sorted()
	names := make([]string, len(adapters))
	for i, a := range adapters {
		names[i] = a.Platform()
	}
	return names
}

// StatusAll reports every adapter's connection state. Adapters without a
// status of their own are reported as connected.
func (g *Gateway) StatusAll() []AdapterStatus {
	adapters := g.sorted()
	out := make([]AdapterStatus, 0, len(adapters))
	for _, a := range adapters {
		if sr, ok := a.(statusReporter); ok {
			out = append(out, sr.Status())
			continue
		}
		out = append(out, AdapterStatus{Platform: a.Platform(), Connected: true})
	}
	return out
}

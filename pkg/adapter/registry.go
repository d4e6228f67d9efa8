package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func(*slog.Logger) Gateway)
)

// Register adds a gateway factory to the registry.
// Called by gateway implementations in their init() functions.
func Register(name string, factory func(*slog.Logger) Gateway) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get retrieves a gateway factory by name.
func Get(name string) (func(*slog.Logger) Gateway, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// NewGateway creates an unconnected gateway instance based on config type.
// The logger parameter is passed to the gateway constructor (nil uses discard logger).
func NewGateway(cfg Config, logger *slog.Logger) (Gateway, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("gateway type not specified")
	}

	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownGatewayError{
			Type:      cfg.Type,
			Available: ListGateways(),
		}
	}
	return factory(logger), nil
}

// Open creates a gateway for cfg and connects it.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Gateway, error) {
	gw, err := NewGateway(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := gw.Connect(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to connect %s gateway: %w", cfg.Type, err)
	}
	return gw, nil
}

// ListGateways returns all registered gateway names (sorted).
func ListGateways() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a gateway type is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// UnknownGatewayError is returned when an unknown gateway type is requested.
type UnknownGatewayError struct {
	Type      string
	Available []string
}

func (e *UnknownGatewayError) Error() string {
	return fmt.Sprintf("unknown gateway type %q\nAvailable gateways: %v\nHint: Check your target.type in sqlgraph.yaml", e.Type, e.Available)
}

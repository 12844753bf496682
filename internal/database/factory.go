package database

import (
	"fmt"
	"log/slog"
	"sync"

	"tripbase/internal/config"
	"tripbase/internal/types"
)

// New constructs exactly one provider variant from configuration. The
// returned provider is unconnected; callers must Connect explicitly.
// Missing per-variant settings are reported by name.
func New(cfg *config.Config, logger *slog.Logger) (Provider, error) {
	switch cfg.Backend {
	case config.BackendDirect:
		if cfg.Database.URL.Unmask() == "" {
			return nil, types.NewConfigurationError("direct backend requires DATABASE_URL")
		}
		return NewDirectProvider(cfg.Database, logger), nil

	case config.BackendGateway:
		if cfg.Gateway.URL == "" {
			return nil, types.NewConfigurationError("gateway backend requires GATEWAY_URL")
		}
		if cfg.Gateway.APIKey.Unmask() == "" {
			return nil, types.NewConfigurationError("gateway backend requires GATEWAY_API_KEY")
		}
		return NewGatewayProvider(cfg.Gateway, logger), nil

	default:
		return nil, types.NewConfigurationError(fmt.Sprintf("unknown database backend %q", cfg.Backend))
	}
}

var (
	defaultMu       sync.Mutex
	defaultProvider Provider
)

// Get returns the process-wide provider, constructing one via New on first
// use or when forceNew is requested. Replacing a still-connected provider
// is refused so its pool cannot leak; disconnect first.
func Get(cfg *config.Config, logger *slog.Logger, forceNew bool) (Provider, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultProvider != nil {
		if !forceNew {
			return defaultProvider, nil
		}
		if defaultProvider.IsConnected() {
			return nil, types.NewDatabaseError("cannot replace a connected provider: disconnect first")
		}
	}

	p, err := New(cfg, logger)
	if err != nil {
		return nil, err
	}
	defaultProvider = p
	return p, nil
}

// Reset clears the process-wide provider reference. It refuses to clear a
// provider that is still connected; callers must Disconnect first.
func Reset() error {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultProvider == nil {
		return nil
	}
	if defaultProvider.IsConnected() {
		return types.NewDatabaseError("cannot reset a connected provider: disconnect first")
	}
	defaultProvider = nil
	return nil
}

package workload

import (
	"fmt"
	"sync"

	"github.com/kbukum/dbsnap/logger"
)

// ManagerFactory creates a Manager implementation from core config and provider-specific config.
type ManagerFactory func(cfg Config, providerCfg any, log *logger.Logger) (Manager, error)

var (
	factories   = make(map[string]ManagerFactory)
	factoriesMu sync.RWMutex
)

// RegisterFactory registers a workload provider factory.
func RegisterFactory(name string, f ManagerFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// New creates a Manager for the configured provider.
func New(cfg Config, providerCfg any, log *logger.Logger) (Manager, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}

	l := log.WithComponent("workload")

	factoriesMu.RLock()
	f, ok := factories[cfg.Provider]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("workload: unsupported provider %q (not registered)", cfg.Provider)
	}

	l.Debug("initializing workload manager", map[string]interface{}{"provider": cfg.Provider})
	return f(cfg, providerCfg, l)
}

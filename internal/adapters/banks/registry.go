package banks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Registry manages all registered bank connectors
type Registry struct {
	connectors map[string]Connector
	order      []string
	mu         sync.RWMutex
	logger     *slog.Logger
}

// NewRegistry creates a new connector registry
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		connectors: make(map[string]Connector),
		logger:     logger,
	}
}

// Register adds a connector to the registry. Registration order is
// preserved so runs iterate banks deterministically.
func (r *Registry) Register(connector Connector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := connector.Name()
	if _, exists := r.connectors[name]; exists {
		return fmt.Errorf("connector %s already registered", name)
	}

	r.connectors[name] = connector
	r.order = append(r.order, name)
	r.logger.Info("registered bank connector",
		slog.String("bank", name),
		slog.String("display_name", connector.DisplayName()),
		slog.String("currency", connector.Currency()),
	)

	return nil
}

// Get returns a connector by name
func (r *Registry) Get(name string) (Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connector, exists := r.connectors[name]
	if !exists {
		return nil, fmt.Errorf("connector %s not found", name)
	}

	return connector, nil
}

// List returns all registered connector names in registration order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// GetAll returns all registered connectors in registration order
func (r *Registry) GetAll() []Connector {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connectors := make([]Connector, 0, len(r.order))
	for _, name := range r.order {
		connectors = append(connectors, r.connectors[name])
	}
	return connectors
}

// HealthCheck runs health checks on all connectors
func (r *Registry) HealthCheck(ctx context.Context) map[string]error {
	connectors := r.GetAll()

	results := make(map[string]error)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, connector := range connectors {
		wg.Add(1)
		go func(c Connector) {
			defer wg.Done()
			err := c.HealthCheck(ctx)
			mu.Lock()
			results[c.Name()] = err
			mu.Unlock()

			if err != nil {
				r.logger.Error("bank health check failed",
					slog.String("bank", c.Name()),
					slog.String("error", err.Error()),
				)
			} else {
				r.logger.Debug("bank health check passed",
					slog.String("bank", c.Name()),
				)
			}
		}(connector)
	}

	wg.Wait()
	return results
}

// Package scenario parses feature files and runs their scenarios against a
// browser session through registered step definitions.
package scenario

import (
	"sync"

	"go.temporal.io/sdk/log"

	"dev/bravebird/ui-harness/pkg/config"
	"dev/bravebird/ui-harness/pkg/driver"
)

// World is the per-scenario state shared by steps and hooks
type World struct {
	Driver driver.Driver
	Config *config.Config
	Logger log.Logger

	mu     sync.Mutex
	values map[string]any
}

// NewWorld creates a World for one browser session
func NewWorld(drv driver.Driver, cfg *config.Config, logger log.Logger) *World {
	return &World{
		Driver: drv,
		Config: cfg,
		Logger: logger,
		values: make(map[string]any),
	}
}

// Set stores a value for later steps
func (w *World) Set(key string, value any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.values[key] = value
}

// Get returns a value stored by an earlier step
func (w *World) Get(key string) (any, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.values[key]
	return v, ok
}

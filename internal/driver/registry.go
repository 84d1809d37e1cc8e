// internal/driver/registry.go
package driver

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"lab-rig-service/internal/config"
	"lab-rig-service/internal/driver/base"
	"lab-rig-service/internal/model"
	"lab-rig-service/internal/protocol"
	"lab-rig-service/pkg/instrument"
)

// DriverFactory connects an instrument driver
type DriverFactory func(ctx context.Context, cfg base.Config, logger *zap.Logger) (instrument.Instrument, error)

// Registry manages driver registration and creation
type Registry struct {
	drivers map[model.InstrumentKind]DriverFactory
	opener  protocol.Opener
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewRegistry creates a new driver registry. A nil opener opens real serial ports.
func NewRegistry(opener protocol.Opener, logger *zap.Logger) *Registry {
	return &Registry{
		drivers: make(map[model.InstrumentKind]DriverFactory),
		opener:  opener,
		logger:  logger,
	}
}

// Register registers a driver factory
func (r *Registry) Register(kind model.InstrumentKind, factory DriverFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.drivers[kind] = factory
	r.logger.Info("Driver registered", zap.String("instrument", string(kind)))
}

// CreateDriver connects the driver for kind using its configuration entry
func (r *Registry) CreateDriver(ctx context.Context, kind model.InstrumentKind, settings config.InstrumentConfig) (instrument.Instrument, error) {
	r.mu.RLock()
	factory, exists := r.drivers[kind]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("no driver registered for %s", kind)
	}

	return factory(ctx, BaseConfig(kind, settings, r.opener), r.logger)
}

// ListDrivers returns all registered kinds in command order
func (r *Registry) ListDrivers() []model.InstrumentKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]model.InstrumentKind, 0, len(r.drivers))
	for kind := range r.drivers {
		kinds = append(kinds, kind)
	}

	order := make(map[model.InstrumentKind]int, len(model.InstrumentKinds))
	for i, k := range model.InstrumentKinds {
		order[k] = i
	}
	sort.Slice(kinds, func(i, j int) bool { return order[kinds[i]] < order[kinds[j]] })
	return kinds
}

// IsSupported checks if a driver is registered for kind
func (r *Registry) IsSupported(kind model.InstrumentKind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.drivers[kind]
	return exists
}

// BaseConfig converts a configuration entry into a driver configuration
func BaseConfig(kind model.InstrumentKind, settings config.InstrumentConfig, opener protocol.Opener) base.Config {
	return base.Config{
		Kind: kind,
		Serial: protocol.SerialConfig{
			Port:        settings.Port,
			BaudRate:    settings.BaudRate,
			DataBits:    settings.DataBits,
			StopBits:    settings.StopBits,
			Parity:      settings.Parity,
			Timeout:     settings.Timeout,
			SettleDelay: settings.SettleDelay,
		},
		Channel: settings.Channel,
		Opener:  opener,
	}
}

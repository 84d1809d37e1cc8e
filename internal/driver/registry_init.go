// internal/driver/registry_init.go
package driver

import (
	"go.uber.org/zap"

	"lab-rig-service/internal/driver/mfc"
	"lab-rig-service/internal/driver/psu"
	"lab-rig-service/internal/driver/pump"
	"lab-rig-service/internal/driver/stirrer"
	"lab-rig-service/internal/model"
)

// RegisterDefaultDrivers registers the rig's four instrument drivers
func RegisterDefaultDrivers(registry *Registry, logger *zap.Logger) {
	registry.Register(model.InstrumentPSU, psu.New)
	registry.Register(model.InstrumentPump, pump.New)
	registry.Register(model.InstrumentMFC, mfc.New)
	registry.Register(model.InstrumentStirrer, stirrer.New)

	logger.Info("Instrument drivers registered", zap.Int("drivers", len(registry.ListDrivers())))
}

// internal/service/instrument_service.go
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"lab-rig-service/internal/config"
	"lab-rig-service/internal/model"
	"lab-rig-service/internal/utils"
	"lab-rig-service/pkg/instrument"
)

// ErrOperationNotSupported is returned for extras an instrument does not offer
var ErrOperationNotSupported = errors.New("operation not supported by instrument")

// InstrumentInfo describes one configured instrument
type InstrumentInfo struct {
	Kind         model.InstrumentKind      `json:"kind"`
	Enabled      bool                      `json:"enabled"`
	Port         string                    `json:"port"`
	Connected    bool                      `json:"connected"`
	Capabilities []model.Capability        `json:"capabilities,omitempty"`
	Health       *instrument.HealthMetrics `json:"health,omitempty"`
	Error        string                    `json:"error,omitempty"`
}

// InstrumentService handles instrument extras outside the poll loop
type InstrumentService struct {
	controller *ExperimentController
	settings   config.InstrumentsConfig
	logger     *utils.ServiceLogger
}

// NewInstrumentService creates a new instrument service
func NewInstrumentService(controller *ExperimentController, settings config.InstrumentsConfig, logger *zap.Logger) *InstrumentService {
	return &InstrumentService{
		controller: controller,
		settings:   settings,
		logger:     utils.NewServiceLogger(logger, "instrument-service"),
	}
}

// ListInstruments reports every configured instrument. Connection state and
// health metrics are only known while a run holds the rig.
func (s *InstrumentService) ListInstruments() []InstrumentInfo {
	rig, active := s.controller.ActiveRig()

	infos := make([]InstrumentInfo, 0, len(model.InstrumentKinds))
	for _, kind := range model.InstrumentKinds {
		ic, _ := s.settings.For(kind)
		info := InstrumentInfo{
			Kind:    kind,
			Enabled: ic.Enabled,
			Port:    ic.Port,
		}

		if active {
			if inst, ok := rig.Instrument(kind); ok {
				metrics := inst.GetHealthMetrics()
				info.Connected = true
				info.Capabilities = inst.GetCapabilities()
				info.Health = &metrics
			} else if reason := rig.UnavailableReason(kind); reason != nil {
				info.Error = reason.Error()
			}
		}

		infos = append(infos, info)
	}
	return infos
}

// Identify asks an instrument for its identity
func (s *InstrumentService) Identify(ctx context.Context, kind model.InstrumentKind) (*model.Identity, error) {
	var identity *model.Identity

	err := s.withInstrument(ctx, kind, func(inst instrument.Instrument) error {
		identifier, ok := inst.(instrument.Identifier)
		if !ok {
			return fmt.Errorf("identify %s: %w", kind, ErrOperationNotSupported)
		}

		id, err := identifier.Identify(ctx)
		if err != nil {
			return fmt.Errorf("identify %s: %w", kind, err)
		}
		identity = id
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Instrument identified",
		zap.String("instrument", string(kind)),
		zap.String("manufacturer", identity.Manufacturer),
		zap.String("model", identity.Model),
	)
	return identity, nil
}

// TareMFC zeroes the mass-flow controller
func (s *InstrumentService) TareMFC(ctx context.Context) error {
	return s.withInstrument(ctx, model.InstrumentMFC, func(inst instrument.Instrument) error {
		mfc, ok := inst.(instrument.MassFlowController)
		if !ok {
			return fmt.Errorf("tare: %w", ErrOperationNotSupported)
		}
		if err := mfc.Tare(ctx); err != nil {
			return fmt.Errorf("tare: %w", err)
		}
		s.logger.Info("Mass-flow controller tared")
		return nil
	})
}

// withInstrument uses the run's instrument when a run is active, otherwise the
// instrument is opened just for fn and closed again.
func (s *InstrumentService) withInstrument(ctx context.Context, kind model.InstrumentKind, fn func(instrument.Instrument) error) error {
	use := func(rig *Rig) error {
		inst, ok := rig.Instrument(kind)
		if !ok {
			return rig.UnavailableReason(kind)
		}
		return fn(inst)
	}

	return s.controller.UseRig(ctx, use, kind)
}

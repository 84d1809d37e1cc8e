package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestDurationMinutes(t *testing.T) {
	tests := []struct {
		name     string
		duration DurationConfig
		minutes  float64
		cutoff   time.Duration
	}{
		{"hours", DurationConfig{Value: ptr(2), Unit: DurationHours}, 120, 2 * time.Hour},
		{"minutes", DurationConfig{Value: ptr(90), Unit: DurationMinutes}, 90, 90 * time.Minute},
		{"unknown unit counts as hours", DurationConfig{Value: ptr(1), Unit: "days"}, 60, time.Hour},
		{"no value", DurationConfig{Unit: DurationMinutes}, 0, 0},
		{"zero", DurationConfig{Value: ptr(0), Unit: DurationMinutes}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.minutes, tt.duration.Minutes())
			assert.Equal(t, tt.cutoff, tt.duration.Cutoff())
		})
	}
}

func TestPSUConfigSetpoints(t *testing.T) {
	volts, ok := PSUConfig{Mode: PSUModeVolt, Value: 5}.Voltage()
	assert.True(t, ok)
	assert.Equal(t, 5.0, volts)

	_, ok = PSUConfig{Mode: PSUModeVolt, Value: 5}.Amps()
	assert.False(t, ok)

	amps, ok := PSUConfig{Mode: PSUModeMilliAmp, Value: 250}.Amps()
	assert.True(t, ok)
	assert.InDelta(t, 0.25, amps, 1e-12)

	amps, ok = PSUConfig{Mode: PSUModeAmp, Value: 1.5}.Amps()
	assert.True(t, ok)
	assert.Equal(t, 1.5, amps)
}

func TestPumpClockwise(t *testing.T) {
	assert.True(t, PumpConfig{Direction: PumpClockwise}.Clockwise())
	assert.False(t, PumpConfig{Direction: PumpCounterClockwise}.Clockwise())

	assert.Equal(t, "Clockwise", string(PumpClockwise))
	assert.Equal(t, "Counter-clockwise", string(PumpCounterClockwise))
}

func TestReadingBundleSet(t *testing.T) {
	var b ReadingBundle
	b.Set(NumberReading(InstrumentPSU, FieldVoltage, 5.001, "V", "5.001"))
	b.Set(TextReading(InstrumentPump, FieldPumpInfo, "060 RR"))
	b.Set(NumberReading(InstrumentMFC, FieldFlowRate, 118.4, "", "118.4"))

	require.NotNil(t, b.Voltage)
	assert.Equal(t, 5.001, *b.Voltage)
	require.NotNil(t, b.PumpInfo)
	assert.Equal(t, "060 RR", *b.PumpInfo)
	require.NotNil(t, b.FlowRate)
	assert.Nil(t, b.Current)
	assert.Nil(t, b.StirrerSpeed)
}

func TestExperimentConfigColumn(t *testing.T) {
	cfg := ExperimentConfig{
		PSU:      PSUConfig{Mode: PSUModeAmp, Value: 0.5},
		Pump:     PumpConfig{Speed: 60, Direction: PumpCounterClockwise},
		Duration: DurationConfig{Value: ptr(30), Unit: DurationMinutes},
	}

	value, err := cfg.Value()
	require.NoError(t, err)

	var back ExperimentConfig
	require.NoError(t, back.Scan(value))
	assert.Equal(t, cfg, back)

	require.NoError(t, back.Scan(nil))
	assert.Error(t, back.Scan(42))
}

func TestParseInstrumentKind(t *testing.T) {
	kind, err := ParseInstrumentKind(" mfc ")
	require.NoError(t, err)
	assert.Equal(t, InstrumentMFC, kind)
	assert.Equal(t, "mfc", kind.ConfigKey())

	_, err = ParseInstrumentKind("laser")
	assert.Error(t, err)
}

func TestSaveProfileKey(t *testing.T) {
	assert.Equal(t, "save_3", (&SaveProfile{Slot: 3}).Key())
}

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthReportAggregates(t *testing.T) {
	report := NewHealthReport(4, StateRunning)
	assert.True(t, report.Healthy())

	report.Add(DeviceResult{Instrument: InstrumentPSU, Operation: OperationRead, Outcome: OutcomeOK})
	report.Add(DeviceResult{Instrument: InstrumentMFC, Operation: OperationConnect, Outcome: OutcomeUnavailable, ErrorKind: ErrorKindConnection})
	report.Add(DeviceResult{Instrument: InstrumentMFC, Operation: OperationRead, Outcome: OutcomeUnavailable})
	report.Add(DeviceResult{Instrument: InstrumentPump, Operation: OperationRead, Outcome: OutcomeFailed, ErrorKind: ErrorKindTimeout})

	assert.False(t, report.Healthy())
	assert.Len(t, report.Failures(), 3)
	assert.Equal(t, []InstrumentKind{InstrumentMFC}, report.Unavailable())

	res, ok := report.Find(InstrumentPump, OperationRead)
	require.True(t, ok)
	assert.Equal(t, ErrorKindTimeout, res.ErrorKind)

	_, ok = report.Find(InstrumentStirrer, OperationRead)
	assert.False(t, ok)
}

func TestHealthReportColumn(t *testing.T) {
	report := NewHealthReport(1, StateArmed)
	report.Add(DeviceResult{Instrument: InstrumentPSU, Operation: OperationConfigure, Outcome: OutcomeOK})

	value, err := report.Value()
	require.NoError(t, err)

	var back HealthReport
	require.NoError(t, back.Scan(value))
	assert.Equal(t, report.Tick, back.Tick)
	assert.Equal(t, report.Results, back.Results)
}

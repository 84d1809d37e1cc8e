package mfc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lab-rig-service/internal/driver/base"
	"lab-rig-service/internal/model"
	"lab-rig-service/internal/protocol"
	"lab-rig-service/internal/protocol/porttest"
	"lab-rig-service/pkg/instrument"
)

const testPort = "/dev/ttyMFC"

func newTestMFC(t *testing.T) (*Driver, *porttest.Port) {
	t.Helper()

	bank := porttest.NewBank()
	d, err := NewMassFlowController(context.Background(), base.Config{
		Serial: protocol.SerialConfig{Port: testPort},
		Opener: bank.Opener(),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d, bank.Port(testPort)
}

func TestReadFlowPicksMassFlowColumn(t *testing.T) {
	d, port := newTestMFC(t)
	port.Reply("A", "MFC1 14.2 23.1 120 118.4 5.0 AIR 1")

	reading, err := d.ReadFlow(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 118.4, reading.Number, 1e-9)
	require.Equal(t, model.FieldFlowRate, reading.Field)
	require.Equal(t, "sccm", reading.Unit)
}

func TestReadFlowShortRecord(t *testing.T) {
	d, port := newTestMFC(t)
	port.Reply("A", "MFC1 14.2 23.1")

	_, err := d.ReadFlow(context.Background())
	var protoErr *instrument.ProtocolError
	require.True(t, errors.As(err, &protoErr))
	require.Equal(t, "A", protoErr.Command)
}

func TestSetFlow(t *testing.T) {
	d, port := newTestMFC(t)

	require.NoError(t, d.SetFlow(context.Background(), 5))
	require.NoError(t, d.SetSetpoint(context.Background(), 12.5))
	require.Equal(t, []string{"As5.0\r", "As12.5\r"}, port.Frames())
}

func TestStartStopTare(t *testing.T) {
	d, port := newTestMFC(t)

	require.NoError(t, d.Start(context.Background()))
	require.NoError(t, d.Stop(context.Background()))
	require.NoError(t, d.Tare(context.Background()))
	require.Equal(t, []string{"AC", "AHC", "AV"}, port.Commands())
}

func TestIdentify(t *testing.T) {
	d, port := newTestMFC(t)
	port.Reply("A??M*", "A M01 Alicat Scientific").Reply("AVE", "10v05.0-R22")

	id, err := d.Identify(context.Background())
	require.NoError(t, err)
	require.Equal(t, "A M01 Alicat Scientific", id.Manufacturer)
	require.Equal(t, "10v05.0-R22", id.Firmware)
}

func TestStatusIsUnknownWithRawRecord(t *testing.T) {
	d, port := newTestMFC(t)
	port.Reply("A", "MFC1 14.2 23.1 120 118.4 5.0 AIR 1")

	status, err := d.ReadStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, model.RunStateUnknown, status.State)
	require.Equal(t, "MFC1 14.2 23.1 120 118.4 5.0 AIR 1", status.Raw)
	require.Equal(t, "setpoint 5.0, gas AIR", status.Detail)
}

package psu

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

const testPort = "/dev/ttyPSU"

func newTestSupply(t *testing.T, channel int) (*Driver, *porttest.Port) {
	t.Helper()

	bank := porttest.NewBank()
	d, err := NewPowerSupply(context.Background(), base.Config{
		Serial:  protocol.SerialConfig{Port: testPort},
		Channel: channel,
		Opener:  bank.Opener(),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d, bank.Port(testPort)
}

func TestSetVoltageSelectsChannelFirst(t *testing.T) {
	d, port := newTestSupply(t, 2)

	require.NoError(t, d.SetVoltage(context.Background(), 5))
	require.Equal(t, []string{"INST:NSEL 2\n", "VOLT 5.0\n"}, port.Frames())
}

func TestSetCurrent(t *testing.T) {
	d, port := newTestSupply(t, 0)

	require.NoError(t, d.SetCurrent(context.Background(), 0.25))
	require.Equal(t, []string{"INST:NSEL 1", "CURR 0.25"}, port.Commands())
}

func TestMeasure(t *testing.T) {
	d, port := newTestSupply(t, 1)
	port.Reply("MEAS:VOLT?", "4.998").Reply("MEAS:CURR?", "0.101")

	volts, err := d.MeasureVoltage(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 4.998, volts.Number, 1e-9)
	require.Equal(t, "V", volts.Unit)

	amps, err := d.MeasureCurrent(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 0.101, amps.Number, 1e-9)

	require.Equal(t, []string{"INST:NSEL 1", "MEAS:VOLT?", "INST:NSEL 1", "MEAS:CURR?"}, port.Commands())
}

func TestMeasureMalformedIsProtocolError(t *testing.T) {
	d, port := newTestSupply(t, 1)
	port.Reply("MEAS:VOLT?", "ERR")

	_, err := d.MeasureVoltage(context.Background())
	var protoErr *instrument.ProtocolError
	require.True(t, errors.As(err, &protoErr))
	require.Equal(t, "ERR", protoErr.Reply)

	_, err = d.MeasureCurrent(context.Background())
	require.True(t, errors.As(err, &protoErr))
	require.Equal(t, "empty reply", protoErr.Reason)
}

func TestSetCommandsDoNotConsumeReplies(t *testing.T) {
	d, port := newTestSupply(t, 1)
	port.Reply("OUTP?", "1")

	require.NoError(t, d.Start(context.Background()))

	status, err := d.ReadStatus(context.Background())
	require.NoError(t, err)
	require.True(t, status.IsRunning())
	require.Equal(t, []string{"OUTP ON", "OUTP?"}, port.Commands())
}

func TestStatusOff(t *testing.T) {
	d, port := newTestSupply(t, 1)
	port.Reply("OUTP?", "0")

	require.NoError(t, d.Stop(context.Background()))

	status, err := d.ReadStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, model.RunStateStopped, status.State)
}

func TestIdentify(t *testing.T) {
	d, port := newTestSupply(t, 1)
	port.Reply("*IDN?", "RIGOL TECHNOLOGIES,DP832,DP8C1234,00.01.14")

	id, err := d.Identify(context.Background())
	require.NoError(t, err)
	require.Equal(t, "RIGOL TECHNOLOGIES", id.Manufacturer)
	require.Equal(t, "DP832", id.Model)
	require.Equal(t, "DP8C1234", id.SerialNumber)
	require.Equal(t, "00.01.14", id.Firmware)
}

func TestSelectChannel(t *testing.T) {
	d, port := newTestSupply(t, 1)

	require.NoError(t, d.SelectChannel(context.Background(), 3))
	require.Equal(t, 3, d.Channel())
	require.NoError(t, d.SetVoltage(context.Background(), 1.5))
	require.Equal(t, []string{"INST:NSEL 3", "INST:NSEL 3", "VOLT 1.5"}, port.Commands())

	err := d.SelectChannel(context.Background(), 0)
	var validErr *instrument.ValidationError
	require.True(t, errors.As(err, &validErr))
}

func TestHealthMetricsTrackFailures(t *testing.T) {
	d, port := newTestSupply(t, 1)
	port.WriteErr = errors.New("cable unplugged")

	require.Error(t, d.Start(context.Background()))

	metrics := d.GetHealthMetrics()
	require.EqualValues(t, 1, metrics.TotalOperations)
	require.EqualValues(t, 1, metrics.ErrorCount)
	require.Equal(t, 0, metrics.HealthScore)
}

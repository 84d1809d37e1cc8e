package protocol_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"go.uber.org/zap"

	"lab-rig-service/internal/protocol"
	"lab-rig-service/internal/protocol/porttest"
)

func openTransport(t *testing.T, bank *porttest.Bank, cfg protocol.SerialConfig) protocol.Transport {
	t.Helper()

	tr, err := protocol.CreateTransport(cfg, bank.Opener(), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, tr.Open(context.Background()))
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestSendQueryReturnsTrimmedLine(t *testing.T) {
	bank := porttest.NewBank()
	bank.Port("/dev/ttyPSU").Reply("MEAS:VOLT?", "  4.998 ")

	tr := openTransport(t, bank, protocol.SerialConfig{Port: "/dev/ttyPSU", Terminator: protocol.TerminatorLF})

	reply, err := tr.Send(context.Background(), protocol.Query("MEAS:VOLT?", protocol.TerminatorLF, 0))
	require.NoError(t, err)
	require.Equal(t, "4.998", reply)
	require.Equal(t, []string{"MEAS:VOLT?\n"}, bank.Port("/dev/ttyPSU").Frames())
}

func TestSendTimeoutYieldsEmptyLine(t *testing.T) {
	bank := porttest.NewBank()
	tr := openTransport(t, bank, protocol.SerialConfig{Port: "/dev/ttyMFC"})

	reply, err := tr.Send(context.Background(), protocol.Query("A", protocol.TerminatorCR, 0))
	require.NoError(t, err)
	require.Empty(t, reply)
	require.EqualValues(t, 1, tr.Stats().EmptyReplies)
}

func TestSendKeepsBytesAfterNewline(t *testing.T) {
	bank := porttest.NewBank()
	tr := openTransport(t, bank, protocol.SerialConfig{Port: "/dev/ttyPump"})

	bank.Port("/dev/ttyPump").Inject([]byte("first\r\nsecond\r\n"))

	reply, err := tr.Send(context.Background(), protocol.Query("1RS", protocol.TerminatorCR, 0))
	require.NoError(t, err)
	require.Equal(t, "first", reply)

	reply, err = tr.Send(context.Background(), protocol.Query("1RS", protocol.TerminatorCR, 0))
	require.NoError(t, err)
	require.Equal(t, "second", reply)
}

func TestSendDropsInvalidBytes(t *testing.T) {
	bank := porttest.NewBank()
	tr := openTransport(t, bank, protocol.SerialConfig{Port: "/dev/ttyStir"})

	bank.Port("/dev/ttyStir").Inject([]byte{'1', 0xff, '2', '0', '\r', '\n'})

	reply, err := tr.Send(context.Background(), protocol.Query("IN_PV_4", protocol.TerminatorCR, 0))
	require.NoError(t, err)
	require.Equal(t, "120", reply)
}

func TestSendWithoutReplyLeavesInboundUntouched(t *testing.T) {
	bank := porttest.NewBank()
	port := bank.Port("/dev/ttyPSU")
	tr := openTransport(t, bank, protocol.SerialConfig{Port: "/dev/ttyPSU", Terminator: protocol.TerminatorLF})

	port.Inject([]byte("1\n"))

	reply, err := tr.Send(context.Background(), protocol.Set("OUTP ON", protocol.TerminatorLF, 0))
	require.NoError(t, err)
	require.Empty(t, reply)

	reply, err = tr.Send(context.Background(), protocol.Query("OUTP?", protocol.TerminatorLF, 0))
	require.NoError(t, err)
	require.Equal(t, "1", reply)
}

func TestSendOnClosedTransport(t *testing.T) {
	bank := porttest.NewBank()
	tr, err := protocol.CreateTransport(protocol.SerialConfig{Port: "/dev/ttyX"}, bank.Opener(), zap.NewNop())
	require.NoError(t, err)

	_, err = tr.Send(context.Background(), protocol.Query("A", protocol.TerminatorCR, 0))
	require.ErrorIs(t, err, protocol.ErrNotOpen)
}

func TestSendHonoursContextDuringSettle(t *testing.T) {
	bank := porttest.NewBank()
	tr := openTransport(t, bank, protocol.SerialConfig{Port: "/dev/ttyX"})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := tr.Send(ctx, protocol.Query("A", protocol.TerminatorCR, time.Second))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOpenFailureIsWrapped(t *testing.T) {
	bank := porttest.NewBank()
	busy := errors.New("device busy")
	bank.Fail("/dev/ttyBusy", busy)

	tr, err := protocol.CreateTransport(protocol.SerialConfig{Port: "/dev/ttyBusy"}, bank.Opener(), zap.NewNop())
	require.NoError(t, err)

	err = tr.Open(context.Background())
	require.ErrorIs(t, err, busy)
	require.False(t, tr.IsOpen())
}

func TestModeFollowsConfig(t *testing.T) {
	bank := porttest.NewBank()
	openTransport(t, bank, protocol.SerialConfig{Port: "/dev/ttyPump", StopBits: 2, Timeout: 500 * time.Millisecond})

	mode, ok := bank.Mode("/dev/ttyPump")
	require.True(t, ok)
	require.Equal(t, 9600, mode.BaudRate)
	require.Equal(t, 8, mode.DataBits)
	require.Equal(t, serial.NoParity, mode.Parity)
	require.Equal(t, serial.TwoStopBits, mode.StopBits)
	require.Equal(t, 500*time.Millisecond, bank.Port("/dev/ttyPump").ReadTimeout())
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  protocol.SerialConfig
		wantErr bool
	}{
		{"valid", protocol.DefaultSerialConfig("/dev/ttyUSB0"), false},
		{"missing port", protocol.DefaultSerialConfig(""), true},
		{"bad baud", protocol.SerialConfig{Port: "/dev/ttyUSB0", BaudRate: 1234, DataBits: 8, StopBits: 1, Parity: "none"}, true},
		{"bad stop bits", protocol.SerialConfig{Port: "/dev/ttyUSB0", BaudRate: 9600, DataBits: 8, StopBits: 3, Parity: "none"}, true},
		{"bad parity", protocol.SerialConfig{Port: "/dev/ttyUSB0", BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "weird"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := protocol.ValidateConfig(tt.config)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

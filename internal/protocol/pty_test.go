//go:build linux

package protocol_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lab-rig-service/internal/protocol"
)

// The slave end of a pty stands in for the instrument's serial device.
func TestSerialTransportOverPTY(t *testing.T) {
	master, slave, err := pty.Open()
	if err != nil {
		t.Skipf("pty unavailable: %v", err)
	}
	t.Cleanup(func() { master.Close(); slave.Close() })

	tr, err := protocol.CreateTransport(protocol.SerialConfig{
		Port:    slave.Name(),
		Timeout: time.Second,
	}, nil, zap.NewNop())
	require.NoError(t, err)

	if err := tr.Open(context.Background()); err != nil {
		t.Skipf("pty cannot be opened as a serial port: %v", err)
	}
	t.Cleanup(func() { tr.Close() })

	received := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 64)
		var got []byte
		for !bytes.Contains(got, []byte("\r")) {
			n, err := master.Read(buf)
			if err != nil {
				return
			}
			got = append(got, buf[:n]...)
		}
		received <- got
		master.Write([]byte("RIGOL TECHNOLOGIES,DP832,DP8B0000,00.01.14\n"))
	}()

	reply, err := tr.Send(context.Background(), protocol.Query("*IDN?", protocol.TerminatorCR, 0))
	require.NoError(t, err)
	assert.Equal(t, "RIGOL TECHNOLOGIES,DP832,DP8B0000,00.01.14", reply)

	select {
	case frame := <-received:
		assert.Equal(t, "*IDN?\r", string(frame))
	case <-time.After(time.Second):
		t.Fatal("instrument side never saw the command")
	}

	stats := tr.Stats()
	assert.Equal(t, int64(1), stats.OperationCount)
	assert.Equal(t, int64(6), stats.BytesWritten)
}

package sink

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lab-rig-service/internal/model"
)

func testRun() model.Run {
	hours := 2.0
	return model.Run{
		ID:        uuid.New(),
		Details:   model.ExperimentDetails{Author: "Ada", Name: "cell/7", TubingSize: 1.6},
		CreatedAt: time.Date(2026, 3, 14, 9, 0, 0, 0, time.Local),
		Config: model.ExperimentConfig{
			PSU:      model.PSUConfig{Mode: model.PSUModeVolt, Value: 5},
			Pump:     model.PumpConfig{Speed: 60, Direction: model.PumpClockwise},
			MFC:      model.MFCConfig{Flow: 12.5},
			Stirrer:  model.StirrerConfig{Speed: 800},
			Duration: model.DurationConfig{Value: &hours, Unit: model.DurationHours},
		},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	require.NoError(t, err)
	return rows
}

func TestLogFileName(t *testing.T) {
	date := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, "20260314_run-1.csv", LogFileName(date, "run-1"))
	assert.Equal(t, "20260314_cell_7.csv", LogFileName(date, "cell/7"))
	assert.Equal(t, "20260314_experiment.csv", LogFileName(date, "  "))
}

func TestCSVSinkWritesHeaderAndRows(t *testing.T) {
	dir := t.TempDir()
	s := NewCSVSink(dir, zap.NewNop())
	run := testRun()

	require.NoError(t, s.RunStarted(context.Background(), run))
	assert.Equal(t, filepath.Join(dir, "20260314_cell_7.csv"), s.Path())

	volts, flow := 5.001, 118.4
	info := "060 RR"
	require.NoError(t, s.Record(context.Background(), model.ReadingBundle{
		RunID:     run.ID,
		Tick:      1,
		Timestamp: time.Date(2026, 3, 14, 9, 30, 5, 0, time.Local),
		Voltage:   &volts,
		PumpInfo:  &info,
		FlowRate:  &flow,
	}))
	require.NoError(t, s.RunEnded(context.Background(), run, model.RunEndedEventData{Ticks: 1}))

	rows := readCSV(t, s.Path())
	require.Len(t, rows, 19)
	assert.Equal(t, []string{"Author", "Ada"}, rows[0])
	assert.Equal(t, []string{"Voltage", "5", "V"}, rows[4])
	assert.Equal(t, []string{"Pump direction", "Clockwise"}, rows[7])
	assert.Equal(t, []string{"Flow rate", "12.5"}, rows[8])
	assert.Equal(t, []string{"Duration", "2", "hours"}, rows[10])
	assert.Equal(t, columnRow, rows[17])
	assert.Equal(t, []string{"09:30:05", "5.001", "", "060 RR", "118.4", ""}, rows[18])
}

func TestCSVSinkQuotesEveryCell(t *testing.T) {
	s := NewCSVSink(t.TempDir(), zap.NewNop())
	run := testRun()
	run.Details.Name = `cell "A", tray 2`

	require.NoError(t, s.RunStarted(context.Background(), run))
	volts := 5.001
	require.NoError(t, s.Record(context.Background(), model.ReadingBundle{
		RunID:     run.ID,
		Timestamp: time.Date(2026, 3, 14, 9, 30, 5, 0, time.Local),
		Voltage:   &volts,
	}))
	require.NoError(t, s.RunEnded(context.Background(), run, model.RunEndedEventData{Ticks: 1}))

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(raw), "\r\n"), "\r\n")
	require.Len(t, lines, 19)
	assert.Equal(t, `"Experiment name","cell ""A"", tray 2"`, lines[1])
	assert.Equal(t, `""`, lines[2])
	assert.Equal(t, `""`, lines[11])
	assert.Equal(t, `""`, lines[16])
	assert.Equal(t, `"09:30:05","5.001","","","",""`, lines[18])

	rows := readCSV(t, s.Path())
	assert.Equal(t, []string{"Experiment name", `cell "A", tray 2`}, rows[1])
	assert.Equal(t, []string{""}, rows[2])
}

func TestCSVSinkRejectsReadingsWithoutRun(t *testing.T) {
	s := NewCSVSink(t.TempDir(), zap.NewNop())
	assert.ErrorIs(t, s.Record(context.Background(), model.ReadingBundle{}), errNoLogFile)
	assert.NoError(t, s.RunEnded(context.Background(), model.Run{}, model.RunEndedEventData{}))
}

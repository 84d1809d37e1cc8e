// Package sink holds the consumers of experiment readings.
package sink

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"lab-rig-service/internal/model"
)

var errNoLogFile = errors.New("no experiment log open")

var columnRow = []string{"Time", "Voltage", "Current", "Pump speed", "Flow rate", "Stirrer speed"}

// CSVSink writes one log file per run under dir
type CSVSink struct {
	dir    string
	logger *zap.Logger

	mu     sync.Mutex
	file   *os.File
	writer *quotedWriter
	path   string
}

// quotedWriter writes every cell quoted with CRLF line endings, so a row holding a
// single empty cell is written as "" rather than a blank line.
type quotedWriter struct {
	w   *bufio.Writer
	err error
}

func newQuotedWriter(f *os.File) *quotedWriter {
	return &quotedWriter{w: bufio.NewWriter(f)}
}

func (q *quotedWriter) Write(row []string) error {
	if q.err != nil {
		return q.err
	}
	for i, cell := range row {
		if i > 0 {
			q.w.WriteByte(',')
		}
		q.w.WriteByte('"')
		q.w.WriteString(strings.ReplaceAll(cell, `"`, `""`))
		q.w.WriteByte('"')
	}
	_, q.err = q.w.WriteString("\r\n")
	return q.err
}

func (q *quotedWriter) WriteAll(rows [][]string) error {
	for _, row := range rows {
		if err := q.Write(row); err != nil {
			return err
		}
	}
	q.Flush()
	return q.err
}

func (q *quotedWriter) Flush() {
	if err := q.w.Flush(); err != nil && q.err == nil {
		q.err = err
	}
}

func (q *quotedWriter) Error() error {
	return q.err
}

// NewCSVSink creates a sink writing to dir. The directory is created on first use.
func NewCSVSink(dir string, logger *zap.Logger) *CSVSink {
	return &CSVSink{
		dir:    dir,
		logger: logger.With(zap.String("component", "csv_sink")),
	}
}

// LogFileName returns the file name used for a run configured at date
func LogFileName(date time.Time, experiment string) string {
	return fmt.Sprintf("%s_%s.csv", date.Format("20060102"), sanitizeName(experiment))
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "experiment"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}

// RunStarted creates the log file and writes the parameter header
func (s *CSVSink) RunStarted(_ context.Context, run model.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeLocked()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(s.dir, LogFileName(run.CreatedAt, run.Details.Name))
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create experiment log: %w", err)
	}

	writer := newQuotedWriter(file)
	if err := writer.WriteAll(headerRows(run)); err != nil {
		file.Close()
		return fmt.Errorf("failed to write experiment log header: %w", err)
	}

	s.file, s.writer, s.path = file, writer, path
	s.logger.Info("Experiment log created", zap.String("path", path))
	return nil
}

func headerRows(run model.Run) [][]string {
	cfg := run.Config

	duration := ""
	if cfg.Duration.Value != nil {
		duration = formatNumber(*cfg.Duration.Value)
	}

	return [][]string{
		{"Author", run.Details.Author},
		{"Experiment name", run.Details.Name},
		{""},
		{"Parameters"},
		{"Voltage", formatNumber(cfg.PSU.Value), string(cfg.PSU.Mode)},
		{"Pump speed", formatNumber(cfg.Pump.Speed)},
		{"Tubing size", formatNumber(run.Details.TubingSize)},
		{"Pump direction", string(cfg.Pump.Direction)},
		{"Flow rate", formatNumber(cfg.MFC.Flow)},
		{"Stirrer speed", formatNumber(cfg.Stirrer.Speed)},
		{"Duration", duration, string(cfg.Duration.Unit)},
		{""},
		{"Report"},
		{"Total power", "", "W"},
		{"Total liquid used", "", "mL"},
		{"Total gas used", "", "cm^3"},
		{""},
		columnRow,
	}
}

// Record appends one row. Missing values are empty cells.
func (s *CSVSink) Record(_ context.Context, bundle model.ReadingBundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer == nil {
		return errNoLogFile
	}

	pumpInfo := ""
	if bundle.PumpInfo != nil {
		pumpInfo = *bundle.PumpInfo
	}

	row := []string{
		bundle.Timestamp.Format("15:04:05"),
		formatOptional(bundle.Voltage),
		formatOptional(bundle.Current),
		pumpInfo,
		formatOptional(bundle.FlowRate),
		formatOptional(bundle.StirrerSpeed),
	}

	if err := s.writer.Write(row); err != nil {
		return fmt.Errorf("failed to write reading: %w", err)
	}
	s.writer.Flush()
	return s.writer.Error()
}

// RunEnded closes the log file
func (s *CSVSink) RunEnded(_ context.Context, _ model.Run, summary model.RunEndedEventData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}

	s.logger.Info("Experiment log closed",
		zap.String("path", s.path),
		zap.Int("ticks", summary.Ticks),
	)
	return s.closeLocked()
}

// Path returns the file of the current run
func (s *CSVSink) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

func (s *CSVSink) closeLocked() error {
	if s.file == nil {
		return nil
	}

	s.writer.Flush()
	flushErr := s.writer.Error()
	closeErr := s.file.Close()
	s.file, s.writer = nil, nil

	if flushErr != nil {
		return fmt.Errorf("failed to flush experiment log: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close experiment log: %w", closeErr)
	}
	return nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatNumber(*v)
}

// internal/utils/logger.go
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"lab-rig-service/internal/config"
)

const defaultLogFile = "./logs/lab-rig-service.log"

// NewLogger creates a new logger instance based on configuration
func NewLogger(cfg *config.LoggingConfig) (*zap.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	sink, err := writeSyncer(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create write syncer: %w", err)
	}

	encoderConfig := encoderConfig(cfg.Format)

	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, sink, level)

	return zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	), nil
}

func encoderConfig(format string) zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.LevelKey = "level"
	ec.CallerKey = "caller"
	ec.MessageKey = "message"
	ec.StacktraceKey = "stacktrace"
	ec.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339Nano)
	ec.EncodeLevel = zapcore.LowercaseLevelEncoder
	ec.EncodeCaller = zapcore.ShortCallerEncoder

	if format == "console" {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		ec.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	}
	return ec
}

// writeSyncer returns stdout, stderr or a lumberjack-rotated file
func writeSyncer(cfg *config.LoggingConfig) (zapcore.WriteSyncer, error) {
	switch cfg.Output {
	case "stdout":
		return zapcore.AddSync(os.Stdout), nil
	case "stderr":
		return zapcore.AddSync(os.Stderr), nil
	}

	filename := cfg.Output
	if filename == "" {
		filename = defaultLogFile
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   filename,
		MaxSize:    cfg.MaxSize, // MB
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge, // days
		Compress:   cfg.Compress,
	}), nil
}

func parseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "fatal":
		return zapcore.FatalLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}

// InstrumentLogger wraps zap.Logger with instrument-specific fields
type InstrumentLogger struct {
	*zap.Logger
	instrument string
	port       string
}

// NewInstrumentLogger creates an instrument-specific logger
func NewInstrumentLogger(baseLogger *zap.Logger, instrument, port string) *InstrumentLogger {
	return &InstrumentLogger{
		Logger: baseLogger.With(
			zap.String("instrument", instrument),
			zap.String("port", port),
			zap.String("component", "instrument"),
		),
		instrument: instrument,
		port:       port,
	}
}

// LogCommand logs one command/response exchange
func (il *InstrumentLogger) LogCommand(command, reply string, duration time.Duration, err error) {
	fields := []zap.Field{
		zap.String("command", command),
		zap.String("reply", reply),
		zap.Duration("duration", duration),
	}

	if err != nil {
		fields = append(fields, zap.Error(err))
		il.Warn("Instrument command failed", fields...)
		return
	}
	il.Debug("Instrument command", fields...)
}

// LogConnection logs connection events
func (il *InstrumentLogger) LogConnection(action string, err error) {
	fields := []zap.Field{
		zap.String("action", action),
		zap.Bool("success", err == nil),
	}

	if err != nil {
		fields = append(fields, zap.Error(err))
		il.Error("Instrument connection event", fields...)
	} else {
		il.Info("Instrument connection event", fields...)
	}
}

// LogHealth logs health metrics
func (il *InstrumentLogger) LogHealth(healthScore int, responseTime time.Duration, successRate float64) {
	il.Info("Instrument health metrics",
		zap.Int("health_score", healthScore),
		zap.Duration("response_time", responseTime),
		zap.Float64("success_rate", successRate),
	)
}

// RunLogger provides structured logging for one experiment run
type RunLogger struct {
	logger    *zap.Logger
	runID     string
	startTime time.Time
}

// NewRunLogger creates a run-specific logger
func NewRunLogger(baseLogger *zap.Logger, runID, experiment string) *RunLogger {
	return &RunLogger{
		logger: baseLogger.With(
			zap.String("run_id", runID),
			zap.String("experiment", experiment),
			zap.String("component", "experiment"),
		),
		runID:     runID,
		startTime: time.Now(),
	}
}

// Logger returns the underlying zap logger
func (rl *RunLogger) Logger() *zap.Logger {
	return rl.logger
}

// Configured logs the applied configuration
func (rl *RunLogger) Configured(fields ...zap.Field) {
	rl.logger.Info("Experiment configured", fields...)
}

// Transition logs a state change
func (rl *RunLogger) Transition(from, to string) {
	rl.logger.Info("Experiment state changed",
		zap.String("from", from),
		zap.String("to", to),
		zap.Duration("since_configure", time.Since(rl.startTime)),
	)
}

// DeviceFailure logs one isolated per-device failure
func (rl *RunLogger) DeviceFailure(instrument, operation string, err error) {
	rl.logger.Warn("Instrument operation failed",
		zap.String("instrument", instrument),
		zap.String("operation", operation),
		zap.Error(err),
	)
}

// Tick logs the outcome of one running poll tick
func (rl *RunLogger) Tick(tick int, elapsed time.Duration, failures int) {
	rl.logger.Debug("Experiment tick",
		zap.Int("tick", tick),
		zap.Duration("elapsed", elapsed),
		zap.Int("failures", failures),
	)
}

// Ended logs the end of the run
func (rl *RunLogger) Ended(ticks int, running time.Duration) {
	rl.logger.Info("Experiment ended",
		zap.Int("ticks", ticks),
		zap.Duration("running_time", running),
		zap.Duration("duration", time.Since(rl.startTime)),
	)
}

// ServiceLogger provides service-level logging functionality
type ServiceLogger struct {
	*zap.Logger
	serviceName string
}

// NewServiceLogger creates a service-specific logger
func NewServiceLogger(baseLogger *zap.Logger, serviceName string) *ServiceLogger {
	return &ServiceLogger{
		Logger: baseLogger.With(
			zap.String("service", serviceName),
			zap.String("component", "service"),
		),
		serviceName: serviceName,
	}
}

// LogServiceStart logs service startup
func (sl *ServiceLogger) LogServiceStart(version string, config interface{}) {
	sl.Info("Service starting",
		zap.String("version", version),
		zap.Any("config", config),
	)
}

// LogServiceStop logs service shutdown
func (sl *ServiceLogger) LogServiceStop(reason string) {
	sl.Info("Service stopping", zap.String("reason", reason))
}

// LogAPIRequest logs HTTP API requests
func (sl *ServiceLogger) LogAPIRequest(method, path, clientIP, requestID string, statusCode int, duration time.Duration) {
	level := zapcore.InfoLevel
	if statusCode >= 400 {
		level = zapcore.WarnLevel
	}
	if statusCode >= 500 {
		level = zapcore.ErrorLevel
	}

	if ce := sl.Check(level, "API request"); ce != nil {
		ce.Write(
			zap.String("method", method),
			zap.String("path", path),
			zap.String("client_ip", clientIP),
			zap.String("request_id", requestID),
			zap.Int("status_code", statusCode),
			zap.Duration("duration", duration),
		)
	}
}

// LoggerWithRequestID adds request ID to logger
func LoggerWithRequestID(logger *zap.Logger, requestID string) *zap.Logger {
	return logger.With(zap.String("request_id", requestID))
}

// CloseLogger flushes buffered entries
func CloseLogger(logger *zap.Logger) error {
	return logger.Sync()
}

package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	stdlog "log"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

/*
 *  Provides request and diagnostics logging facilities
 */

type ctxID int

const (
	txnIDKey ctxID = iota
	correlationIDKey
)

// WithTxnID returns a context which knows its transaction ID
func WithTxnID(ctx context.Context, txnID string) context.Context {
	return context.WithValue(ctx, txnIDKey, txnID)
}

// WithCorrelationID returns a context carrying the caller supplied correlation ID
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// TxnID returns the transaction ID of the context, if any
func TxnID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(txnIDKey).(string)
	return id, ok
}

type logger struct {
	logger  *logrus.Entry
	logFile io.WriteCloser
}

// The one singleton logger
var gLogger logger
var gInstanceID string

// Logger returns the global logger
func Logger(ctx context.Context) *logrus.Entry {
	if ctx == nil {
		return gLogger.logger
	}

	fields := logrus.Fields{}
	if txnID, ok := ctx.Value(txnIDKey).(string); ok {
		fields["txnid"] = txnID
	}
	if corrID, ok := ctx.Value(correlationIDKey).(string); ok {
		fields["correlationid"] = corrID
	}

	if len(fields) == 0 {
		return gLogger.logger
	}
	return gLogger.logger.WithFields(fields)
}

func processFields() logrus.Fields {
	return logrus.Fields{
		"pid":      os.Getpid(),
		"exe":      path.Base(os.Args[0]),
		"instance": gInstanceID,
	}
}

func init() {
	// Viper defaults
	viper.SetDefault("logging.location", "stderr")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.max-size-mb", 50)
	viper.SetDefault("logging.max-backups", 5)
	viper.SetDefault("logging.max-age-days", 28)

	// The app instantiation ID
	gInstanceID = uuid.New().String()

	gLogger.logger = logrus.WithFields(processFields())
}

// Configure sets the log level and output location/format.  A location other
// than stdout or stderr is a file path, rotated by size.
func Configure(cfg *viper.Viper) error {
	switch loc := cfg.GetString("logging.location"); loc {
	case "stdout":
		setOutput(os.Stdout, nil)
		gLogger.logger = logrus.WithFields(logrus.Fields{})
	case "stderr", "":
		setOutput(os.Stderr, nil)
		gLogger.logger = logrus.WithFields(logrus.Fields{})
	default:
		if err := os.MkdirAll(path.Dir(loc), 0755); err != nil {
			return fmt.Errorf("creating log directory for %s: %w", loc, err)
		}

		gLogger.logger.Debugf("Switching system log to %s", loc)

		file := &lumberjack.Logger{
			Filename:   loc,
			MaxSize:    cfg.GetInt("logging.max-size-mb"),
			MaxBackups: cfg.GetInt("logging.max-backups"),
			MaxAge:     cfg.GetInt("logging.max-age-days"),
			LocalTime:  true,
		}
		setOutput(file, file)

		gLogger.logger = logrus.WithFields(processFields())
	}

	// Obey the level setting in the config if not already in debug mode
	if !logrus.IsLevelEnabled(logrus.DebugLevel) {
		level := cfg.GetString("logging.level")
		val, err := logrus.ParseLevel(level)
		if err == nil {
			logrus.SetLevel(val)
		} else {
			return fmt.Errorf("bad log level: [%s]", level)
		}
	}

	switch format := cfg.GetString("logging.format"); format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logrus.SetFormatter(&logrus.TextFormatter{})
	default:
		return fmt.Errorf("bad log format: [%s]", format)
	}

	// Override the standard system logger
	stdlog.SetOutput(Logger(nil).WriterLevel(logrus.DebugLevel))

	return nil
}

func setOutput(w io.Writer, closer io.WriteCloser) {
	logrus.SetOutput(w)

	if gLogger.logFile != nil {
		gLogger.logFile.Close()
	}
	gLogger.logFile = closer
}

package utils

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sw33tLie/tabscope/pkg/errs"
)

var Log = logrus.New()

func SetLogLevel(level string) {
	// We are not using logrus' trace and panic levels
	switch strings.ToLower(level) {
	case "debug":
		Log.SetLevel(log.DebugLevel)
	case "info":
		Log.SetLevel(log.InfoLevel)
	case "warning", "warn":
		Log.SetLevel(log.WarnLevel)
	case "error":
		Log.SetLevel(log.ErrorLevel)
	case "fatal":
		Log.SetLevel(log.FatalLevel)
	default:
		log.Fatal("Bad error level string")
	}
}

// SetLogFile mirrors log output into a size-rotated file.
func SetLogFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	Log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28, // days
	}))
	return nil
}

// LogError logs err at the level matching its severity: critical errors at
// error level, errors at warn, warnings at info.
func LogError(err error, msg string) {
	if err == nil {
		return
	}
	entry := Log.WithError(err)
	if e, ok := errs.As(err); ok {
		entry = entry.WithFields(logrus.Fields{"code": e.Code, "category": e.Category})
	}
	switch errs.SeverityOf(err) {
	case errs.SeverityCritical:
		entry.Error(msg)
	case errs.SeverityError:
		entry.Warn(msg)
	default:
		entry.Info(msg)
	}
}

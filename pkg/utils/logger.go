package utils

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

type LogConfig struct {
	Level        string `json:"level" yaml:"level"`
	Format       string `json:"format" yaml:"format"`
	FileLocation string `json:"file_location" yaml:"file_location"`
	MaxSize      int    `json:"max_size" yaml:"max_size"`
	MaxBackups   int    `json:"max_backups" yaml:"max_backups"`
	MaxAge       int    `json:"max_age" yaml:"max_age"`
	Compress     bool   `json:"compress" yaml:"compress"`
	Console      bool   `json:"console" yaml:"console"`
}

type Logger struct {
	*logrus.Logger
	fileSink io.Closer
}

func NewLogger(config LogConfig, service, version string) (*Logger, error) {
	l := &Logger{Logger: logrus.New()}

	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(config.Level)))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	switch strings.ToLower(config.Format) {
	case "text":
		l.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	default:
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "severity",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	var writers []io.Writer
	if config.FileLocation != "" {
		if err := os.MkdirAll(filepath.Dir(config.FileLocation), 0o755); err != nil {
			return nil, err
		}
		lj := &lumberjack.Logger{
			Filename:   config.FileLocation,
			MaxSize:    maxInt(1, config.MaxSize),
			MaxBackups: maxInt(0, config.MaxBackups),
			MaxAge:     maxInt(0, config.MaxAge),
			Compress:   config.Compress,
		}
		l.fileSink = lj
		writers = append(writers, lj)
	}
	if config.Console || len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}
	l.SetOutput(io.MultiWriter(writers...))

	l.AddHook(&ServiceHook{
		Service:  service,
		Version:  version,
		Hostname: getHostname(),
	})

	return l, nil
}

func (l *Logger) Close() error {
	if l.fileSink != nil {
		return l.fileSink.Close()
	}
	return nil
}

type ServiceHook struct {
	Service  string
	Version  string
	Hostname string
}

func (h *ServiceHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *ServiceHook) Fire(entry *logrus.Entry) error {
	entry.Data["service"] = h.Service
	entry.Data["version"] = h.Version
	entry.Data["hostname"] = h.Hostname
	return nil
}

func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

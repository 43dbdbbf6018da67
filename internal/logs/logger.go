package logs

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger — глобальный логгер приложения (инициализируется через Init).
// До Init пишет в stderr с уровнем info, чтобы пакеты можно было использовать в тестах.
var Logger = logrus.New()

// Options — параметры инициализации логгера.
type Options struct {
	Level      string // trace|debug|info|warning|error|fatal
	Format     string // text|json
	File       string // путь к лог-файлу; если пусто, только stdout
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Init настраивает глобальный логгер по переданным опциям.
func Init(opts Options) {
	l := logrus.New()
	l.SetLevel(ParseLevel(opts.Level))

	// формат
	if opts.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	// вывод: файл ротируется lumberjack, дублируется в stdout
	if opts.File != "" {
		rot := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
		l.SetOutput(io.MultiWriter(rot, os.Stdout))
	} else {
		l.SetOutput(os.Stdout)
	}

	Logger = l
}

// ParseLevel переводит строку из конфига в уровень logrus; неизвестное даёт info.
func ParseLevel(s string) logrus.Level {
	switch s {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warning", "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

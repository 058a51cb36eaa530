package blemon

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is what a Monitor and its transport log through. ChildLogger
// returns a logger that attaches tags to every entry; a monitor uses it to
// name its transport.
type Logger interface {
	Info(...interface{})
	Debug(...interface{})
	Error(...interface{})
	Warn(...interface{})

	Infof(string, ...interface{})
	Debugf(string, ...interface{})
	Errorf(string, ...interface{})
	Warnf(string, ...interface{})

	ChildLogger(tags map[string]interface{}) Logger
}

var (
	logger   Logger
	loggerMu sync.Mutex
)

// SetLogLevelMax turns on trace output. Loggers not built by this package
// are left alone.
func SetLogLevelMax() {
	l := GetLogger()

	lg, ok := l.(*entryLogger)
	if !ok {
		l.Warn("non-default logger, don't know how to set level")
		return
	}
	lg.Entry.Logger.SetLevel(logrus.TraceLevel)
}

// SetLogger replaces the logger new monitors start with.
func SetLogger(l Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = l
}

// GetLogger returns the logger new monitors start with, creating a
// stderr logger on first use.
func GetLogger() Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if logger == nil {
		logger = NewLogger(&logrus.Logger{
			Formatter: &logrus.TextFormatter{DisableTimestamp: true},
			Level:     logrus.InfoLevel,
			Out:       os.Stderr,
			Hooks:     make(logrus.LevelHooks),
		})
	}
	return logger
}

// NewLogger wraps a logrus logger.
func NewLogger(l *logrus.Logger) Logger {
	return &entryLogger{Entry: logrus.NewEntry(l)}
}

type entryLogger struct {
	*logrus.Entry
}

func (e *entryLogger) ChildLogger(tags map[string]interface{}) Logger {
	return &entryLogger{e.Entry.WithFields(tags)}
}

// transportLogger tags l with the monitor's transport, if it has a name.
func transportLogger(l Logger, name string) Logger {
	if len(name) == 0 {
		return l
	}
	return l.ChildLogger(map[string]interface{}{"transport": name})
}

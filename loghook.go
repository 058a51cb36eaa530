package blemon

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// LogHook copies logrus entries into the trace as user logging records,
// so application logs line up with the HCI traffic in btmon.
//
// Do not add the hook to the logger the monitor itself logs to: the
// transport logs write errors from its drain goroutine, and a record sent
// from there can wait on a ring only that goroutine empties.
type LogHook struct {
	m         *Monitor
	levels    []logrus.Level
	formatter logrus.Formatter
}

// NewLogHook returns a hook for entries at or above min.
func NewLogHook(m *Monitor, min logrus.Level) *LogHook {
	var lv []logrus.Level
	for _, l := range logrus.AllLevels {
		if l <= min {
			lv = append(lv, l)
		}
	}

	return &LogHook{
		m:      m,
		levels: lv,
		formatter: &logrus.TextFormatter{
			DisableTimestamp: true,
			DisableColors:    true,
		},
	}
}

func (h *LogHook) Levels() []logrus.Level {
	return h.levels
}

func (h *LogHook) Fire(e *logrus.Entry) error {
	b, err := h.formatter.Format(e)
	if err != nil {
		return err
	}
	return h.m.UserLog(levelPriority(e.Level), strings.TrimRight(string(b), "\n"))
}

func levelPriority(l logrus.Level) Priority {
	switch l {
	case logrus.PanicLevel:
		return PriEmerg
	case logrus.FatalLevel:
		return PriCrit
	case logrus.ErrorLevel:
		return PriErr
	case logrus.WarnLevel:
		return PriWarning
	case logrus.InfoLevel:
		return PriInfo
	default:
		return PriDebug
	}
}

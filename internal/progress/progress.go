package progress

import (
	"math"
	"sync"

	"github.com/sirupsen/logrus"
)

// Reporter is the surface a presentation layer implements to follow a
// download or extraction. Percent is always 0-100.
type Reporter interface {
	SetPhase(text string)
	Progress(percent int)
	Log(msg string)
}

// Nop discards everything.
type Nop struct{}

func (Nop) SetPhase(string) {}
func (Nop) Progress(int)    {}
func (Nop) Log(string)      {}

// LogReporter renders progress into the log stream, one line per phase and
// one per ten percent.
type LogReporter struct {
	mu     sync.Mutex
	logger *logrus.Entry
	phase  string
	last   int
}

func NewLogReporter(logger *logrus.Entry) *LogReporter {
	return &LogReporter{logger: logger, last: -1}
}

func (r *LogReporter) SetPhase(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phase = text
	r.last = -1
	r.logger.Info(text)
}

func (r *LogReporter) Progress(percent int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	percent = Clamp(percent)
	if r.last >= 0 && percent/10 == r.last/10 {
		return
	}
	r.last = percent
	r.logger.WithFields(logrus.Fields{"phase": r.phase, "percent": percent}).Debug("progress")
}

func (r *LogReporter) Log(msg string) {
	r.logger.Info(msg)
}

// Span maps a 0..1 fraction of one step onto a slice [Start, End] of the
// overall bar, so a download can own 0-70% and extraction 70-90%.
type Span struct {
	Reporter Reporter
	Start    float64
	End      float64
}

// Fraction reports completion of f (0..1) of this span.
func (s Span) Fraction(f float64) {
	if s.Reporter == nil {
		return
	}
	if f < 0 {
		f = 0
	} else if f > 1 {
		f = 1
	}
	s.Reporter.Progress(int(math.Round((s.Start + (s.End-s.Start)*f) * 100)))
}

// Clamp bounds a percentage to 0-100.
func Clamp(percent int) int {
	switch {
	case percent < 0:
		return 0
	case percent > 100:
		return 100
	default:
		return percent
	}
}

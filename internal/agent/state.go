package agent

import (
	"sync"

	"github.com/CloudNativeWorks/mod-updater/internal/progress"
)

// Snapshot is a copy of the pipeline state for presentation.
type Snapshot struct {
	Phase    string
	Percent  int
	Repo     string
	Beta     bool
	Latest   string
	Asset    string
	Target   string
	Current  string
	UpToDate bool
	// SelfUpdate describes the self-update step, empty when it did not run.
	SelfUpdate string
	Messages   []string
}

// State is owned by the pipeline. It is also the progress.Reporter handed to
// every step, forwarding to the presentation layer after recording.
type State struct {
	mu   sync.RWMutex
	snap Snapshot
	out  progress.Reporter
}

func NewState(out progress.Reporter) *State {
	if out == nil {
		out = progress.Nop{}
	}
	return &State{out: out}
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.snap
	snap.Messages = append([]string(nil), s.snap.Messages...)
	return snap
}

func (s *State) update(fn func(*Snapshot)) {
	s.mu.Lock()
	fn(&s.snap)
	s.mu.Unlock()
}

func (s *State) SetPhase(text string) {
	s.update(func(sn *Snapshot) { sn.Phase = text })
	s.out.SetPhase(text)
}

func (s *State) Progress(percent int) {
	percent = progress.Clamp(percent)
	s.update(func(sn *Snapshot) { sn.Percent = percent })
	s.out.Progress(percent)
}

func (s *State) Log(msg string) {
	s.update(func(sn *Snapshot) { sn.Messages = append(sn.Messages, msg) })
	s.out.Log(msg)
}

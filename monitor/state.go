package monitor

import "sync"

// Selection holds the user's chosen device names and whether monitoring is
// running. One process-wide instance; mutated only through these methods.
type Selection struct {
	mu     sync.Mutex
	input  string
	output string
	active bool
}

// SetInput records the chosen input device name ("" means system default)
// and reports whether it changed.
func (s *Selection) SetInput(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.input == name {
		return false
	}
	s.input = name
	return true
}

func (s *Selection) SetOutput(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.output == name {
		return false
	}
	s.output = name
	return true
}

func (s *Selection) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

func (s *Selection) Output() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.output
}

func (s *Selection) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Selection) setActive(active bool) {
	s.mu.Lock()
	s.active = active
	s.mu.Unlock()
}

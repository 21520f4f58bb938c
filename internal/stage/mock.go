package stage

import "sync"

// MockAxis implements Axis in memory for tests and the dev-mode stage.
// Jogs move the simulated encoder immediately.
type MockAxis struct {
	mu sync.Mutex

	// Pos is the simulated absolute encoder position.
	Pos int64

	// PositionErr, JogErr force the corresponding calls to fail.
	PositionErr error
	JogErr      error

	Opened  bool
	Closed  bool
	Reverse bool
	Homed   int
	Calibd  int

	// Jogs records every commanded relative move in order.
	Jogs []int
}

func (m *MockAxis) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Opened = true
	return nil
}

func (m *MockAxis) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

func (m *MockAxis) Position() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PositionErr != nil {
		return 0, m.PositionErr
	}
	return m.Pos, nil
}

func (m *MockAxis) Jog(steps int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.JogErr != nil {
		return m.JogErr
	}
	m.Jogs = append(m.Jogs, steps)
	m.Pos += int64(steps)
	return nil
}

func (m *MockAxis) SetHomingReverse(reverse bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reverse = reverse
	return nil
}

func (m *MockAxis) Home() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Homed++
	return nil
}

func (m *MockAxis) Calibrate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calibd++
	return nil
}

// JogCount returns how many jogs were commanded.
func (m *MockAxis) JogCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Jogs)
}

// HomedReversed reports the homing call count and reverse setting.
func (m *MockAxis) HomedReversed() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Homed, m.Reverse
}

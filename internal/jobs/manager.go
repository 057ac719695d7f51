package jobs

import (
	"errors"
	"fmt"
	"sync"

	"video-pipeline/internal/domain"
)

// ErrRunAlreadyActive is returned when starting a second active run.
var ErrRunAlreadyActive = errors.New("a pipeline run is already active")

// ErrNoActiveRun is returned when cancel is requested for idle state.
var ErrNoActiveRun = errors.New("no active pipeline run")

// Manager tracks the single allowed active run and its transitions.
type Manager struct {
	mu      sync.RWMutex
	current domain.Job
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	return &Manager{
		current: domain.Job{
			Status: domain.JobStatusIdle,
		},
	}
}

// Start creates a new run record and moves it to running state.
func (m *Manager) Start(jobID, inputPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.Status == domain.JobStatusRunning {
		return ErrRunAlreadyActive
	}

	m.current = domain.Job{
		ID:        jobID,
		Status:    domain.JobStatusRunning,
		InputPath: inputPath,
	}
	return nil
}

// Transition validates and applies state transitions for the current run.
func (m *Manager) Transition(status domain.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.ID == "" && status != domain.JobStatusIdle {
		return fmt.Errorf("cannot transition without an active run")
	}
	if status == m.current.Status {
		return nil
	}
	if !isValidTransition(m.current.Status, status) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.Status, status)
	}

	m.current.Status = status
	return nil
}

// SetOutputPath records the promoted artifact on a finished run.
func (m *Manager) SetOutputPath(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.OutputPath = path
}

// Current returns a snapshot of the current run.
func (m *Manager) Current() domain.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Reset clears run metadata and returns the manager to idle.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = domain.Job{Status: domain.JobStatusIdle}
}

// IsRunning reports whether a run is currently active.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Status == domain.JobStatusRunning
}

// Cancel moves an active run to cancelled state.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.Status != domain.JobStatusRunning {
		return ErrNoActiveRun
	}
	m.current.Status = domain.JobStatusCancelled
	return nil
}

// isValidTransition enforces the allowed run state machine edges.
func isValidTransition(from, to domain.JobStatus) bool {
	switch from {
	case domain.JobStatusIdle:
		return to == domain.JobStatusRunning
	case domain.JobStatusRunning:
		return to == domain.JobStatusSucceeded || to == domain.JobStatusFailed || to == domain.JobStatusCancelled
	case domain.JobStatusSucceeded, domain.JobStatusFailed, domain.JobStatusCancelled:
		return to == domain.JobStatusRunning || to == domain.JobStatusIdle
	default:
		return false
	}
}

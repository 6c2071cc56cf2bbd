package operations

import (
	"context"
	"sync"
	"time"
)

// Step represents a single Step in the operation
type Step interface {
	// ID returns the unique identifier for this Step
	ID() string

	// Name returns the human-readable name for this Step
	Name() string

	// Optional reports whether the run may continue when this Step fails
	Optional() bool

	// Execute runs the Step with the given context and operation state
	Execute(ctx context.Context, state *OperationState) error
}

// StepStatus represents the current status of a Step
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusActive    StepStatus = "active"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// StepState represents the runtime state of a Step
type StepState struct {
	mu        sync.RWMutex
	ID        string
	Name      string
	Status    StepStatus
	StartTime *time.Time
	EndTime   *time.Time
	Message   string
	Error     error
	Metadata  map[string]interface{}
}

// StepSnapshot is the JSON view of a StepState
type StepSnapshot struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Status     StepStatus             `json:"status"`
	StartTime  *time.Time             `json:"start_time,omitempty"`
	EndTime    *time.Time             `json:"end_time,omitempty"`
	DurationMS int64                  `json:"duration_ms"`
	Message    string                 `json:"message,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// NewStepState creates a new Step state with default values
func NewStepState(id, name string) *StepState {
	return &StepState{
		ID:       id,
		Name:     name,
		Status:   StepStatusPending,
		Metadata: make(map[string]interface{}),
	}
}

// Start marks the Step as active and sets the start time
func (s *StepState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.StartTime = &now
	s.Status = StepStatusActive
}

// Complete marks the Step as completed and sets the end time
func (s *StepState) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StepStatusCompleted
}

// Fail marks the Step as failed with the given error
func (s *StepState) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StepStatusFailed
	s.Error = err
}

// Skip marks the Step as skipped with the given reason
func (s *StepState) Skip(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StepStatusSkipped
	s.Message = reason
}

// SetMessage updates the Step message
func (s *StepState) SetMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Message = message
}

// SetMetadata records a value shown alongside the Step status
func (s *StepState) SetMetadata(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Metadata[key] = value
}

// GetStatus returns the current status
func (s *StepState) GetStatus() StepStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// Duration returns the duration of the Step execution
func (s *StepState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.durationLocked()
}

func (s *StepState) durationLocked() time.Duration {
	if s.StartTime == nil {
		return 0
	}
	if s.EndTime != nil {
		return s.EndTime.Sub(*s.StartTime)
	}
	return time.Since(*s.StartTime)
}

// Snapshot returns a copy safe to serialize
func (s *StepState) Snapshot() StepSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := StepSnapshot{
		ID:         s.ID,
		Name:       s.Name,
		Status:     s.Status,
		StartTime:  s.StartTime,
		EndTime:    s.EndTime,
		DurationMS: s.durationLocked().Milliseconds(),
		Message:    s.Message,
	}
	if s.Error != nil {
		snap.Error = s.Error.Error()
	}
	if len(s.Metadata) > 0 {
		snap.Metadata = make(map[string]interface{}, len(s.Metadata))
		for k, v := range s.Metadata {
			snap.Metadata[k] = v
		}
	}
	return snap
}

// BaseStage provides common functionality for Step implementations
type BaseStage struct {
	id       string
	name     string
	optional bool
}

// NewBaseStage creates a new base Step
func NewBaseStage(id, name string, optional bool) BaseStage {
	return BaseStage{id: id, name: name, optional: optional}
}

// ID returns the Step ID
func (b *BaseStage) ID() string { return b.id }

// Name returns the Step name
func (b *BaseStage) Name() string { return b.name }

// Optional reports whether failures of this Step are tolerated
func (b *BaseStage) Optional() bool { return b.optional }

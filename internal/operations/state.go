package operations

import (
	"sync"
	"time"

	"msaloans/internal/dataprocessing"
	"msaloans/internal/exporter"
	"msaloans/pkg/contracts/domain"
)

// OperationStatusValue represents the overall operation status enum
type OperationStatusValue string

const (
	OperationStatusPending   OperationStatusValue = "pending"
	OperationStatusRunning   OperationStatusValue = "running"
	OperationStatusCompleted OperationStatusValue = "completed"
	OperationStatusFailed    OperationStatusValue = "failed"
)

// RunData carries the values steps hand to each other. Each field is
// written by exactly one step.
type RunData struct {
	CensusPayload []byte
	Selection     *dataprocessing.RegionSelection
	Records       []domain.LoanRecord
	Aggregates    *dataprocessing.AggregateResult
	Table         *exporter.Table
	CSVLines      []string
	// Artifacts maps artifact kind ("csv", "xlsx") to the written path
	Artifacts map[string]string
}

// OperationState represents the complete state of one pipeline run
type OperationState struct {
	mu sync.RWMutex

	ID        string
	Status    OperationStatusValue
	StartTime time.Time
	EndTime   *time.Time
	Error     error

	steps map[string]*StepState
	order []string

	// Data is only touched by the goroutine executing the run
	Data RunData
}

// OperationSnapshot is the JSON view of an OperationState
type OperationSnapshot struct {
	ID         string               `json:"id"`
	Status     OperationStatusValue `json:"status"`
	StartTime  time.Time            `json:"start_time"`
	EndTime    *time.Time           `json:"end_time,omitempty"`
	DurationMS int64                `json:"duration_ms"`
	Error      string               `json:"error,omitempty"`
	Steps      []StepSnapshot       `json:"steps"`
}

// NewOperationState creates a pending state with one StepState per step
func NewOperationState(id string, steps []Step) *OperationState {
	s := &OperationState{
		ID:        id,
		Status:    OperationStatusPending,
		StartTime: time.Now(),
		steps:     make(map[string]*StepState, len(steps)),
		order:     make([]string, 0, len(steps)),
		Data:      RunData{Artifacts: make(map[string]string)},
	}
	for _, step := range steps {
		s.steps[step.ID()] = NewStepState(step.ID(), step.Name())
		s.order = append(s.order, step.ID())
	}
	return s
}

// Start marks the operation as running
func (p *OperationState) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Status = OperationStatusRunning
	p.StartTime = time.Now()
}

// Complete marks the operation as completed
func (p *OperationState) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = OperationStatusCompleted
}

// Fail marks the operation as failed
func (p *OperationState) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = OperationStatusFailed
	p.Error = err
}

// GetStatus returns the operation status
func (p *OperationState) GetStatus() OperationStatusValue {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Status
}

// GetStep returns the state of a specific Step
func (p *OperationState) GetStep(stepID string) *StepState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.steps[stepID]
}

// SkipRemaining marks every still-pending step as skipped
func (p *OperationState) SkipRemaining(reason string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, id := range p.order {
		if st := p.steps[id]; st.GetStatus() == StepStatusPending {
			st.Skip(reason)
		}
	}
}

// Duration returns the duration of the operation execution
func (p *OperationState) Duration() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.EndTime != nil {
		return p.EndTime.Sub(p.StartTime)
	}
	return time.Since(p.StartTime)
}

// Snapshot returns a copy safe to serialize, steps in execution order
func (p *OperationState) Snapshot() OperationSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snap := OperationSnapshot{
		ID:        p.ID,
		Status:    p.Status,
		StartTime: p.StartTime,
		Steps:     make([]StepSnapshot, 0, len(p.order)),
	}
	if p.EndTime != nil {
		end := *p.EndTime
		snap.EndTime = &end
		snap.DurationMS = end.Sub(p.StartTime).Milliseconds()
	} else {
		snap.DurationMS = time.Since(p.StartTime).Milliseconds()
	}
	if p.Error != nil {
		snap.Error = p.Error.Error()
	}
	for _, id := range p.order {
		snap.Steps = append(snap.Steps, p.steps[id].Snapshot())
	}
	return snap
}

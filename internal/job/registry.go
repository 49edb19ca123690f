package job

import (
	"fmt"
	"sync"
)

// RequestState is the client-visible projection of one submitted job.
type RequestState struct {
	State              State        `json:"state"`
	JobID              string       `json:"jobId"`
	JobName            string       `json:"jobName"`
	Image              string       `json:"image"`
	Outputs            []OutputSink `json:"outputs,omitempty"`
	ProcessingDuration string       `json:"processingDuration,omitempty"`
	FailureMessage     string       `json:"failureMessage,omitempty"`
	FeatureCount       int          `json:"featureCount"`

	featureCountSet bool
}

// Registry tracks the state of every submitted job and notifies the UI on
// each change. Monitors write transitions here; the result-loading step
// attaches the feature count (at most once per job); the UI dismisses
// finished entries back to idle.
type Registry struct {
	mu       sync.RWMutex
	states   map[string]*RequestState
	onChange func(RequestState)
}

// NewRegistry creates a Registry. onChange may be nil.
func NewRegistry(onChange func(RequestState)) *Registry {
	return &Registry{
		states:   make(map[string]*RequestState),
		onChange: onChange,
	}
}

// Begin records a freshly submitted request in the loading state. Loading is
// entered immediately on submit, before any queue interaction.
func (r *Registry) Begin(req *Request) {
	r.mu.Lock()
	st := &RequestState{
		State:   StateLoading,
		JobID:   req.JobID,
		JobName: req.JobName,
		Image:   primaryImage(req),
		Outputs: req.Outputs,
	}
	r.states[req.JobID] = st
	snapshot := *st
	r.mu.Unlock()

	r.notify(snapshot)
}

// Apply records a state transition observed by a monitor. Updates carrying a
// transport error leave the state untouched.
func (r *Registry) Apply(u Update) {
	if u.Err != nil || u.State == "" {
		return
	}

	r.mu.Lock()
	st, ok := r.states[u.JobID]
	if !ok {
		r.mu.Unlock()
		return
	}
	st.State = u.State
	if len(u.Outputs) > 0 {
		st.Outputs = u.Outputs
	}
	if u.ProcessingDuration != "" {
		st.ProcessingDuration = u.ProcessingDuration
	}
	if u.FailureMessage != "" {
		st.FailureMessage = u.FailureMessage
	}
	snapshot := *st
	r.mu.Unlock()

	r.notify(snapshot)
}

// SetFeatureCount attaches the loaded feature count to a terminal job state.
// The count is applied at most once; repeated calls for the same job are
// no-ops so result loading stays idempotent.
func (r *Registry) SetFeatureCount(jobID string, count int) error {
	r.mu.Lock()
	st, ok := r.states[jobID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("unknown job: %s", jobID)
	}
	if !st.State.IsTerminal() {
		r.mu.Unlock()
		return fmt.Errorf("job %s is not in a terminal state", jobID)
	}
	if st.featureCountSet {
		r.mu.Unlock()
		return nil
	}
	st.FeatureCount = count
	st.featureCountSet = true
	snapshot := *st
	r.mu.Unlock()

	r.notify(snapshot)
	return nil
}

// Dismiss returns a job's entry to the idle state.
func (r *Registry) Dismiss(jobID string) {
	r.mu.Lock()
	st, ok := r.states[jobID]
	if !ok {
		r.mu.Unlock()
		return
	}
	st.State = StateIdle
	snapshot := *st
	r.mu.Unlock()

	r.notify(snapshot)
}

// Get returns a copy of the state for one job.
func (r *Registry) Get(jobID string) (RequestState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st, ok := r.states[jobID]
	if !ok {
		return RequestState{}, false
	}
	return *st, true
}

// All returns a copy of every tracked job state.
func (r *Registry) All() []RequestState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]RequestState, 0, len(r.states))
	for _, st := range r.states {
		result = append(result, *st)
	}
	return result
}

func (r *Registry) notify(st RequestState) {
	if r.onChange != nil {
		r.onChange(st)
	}
}

func primaryImage(req *Request) string {
	if len(req.Images) == 0 {
		return ""
	}
	return req.Images[0]
}

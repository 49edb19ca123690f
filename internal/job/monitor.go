package job

import (
	"context"
	"log"
	"time"

	"detection-desktop/internal/config"
	"detection-desktop/internal/creds"
	"detection-desktop/internal/queue"
)

// State is the client-visible projection of a job's lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateLoading    State = "loading"
	StatePending    State = "pending"
	StateInProgress State = "in-progress"
	StateSuccess    State = "success"
	StateError      State = "error"
	StateWarning    State = "warning"
	StateTimeout    State = "timeout"
)

// IsTerminal reports whether no further transitions occur once s is reached.
func (s State) IsTerminal() bool {
	switch s {
	case StateSuccess, StateError, StateWarning, StateTimeout:
		return true
	}
	return false
}

// Update is one observed state transition, delivered on the channel returned
// by Monitor.Watch. A non-nil Err means monitoring aborted on a transport
// failure and no further updates will arrive.
type Update struct {
	State              State        `json:"state"`
	JobID              string       `json:"jobId"`
	JobName            string       `json:"jobName"`
	Outputs            []OutputSink `json:"outputs,omitempty"`
	ProcessingDuration string       `json:"processingDuration,omitempty"`
	FailureMessage     string       `json:"failureMessage,omitempty"`
	Err                error        `json:"-"`
}

// receiveBatchSize bounds how many messages one polling unit pulls.
const receiveBatchSize = 10

// Monitor polls the status queue and drives the job state machine to a
// terminal outcome or a bounded-retry timeout. Jobs monitored concurrently
// interleave freely on the shared queue and are distinguished purely by
// image-identifier matching.
type Monitor struct {
	status     queue.Queue
	interval   time.Duration
	maxRetries int
	onAlert    creds.AlertFunc
}

// NewMonitor creates a Monitor using the polling parameters from env.
func NewMonitor(status queue.Queue, env config.Environment, onAlert creds.AlertFunc) *Monitor {
	return &Monitor{
		status:     status,
		interval:   env.PollInterval,
		maxRetries: env.MaxPollRetries,
		onAlert:    onAlert,
	}
}

// Watch starts monitoring req and returns a channel of state transitions.
// The channel is closed when a terminal state is reached, the retry budget
// is exhausted, monitoring aborts on an error, or ctx is cancelled.
func (m *Monitor) Watch(ctx context.Context, req *Request) <-chan Update {
	updates := make(chan Update, 8)
	go m.watch(ctx, req, updates)
	return updates
}

func (m *Monitor) watch(ctx context.Context, req *Request, updates chan<- Update) {
	defer close(updates)

	imageID := req.ImageID()
	retries := m.maxRetries

	for {
		msgs, err := m.status.Receive(ctx, receiveBatchSize)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if creds.IsCredentialError(err) {
				log.Printf("[Monitor] Credential error while polling job %s: %v", req.JobID, err)
				if m.onAlert != nil {
					m.onAlert(err.Error())
				}
				return
			}
			m.emit(ctx, updates, Update{JobID: req.JobID, JobName: req.JobName, Err: err})
			return
		}

		// Process the whole batch in order; the last matching message wins
		// the final state. Receives are destructive on the list, so other
		// jobs' messages are pushed back for their own monitors to observe.
		matched := false
		terminal := false
		for _, raw := range msgs {
			sm, perr := ParseStatusMessage(raw.Body)
			if perr != nil {
				log.Printf("[Monitor] Dropping malformed status message: %v", perr)
				continue
			}
			if sm.ImageID != imageID {
				if serr := m.status.Send(ctx, raw.Body); serr != nil {
					log.Printf("[Monitor] Failed to requeue message for %s: %v", sm.ImageID, serr)
				}
				continue
			}
			matched = true

			switch sm.Status {
			case StatusInProgress:
				terminal = false
				m.emit(ctx, updates, Update{
					State: StateInProgress, JobID: req.JobID, JobName: req.JobName,
				})
			case StatusSuccess:
				terminal = true
				m.emit(ctx, updates, Update{
					State:              StateSuccess,
					JobID:              req.JobID,
					JobName:            req.JobName,
					Outputs:            req.Outputs,
					ProcessingDuration: sm.ProcessingDuration,
				})
			case StatusFailed:
				terminal = true
				log.Printf("[Monitor] Job %s failed: %s", req.JobID, sm.FailureMessage)
				m.emit(ctx, updates, Update{
					State: StateError, JobID: req.JobID, JobName: req.JobName,
					FailureMessage: sm.FailureMessage,
				})
			case StatusPartial:
				terminal = true
				log.Printf("[Monitor] Job %s partially succeeded: %s", req.JobID, sm.FailureMessage)
				m.emit(ctx, updates, Update{
					State: StateWarning, JobID: req.JobID, JobName: req.JobName,
					FailureMessage: sm.FailureMessage,
				})
			}
		}

		if terminal {
			return
		}

		// A polling unit that yields nothing for this job, whether empty or
		// all foreign traffic, consumes one unit of the retry budget.
		if !matched {
			retries--
			if retries <= 0 {
				log.Printf("[Monitor] Retry budget exhausted for job %s, no terminal status observed", req.JobID)
				m.emit(ctx, updates, Update{State: StateTimeout, JobID: req.JobID, JobName: req.JobName})
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.interval):
		}
	}
}

func (m *Monitor) emit(ctx context.Context, updates chan<- Update, u Update) {
	select {
	case updates <- u:
	case <-ctx.Done():
	}
}

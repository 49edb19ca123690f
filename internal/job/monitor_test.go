package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"detection-desktop/internal/config"
	"detection-desktop/internal/queue"
)

type fakeQueue struct {
	sent       []string
	sendErr    error
	batches    [][]queue.Message
	receives   int
	receiveErr error
}

func (q *fakeQueue) Send(ctx context.Context, body string) error {
	q.sent = append(q.sent, body)
	return q.sendErr
}

func (q *fakeQueue) Receive(ctx context.Context, max int) ([]queue.Message, error) {
	q.receives++
	if q.receiveErr != nil {
		return nil, q.receiveErr
	}
	if len(q.batches) == 0 {
		return nil, nil
	}
	batch := q.batches[0]
	q.batches = q.batches[1:]
	return batch, nil
}

func statusBody(imageID, status, duration, message string) queue.Message {
	body := fmt.Sprintf(`{
		"Message": %q,
		"MessageAttributes": {
			"image_id": {"Value": %q},
			"status": {"Value": %q},
			"processing_duration": {"Value": %q}
		}
	}`, message, imageID, status, duration)
	return queue.Message{Body: body}
}

func testEnv(maxRetries int) config.Environment {
	env := config.DefaultEnvironment()
	env.PollInterval = time.Millisecond
	env.MaxPollRetries = maxRetries
	return env
}

func testRequest() *Request {
	return &Request{
		JobID:   "J1",
		JobName: "detect-j1",
		Images:  []string{"s3://b/img.tif"},
		Outputs: []OutputSink{{Kind: SinkS3, Bucket: "out", Prefix: "detect-j1/"}},
	}
}

func collect(ch <-chan Update) []Update {
	var updates []Update
	for u := range ch {
		updates = append(updates, u)
	}
	return updates
}

func TestMonitorSuccess(t *testing.T) {
	req := testRequest()
	q := &fakeQueue{batches: [][]queue.Message{
		{statusBody("J1:s3://b/img.tif", "SUCCESS", "12", "")},
	}}

	m := NewMonitor(q, testEnv(3), nil)
	updates := collect(m.Watch(context.Background(), req))

	if len(updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(updates))
	}
	u := updates[0]
	if u.State != StateSuccess {
		t.Errorf("expected success, got %q", u.State)
	}
	if u.ProcessingDuration != "12" {
		t.Errorf("expected duration 12, got %q", u.ProcessingDuration)
	}
	if u.JobName != "detect-j1" || len(u.Outputs) != 1 {
		t.Errorf("success update missing job data: %+v", u)
	}
	if q.receives != 1 {
		t.Errorf("expected polling to stop after terminal match, got %d receives", q.receives)
	}
}

func TestMonitorIgnoresOtherJobsAndTimesOut(t *testing.T) {
	req := testRequest()
	other := statusBody("OTHER:x", "SUCCESS", "3", "")
	q := &fakeQueue{batches: [][]queue.Message{{other}}}

	m := NewMonitor(q, testEnv(3), nil)
	updates := collect(m.Watch(context.Background(), req))

	if len(updates) != 1 || updates[0].State != StateTimeout {
		t.Fatalf("expected a single timeout update, got %+v", updates)
	}
	// Each receive yields nothing for this job, so exactly three polling
	// units run before the budget is exhausted.
	if q.receives != 3 {
		t.Errorf("expected exactly 3 receive calls, got %d", q.receives)
	}
	// The other job's message must go back on the queue, not vanish.
	if len(q.sent) != 1 || q.sent[0] != other.Body {
		t.Errorf("expected the unrelated message requeued, got %v", q.sent)
	}
}

func TestMonitorInProgressThenSuccess(t *testing.T) {
	req := testRequest()
	q := &fakeQueue{batches: [][]queue.Message{
		{statusBody("J1:s3://b/img.tif", "IN_PROGRESS", "", "")},
		{statusBody("J1:s3://b/img.tif", "SUCCESS", "44", "")},
	}}

	m := NewMonitor(q, testEnv(5), nil)
	updates := collect(m.Watch(context.Background(), req))

	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(updates))
	}
	if updates[0].State != StateInProgress || updates[1].State != StateSuccess {
		t.Errorf("unexpected transition order: %+v", updates)
	}
}

func TestMonitorPartialBecomesWarning(t *testing.T) {
	req := testRequest()
	q := &fakeQueue{batches: [][]queue.Message{
		{statusBody("J1:s3://b/img.tif", "PARTIAL", "", "2 tiles failed")},
	}}

	m := NewMonitor(q, testEnv(3), nil)
	updates := collect(m.Watch(context.Background(), req))

	if len(updates) != 1 || updates[0].State != StateWarning {
		t.Fatalf("expected warning update, got %+v", updates)
	}
	if updates[0].FailureMessage != "2 tiles failed" {
		t.Errorf("expected failure message carried, got %q", updates[0].FailureMessage)
	}
}

func TestMonitorLastMatchInBatchWins(t *testing.T) {
	req := testRequest()
	// SUCCESS followed by IN_PROGRESS in the same batch: the last message
	// processed wins, so the monitor keeps polling afterwards.
	q := &fakeQueue{batches: [][]queue.Message{
		{
			statusBody("J1:s3://b/img.tif", "SUCCESS", "9", ""),
			statusBody("J1:s3://b/img.tif", "IN_PROGRESS", "", ""),
		},
	}}

	m := NewMonitor(q, testEnv(1), nil)
	updates := collect(m.Watch(context.Background(), req))

	if len(updates) != 3 {
		t.Fatalf("expected 3 updates, got %+v", updates)
	}
	if updates[0].State != StateSuccess || updates[1].State != StateInProgress {
		t.Errorf("expected batch-order processing, got %+v", updates)
	}
	if updates[2].State != StateTimeout {
		t.Errorf("expected continued polling to time out, got %q", updates[2].State)
	}
	if q.receives != 2 {
		t.Errorf("expected polling to continue after non-terminal last match, got %d receives", q.receives)
	}
}

func TestMonitorMalformedMessagesAreDropped(t *testing.T) {
	req := testRequest()
	q := &fakeQueue{batches: [][]queue.Message{
		{
			{Body: "{not json"},
			statusBody("J1:s3://b/img.tif", "SUCCESS", "5", ""),
		},
	}}

	m := NewMonitor(q, testEnv(3), nil)
	updates := collect(m.Watch(context.Background(), req))

	if len(updates) != 1 || updates[0].State != StateSuccess {
		t.Fatalf("expected success despite malformed sibling, got %+v", updates)
	}
	// A message no monitor can correlate would poison the queue forever if
	// requeued, so malformed bodies are dropped rather than pushed back.
	if len(q.sent) != 0 {
		t.Errorf("malformed messages must not be requeued, got %v", q.sent)
	}
}

func TestMonitorReceiveErrorAborts(t *testing.T) {
	req := testRequest()
	q := &fakeQueue{receiveErr: errors.New("connection refused")}

	m := NewMonitor(q, testEnv(3), nil)
	updates := collect(m.Watch(context.Background(), req))

	if len(updates) != 1 || updates[0].Err == nil {
		t.Fatalf("expected a single error update, got %+v", updates)
	}
	if q.receives != 1 {
		t.Errorf("expected monitoring to abort immediately, got %d receives", q.receives)
	}
}

func TestMonitorCredentialErrorGoesToAlert(t *testing.T) {
	req := testRequest()
	q := &fakeQueue{receiveErr: errors.New("ExpiredTokenException: token expired")}

	var alerts []string
	m := NewMonitor(q, testEnv(3), func(reason string) {
		alerts = append(alerts, reason)
	})
	updates := collect(m.Watch(context.Background(), req))

	if len(updates) != 0 {
		t.Errorf("credential errors must not surface on the update channel, got %+v", updates)
	}
	if len(alerts) != 1 {
		t.Errorf("expected one credential alert, got %d", len(alerts))
	}
}

// listQueue mimics the Redis list transport: receives pop messages off the
// shared list, sends push them back on.
type listQueue struct {
	mu   sync.Mutex
	list []string
}

func (q *listQueue) Send(ctx context.Context, body string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.list = append(q.list, body)
	return nil
}

func (q *listQueue) Receive(ctx context.Context, max int) ([]queue.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := max
	if n > len(q.list) {
		n = len(q.list)
	}
	var msgs []queue.Message
	for _, body := range q.list[:n] {
		msgs = append(msgs, queue.Message{Body: body})
	}
	q.list = q.list[n:]
	return msgs, nil
}

func TestMonitorConcurrentWatchersShareQueue(t *testing.T) {
	reqA := testRequest()
	reqB := &Request{JobID: "J2", JobName: "detect-j2", Images: []string{"s3://b/other.tif"}}

	// Only job B's terminal message is on the shared list. Job A's monitor
	// may pop it first, but must not destroy it: job B still has to observe
	// its own SUCCESS, while job A runs out its retry budget.
	q := &listQueue{}
	q.Send(context.Background(), statusBody("J2:s3://b/other.tif", "SUCCESS", "7", "").Body)

	chA := NewMonitor(q, testEnv(5), nil).Watch(context.Background(), reqA)
	chB := NewMonitor(q, testEnv(1000), nil).Watch(context.Background(), reqB)

	done := make(chan []Update, 2)
	go func() { done <- collect(chA) }()
	go func() { done <- collect(chB) }()

	var all [][]Update
	for i := 0; i < 2; i++ {
		select {
		case updates := <-done:
			all = append(all, updates)
		case <-time.After(5 * time.Second):
			t.Fatal("monitors did not finish")
		}
	}

	var sawSuccess, sawTimeout bool
	for _, updates := range all {
		for _, u := range updates {
			switch {
			case u.JobID == "J2" && u.State == StateSuccess:
				sawSuccess = true
			case u.JobID == "J1" && u.State == StateTimeout:
				sawTimeout = true
			}
		}
	}
	if !sawSuccess {
		t.Error("job J2 never observed its SUCCESS message")
	}
	if !sawTimeout {
		t.Error("job J1 should exhaust its retry budget")
	}
}

func TestMonitorCancellation(t *testing.T) {
	req := testRequest()
	q := &fakeQueue{} // empty forever

	ctx, cancel := context.WithCancel(context.Background())
	m := NewMonitor(q, testEnv(1000), nil)
	ch := m.Watch(ctx, req)
	cancel()

	select {
	case _, open := <-ch:
		if open {
			// A final update racing the cancel is fine; the channel must
			// still close.
			if _, open := <-ch; open {
				t.Error("expected channel to close after cancellation")
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}
}

package job

import (
	"encoding/json"
	"fmt"
)

// Status is the status code carried by a message on the status queue.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusSuccess    Status = "SUCCESS"
	StatusFailed     Status = "FAILED"
	StatusPartial    Status = "PARTIAL"
)

// StatusMessage is the strict tagged form of an inbound status-queue message.
// Payloads are untrusted and duck-typed on the wire; anything that does not
// match one of the four known shapes is rejected at this boundary instead of
// being poked at with ad hoc field access.
type StatusMessage struct {
	ImageID            string
	Status             Status
	ProcessingDuration string // populated for SUCCESS
	FailureMessage     string // populated for FAILED / PARTIAL
}

// statusEnvelope mirrors the wire shape: message attributes carry the image
// id and status code, and failure text rides in a top-level Message field.
type statusEnvelope struct {
	Message           string `json:"Message"`
	MessageAttributes map[string]struct {
		Value string `json:"Value"`
	} `json:"MessageAttributes"`
}

// ParseStatusMessage parses one raw status-queue body into its tagged form.
func ParseStatusMessage(body string) (*StatusMessage, error) {
	var env statusEnvelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return nil, fmt.Errorf("parse status message: %w", err)
	}

	imageID := env.MessageAttributes["image_id"].Value
	if imageID == "" {
		return nil, fmt.Errorf("status message missing image_id attribute")
	}

	status := Status(env.MessageAttributes["status"].Value)
	msg := &StatusMessage{ImageID: imageID, Status: status}

	switch status {
	case StatusInProgress:
	case StatusSuccess:
		msg.ProcessingDuration = env.MessageAttributes["processing_duration"].Value
	case StatusFailed, StatusPartial:
		msg.FailureMessage = env.Message
	default:
		return nil, fmt.Errorf("unknown status code: %q", status)
	}

	return msg, nil
}

package job

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"detection-desktop/internal/config"
	"detection-desktop/internal/creds"
	"detection-desktop/internal/queue"
)

// SubmitParams carries the user-supplied submission form. Shape validation
// happens upstream in the form; the submitter only assembles and enqueues.
type SubmitParams struct {
	Images            []string          `json:"images"`
	Model             string            `json:"model"`
	InvocationMode    string            `json:"invocationMode"`
	AssumedRole       string            `json:"assumedRole,omitempty"`
	OutputKinds       []string          `json:"outputKinds"` // "S3" and/or "Kinesis"
	Tiling            TilingParams      `json:"tiling"`
	PostProcessing    []PostProcessStep `json:"postProcessing,omitempty"`
	RegionOfInterest  string            `json:"regionOfInterest,omitempty"`
	FeatureProperties map[string]string `json:"featureProperties,omitempty"`
	DetectionPrompt   string            `json:"detectionPrompt,omitempty"`
}

// Submitter builds immutable processing requests and enqueues them on the
// request queue. Submission is a single attempt: enqueue failures are
// returned to the caller, never retried internally.
type Submitter struct {
	requests queue.Queue
	env      config.Environment
	onAlert  creds.AlertFunc
}

// NewSubmitter creates a Submitter sending to the given request queue.
func NewSubmitter(requests queue.Queue, env config.Environment, onAlert creds.AlertFunc) *Submitter {
	return &Submitter{requests: requests, env: env, onAlert: onAlert}
}

// Submit builds the request document and enqueues its JSON body exactly once.
func (s *Submitter) Submit(ctx context.Context, params SubmitParams) (*Request, error) {
	if len(params.Images) == 0 {
		return nil, fmt.Errorf("at least one source image is required")
	}

	jobID := uuid.NewString()
	req := &Request{
		JobID:   jobID,
		JobName: deriveJobName(jobID),
		Region:  s.env.Region,
		Images:  append([]string(nil), params.Images...),
		Processor: Processor{
			Name:           params.Model,
			InvocationMode: params.InvocationMode,
			AssumedRole:    params.AssumedRole,
		},
		Tiling:            params.Tiling,
		PostProcessing:    params.PostProcessing,
		RegionOfInterest:  params.RegionOfInterest,
		FeatureProperties: params.FeatureProperties,
		DetectionPrompt:   params.DetectionPrompt,
	}
	req.Outputs = s.expandOutputs(req.JobName, params.OutputKinds)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal processing request: %w", err)
	}

	if err := s.requests.Send(ctx, string(body)); err != nil {
		if creds.IsCredentialError(err) && s.onAlert != nil {
			s.onAlert(err.Error())
		}
		return nil, fmt.Errorf("enqueue processing request: %w", err)
	}

	log.Printf("[Submitter] Enqueued job %s (%s) image_id=%s", req.JobName, req.JobID, req.ImageID())
	return req, nil
}

// expandOutputs turns each selected output kind into a concrete sink. S3
// sinks get a deterministic per-job prefix; stream sinks get the fixed
// record batch size.
func (s *Submitter) expandOutputs(jobName string, kinds []string) []OutputSink {
	var sinks []OutputSink
	for _, kind := range kinds {
		switch kind {
		case SinkS3:
			sinks = append(sinks, OutputSink{
				Kind:   SinkS3,
				Bucket: s.env.OutputBucket,
				Prefix: jobName + "/",
			})
		case SinkStream:
			sinks = append(sinks, OutputSink{
				Kind:      SinkStream,
				Stream:    s.env.OutputStream,
				BatchSize: streamBatchSize,
			})
		default:
			log.Printf("[Submitter] Ignoring unknown output kind: %s", kind)
		}
	}
	return sinks
}

// deriveJobName makes the human-readable, prefixed job name from the job id.
func deriveJobName(jobID string) string {
	short := strings.ReplaceAll(jobID, "-", "")
	if len(short) > 8 {
		short = short[:8]
	}
	return "detect-" + short
}

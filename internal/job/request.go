package job

// Processor describes the model endpoint that will run detection on the image.
type Processor struct {
	Name           string `json:"name"`
	InvocationMode string `json:"invocationMode"` // "SM_ENDPOINT" or "HTTP_ENDPOINT"
	AssumedRole    string `json:"assumedRole,omitempty"`
}

// Output sink kinds selectable at submission time.
const (
	SinkS3     = "S3"
	SinkStream = "Kinesis"
)

// streamBatchSize is the fixed record batch size assigned to stream sinks.
const streamBatchSize = 1000

// OutputSink is one declared destination for detection results. Exactly one
// of the bucket or stream fields is populated depending on Kind.
type OutputSink struct {
	Kind      string `json:"type"`
	Bucket    string `json:"bucket,omitempty"`
	Prefix    string `json:"prefix,omitempty"`
	Stream    string `json:"stream,omitempty"`
	BatchSize int    `json:"batchSize,omitempty"`
}

// TilingParams control how the processing service tiles the image before
// running detection on it.
type TilingParams struct {
	TileSize    int    `json:"tileSize"`
	TileOverlap int    `json:"tileOverlap"`
	Format      string `json:"format"`
	Compression string `json:"compression"`
}

// PostProcessStep is an optional feature-distillation step applied to raw
// detections before they are written to the output sinks.
type PostProcessStep struct {
	Algorithm  string            `json:"algorithm"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// Request is the immutable processing-request document built once per
// submission. It is never mutated after creation; the submitting call owns
// it until a terminal status is observed.
type Request struct {
	JobID   string   `json:"jobId"`
	JobName string   `json:"jobName"`
	Region  string   `json:"region"`
	Images  []string `json:"imageUrls"`

	Processor Processor    `json:"imageProcessor"`
	Outputs   []OutputSink `json:"outputs,omitempty"`
	Tiling    TilingParams `json:"tiling"`

	PostProcessing    []PostProcessStep `json:"postProcessing,omitempty"`
	RegionOfInterest  string            `json:"regionOfInterest,omitempty"`
	FeatureProperties map[string]string `json:"featureProperties,omitempty"`
	DetectionPrompt   string            `json:"featureDetectionPrompt,omitempty"`
}

// ImageID derives the identifier used to correlate status messages to a job.
// The processing service recomputes this independently, so the derivation
// must stay exactly "{jobId}:{primary image url}".
func ImageID(jobID, primaryImage string) string {
	return jobID + ":" + primaryImage
}

// ImageID returns the recreatable identifier for this request's primary image.
func (r *Request) ImageID() string {
	if len(r.Images) == 0 {
		return r.JobID + ":"
	}
	return ImageID(r.JobID, r.Images[0])
}

package job

import (
	"testing"
)

func TestParseStatusMessageSuccess(t *testing.T) {
	body := `{
		"MessageAttributes": {
			"image_id": {"Value": "J1:s3://b/img.tif"},
			"status": {"Value": "SUCCESS"},
			"processing_duration": {"Value": "12"}
		}
	}`

	msg, err := ParseStatusMessage(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.ImageID != "J1:s3://b/img.tif" {
		t.Errorf("unexpected image id: %q", msg.ImageID)
	}
	if msg.Status != StatusSuccess {
		t.Errorf("unexpected status: %q", msg.Status)
	}
	if msg.ProcessingDuration != "12" {
		t.Errorf("unexpected duration: %q", msg.ProcessingDuration)
	}
}

func TestParseStatusMessageFailureCarriesText(t *testing.T) {
	body := `{
		"Message": "2 tiles failed",
		"MessageAttributes": {
			"image_id": {"Value": "J1:s3://b/img.tif"},
			"status": {"Value": "PARTIAL"}
		}
	}`

	msg, err := ParseStatusMessage(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Status != StatusPartial {
		t.Errorf("unexpected status: %q", msg.Status)
	}
	if msg.FailureMessage != "2 tiles failed" {
		t.Errorf("unexpected failure message: %q", msg.FailureMessage)
	}
}

func TestParseStatusMessageRejections(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", "{nope"},
		{"missing image id", `{"MessageAttributes": {"status": {"Value": "SUCCESS"}}}`},
		{"unknown status", `{"MessageAttributes": {"image_id": {"Value": "x"}, "status": {"Value": "EXPLODED"}}}`},
		{"empty status", `{"MessageAttributes": {"image_id": {"Value": "x"}}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseStatusMessage(tc.body); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

package imagery

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"

	"github.com/disintegration/imaging"
)

// MaxPreviewDimension bounds preview thumbnails sent to the frontend.
const MaxPreviewDimension = 512

// Preview is a downscaled rendering of a local source image for the
// submission form.
type Preview struct {
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	DataURL string `json:"dataUrl"`
}

// GeneratePreview loads a local source image, fits it inside maxDim, and
// returns it as a base64 PNG data URL the frontend can display directly.
func GeneratePreview(path string, maxDim int) (*Preview, error) {
	if maxDim <= 0 {
		maxDim = MaxPreviewDimension
	}

	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source image: %w", err)
	}

	thumb := imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)

	var buf bytes.Buffer
	if err := png.Encode(&buf, thumb); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}

	bounds := thumb.Bounds()
	return &Preview{
		Width:   bounds.Dx(),
		Height:  bounds.Dy(),
		DataURL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

package worker

import (
	"bytes"
	"context"
	"image/color"

	"github.com/Mandaris-LLC/stagemaster-ai/internal/models"

	"github.com/disintegration/imaging"
)

// RenderRequest carries everything the generation backend needs for one
// staged rendering.
type RenderRequest struct {
	Job         *models.StagingJob
	ImageURL    string
	ImageWidth  int
	ImageHeight int

	// ReferenceImageURL is set for secondary angles: the room reference
	// the output must stay visually consistent with. The staged version
	// of the reference is preferred over its original when available.
	ReferenceImageURL string
}

// Renderer is the opaque image-generation backend. Implementations are
// external collaborators; the worker only depends on this contract.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) ([]byte, error)
}

// StubRenderer produces placeholder output without calling any remote
// model. Used in development and tests.
type StubRenderer struct{}

// stylePalette gives each preset a recognizable placeholder tone.
var stylePalette = map[string]color.NRGBA{
	"modern":       {R: 0x90, G: 0xA4, B: 0xAE, A: 0xFF},
	"scandinavian": {R: 0xEC, G: 0xEF, B: 0xF1, A: 0xFF},
	"industrial":   {R: 0x55, G: 0x5A, B: 0x5E, A: 0xFF},
	"minimalist":   {R: 0xFA, G: 0xFA, B: 0xFA, A: 0xFF},
	"bohemian":     {R: 0xC0, G: 0x8A, B: 0x5A, A: 0xFF},
	"coastal":      {R: 0x8F, G: 0xB8, B: 0xC9, A: 0xFF},
	"farmhouse":    {R: 0xA8, G: 0x8B, B: 0x6A, A: 0xFF},
	"luxury":       {R: 0x3E, G: 0x2F, B: 0x3F, A: 0xFF},
}

func (StubRenderer) Render(ctx context.Context, req RenderRequest) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w, h := req.ImageWidth, req.ImageHeight
	if w <= 0 || h <= 0 {
		w, h = 1280, 720
	}

	tone, ok := stylePalette[req.Job.StylePreset]
	if !ok {
		tone = stylePalette["modern"]
	}

	img := imaging.New(w, h, tone)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(82)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

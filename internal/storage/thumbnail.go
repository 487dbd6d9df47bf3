package storage

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
)

// ThumbnailWidth is the fixed width of generated thumbnails.
const ThumbnailWidth = 480

// ProbeDimensions reads the pixel dimensions of an encoded image without
// decoding the full bitmap.
func ProbeDimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// Thumbnail renders a JPEG thumbnail of the given encoded image, scaled
// to ThumbnailWidth with aspect ratio preserved.
func Thumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}

	thumb := imaging.Resize(img, ThumbnailWidth, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(82)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

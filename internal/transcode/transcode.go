// Package transcode re-encodes evidence photos to a bounded JPEG before
// upload. Oversized captures from phone cameras are downscaled so that a
// single photo never dominates the upload budget on a cellular link.
package transcode

import (
	"bytes"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log/slog"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"courier/internal/config"
	"courier/internal/logging"
	"courier/internal/services"
)

// Result describes what the transcoder did with one photo.
type Result struct {
	SourceFormat string
	SourceWidth  int
	SourceHeight int
	Width        int
	Height       int
	SourceBytes  int
	OutputBytes  int
	Resized      bool
}

// Transcoder converts arbitrary decodable images into quality-bounded JPEGs.
type Transcoder struct {
	quality  int
	maxWidth int
	logger   *slog.Logger
}

// New builds a transcoder from configuration.
func New(cfg *config.Config, logger *slog.Logger) *Transcoder {
	return &Transcoder{
		quality:  cfg.Transcode.Quality,
		maxWidth: cfg.Transcode.MaxWidth,
		logger:   logging.NewComponentLogger(logger, "transcode"),
	}
}

// Transcode decodes data, downscales it to the configured width bound when
// necessary, and re-encodes it as JPEG. Input that cannot be decoded is
// rejected as a validation failure rather than passed through, so corrupt
// captures surface in the queue instead of reaching the backend.
func (t *Transcoder) Transcode(data []byte) ([]byte, Result, error) {
	result := Result{SourceBytes: len(data)}

	if len(data) == 0 {
		return nil, result, services.Wrap(services.ErrValidation, "transcode", "decode", "empty photo payload", nil)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, result, services.Wrap(services.ErrValidation, "transcode", "decode", "unreadable photo payload", err)
	}

	bounds := img.Bounds()
	result.SourceFormat = format
	result.SourceWidth = bounds.Dx()
	result.SourceHeight = bounds.Dy()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, result, services.Wrap(services.ErrValidation, "transcode", "decode", "photo has zero dimensions", nil)
	}

	if t.maxWidth > 0 && bounds.Dx() > t.maxWidth {
		img = imaging.Resize(img, t.maxWidth, 0, imaging.Lanczos)
		result.Resized = true
	}
	out := img.Bounds()
	result.Width = out.Dx()
	result.Height = out.Dy()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: t.quality}); err != nil {
		return nil, result, services.Wrap(services.ErrValidation, "transcode", "encode", "failed to encode jpeg", err)
	}
	result.OutputBytes = buf.Len()

	t.logger.Debug("photo transcoded",
		logging.String("source_format", result.SourceFormat),
		logging.Int("source_width", result.SourceWidth),
		logging.Int("source_height", result.SourceHeight),
		logging.Int("width", result.Width),
		logging.Int("height", result.Height),
		logging.Int("source_bytes", result.SourceBytes),
		logging.Int("output_bytes", result.OutputBytes),
		logging.Bool("resized", result.Resized),
	)
	return buf.Bytes(), result, nil
}

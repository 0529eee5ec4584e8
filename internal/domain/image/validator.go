package image

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/abdrou13-pixel/ReadCard/internal/platform/config"
	"github.com/abdrou13-pixel/ReadCard/internal/platform/logging"
)

var photoSignatures = map[string][]byte{
	"jpeg": {0xFF, 0xD8},
	"png":  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	"gif":  {0x47, 0x49, 0x46, 0x38},
	"webp": {0x52, 0x49, 0x46, 0x46},
	"bmp":  {0x42, 0x4D},
	// JPEG 2000, the usual encoding of chip face data groups.
	"jp2": {0x00, 0x00, 0x00, 0x0C, 0x6A, 0x50, 0x20, 0x20},
}

// Signatures of things that are definitely not photos.
var rejectSignatures = [][]byte{
	{0x4D, 0x5A},             // PE executable
	{0x25, 0x50, 0x44, 0x46}, // PDF
	{0x50, 0x4B, 0x03, 0x04}, // zip
	{0x1F, 0x8B, 0x08},       // gzip
}

var formatMIME = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
	"jp2":  "image/jp2",
}

// DetectFormat identifies the photo format from its magic bytes, or "".
func DetectFormat(data []byte) string {
	for format, sig := range photoSignatures {
		if bytes.HasPrefix(data, sig) {
			return format
		}
	}
	return ""
}

// MIMEFor maps a detected format to its MIME type, defaulting to
// application/octet-stream for anything unrecognized.
func MIMEFor(format string) string {
	if mime, ok := formatMIME[format]; ok {
		return mime
	}
	return "application/octet-stream"
}

// Validator checks photo payloads against the configured limits before they
// leave the service.
type Validator struct {
	cfg    config.PhotoConfig
	logger *logging.Logger
}

// NewValidator builds a validator over the photo limits.
func NewValidator(cfg config.PhotoConfig, logger *logging.Logger) *Validator {
	return &Validator{cfg: cfg, logger: logger}
}

// Validate rejects payloads that are empty, oversized, of a disallowed
// format, or that fail to decode.
func (v *Validator) Validate(data []byte) error {
	_, err := v.Inspect(data)
	return err
}

// Inspect validates the payload and reports its properties.
func (v *Validator) Inspect(data []byte) (Info, error) {
	if len(data) == 0 {
		return Info{}, fmt.Errorf("empty photo payload")
	}
	if v.cfg.MaxFileSize > 0 && int64(len(data)) > v.cfg.MaxFileSize {
		return Info{}, fmt.Errorf("photo size %d exceeds limit %d", len(data), v.cfg.MaxFileSize)
	}

	for _, sig := range rejectSignatures {
		if bytes.HasPrefix(data, sig) {
			return Info{}, fmt.Errorf("payload is not an image (header %x)", data[:len(sig)])
		}
	}

	format := DetectFormat(data)
	if format == "" {
		return Info{}, fmt.Errorf("unrecognized photo format (header %x)", head(data, 8))
	}
	if !v.formatAllowed(format) {
		return Info{}, fmt.Errorf("photo format not allowed: %s", format)
	}

	info := Info{
		Format:   format,
		MIME:     MIMEFor(format),
		FileSize: int64(len(data)),
	}

	// JPEG 2000 has no stdlib decoder; accept it on signature and size.
	if format == "jp2" {
		return info, nil
	}

	cfg, actual, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("decode photo: %w", err)
	}
	if actual != "" {
		info.Format = actual
		info.MIME = MIMEFor(actual)
	}
	info.Width = cfg.Width
	info.Height = cfg.Height

	if v.cfg.MaxWidth > 0 && cfg.Width > v.cfg.MaxWidth ||
		v.cfg.MaxHeight > 0 && cfg.Height > v.cfg.MaxHeight {
		return Info{}, fmt.Errorf("photo dimensions %dx%d exceed limit %dx%d",
			cfg.Width, cfg.Height, v.cfg.MaxWidth, v.cfg.MaxHeight)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); v.cfg.MaxPixels > 0 && pixels > v.cfg.MaxPixels {
		return Info{}, fmt.Errorf("photo pixel count %d exceeds limit %d", pixels, v.cfg.MaxPixels)
	}

	if v.logger != nil {
		v.logger.Debug("photo ok: format=%s size=%d dims=%dx%d",
			info.Format, info.FileSize, info.Width, info.Height)
	}
	return info, nil
}

func (v *Validator) formatAllowed(format string) bool {
	if len(v.cfg.AllowedFormats) == 0 {
		return true
	}
	for _, allowed := range v.cfg.AllowedFormats {
		a := strings.ToLower(allowed)
		if a == format || (a == "jpg" && format == "jpeg") {
			return true
		}
	}
	return false
}

func head(data []byte, n int) []byte {
	if len(data) < n {
		return data
	}
	return data[:n]
}

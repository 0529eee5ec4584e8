package image

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"testing"

	"github.com/abdrou13-pixel/ReadCard/internal/platform/config"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func photoConfig() config.PhotoConfig {
	return config.PhotoConfig{
		MaxFileSize:    1 << 20,
		MaxWidth:       256,
		MaxHeight:      256,
		MaxPixels:      256 * 256,
		AllowedFormats: []string{"jpeg", "jpg", "png", "jp2"},
	}
}

func TestValidatorAcceptsPNG(t *testing.T) {
	v := NewValidator(photoConfig(), nil)
	data := pngBytes(t, 32, 48)

	info, err := v.Inspect(data)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if info.Format != "png" || info.MIME != "image/png" {
		t.Errorf("format=%q mime=%q", info.Format, info.MIME)
	}
	if info.Width != 32 || info.Height != 48 {
		t.Errorf("dims = %dx%d, want 32x48", info.Width, info.Height)
	}
}

func TestValidatorAcceptsJP2BySignature(t *testing.T) {
	v := NewValidator(photoConfig(), nil)
	data := append([]byte{0x00, 0x00, 0x00, 0x0C, 0x6A, 0x50, 0x20, 0x20}, 0x0D, 0x0A, 0x87, 0x0A)

	info, err := v.Inspect(data)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if info.Format != "jp2" || info.MIME != "image/jp2" {
		t.Errorf("format=%q mime=%q, want jp2", info.Format, info.MIME)
	}
}

func TestValidatorRejections(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.PhotoConfig
		data []byte
	}{
		{"empty", photoConfig(), nil},
		{"oversized", config.PhotoConfig{MaxFileSize: 4}, []byte{0xFF, 0xD8, 0x00, 0x00, 0x00}},
		{"executable header", photoConfig(), []byte{0x4D, 0x5A, 0x90, 0x00}},
		{"pdf header", photoConfig(), []byte{0x25, 0x50, 0x44, 0x46, 0x2D}},
		{"unknown format", photoConfig(), []byte{0x01, 0x02, 0x03, 0x04}},
		{"truncated jpeg", photoConfig(), []byte{0xFF, 0xD8, 0xFF}},
		{
			"format not allowed",
			config.PhotoConfig{MaxFileSize: 1 << 20, AllowedFormats: []string{"jpeg"}},
			[]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := NewValidator(tt.cfg, nil).Validate(tt.data); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidatorRejectsOversizedDimensions(t *testing.T) {
	cfg := photoConfig()
	cfg.MaxWidth = 16
	cfg.MaxHeight = 16
	if err := NewValidator(cfg, nil).Validate(pngBytes(t, 32, 32)); err == nil {
		t.Error("expected dimension rejection")
	}
}

func TestBuildPayload(t *testing.T) {
	data := pngBytes(t, 8, 8)
	p := BuildPayload(data)
	if p.MIME != "image/png" {
		t.Errorf("MIME = %q, want image/png", p.MIME)
	}
	decoded, err := base64.StdEncoding.DecodeString(p.Base64)
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Error("payload does not round-trip")
	}

	if empty := BuildPayload(nil); empty.Base64 != "" || empty.MIME != "" {
		t.Error("empty input should yield empty payload")
	}
}

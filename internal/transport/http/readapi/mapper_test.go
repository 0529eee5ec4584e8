package readapi

import (
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/abdrou13-pixel/ReadCard/internal/domain/reader"
	errs "github.com/abdrou13-pixel/ReadCard/internal/platform/errors"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind errs.Kind
		want int
	}{
		{errs.KindReadInProgress, http.StatusConflict},
		{errs.KindUnauthorized, http.StatusUnauthorized},
		{errs.KindNoDocument, http.StatusNotFound},
		{errs.KindTimeout, http.StatusRequestTimeout},
		{errs.KindDeviceNotFound, http.StatusServiceUnavailable},
		{errs.KindDeviceOpenFailed, http.StatusServiceUnavailable},
		{errs.KindChipReadFailed, http.StatusInternalServerError},
		{errs.KindReadFailed, http.StatusInternalServerError},
		{errs.KindUnknown, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := StatusFor(tt.kind); got != tt.want {
			t.Errorf("StatusFor(%s) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestMapResult(t *testing.T) {
	photo := []byte{0xFF, 0xD8, 0xFF, 0x01}
	res := &reader.CanonicalResult{
		FullNameAr:     "بن علي كريم",
		FullNameLat:    "BENALI KARIM",
		BirthDate:      "1990-02-15",
		Sex:            "M",
		DocumentNumber: "AB123",
		NIN:            "109900123456789012",
		Address:        "12 RUE DIDOUCHE, ALGER",
		IssueDate:      "2024-01-10",
		ExpiryDate:     "2034-01-10",
		MRZ:            "IDDZA1234567890",
		Barcode:        "B-778899",
		Photo:          photo,
		Degradation:    reader.DegradationAuthFailed,
	}

	body := MapResult(res)

	if !body.OK || body.Code != "success" {
		t.Errorf("ok=%v code=%q", body.OK, body.Code)
	}
	if body.Message != "chip auth failed, partial data" {
		t.Errorf("message = %q", body.Message)
	}
	if body.Fields.DocNo != "AB123" || body.Fields.DOB != "1990-02-15" {
		t.Errorf("fields: %+v", body.Fields)
	}
	if body.Raw.MRZ != "IDDZA1234567890" || body.Raw.Barcode != "B-778899" {
		t.Errorf("raw: %+v", body.Raw)
	}
	if body.Images.PhotoMIME != "image/jpeg" {
		t.Errorf("photo mime = %q", body.Images.PhotoMIME)
	}
	if body.Images.PhotoBase64 != base64.StdEncoding.EncodeToString(photo) {
		t.Error("photo base64 mismatch")
	}
}

func TestMapResultWithoutPhoto(t *testing.T) {
	body := MapResult(&reader.CanonicalResult{Degradation: reader.DegradationOpticalOnly})
	if body.Images.PhotoBase64 != "" || body.Images.PhotoMIME != "" {
		t.Errorf("images should be empty: %+v", body.Images)
	}
	if body.Message != "chip data unavailable, optical only" {
		t.Errorf("message = %q", body.Message)
	}
	// Empty fields serialize as empty strings, not omitted.
	if body.Fields.NIN != "" || body.Fields.Address != "" {
		t.Errorf("fields: %+v", body.Fields)
	}
}

func TestMapError(t *testing.T) {
	status, body := MapError(errs.New(errs.KindReadInProgress, "coordinator.read", "a read is already in progress"))
	if status != http.StatusConflict {
		t.Errorf("status = %d, want 409", status)
	}
	if body.OK {
		t.Error("ok should be false")
	}
	if body.Code != "read_in_progress" {
		t.Errorf("code = %q", body.Code)
	}
	if body.Message != "a read is already in progress" {
		t.Errorf("message = %q, want the typed error's message", body.Message)
	}
}

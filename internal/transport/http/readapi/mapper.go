package readapi

import (
	"errors"
	"net/http"

	"github.com/abdrou13-pixel/ReadCard/internal/domain/image"
	"github.com/abdrou13-pixel/ReadCard/internal/domain/reader"
	errs "github.com/abdrou13-pixel/ReadCard/internal/platform/errors"
)

// ReadResponse is the wire schema of the read endpoint. Field values the
// document did not supply are empty strings, never omitted.
type ReadResponse struct {
	OK      bool   `json:"ok"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Fields  Fields `json:"fields"`
	Raw     Raw    `json:"raw"`
	Images  Images `json:"images"`
}

type Fields struct {
	FullNameAr  string `json:"full_name_ar"`
	FullNameLat string `json:"full_name_lat"`
	DOB         string `json:"dob"`
	Sex         string `json:"sex"`
	DocNo       string `json:"doc_no"`
	NIN         string `json:"nin"`
	Address     string `json:"address"`
	IssueDate   string `json:"issue_date"`
	ExpiryDate  string `json:"expiry_date"`
}

type Raw struct {
	MRZ     string `json:"mrz"`
	Barcode string `json:"barcode"`
}

type Images struct {
	PhotoBase64 string `json:"photo_base64"`
	PhotoMIME   string `json:"photo_mime"`
}

// MapResult renders a successful read, with the message reflecting any
// degradation.
func MapResult(res *reader.CanonicalResult) ReadResponse {
	photo := image.BuildPayload(res.Photo)
	return ReadResponse{
		OK:      true,
		Code:    "success",
		Message: res.Degradation.Message(),
		Fields: Fields{
			FullNameAr:  res.FullNameAr,
			FullNameLat: res.FullNameLat,
			DOB:         res.BirthDate,
			Sex:         res.Sex,
			DocNo:       res.DocumentNumber,
			NIN:         res.NIN,
			Address:     res.Address,
			IssueDate:   res.IssueDate,
			ExpiryDate:  res.ExpiryDate,
		},
		Raw: Raw{
			MRZ:     res.MRZ,
			Barcode: res.Barcode,
		},
		Images: Images{
			PhotoBase64: photo.Base64,
			PhotoMIME:   photo.MIME,
		},
	}
}

// MapError renders a failed read and picks its HTTP status.
func MapError(err error) (int, ReadResponse) {
	kind := errs.KindOf(err)
	body := ReadResponse{
		OK:      false,
		Code:    string(kind),
		Message: errorMessage(err),
	}
	return StatusFor(kind), body
}

// StatusFor maps an error kind to its HTTP status code.
func StatusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindReadInProgress:
		return http.StatusConflict
	case errs.KindUnauthorized:
		return http.StatusUnauthorized
	case errs.KindNoDocument:
		return http.StatusNotFound
	case errs.KindTimeout:
		return http.StatusRequestTimeout
	case errs.KindDeviceNotFound, errs.KindDeviceOpenFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage prefers the typed error's own message over the full chain.
func errorMessage(err error) string {
	var typed *errs.Error
	if errors.As(err, &typed) && typed.Message != "" {
		return typed.Message
	}
	if err != nil {
		return err.Error()
	}
	return "read failed"
}

package image

import (
	"encoding/base64"
)

// BuildPayload packages photo bytes for the response body. Empty input
// yields an empty payload so the response shape stays stable.
func BuildPayload(data []byte) Payload {
	if len(data) == 0 {
		return Payload{}
	}
	return Payload{
		Base64: base64.StdEncoding.EncodeToString(data),
		MIME:   MIMEFor(DetectFormat(data)),
	}
}

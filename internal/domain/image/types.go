// Package image validates and packages face photos extracted from documents.
// Chip face images arrive as untrusted binary blobs; everything here treats
// them accordingly.
package image

// Info describes a validated photo.
type Info struct {
	Format   string
	MIME     string
	Width    int
	Height   int
	FileSize int64
}

// Payload is the transport-ready form of a photo.
type Payload struct {
	Base64 string `json:"photo_base64"`
	MIME   string `json:"photo_mime"`
}

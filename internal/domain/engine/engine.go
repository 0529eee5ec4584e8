// Package engine defines the capability surface of the vendor document engine:
// device enumeration, optical scan and analysis, chip connection and the
// asynchronous chip-read task. Implementations wrap the vendor SDK; the sim
// subpackage provides an in-process backend for development and tests.
package engine

import (
	"context"
	"errors"
)

var (
	// ErrDeviceNotFound is returned when the named device is not attached.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrNoCard is returned when a chip operation runs without a present card.
	ErrNoCard = errors.New("no card present")
)

// Light selects the illumination used for a page capture.
type Light int

const (
	LightWhite Light = iota
	LightInfrared
)

// Source identifies which zone of the document supplied a field value.
type Source string

const (
	SourceMRZ  Source = "mrz"
	SourceVIZ  Source = "viz"
	SourceChip Source = "chip"
)

// FieldID names a document field independent of its source.
type FieldID string

const (
	FieldSurname        FieldID = "surname"
	FieldGivenName      FieldID = "given_name"
	FieldFullNameNative FieldID = "full_name_native"
	FieldBirthDate      FieldID = "birth_date"
	FieldExpiryDate     FieldID = "expiry_date"
	FieldIssueDate      FieldID = "issue_date"
	FieldSex            FieldID = "sex"
	FieldDocumentNumber FieldID = "document_number"
	FieldNIN            FieldID = "nin"
	FieldAddress        FieldID = "address"
	FieldFace           FieldID = "face"
	FieldSignature      FieldID = "signature"
	FieldMRZText        FieldID = "mrz_text"
	FieldBarcodeText    FieldID = "barcode_text"
	FieldCAN            FieldID = "can"
)

// FieldRef addresses a field within a specific zone.
type FieldRef struct {
	Source Source
	ID     FieldID
}

// Value is a resolved field value; text fields use Text, images use Bytes.
type Value struct {
	Text  string
	Bytes []byte
}

// Empty reports whether the value carries neither text nor bytes.
func (v Value) Empty() bool {
	return v.Text == "" && len(v.Bytes) == 0
}

// Document gives uniform field access over optical and chip sources.
type Document interface {
	Field(src Source, id FieldID) (Value, bool)
}

// Page is an opaque handle to a captured document page.
type Page interface {
	ID() string
}

// Device is the long-lived handle to an opened reader device.
type Device interface {
	Name() string
	Close() error
}

// CardReader is one contactless slot of the device.
type CardReader interface {
	Name() string
	CardPresent() bool
	Connect() (Card, error)
}

// Card represents a connected chip; Disconnect releases its resources.
type Card interface {
	Disconnect() error
}

// ChipFileID names a data group requested from the chip.
type ChipFileID string

const (
	FilePersonalDetails ChipFileID = "personal_details"
	FileGeneralData     ChipFileID = "general_data"
	FileDomesticData    ChipFileID = "domestic_data"
	FileIssuerDetails   ChipFileID = "issuer_details"
	FileFace            ChipFileID = "face"
	FileSignatureImage  ChipFileID = "signature_image"
	FileSecurityObjects ChipFileID = "security_objects"
)

// AuthLevel is the requested strength of chip authentication.
type AuthLevel int

const (
	AuthMin AuthLevel = iota
	AuthOpt
	AuthMax
)

// AuthKeyKind distinguishes the secrets that can unlock chip access.
type AuthKeyKind int

const (
	AuthKeyMRZ AuthKeyKind = iota
	AuthKeyCAN
	// AuthKeyDefault asks the engine to fall back to the card's own
	// default reference data.
	AuthKeyDefault
)

// AuthKey is the secret supplied when the engine requests authentication input.
type AuthKey struct {
	Kind  AuthKeyKind
	Value string
}

// ChipRead describes one chip-read task. Files are read in order; the last
// entry is the terminal group whose completion resolves the task.
type ChipRead struct {
	SessionID string
	Files     []ChipFileID
	AuthLevel AuthLevel
}

// Terminal returns the file group whose read-finished event ends the task.
func (r ChipRead) Terminal() ChipFileID {
	if len(r.Files) == 0 {
		return ""
	}
	return r.Files[len(r.Files)-1]
}

// ChipTask is the cancellable handle of a running chip read. Progress is
// delivered on the engine bus, not through this handle.
type ChipTask interface {
	// ProvideAuthKey answers an auth:wait-input event.
	ProvideAuthKey(key AuthKey) error
	// Stop signals the task to stop; it is safe to call more than once.
	Stop()
}

// AnalyzeInput feeds Analyze either a scanned page or a raw chip file payload.
type AnalyzeInput struct {
	Page Page
	Data []byte
}

// Engine is the vendor capability surface consumed by the read orchestration.
type Engine interface {
	ListDevices() ([]string, error)
	OpenDevice(name string) (Device, error)
	ListReaders() ([]CardReader, error)
	Scan(ctx context.Context, dev Device, lights []Light) (Page, error)
	Analyze(ctx context.Context, input AnalyzeInput, fields []FieldRef) (Document, error)
	StartChipRead(card Card, req ChipRead) (ChipTask, error)
	Bus() *Bus
}

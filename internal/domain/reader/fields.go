// Package reader drives one document-reading cycle against the engine:
// optical scan and analysis, chip connect and authenticated file read,
// then reconciliation of both sources into a canonical record.
package reader

import (
	"strings"

	"github.com/abdrou13-pixel/ReadCard/internal/domain/engine"
)

// opticalFields is the analysis request sent for every scanned page. The MRZ
// text and the VIZ card access number double as chip authentication secrets.
var opticalFields = []engine.FieldRef{
	{Source: engine.SourceMRZ, ID: engine.FieldMRZText},
	{Source: engine.SourceMRZ, ID: engine.FieldSurname},
	{Source: engine.SourceMRZ, ID: engine.FieldGivenName},
	{Source: engine.SourceMRZ, ID: engine.FieldBirthDate},
	{Source: engine.SourceMRZ, ID: engine.FieldExpiryDate},
	{Source: engine.SourceMRZ, ID: engine.FieldSex},
	{Source: engine.SourceMRZ, ID: engine.FieldDocumentNumber},
	{Source: engine.SourceVIZ, ID: engine.FieldFace},
	{Source: engine.SourceVIZ, ID: engine.FieldCAN},
	{Source: engine.SourceVIZ, ID: engine.FieldSignature},
	{Source: engine.SourceVIZ, ID: engine.FieldBarcodeText},
}

// fullFileSet is the chip read request covering every data group. Order
// matters: the last entry is the terminal group whose read-finished event
// resolves the session.
var fullFileSet = []engine.ChipFileID{
	engine.FilePersonalDetails,
	engine.FileGeneralData,
	engine.FileDomesticData,
	engine.FileIssuerDetails,
	engine.FileFace,
	engine.FileSignatureImage,
	engine.FileSecurityObjects,
}

// textOf returns the trimmed text of a document field, or "" when the field
// is missing.
func textOf(doc engine.Document, src engine.Source, id engine.FieldID) string {
	if doc == nil {
		return ""
	}
	v, ok := doc.Field(src, id)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v.Text)
}

// bytesOf returns the binary payload of a document field, or nil.
func bytesOf(doc engine.Document, src engine.Source, id engine.FieldID) []byte {
	if doc == nil {
		return nil
	}
	v, ok := doc.Field(src, id)
	if !ok {
		return nil
	}
	return v.Bytes
}

// hasOpticalData reports whether the scanned page produced anything worth
// returning without a chip: any of the MRZ text, barcode, document number,
// name, or date of birth.
func hasOpticalData(doc engine.Document) bool {
	if doc == nil {
		return false
	}
	checks := []engine.FieldRef{
		{Source: engine.SourceMRZ, ID: engine.FieldMRZText},
		{Source: engine.SourceVIZ, ID: engine.FieldBarcodeText},
		{Source: engine.SourceMRZ, ID: engine.FieldDocumentNumber},
		{Source: engine.SourceMRZ, ID: engine.FieldSurname},
		{Source: engine.SourceMRZ, ID: engine.FieldGivenName},
		{Source: engine.SourceMRZ, ID: engine.FieldBirthDate},
	}
	for _, ref := range checks {
		if textOf(doc, ref.Source, ref.ID) != "" {
			return true
		}
	}
	return false
}

// joinName joins surname and given name with a single space, tolerating
// either part being empty.
func joinName(surname, given string) string {
	return strings.TrimSpace(strings.TrimSpace(surname) + " " + strings.TrimSpace(given))
}

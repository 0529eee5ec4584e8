package reader

import (
	"github.com/abdrou13-pixel/ReadCard/internal/domain/engine"
)

// Merge reconciles the optical document with zero or more chip documents
// into one canonical record. The chip wins wherever both sources carry a
// value; the national ID number, address, and issue date exist only on the
// chip and never fall back. Chip documents are taken in the order the
// engine finished them, first non-empty value wins.
func Merge(optical engine.Document, chips []engine.Document) *CanonicalResult {
	res := &CanonicalResult{}

	chipSurname := chipText(chips, engine.FieldSurname)
	chipGiven := chipText(chips, engine.FieldGivenName)
	if name := joinName(chipSurname, chipGiven); name != "" {
		res.FullNameLat = name
	} else {
		res.FullNameLat = joinName(
			textOf(optical, engine.SourceMRZ, engine.FieldSurname),
			textOf(optical, engine.SourceMRZ, engine.FieldGivenName),
		)
	}

	// The native-script rendering only exists on the chip.
	res.FullNameAr = chipText(chips, engine.FieldFullNameNative)

	res.BirthDate = NormalizeDate(pick(
		chipText(chips, engine.FieldBirthDate),
		textOf(optical, engine.SourceMRZ, engine.FieldBirthDate),
	))
	res.ExpiryDate = NormalizeDate(pick(
		chipText(chips, engine.FieldExpiryDate),
		textOf(optical, engine.SourceMRZ, engine.FieldExpiryDate),
	))

	res.Sex = pick(
		chipText(chips, engine.FieldSex),
		textOf(optical, engine.SourceMRZ, engine.FieldSex),
	)
	res.DocumentNumber = pick(
		chipText(chips, engine.FieldDocumentNumber),
		textOf(optical, engine.SourceMRZ, engine.FieldDocumentNumber),
	)

	res.NIN = chipText(chips, engine.FieldNIN)
	res.Address = chipText(chips, engine.FieldAddress)
	res.IssueDate = NormalizeDate(chipText(chips, engine.FieldIssueDate))

	res.MRZ = textOf(optical, engine.SourceMRZ, engine.FieldMRZText)
	res.Barcode = textOf(optical, engine.SourceVIZ, engine.FieldBarcodeText)

	if photo := chipBytes(chips, engine.FieldFace); len(photo) > 0 {
		res.Photo = photo
	} else {
		res.Photo = bytesOf(optical, engine.SourceVIZ, engine.FieldFace)
	}

	return res
}

// pick returns the first non-empty candidate.
func pick(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}

// chipText returns the first non-empty text value for the field across the
// chip documents, in completion order.
func chipText(chips []engine.Document, id engine.FieldID) string {
	for _, doc := range chips {
		if t := textOf(doc, engine.SourceChip, id); t != "" {
			return t
		}
	}
	return ""
}

// chipBytes returns the first non-empty binary value for the field across
// the chip documents.
func chipBytes(chips []engine.Document, id engine.FieldID) []byte {
	for _, doc := range chips {
		if b := bytesOf(doc, engine.SourceChip, id); len(b) > 0 {
			return b
		}
	}
	return nil
}

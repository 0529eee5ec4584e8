package reader

// Degradation grades how complete a successful read is.
type Degradation int

const (
	// DegradationNone means chip and optical data were both read in full.
	DegradationNone Degradation = iota
	// DegradationAuthFailed means chip auth failed but some files were
	// still readable.
	DegradationAuthFailed
	// DegradationOpticalOnly means nothing usable came off the chip.
	DegradationOpticalOnly
)

// String is the short label used in logs and metrics.
func (d Degradation) String() string {
	switch d {
	case DegradationAuthFailed:
		return "auth_failed"
	case DegradationOpticalOnly:
		return "optical_only"
	default:
		return "none"
	}
}

// Message is the human-readable completion message for the response body.
func (d Degradation) Message() string {
	switch d {
	case DegradationAuthFailed:
		return "chip auth failed, partial data"
	case DegradationOpticalOnly:
		return "chip data unavailable, optical only"
	default:
		return "read completed"
	}
}

// CanonicalResult is the reconciled output of one read cycle. Every text
// field is always present; a value the document did not supply is an empty
// string, never absent.
type CanonicalResult struct {
	FullNameAr     string
	FullNameLat    string
	BirthDate      string
	Sex            string
	DocumentNumber string
	NIN            string
	Address        string
	IssueDate      string
	ExpiryDate     string

	MRZ     string
	Barcode string

	Photo []byte

	Degradation Degradation
}

// HasData reports whether anything usable was extracted at all.
func (r *CanonicalResult) HasData() bool {
	texts := []string{
		r.FullNameAr, r.FullNameLat, r.BirthDate, r.Sex,
		r.DocumentNumber, r.NIN, r.Address, r.IssueDate, r.ExpiryDate,
		r.MRZ, r.Barcode,
	}
	for _, t := range texts {
		if t != "" {
			return true
		}
	}
	return len(r.Photo) > 0
}

package models

import "time"

// ScannerKind classifies a detected device by its feed mechanism.
type ScannerKind string

const (
	KindFlatbed       ScannerKind = "flatbed"
	KindSheetFed      ScannerKind = "sheet-fed"
	KindMultiFunction ScannerKind = "multi-function"
	KindUnknown       ScannerKind = "unknown"
)

// Scanner describes a device reported by the scanning toolchain.
// Two scanners are the same device iff their Device strings match.
type Scanner struct {
	Device    string      `json:"device"` // toolchain identifier, e.g. "pixma:04A91234_ABCDE"
	Vendor    string      `json:"vendor"`
	Model     string      `json:"model"`
	Kind      ScannerKind `json:"kind"`
	Available bool        `json:"available"`
}

// Session is a working, ordered collection of captured pages awaiting
// combination and upload. "default" is the implicit primary session.
type Session struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Pages    []Page    `json:"pages"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

// Page is one captured side of a physical page. Number is 1-based and
// contiguous within a session. The file behind Filepath is the authoritative
// record; this struct is derived from it.
type Page struct {
	ID         string    `json:"id"` // opaque, assigned at registration
	Filename   string    `json:"filename"`
	Filepath   string    `json:"filepath"`
	CapturedAt time.Time `json:"captured_at"` // file modification time
	SizeBytes  int64     `json:"size_bytes"`
	Number     int       `json:"page_number"`
}

package testresults

import (
	"encoding/json"
	"strings"
	"time"
)

// ResultID tipe untuk TestResult
type ResultID string

// FileType enum
type FileType string

const (
	FileVideo     FileType = "video"
	FileCSV       FileType = "csv"
	FileQuestions FileType = "questions"
)

// FileTypes lists every file slot a TestResult can carry, in storage order.
var FileTypes = []FileType{FileVideo, FileCSV, FileQuestions}

// ParseFileType accepts the lowercase wire names only.
func ParseFileType(s string) (FileType, error) {
	switch FileType(s) {
	case FileVideo, FileCSV, FileQuestions:
		return FileType(s), nil
	}
	return "", invalidf("unknown fileType %q (allowed: video, csv, questions)", s)
}

// DefaultExtension is used when the declared file name carries none.
func (f FileType) DefaultExtension() string {
	switch f {
	case FileVideo:
		return "mp4"
	case FileCSV:
		return "csv"
	default:
		return "json"
	}
}

// Aggregate Root: TestResult
type TestResult struct {
	ID            ResultID        `json:"id"`
	TestID        string          `json:"testId"`
	TestType      TestType        `json:"testType"`
	TestDate      time.Time       `json:"testDate"`
	PatientID     *string         `json:"patientId"`
	ParticipantID *string         `json:"participantId"`
	VideoKey      *string         `json:"videoUrl"`
	CSVKey        *string         `json:"csvUrl"`
	QuestionsKey  *string         `json:"questionsUrl"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	UploadedBy    string          `json:"uploadedBy,omitempty"`
	AssignedBy    *string         `json:"assignedBy"`
	AssignedAt    *time.Time      `json:"assignedAt"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Provisional reports whether the record still waits for a patient.
func (r *TestResult) Provisional() bool {
	return r.PatientID == nil && r.ParticipantID != nil
}

// Assigned reports whether the record is bound to a patient.
func (r *TestResult) Assigned() bool {
	return r.PatientID != nil
}

// ValidateOwnership enforces that exactly one ownership tag is set at creation.
func (r *TestResult) ValidateOwnership() error {
	hasPatient := r.PatientID != nil && strings.TrimSpace(*r.PatientID) != ""
	hasParticipant := r.ParticipantID != nil && strings.TrimSpace(*r.ParticipantID) != ""
	switch {
	case hasPatient && hasParticipant:
		return invalidf("patientId and participantId are mutually exclusive")
	case !hasPatient && !hasParticipant:
		return invalidf("one of patientId or participantId is required")
	}
	return nil
}

// Key returns the storage key held in the given file slot.
func (r *TestResult) Key(f FileType) *string {
	switch f {
	case FileVideo:
		return r.VideoKey
	case FileCSV:
		return r.CSVKey
	case FileQuestions:
		return r.QuestionsKey
	}
	return nil
}

// SetKey stores key in the given file slot.
func (r *TestResult) SetKey(f FileType, key string) {
	k := key
	switch f {
	case FileVideo:
		r.VideoKey = &k
	case FileCSV:
		r.CSVKey = &k
	case FileQuestions:
		r.QuestionsKey = &k
	}
}

// Keys returns every non-empty storage key referenced by the record.
func (r *TestResult) Keys() []string {
	var out []string
	for _, f := range FileTypes {
		if k := r.Key(f); k != nil && *k != "" {
			out = append(out, *k)
		}
	}
	return out
}

// OwnedByPatient reports whether patientID is the bound owner.
func (r *TestResult) OwnedByPatient(patientID string) bool {
	return r.PatientID != nil && *r.PatientID == patientID
}

// Ownership is what the resolver decides for a new upload: the key namespace
// and the single ownership tag stamped on the record.
type Ownership struct {
	Namespace     string
	PatientID     *string
	ParticipantID *string
}

// Apply stamps the ownership tag on r.
func (o Ownership) Apply(r *TestResult) {
	r.PatientID = o.PatientID
	r.ParticipantID = o.ParticipantID
}

// OrphanFilter narrows ListOrphaned.
type OrphanFilter struct {
	ParticipantID *string
	TestType      *TestType
}

// Validate normalises the test type and rejects empty participant ids.
func (f *OrphanFilter) Validate() error {
	if f.ParticipantID != nil && *f.ParticipantID == "" {
		f.ParticipantID = nil
	}
	if f.TestType != nil {
		tt, err := NormalizeTestType(string(*f.TestType))
		if err != nil {
			return err
		}
		f.TestType = &tt
	}
	return nil
}

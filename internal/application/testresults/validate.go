package testresults

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	domain "github.com/bryanwahyu/testresult-ingest/internal/domain/testresults"
)

var testIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]{0,127}$`)

// ValidateTestID checks the client idempotency key.
func ValidateTestID(testID string) error {
	if strings.TrimSpace(testID) == "" {
		return domain.Invalidf("testId is required")
	}
	if !testIDPattern.MatchString(testID) {
		return domain.Invalidf("invalid testId format (alphanumeric, dot, dash, underscore, colon; max 128 chars)")
	}
	return nil
}

var testDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTestDate accepts RFC3339 timestamps or a bare YYYY-MM-DD date.
func ParseTestDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, domain.Invalidf("testDate is required")
	}
	for _, layout := range testDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, domain.Invalidf("invalid testDate %q", s)
}

func validateMetadata(raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, domain.Invalidf("metadata must be valid JSON")
	}
	return raw, nil
}

// recordFields is what both ingest paths share.
type recordFields struct {
	testType domain.TestType
	testDate time.Time
	metadata json.RawMessage
}

func validateRecordFields(testID, testType, testDate string, metadata json.RawMessage) (recordFields, error) {
	if err := ValidateTestID(testID); err != nil {
		return recordFields{}, err
	}
	tt, err := domain.NormalizeTestType(testType)
	if err != nil {
		return recordFields{}, err
	}
	td, err := ParseTestDate(testDate)
	if err != nil {
		return recordFields{}, err
	}
	md, err := validateMetadata(metadata)
	if err != nil {
		return recordFields{}, err
	}
	return recordFields{testType: tt, testDate: td, metadata: md}, nil
}

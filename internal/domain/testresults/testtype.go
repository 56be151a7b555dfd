package testresults

import "strings"

// TestType enum
type TestType string

const (
	TestAudiometry    TestType = "AUDIOMETRY"
	TestBPPV          TestType = "BPPV"
	TestLoudness      TestType = "LOUDNESS"
	TestSpeechInNoise TestType = "SPEECH_IN_NOISE"
	TestOther         TestType = "OTHER"
)

// legacy client spellings, keyed after case/separator folding
var testTypeAliases = map[string]TestType{
	"AUDIOMETRY":      TestAudiometry,
	"AUD":             TestAudiometry,
	"AUDIOGRAM":       TestAudiometry,
	"PTA":             TestAudiometry,
	"BPPV":            TestBPPV,
	"VESTIBULAR":      TestBPPV,
	"DIX_HALLPIKE":    TestBPPV,
	"LOUDNESS":        TestLoudness,
	"LDL":             TestLoudness,
	"SPEECH_IN_NOISE": TestSpeechInNoise,
	"SPEECHINNOISE":   TestSpeechInNoise,
	"SIN":             TestSpeechInNoise,
	"OTHER":           TestOther,
}

// NormalizeTestType maps a client supplied test type onto the canonical enum.
// Unknown values are rejected, never defaulted.
func NormalizeTestType(s string) (TestType, error) {
	folded := strings.ToUpper(strings.TrimSpace(s))
	folded = strings.NewReplacer("-", "_", " ", "_").Replace(folded)
	if folded == "" {
		return "", invalidf("testType is required")
	}
	if tt, ok := testTypeAliases[folded]; ok {
		return tt, nil
	}
	return "", invalidf("unrecognized testType %q", s)
}

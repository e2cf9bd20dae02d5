package interactions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinical-assistant-server/internal/domain"
)

func newChecker(t *testing.T) *Checker {
	t.Helper()
	checker, err := NewChecker()
	require.NoError(t, err)
	return checker
}

func TestNewCheckerLoadsEmbeddedRules(t *testing.T) {
	checker := newChecker(t)
	assert.Equal(t, 5, checker.RuleCount())
}

func TestNewCheckerFromJSONRejectsBadInput(t *testing.T) {
	_, err := NewCheckerFromJSON([]byte(`{"rules": []}`))
	assert.Error(t, err)

	_, err = NewCheckerFromJSON([]byte(`{"rules": [{"drug_a": "A", "drug_b": "B", "severity": "fatal"}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid severity")

	_, err = NewCheckerFromJSON([]byte(`not json`))
	assert.Error(t, err)
}

func TestCheckDiazepamAgainstMeclizine(t *testing.T) {
	checker := newChecker(t)

	findings := checker.Check([]string{"Diazepam"}, []string{"Meclizine"})
	require.Len(t, findings, 1)
	assert.Equal(t, domain.SeverityWarning, findings[0].Severity)
	assert.Contains(t, findings[0].Rationale, "sedation")
}

func TestCheckIsSymmetric(t *testing.T) {
	checker := newChecker(t)

	forward := checker.Check([]string{"Diazepam"}, []string{"Ondansetron"})
	reverse := checker.Check([]string{"Ondansetron"}, []string{"Diazepam"})

	require.Len(t, forward, 1)
	require.Len(t, reverse, 1)
	assert.Equal(t, forward[0].Severity, reverse[0].Severity)
	assert.Equal(t, forward[0].Rationale, reverse[0].Rationale)
}

func TestCheckIgnoresDosageAndCase(t *testing.T) {
	checker := newChecker(t)

	findings := checker.Check([]string{"diazepam 5mg"}, []string{"MECLIZINE 25 mg tablet"})
	require.Len(t, findings, 1)
	assert.Equal(t, domain.SeverityWarning, findings[0].Severity)
}

func TestCheckPairsWithinProposedList(t *testing.T) {
	checker := newChecker(t)

	findings := checker.Check([]string{"Diazepam", "Promethazine"}, nil)
	require.Len(t, findings, 1)
	assert.Equal(t, domain.SeverityWarning, findings[0].Severity)
}

func TestCheckNoMatchReturnsNoFindings(t *testing.T) {
	checker := newChecker(t)

	findings := checker.Check([]string{"Mucinex"}, []string{"Omeprazole"})
	assert.Empty(t, findings)
}

func TestCheckDeduplicatesRepeatedPairs(t *testing.T) {
	checker := newChecker(t)

	findings := checker.Check(
		[]string{"Diazepam", "Diazepam 10mg"},
		[]string{"Meclizine", "meclizine"},
	)
	assert.Len(t, findings, 1)
}

func TestCheckOrdersBySeverity(t *testing.T) {
	checker := newChecker(t)

	findings := checker.Check([]string{"Diazepam"}, []string{"Omeprazole", "Ondansetron", "Meclizine"})
	require.Len(t, findings, 3)
	assert.Equal(t, domain.SeverityCritical, findings[0].Severity)
	assert.Equal(t, domain.SeverityWarning, findings[1].Severity)
	assert.Equal(t, domain.SeverityInfo, findings[2].Severity)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Diazepam", "diazepam"},
		{"Diazepam 5mg", "diazepam"},
		{"MECLIZINE 25 mg tablet", "meclizine"},
		{"  Omeprazole 20mg  ", "omeprazole"},
		{"Mucinex", "mucinex"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "input %q", tt.in)
	}
}

func TestExtractMentions(t *testing.T) {
	mentions := ExtractMentions("Patient reports dizziness. Prescribed Meclizine 25mg, consider diazepam if symptoms persist.")
	assert.Contains(t, mentions, "Meclizine")
	assert.Contains(t, mentions, "Diazepam")
}

func TestExtractMentionsDeduplicates(t *testing.T) {
	mentions := ExtractMentions("Prescribed Meclizine. Meclizine 25mg daily. Continue meclizine.")
	assert.Equal(t, []string{"Meclizine"}, mentions)
}

func TestExtractMentionsEmptyText(t *testing.T) {
	assert.Empty(t, ExtractMentions(""))
	assert.Empty(t, ExtractMentions("no medications discussed"))
}

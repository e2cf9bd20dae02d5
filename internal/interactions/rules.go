// Package interactions screens medication lists against a static table of
// known adverse drug interactions. The table is finite configuration
// data, not an inference engine.
package interactions

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/clinical-assistant-server/internal/domain"
)

//go:embed rules.json
var defaultRulesJSON []byte

// Checker answers pairwise interaction lookups over a fixed rule table.
// It is built once at startup and read-only afterwards.
type Checker struct {
	rules map[string]domain.InteractionRule
}

type ruleFile struct {
	Rules []domain.InteractionRule `json:"rules"`
}

// NewChecker builds a checker from the embedded rule table.
func NewChecker() (*Checker, error) {
	return NewCheckerFromJSON(defaultRulesJSON)
}

// NewCheckerFromJSON builds a checker from a JSON rule document, allowing
// deployments to supply their own table.
func NewCheckerFromJSON(data []byte) (*Checker, error) {
	var file ruleFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse interaction rules: %w", err)
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("interaction rule table is empty")
	}

	rules := make(map[string]domain.InteractionRule, len(file.Rules))
	for i, rule := range file.Rules {
		if rule.DrugA == "" || rule.DrugB == "" {
			return nil, fmt.Errorf("interaction rule %d is missing a drug name", i)
		}
		switch rule.Severity {
		case domain.SeverityInfo, domain.SeverityWarning, domain.SeverityCritical:
		default:
			return nil, fmt.Errorf("interaction rule %d has invalid severity %q", i, rule.Severity)
		}
		rules[pairKey(rule.DrugA, rule.DrugB)] = rule
	}

	return &Checker{rules: rules}, nil
}

// RuleCount reports the number of loaded rules.
func (c *Checker) RuleCount() int {
	return len(c.rules)
}

// dosageSuffix matches trailing dosage and formulation tokens such as
// "5mg", "25 mg", "10ml" or "500mcg tablet".
var dosageSuffix = regexp.MustCompile(`(?i)\s+\d+(\.\d+)?\s*(mg|mcg|g|ml|units?)\b.*$`)

// Normalize reduces a medication mention to its comparable base name:
// lowercase, trimmed, dosage and formulation suffixes removed.
func Normalize(drug string) string {
	d := strings.TrimSpace(drug)
	d = dosageSuffix.ReplaceAllString(d, "")
	return strings.ToLower(strings.TrimSpace(d))
}

func pairKey(a, b string) string {
	na, nb := Normalize(a), Normalize(b)
	if na > nb {
		na, nb = nb, na
	}
	return na + "|" + nb
}

// Check screens every unordered pair from newDrugs x existingDrugs, plus
// pairs within newDrugs, against the rule table. Pairs without a rule
// produce no finding. Duplicate pairs report once.
func (c *Checker) Check(newDrugs, existingDrugs []string) []domain.InteractionFinding {
	findings := make([]domain.InteractionFinding, 0)
	seen := make(map[string]bool)

	report := func(a, b string) {
		na, nb := Normalize(a), Normalize(b)
		if na == "" || nb == "" || na == nb {
			return
		}
		key := pairKey(a, b)
		if seen[key] {
			return
		}
		rule, ok := c.rules[key]
		if !ok {
			return
		}
		seen[key] = true
		findings = append(findings, domain.InteractionFinding{
			DrugA:     a,
			DrugB:     b,
			Severity:  rule.Severity,
			Rationale: rule.Description,
		})
	}

	for _, newMed := range newDrugs {
		for _, existing := range existingDrugs {
			report(newMed, existing)
		}
	}
	// Multiple drugs proposed together can interact with each other.
	for i := 0; i < len(newDrugs); i++ {
		for j := i + 1; j < len(newDrugs); j++ {
			report(newDrugs[i], newDrugs[j])
		}
	}

	sort.SliceStable(findings, func(i, j int) bool {
		return severityRank(findings[i].Severity) > severityRank(findings[j].Severity)
	})
	return findings
}

func severityRank(s domain.Severity) int {
	switch s {
	case domain.SeverityCritical:
		return 2
	case domain.SeverityWarning:
		return 1
	default:
		return 0
	}
}

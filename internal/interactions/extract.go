package interactions

import (
	"regexp"
	"strings"
)

// knownMedications are the names appearing in the visit index. Mention
// scanning checks these first, then falls back to prescription phrasing.
var knownMedications = []string{
	"Mucinex",
	"Ondansetron",
	"Meclizine",
	"Diazepam",
	"Omeprazole",
	"Promethazine",
}

var prescriptionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)prescribed?\s+([A-Z][a-z]+)`),
	regexp.MustCompile(`(?i)give\s+([A-Z][a-z]+)`),
	regexp.MustCompile(`(?i)start\s+([A-Z][a-z]+)`),
	regexp.MustCompile(`(?i)medication:\s*([A-Z][a-z]+)`),
}

// ExtractMentions pulls medication names out of free text such as doctor
// notes or a physician's chat message. Results keep first-seen order and
// contain no duplicates.
func ExtractMentions(text string) []string {
	if text == "" {
		return nil
	}

	var mentions []string
	seen := make(map[string]bool)
	add := func(name string) {
		key := Normalize(name)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		mentions = append(mentions, name)
	}

	lower := strings.ToLower(text)
	for _, med := range knownMedications {
		if strings.Contains(lower, strings.ToLower(med)) {
			add(med)
		}
	}

	for _, pattern := range prescriptionPatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			add(match[1])
		}
	}

	return mentions
}

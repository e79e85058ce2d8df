package rules

import (
	"regexp"
	"strings"
)

// StatusUnknown is reported for lab items no classified key matches
const StatusUnknown = "unknown"

var whitespaceRun = regexp.MustCompile(`\s+`)

// StatusFor resolves the classification label for a lab item name such as "Uric Acid"
// or "PLT Count". Output keys do not always match item names, so the candidates tried
// are: snake_case lower ("uric_acid"), lower ("systolic"), the exact name ("PLT Count"),
// and the name without whitespace.
func (r *PanelResult) StatusFor(itemName string) string {
	for _, key := range statusKeys(itemName) {
		if c, ok := r.Get(key); ok && c.Label != "" {
			return c.Label
		}
	}
	return StatusUnknown
}

func statusKeys(itemName string) []string {
	lower := strings.ToLower(itemName)
	return []string{
		whitespaceRun.ReplaceAllString(lower, "_"),
		lower,
		itemName,
		whitespaceRun.ReplaceAllString(itemName, ""),
	}
}

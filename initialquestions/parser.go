package initialquestions

import (
	"regexp"
	"strings"
)

var listMarkerPattern = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)

// parseQuestions extracts one question per non-empty line of model output,
// stripping any list markers the model added despite instructions.
func parseQuestions(raw string) []string {
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = listMarkerPattern.ReplaceAllString(line, "")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

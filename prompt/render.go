package prompt

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.-]+)\s*\}\}`)

// Render substitutes {{name}} tokens in template with vars. Every token must
// be supplied; missing variables are reported together.
func Render(template string, vars map[string]string) (string, error) {
	template = strings.TrimSpace(template)
	if template == "" {
		return "", fmt.Errorf("template is required")
	}
	missing := map[string]struct{}{}
	out := tokenPattern.ReplaceAllStringFunc(template, func(match string) string {
		parts := tokenPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		key := strings.TrimSpace(parts[1])
		value, ok := vars[key]
		if !ok {
			missing[key] = struct{}{}
			return ""
		}
		return value
	})
	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for key := range missing {
			names = append(names, key)
		}
		sort.Strings(names)
		return "", fmt.Errorf("missing prompt variables: %s", strings.Join(names, ", "))
	}
	return out, nil
}

package runtime

import "strings"

// --- helpers ---
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
func formatOrNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "<none>"
	}
	return s
}
func mark(b bool) string {
	if b {
		return "✅"
	}
	return "❌"
}

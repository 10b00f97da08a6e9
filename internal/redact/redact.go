// Package redact masks credentials before they reach the audit log. Script
// text and hashes pass through untouched.
package redact

import (
	"fmt"
	"maps"
	"regexp"
	"strings"
)

// Placeholder replaces every masked value.
const Placeholder = "[REDACTED_SECRET]"

// NeverPersistKey names a metadata entry listing further keys to mask. The
// entry itself is dropped.
const NeverPersistKey = "never_persist"

type rule struct {
	re   *regexp.Regexp
	repl string
}

var rules = []rule{
	{
		re:   regexp.MustCompile(`(?i)((?:api|auth|token|secret|key|password)[-_ ]*(?:id|key|token)?\s*[:=]\s*)(['\"]?)([A-Za-z0-9+/=_\-]{8,})(['\"]?)`),
		repl: `$1$2` + Placeholder + `$4`,
	},
	{
		re:   regexp.MustCompile(`(?i)\b(bearer)\s+([A-Za-z0-9._\-+/=]{6,})`),
		repl: `$1 ` + Placeholder,
	},
}

// alwaysMasked keys are replaced whatever their value.
var alwaysMasked = map[string]bool{
	"auth_token":    true,
	"authorization": true,
	"zip_password":  true,
}

// String masks bearer tokens and key=value secrets in s.
func String(s string) string {
	if strings.TrimSpace(s) == "" {
		return s
	}
	for _, r := range rules {
		s = r.re.ReplaceAllString(s, r.repl)
	}
	return s
}

// Interface masks strings found in v, descending into slices and maps.
func Interface(v any) any {
	switch val := v.(type) {
	case string:
		return String(val)
	case fmt.Stringer:
		return String(val.String())
	case []string:
		out := make([]string, len(val))
		for i := range val {
			out[i] = String(val[i])
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i := range val {
			out[i] = Interface(val[i])
		}
		return out
	case map[string]any:
		return Map(val)
	}
	return v
}

// Map returns a masked copy of in, or nil when in is empty.
func Map(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	masked := maps.Clone(alwaysMasked)
	for k, v := range in {
		if strings.EqualFold(k, NeverPersistKey) {
			for _, key := range keyList(v) {
				masked[key] = true
			}
		}
	}

	out := make(map[string]any, len(in))
	for k, v := range in {
		switch {
		case strings.EqualFold(k, NeverPersistKey):
		case masked[strings.ToLower(k)]:
			out[k] = Placeholder
		default:
			out[k] = Interface(v)
		}
	}
	return out
}

// keyList accepts "a,b", []string or []any and returns lowercased names.
func keyList(v any) []string {
	var raw []string
	switch val := v.(type) {
	case string:
		raw = strings.Split(val, ",")
	case []string:
		raw = val
	case []any:
		for _, e := range val {
			raw = append(raw, fmt.Sprint(e))
		}
	}
	var keys []string
	for _, k := range raw {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

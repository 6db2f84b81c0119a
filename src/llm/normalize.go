package llm

import "strings"

var assistantPrefixes = []string{
	"Here's your rewrite:",
	"Here's the rewritten text:",
	"Here is your rewrite:",
	"Here is the rewritten text:",
	"Rewritten text:",
	"Sure, here's the rewrite:",
	"Sure! Here's the rewrite:",
	"Here you go:",
}

// Normalize strips the wrapping models tend to add around a rewrite: a code
// fence, surrounding quotes, a chatty lead-in. ok is false when nothing
// usable is left or the result equals the original.
func Normalize(raw, original string) (string, bool) {
	result := raw

	if strings.HasPrefix(result, "```") {
		if i := strings.IndexByte(result, '\n'); i >= 0 {
			result = result[i+1:]
		}
		if i := strings.LastIndex(result, "```"); i >= 0 {
			result = result[:i]
		}
	}

	trimmed := strings.TrimSpace(result)
	if len(trimmed) >= 2 {
		first, last := trimmed[0], trimmed[len(trimmed)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			result = trimmed[1 : len(trimmed)-1]
		}
	}

	for _, prefix := range assistantPrefixes {
		if rest, found := strings.CutPrefix(strings.TrimSpace(result), prefix); found {
			result = rest
			break
		}
	}

	result = strings.TrimSpace(result)
	if result == "" || result == strings.TrimSpace(original) {
		return "", false
	}
	return result, true
}

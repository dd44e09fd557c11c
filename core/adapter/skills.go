package adapter

import (
	"encoding/json"
	"fmt"
	"strings"
)

// NormalizeSkills merges skill sources into a de-duplicated, lower-cased tag
// list. Each value may be nil, a JSON-encoded string, a comma separated
// string, a bare scalar, a []string or a []any. Order of first appearance is
// kept.
func NormalizeSkills(values ...any) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, tag := range flattenSkill(v, 0) {
			tag = strings.ToLower(strings.TrimSpace(tag))
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			out = append(out, tag)
		}
	}
	return out
}

// maxSkillDepth bounds recursion on doubly encoded JSON strings.
const maxSkillDepth = 4

func flattenSkill(v any, depth int) []string {
	if depth > maxSkillDepth {
		return nil
	}
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return parseSkillString(x, depth)
	case []byte:
		return parseSkillString(string(x), depth)
	case json.RawMessage:
		return parseSkillString(string(x), depth)
	case []string:
		return x
	case []any:
		var out []string
		for _, e := range x {
			out = append(out, flattenSkill(e, depth+1)...)
		}
		return out
	default:
		return []string{fmt.Sprint(x)}
	}
}

func parseSkillString(s string, depth int) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if strings.HasPrefix(s, "[") || strings.HasPrefix(s, `"`) {
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err == nil {
			return flattenSkill(decoded, depth+1)
		}
		s = strings.Trim(s, `[]"`)
	}
	if strings.Contains(s, ",") {
		return strings.Split(s, ",")
	}
	return []string{s}
}

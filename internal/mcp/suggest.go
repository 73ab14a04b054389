package mcp

import "github.com/sahilm/fuzzy"

const maxSuggestions = 3

// suggest returns catalog names that look like typos of name, best first.
func suggest(name string, catalog []string) []string {
	if name == "" || len(catalog) == 0 {
		return nil
	}

	var out []string
	picked := make(map[string]bool)
	add := func(s string) {
		if !picked[s] && len(out) < maxSuggestions {
			picked[s] = true
			out = append(out, s)
		}
	}

	for _, m := range fuzzy.Find(name, catalog) {
		add(m.Str)
	}
	// Names the caller over-typed, e.g. "additon" for "add".
	for _, c := range catalog {
		if len(fuzzy.Find(c, []string{name})) > 0 {
			add(c)
		}
	}
	return out
}

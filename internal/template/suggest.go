package template

import "github.com/agext/levenshtein"

// nameSuggestion tries to find a name from the given slice of suggested
// names that is close to the given name and returns it if found. If no
// suggestion is close enough, returns the empty string.
func nameSuggestion(given string, suggestions []string) string {
	for _, suggestion := range suggestions {
		dist := levenshtein.Distance(given, suggestion, nil)
		if dist < 3 {
			return suggestion
		}
	}
	return ""
}

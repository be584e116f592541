package importer

import (
	"fmt"
	"strings"
)

const maxKeyLength = 10

// Resolver assigns catalog codes for a single import run. Counters start at
// zero for every new Resolver, so two runs never share sequence state.
type Resolver struct {
	counters map[string]int
}

func NewResolver() *Resolver {
	return &Resolver{counters: make(map[string]int)}
}

// Resolve returns rawCode trimmed when it carries a real value. Otherwise it
// synthesizes KEY+nnn from the product name, where KEY is the name's A-Z
// letters upper-cased and cut to ten characters.
func (r *Resolver) Resolve(rawCode string, name string) string {
	code := strings.TrimSpace(rawCode)
	if !isMissing(code) {
		return code
	}

	key := nameKey(name)
	r.counters[key]++
	return fmt.Sprintf("%s%03d", key, r.counters[key])
}

func nameKey(name string) string {
	var b strings.Builder
	for _, c := range strings.ToUpper(name) {
		if c >= 'A' && c <= 'Z' {
			b.WriteRune(c)
			if b.Len() == maxKeyLength {
				break
			}
		}
	}
	return b.String()
}

// Spreadsheet tools write these in place of an empty cell.
var missingMarkers = []string{"nan", "null", "none", "#n/a"}

func isMissing(code string) bool {
	if code == "" {
		return true
	}
	for _, marker := range missingMarkers {
		if strings.EqualFold(code, marker) {
			return true
		}
	}
	return false
}

package atlasindex

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// DefaultSuggestions is the number of similar names listed in lookup errors.
const DefaultSuggestions = 5

// minSimilarity is the lowest ratio (0-100) a name needs to be suggested.
const minSimilarity = 20

// NotFoundError is returned when a region name does not resolve.
type NotFoundError struct {
	Name    string
	Similar []string
}

func (e *NotFoundError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "region %q not found on atlas", e.Name)
	if len(e.Similar) > 0 {
		b.WriteString("; similar names: ")
		b.WriteString(strings.Join(e.Similar, ", "))
	}
	return b.String()
}

// Unwrap lets errors.Is match ErrRegionNotFound.
func (e *NotFoundError) Unwrap() error {
	return ErrRegionNotFound
}

func (x *Index) notFound(name string) error {
	return &NotFoundError{Name: name, Similar: x.Similar(name, x.suggestions)}
}

// similarity is a 0-100 score: 100 for identical strings.
func similarity(a, b string) int {
	total := len(a) + len(b)
	if total == 0 {
		return 100
	}
	d := levenshtein.ComputeDistance(a, b)
	return (total - d) * 100 / total
}

// Similar returns up to n known names ranked by edit-distance similarity to name.
func (x *Index) Similar(name string, n int) []string {
	if n <= 0 {
		return nil
	}

	type scored struct {
		name  string
		score int
	}
	var candidates []scored
	for _, known := range x.Names() {
		if s := similarity(name, known); s > minSimilarity {
			candidates = append(candidates, scored{known, s})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}

	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.name
	}
	return out
}

package core

import (
	"fmt"
	"sort"
)

const (
	SortNatural = ""
	SortByName  = "name"
	SortByAge   = "age"
)

// Query selects people. A nil Name or Food does not constrain the result; a
// non-nil one matches exactly, so an empty string only matches an empty
// value. A Limit of zero or less means no limit. Natural order is creation order, which is also
// id order since ids are ULIDs.
type Query struct {
	Name       *string
	Food       *string
	SortBy     string
	Descending bool
	Limit      int
	ExcludeAge bool
}

func (q Query) Validate() error {
	switch q.SortBy {
	case SortNatural, SortByName, SortByAge:
		return nil
	}
	return fmt.Errorf("%w: unsupported sort field %q", ErrValidation, q.SortBy)
}

func (q Query) Matches(p Person) bool {
	if q.Name != nil && p.Name != *q.Name {
		return false
	}
	if q.Food != nil && !p.HasFood(*q.Food) {
		return false
	}
	return true
}

// Apply evaluates the query against an unordered set of people. It is used by
// stores that cannot push the query down to their backend.
func (q Query) Apply(people []Person) []Person {
	out := make([]Person, 0, len(people))
	for _, p := range people {
		if q.Matches(p) {
			out = append(out, p.Clone())
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return q.less(out[i], out[j])
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	if q.ExcludeAge {
		for i := range out {
			out[i].Age = nil
		}
	}
	return out
}

func (q Query) less(a, b Person) bool {
	c := 0
	switch q.SortBy {
	case SortByName:
		c = compareStrings(a.Name, b.Name)
	case SortByAge:
		c = compareAges(a.Age, b.Age)
	}
	if q.Descending {
		c = -c
	}
	if c != 0 {
		return c < 0
	}
	return a.ID < b.ID
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Missing ages sort before any present age.
func compareAges(a, b *int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	}
	return 0
}

// ValidateAll checks every person before a bulk insert so that one bad
// entry rejects the whole batch.
func ValidateAll(people []Person) error {
	for i := range people {
		if err := people[i].Validate(); err != nil {
			return fmt.Errorf("person %d: %w", i, err)
		}
	}
	return nil
}

package checkouts

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Count is one row of the report.
type Count struct {
	Name      string
	CheckOuts int
}

// Counts is ordered by property name.
type Counts []Count

// Map returns the counts keyed by property name.
func (c Counts) Map() map[string]int {
	m := make(map[string]int, len(c))
	for _, row := range c {
		m[row.Name] = row.CheckOuts
	}
	return m
}

func (c Counts) Total() int {
	total := 0
	for _, row := range c {
		total += row.CheckOuts
	}
	return total
}

// sortCounts orders rows ascending by name using the collation rules of the
// locale. Names that collate equal fall back to byte order so output is stable.
func sortCounts(c Counts, locale string) {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	col := collate.New(tag)
	sort.SliceStable(c, func(i, j int) bool {
		if r := col.CompareString(c[i].Name, c[j].Name); r != 0 {
			return r < 0
		}
		return c[i].Name < c[j].Name
	})
}

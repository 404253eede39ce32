package ldap

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// SearchResult is the outcome of one directory search.
type SearchResult struct {
	Count   int     // Number of entries returned
	Entries []Entry // Entries in server order
	Time    Elapsed // Time spent in the search operation itself
}

// Entry is a single directory entry.
type Entry struct {
	DN         string
	Attributes []Attribute // Attributes in server order
}

// Attribute is one named, multi-valued attribute of an entry.
type Attribute struct {
	Name   string
	Values []string
}

// Elapsed is a duration in human and machine readable forms.
type Elapsed struct {
	Human string // Unit-scaled, e.g. "850.0µs", "12.3ms", "1.234s"
	Raw   string // Seconds with microsecond precision, e.g. "0.012345"
}

// Values returns the values of the named attribute, matching the name
// case-insensitively. It returns nil when the entry lacks the attribute.
func (e Entry) Values(name string) []string {
	for _, attr := range e.Attributes {
		if strings.EqualFold(attr.Name, name) {
			return attr.Values
		}
	}
	return nil
}

// Has reports whether the entry carries the named attribute.
func (e Entry) Has(name string) bool {
	for _, attr := range e.Attributes {
		if strings.EqualFold(attr.Name, name) {
			return true
		}
	}
	return false
}

// AttributeMap returns the attributes keyed by name.
func (e Entry) AttributeMap() map[string][]string {
	result := make(map[string][]string, len(e.Attributes))
	for _, attr := range e.Attributes {
		result[attr.Name] = attr.Values
	}
	return result
}

// NewElapsed renders d. Negative durations are clamped to zero.
func NewElapsed(d time.Duration) Elapsed {
	if d < 0 {
		d = 0
	}

	return Elapsed{
		Human: humanDuration(d),
		Raw:   strconv.FormatFloat(d.Seconds(), 'f', 6, 64),
	}
}

func humanDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%.1fµs", float64(d)/float64(time.Microsecond))
	case d < time.Second:
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	case d < time.Minute:
		return fmt.Sprintf("%.3fs", d.Seconds())
	default:
		return d.Round(time.Millisecond).String()
	}
}

// newSearchResult converts go-ldap entries into a SearchResult.
func newSearchResult(entries []*ldap.Entry, elapsed time.Duration) *SearchResult {
	result := &SearchResult{
		Count:   len(entries),
		Entries: make([]Entry, 0, len(entries)),
		Time:    NewElapsed(elapsed),
	}

	for _, entry := range entries {
		if entry == nil {
			continue
		}

		converted := Entry{
			DN:         entry.DN,
			Attributes: make([]Attribute, 0, len(entry.Attributes)),
		}
		for _, attr := range entry.Attributes {
			converted.Attributes = append(converted.Attributes, Attribute{
				Name:   attr.Name,
				Values: attributeValues(attr),
			})
		}
		result.Entries = append(result.Entries, converted)
	}

	result.Count = len(result.Entries)

	return result
}

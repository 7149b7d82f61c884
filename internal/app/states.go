package service

import (
	"strings"
	"unicode"
)

// stateNames maps the title-cased form of each feed state or territory
// name to its spelling in the feed.
var stateNames = map[string]string{}

func init() { //nolint:gochecknoinits // static lookup table
	for _, s := range []string{
		"Alabama", "Alaska", "American Samoa", "Arizona", "Arkansas", "California",
		"Colorado", "Connecticut", "Delaware", "District of Columbia", "Florida",
		"Georgia", "Guam", "Hawaii", "Idaho", "Illinois", "Indiana", "Iowa", "Kansas",
		"Kentucky", "Louisiana", "Maine", "Maryland", "Massachusetts", "Michigan",
		"Minnesota", "Mississippi", "Missouri", "Montana", "Nebraska", "Nevada",
		"New Hampshire", "New Jersey", "New Mexico", "New York", "North Carolina",
		"North Dakota", "Northern Mariana Islands", "Ohio", "Oklahoma", "Oregon",
		"Pennsylvania", "Puerto Rico", "Rhode Island", "South Carolina", "South Dakota",
		"Tennessee", "Texas", "Utah", "Vermont", "Virgin Islands", "Virginia",
		"Washington", "West Virginia", "Wisconsin", "Wyoming",
	} {
		stateNames[TitleCase(s)] = s
	}
}

// CanonicalState returns the feed spelling of a state typed in any case.
func CanonicalState(name string) (string, bool) {
	s, ok := stateNames[TitleCase(strings.TrimSpace(name))]
	return s, ok
}

// TitleCase upper-cases the first letter of every run of letters and
// lower-cases the rest, so "o'brien" becomes "O'Brien" and "DE KALB"
// becomes "De Kalb".
func TitleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}

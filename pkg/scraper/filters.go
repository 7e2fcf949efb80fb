package scraper

import (
	"strings"

	"linkreach/pkg/models"
)

// Filters narrows which follower entries are collected. Empty fields match
// everything. Entries that do not match are skipped and do not count toward
// MaxProfiles.
type Filters struct {
	// ConnectionDegrees keeps entries whose degree is in the set. Entries
	// with an unknown degree (0) are dropped when the set is non-empty.
	ConnectionDegrees []int
	// Locations and Companies match case-insensitive substrings
	Locations []string
	Companies []string
	// MinMutualConnections drops entries with fewer mutual connections
	MinMutualConnections int
}

// Match reports whether p passes every filter
func (f *Filters) Match(p models.Profile) bool {
	if f == nil {
		return true
	}

	if len(f.ConnectionDegrees) > 0 {
		found := false
		for _, d := range f.ConnectionDegrees {
			if d == p.ConnectionDegree {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if !containsAny(p.Location, f.Locations) {
		return false
	}
	// a company filter also matches the headline, which is where LinkedIn
	// usually puts the employer in follower listings
	if !containsAny(p.CurrentCompany+" "+p.Headline, f.Companies) {
		return false
	}

	return p.MutualConnections >= f.MinMutualConnections
}

func containsAny(value string, needles []string) bool {
	if len(needles) == 0 {
		return true
	}
	value = strings.ToLower(value)
	for _, n := range needles {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" && strings.Contains(value, n) {
			return true
		}
	}
	return false
}

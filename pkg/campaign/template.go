package campaign

import (
	"regexp"
	"strings"

	"linkreach/pkg/models"
)

var templateVar = regexp.MustCompile(`\{(\w+)\}`)

// profileVars are the template variables filled from the target's profile
var profileVars = map[string]bool{
	"firstName": true,
	"lastName":  true,
	"name":      true,
	"company":   true,
	"headline":  true,
	"location":  true,
}

// Render expands {firstName}, {lastName}, {name}, {company}, {headline},
// {location} and {myName} in tmpl. Unknown variables are left as written.
func Render(tmpl string, p *models.Profile, myName string) string {
	if p == nil {
		p = &models.Profile{}
	}
	return templateVar.ReplaceAllStringFunc(tmpl, func(m string) string {
		switch m[1 : len(m)-1] {
		case "firstName":
			return p.FirstName()
		case "lastName":
			return p.LastName()
		case "name":
			return p.Name
		case "company":
			return p.CurrentCompany
		case "headline":
			return p.Headline
		case "location":
			return p.Location
		case "myName":
			return myName
		}
		return m
	})
}

// needsProfile reports whether tmpl uses any profile variable
func needsProfile(tmpl string) bool {
	for _, m := range templateVar.FindAllStringSubmatch(tmpl, -1) {
		if profileVars[m[1]] {
			return true
		}
	}
	return false
}

// ParseTargets splits a newline-separated list of profile URLs. Lines are
// trimmed and blank lines dropped.
func ParseTargets(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

package campaign

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"linkreach/pkg/models"
)

func TestRender(t *testing.T) {
	p := &models.Profile{
		Name:           "Ada King Lovelace",
		CurrentCompany: "Analytical Engines",
		Headline:       "Mathematician",
		Location:       "London",
	}

	tests := []struct {
		tmpl string
		want string
	}{
		{"Hi {firstName}!", "Hi Ada!"},
		{"{lastName}", "King Lovelace"},
		{"{name} at {company}", "Ada King Lovelace at Analytical Engines"},
		{"{headline} in {location}", "Mathematician in London"},
		{"Cheers, {myName}", "Cheers, Sam"},
		{"Hello {nickname}", "Hello {nickname}"},
		{"no variables", "no variables"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Render(tt.tmpl, p, "Sam"), tt.tmpl)
	}

	assert.Equal(t, "Hi , from Sam", Render("Hi {firstName}, from {myName}", nil, "Sam"))
}

func TestNeedsProfile(t *testing.T) {
	assert.True(t, needsProfile("Hi {firstName}"))
	assert.False(t, needsProfile("Hi there, {myName} here"))
	assert.False(t, needsProfile("{unknown}"))
	assert.False(t, needsProfile(""))
}

func TestParseTargets(t *testing.T) {
	input := "https://www.linkedin.com/in/a\r\n\n   https://www.linkedin.com/in/b  \n\n"
	assert.Equal(t, []string{"https://www.linkedin.com/in/a", "https://www.linkedin.com/in/b"}, ParseTargets(input))
	assert.Empty(t, ParseTargets(" \n \n"))
}

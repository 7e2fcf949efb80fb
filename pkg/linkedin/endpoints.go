package linkedin

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// BaseURL is the LinkedIn web origin
	BaseURL = "https://www.linkedin.com"

	// FeedPath answers 200 only for a signed-in session
	FeedPath = "/feed/"

	// InvitationPath accepts connection requests
	InvitationPath = "/voyager/api/growth/normInvitations"

	// ConversationPath creates message threads
	ConversationPath = "/voyager/api/messaging/conversations"

	// MaxNoteLength is the longest note LinkedIn attaches to an invitation
	MaxNoteLength = 300
)

// NormalizeProfileURL canonicalizes a member profile URL to
// https://www.linkedin.com/in/<vanity>. It accepts bare vanity names, URLs
// without a scheme and URLs with query strings or trailing paths.
func NormalizeProfileURL(raw string) (string, error) {
	vanity, err := VanityName(raw)
	if err != nil {
		return "", err
	}
	return BaseURL + "/in/" + vanity, nil
}

// VanityName extracts the public identifier from a profile URL
func VanityName(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("empty profile URL")
	}

	if !strings.Contains(s, "/") {
		return s, nil
	}
	if strings.HasPrefix(s, "/") {
		s = BaseURL + s
	} else if !strings.Contains(s, "://") {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid profile URL %q: %w", raw, err)
	}
	host := strings.ToLower(u.Hostname())
	if host != "linkedin.com" && !strings.HasSuffix(host, ".linkedin.com") {
		return "", fmt.Errorf("not a LinkedIn URL: %q", raw)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "in" || parts[1] == "" {
		return "", fmt.Errorf("not a member profile URL: %q", raw)
	}
	vanity, err := url.PathUnescape(parts[1])
	if err != nil {
		return "", fmt.Errorf("invalid profile URL %q: %w", raw, err)
	}
	return vanity, nil
}

// FollowersURL returns the follower listing page for a profile. Page numbers
// start at 1; an empty cursor is the first page.
func FollowersURL(profileURL, cursor string) string {
	base := strings.TrimRight(profileURL, "/") + "/followers/"
	if cursor == "" || cursor == "1" {
		return base
	}
	return base + "?page=" + url.QueryEscape(cursor)
}

// nextCursor turns a page link into the cursor for FollowersURL
func nextCursor(href string, current string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	page := u.Query().Get("page")
	if page == "" {
		return ""
	}
	// a link back to the same page would loop forever
	if page == current || (current == "" && page == "1") {
		return ""
	}
	if n, err := strconv.Atoi(page); err != nil || n < 1 {
		return ""
	}
	return page
}

// resolve makes an absolute URL from a path or a URL on another origin,
// so tests can point the client at an httptest server
func resolve(base, target string) (string, error) {
	t, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if t.IsAbs() {
		if strings.HasSuffix(strings.ToLower(t.Hostname()), "linkedin.com") && b.Host != t.Host {
			t.Scheme = b.Scheme
			t.Host = b.Host
		}
		return t.String(), nil
	}
	return b.ResolveReference(t).String(), nil
}

package linkedin

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	errs "linkreach/pkg/errors"
	"linkreach/pkg/models"
)

// FetchProfile loads a member profile page and parses what it exposes
func (c *Client) FetchProfile(ctx context.Context, profileURL string) (*models.Profile, error) {
	normalized, err := NormalizeProfileURL(profileURL)
	if err != nil {
		return nil, errs.Wrap(errs.KindNotFound, err, "invalid profile URL")
	}

	body, err := c.get(ctx, normalized+"/")
	if err != nil {
		return nil, err
	}

	profile, err := parseProfile(normalized, body)
	if err != nil {
		c.logger.WithError(err).Warn("Profile page could not be parsed")
		return &models.Profile{ProfileURL: normalized}, nil
	}
	return profile, nil
}

// FetchFollowersPage loads one page of a profile's followers. An empty cursor
// is the first page.
func (c *Client) FetchFollowersPage(ctx context.Context, rootURL, cursor string) (*FollowersPage, error) {
	normalized, err := NormalizeProfileURL(rootURL)
	if err != nil {
		return nil, errs.Wrap(errs.KindNotFound, err, "invalid profile URL")
	}

	body, err := c.get(ctx, FollowersURL(normalized, cursor))
	if err != nil {
		return nil, err
	}

	page, err := parseFollowersPage(cursor, body)
	if err != nil {
		c.logger.WithError(err).Warn("Follower page could not be parsed")
		return &FollowersPage{}, nil
	}

	c.logger.DebugWithFields("Fetched follower page", map[string]interface{}{
		"root_url": normalized,
		"cursor":   cursor,
		"entries":  len(page.Profiles),
		"total":    page.TotalCount,
		"next":     page.NextCursor,
	})
	return page, nil
}

// Connect sends a connection invitation with an optional note. Notes longer
// than LinkedIn allows are truncated.
func (c *Client) Connect(ctx context.Context, profileURL, note string) error {
	vanity, err := VanityName(profileURL)
	if err != nil {
		return errs.Wrap(errs.KindNotFound, err, "invalid profile URL")
	}

	payload, err := json.Marshal(invitationRequest{
		TrackingID: uuid.NewString(),
		Invitee:    invitationInvitee{Profile: inviteeProfile{ProfileID: vanity}},
		Message:    truncateRunes(strings.TrimSpace(note), MaxNoteLength),
	})
	if err != nil {
		return errs.Wrap(errs.KindTransport, err, "failed to encode invitation")
	}

	_, err = c.do(ctx, request{
		method:      http.MethodPost,
		target:      InvitationPath,
		body:        payload,
		contentType: "application/json",
		write:       true,
	})
	return err
}

// Message sends body as a direct message to the member
func (c *Client) Message(ctx context.Context, profileURL, body string) error {
	vanity, err := VanityName(profileURL)
	if err != nil {
		return errs.Wrap(errs.KindNotFound, err, "invalid profile URL")
	}
	if strings.TrimSpace(body) == "" {
		return errs.ErrEmptyMessage
	}

	payload, err := json.Marshal(newConversationRequest(vanity, body))
	if err != nil {
		return errs.Wrap(errs.KindTransport, err, "failed to encode message")
	}

	_, err = c.do(ctx, request{
		method:      http.MethodPost,
		target:      ConversationPath + "?action=create",
		body:        payload,
		contentType: "application/json",
		write:       true,
	})
	return err
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}

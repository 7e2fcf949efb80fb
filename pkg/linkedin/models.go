package linkedin

import "linkreach/pkg/models"

// FollowersPage is one page of a profile's follower listing
type FollowersPage struct {
	Profiles []models.Profile
	// TotalCount is the follower total LinkedIn reports, 0 when not shown
	TotalCount int
	// NextCursor is empty when this is the last page
	NextCursor string
}

// invitationRequest is the body posted to InvitationPath
type invitationRequest struct {
	TrackingID string            `json:"trackingId"`
	Invitee    invitationInvitee `json:"invitee"`
	Message    string            `json:"message,omitempty"`
}

type invitationInvitee struct {
	Profile inviteeProfile `json:"com.linkedin.voyager.growth.invitation.InviteeProfile"`
}

type inviteeProfile struct {
	ProfileID string `json:"profileId"`
}

// conversationRequest is the body posted to ConversationPath
type conversationRequest struct {
	KeyVersion         string             `json:"keyVersion"`
	ConversationCreate conversationCreate `json:"conversationCreate"`
}

type conversationCreate struct {
	EventCreate eventCreate `json:"eventCreate"`
	Recipients  []string    `json:"recipients"`
	Subtype     string      `json:"subtype"`
}

type eventCreate struct {
	Value eventValue `json:"value"`
}

type eventValue struct {
	MessageCreate messageCreate `json:"com.linkedin.voyager.messaging.create.MessageCreate"`
}

type messageCreate struct {
	Body           string         `json:"body"`
	Attachments    []string       `json:"attachments"`
	AttributedBody attributedBody `json:"attributedBody"`
}

type attributedBody struct {
	Text       string   `json:"text"`
	Attributes []string `json:"attributes"`
}

func newConversationRequest(recipient, body string) conversationRequest {
	return conversationRequest{
		KeyVersion: "LEGACY_INBOX",
		ConversationCreate: conversationCreate{
			EventCreate: eventCreate{Value: eventValue{MessageCreate: messageCreate{
				Body:           body,
				Attachments:    []string{},
				AttributedBody: attributedBody{Text: body, Attributes: []string{}},
			}}},
			Recipients: []string{recipient},
			Subtype:    "MEMBER_TO_MEMBER",
		},
	}
}

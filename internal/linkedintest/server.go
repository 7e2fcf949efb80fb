// Package linkedintest provides a fake LinkedIn web server for tests that
// drive the real client end to end.
package linkedintest

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"linkreach/pkg/linkedin"
	"linkreach/pkg/models"
)

// Invitation is a connection request the server accepted
type Invitation struct {
	ProfileID string
	Message   string
}

// Message is a direct message the server accepted
type Message struct {
	Recipient string
	Body      string
}

// Server simulates the profile, follower, invitation and messaging
// endpoints with cookie checks and injectable failures
type Server struct {
	server *httptest.Server

	mu        sync.RWMutex
	tokens    map[string]bool
	profiles  map[string]models.Profile
	followers map[string][]models.Profile
	pageSize  int
	// errorResponses maps a request path to the status it answers with
	errorResponses map[string]int
	invitations    []Invitation
	messages       []Message

	requestCount  int32
	rateLimitHits int32
}

// NewServer starts a server that accepts the given session tokens
func NewServer(tokens ...string) *Server {
	s := &Server{
		tokens:         make(map[string]bool),
		profiles:       make(map[string]models.Profile),
		followers:      make(map[string][]models.Profile),
		pageSize:       10,
		errorResponses: make(map[string]int),
	}
	for _, t := range tokens {
		s.tokens[t] = true
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/feed/", s.handleFeed)
	mux.HandleFunc("/authwall", s.handleAuthwall)
	mux.HandleFunc("/in/", s.handleMember)
	mux.HandleFunc(linkedin.InvitationPath, s.handleInvitation)
	mux.HandleFunc(linkedin.ConversationPath, s.handleConversation)

	s.server = httptest.NewServer(mux)
	return s
}

// URL returns the base URL to point the client at
func (s *Server) URL() string {
	return s.server.URL
}

// Close shuts the server down
func (s *Server) Close() {
	s.server.Close()
}

// RevokeToken makes token rejected from now on
func (s *Server) RevokeToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
}

// AddProfile serves p at its profile URL
func (s *Server) AddProfile(p models.Profile) {
	vanity, err := linkedin.VanityName(p.ProfileURL)
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[vanity] = p
}

// SetFollowers sets the follower listing of vanity
func (s *Server) SetFollowers(vanity string, followers []models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.followers[vanity] = followers
}

// SetPageSize sets how many followers each listing page holds
func (s *Server) SetPageSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageSize = n
}

// SetError makes requests for path answer with code
func (s *Server) SetError(path string, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorResponses[path] = code
}

// Invitations returns the accepted connection requests
func (s *Server) Invitations() []Invitation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Invitation(nil), s.invitations...)
}

// Messages returns the accepted direct messages
func (s *Server) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Message(nil), s.messages...)
}

// RequestCount returns the number of requests served
func (s *Server) RequestCount() int {
	return int(atomic.LoadInt32(&s.requestCount))
}

// RateLimitHits returns how many requests were answered with 429
func (s *Server) RateLimitHits() int {
	return int(atomic.LoadInt32(&s.rateLimitHits))
}

// GenerateFollowers builds n follower entries named after prefix
func GenerateFollowers(prefix string, n int) []models.Profile {
	out := make([]models.Profile, n)
	for i := range out {
		out[i] = models.Profile{
			ProfileURL:        fmt.Sprintf("%s/in/%s-%d", linkedin.BaseURL, prefix, i+1),
			Name:              fmt.Sprintf("Follower%d %s", i+1, prefix),
			Headline:          fmt.Sprintf("Engineer at Company %d", i%4),
			ConnectionDegree:  i%3 + 1,
			MutualConnections: i % 7,
		}
	}
	return out
}

// authorized reports whether the request carries an accepted li_at cookie
func (s *Server) authorized(r *http.Request) bool {
	c, err := r.Cookie("li_at")
	if err != nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens[c.Value]
}

// intercept applies injected failures and the page-request auth check
func (s *Server) intercept(w http.ResponseWriter, r *http.Request) bool {
	atomic.AddInt32(&s.requestCount, 1)

	s.mu.RLock()
	code := s.errorResponses[r.URL.Path]
	s.mu.RUnlock()
	if code > 0 {
		if code == http.StatusTooManyRequests {
			atomic.AddInt32(&s.rateLimitHits, 1)
			w.Header().Set("Retry-After", "60")
		}
		http.Error(w, http.StatusText(code), code)
		return true
	}

	if !s.authorized(r) {
		if strings.HasPrefix(r.URL.Path, "/voyager/") {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		} else {
			http.Redirect(w, r, "/authwall?sessionRedirect="+r.URL.Path, http.StatusFound)
		}
		return true
	}
	return false
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	if s.intercept(w, r) {
		return
	}
	fmt.Fprint(w, "<html><body><main class=\"feed\">feed</main></body></html>")
}

func (s *Server) handleAuthwall(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, "<html><body>Sign in to LinkedIn</body></html>")
}

func (s *Server) handleMember(w http.ResponseWriter, r *http.Request) {
	if s.intercept(w, r) {
		return
	}

	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/in/"), "/"), "/")
	vanity := parts[0]
	if len(parts) > 1 && parts[1] == "followers" {
		s.writeFollowers(w, vanity, r.URL.Query().Get("page"))
		return
	}

	s.mu.RLock()
	p, ok := s.profiles[vanity]
	s.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeProfile(w, p)
}

func writeProfile(w http.ResponseWriter, p models.Profile) {
	esc := html.EscapeString
	fmt.Fprintf(w, `<html><head>
<meta property="og:title" content="%s - %s | LinkedIn">
</head><body>
<h1 class="top-card-layout__title">%s</h1>
<h2 class="top-card-layout__headline">%s</h2>
<span class="top-card__subline-item">%s</span>
<span class="dist-value">%s</span>
</body></html>`,
		esc(p.Name), esc(p.CurrentCompany), esc(p.Name), esc(p.Headline), esc(p.Location), degreeLabel(p.ConnectionDegree))
}

func (s *Server) writeFollowers(w http.ResponseWriter, vanity, pageParam string) {
	page := 1
	if n, err := strconv.Atoi(pageParam); err == nil && n > 0 {
		page = n
	}

	s.mu.RLock()
	all := s.followers[vanity]
	size := s.pageSize
	s.mu.RUnlock()

	start := (page - 1) * size
	end := start + size
	if start > len(all) {
		start = len(all)
	}
	if end > len(all) {
		end = len(all)
	}

	var b strings.Builder
	esc := html.EscapeString
	fmt.Fprintf(&b, "<html><body>\n<div class=\"followers-count\">%d followers</div>\n<ul>\n", len(all))
	for _, f := range all[start:end] {
		fv, _ := linkedin.VanityName(f.ProfileURL)
		fmt.Fprintf(&b, `<li class="follower">
  <a href="/in/%s">%s</a>
  <span class="name">%s</span>
  <span class="headline">%s</span>
  <span class="degree">%s</span>
  <span class="mutual">%d mutual connections</span>
</li>
`, esc(fv), esc(f.Name), esc(f.Name), esc(f.Headline), degreeLabel(f.ConnectionDegree), f.MutualConnections)
	}
	b.WriteString("</ul>\n")
	if end < len(all) {
		fmt.Fprintf(&b, "<a rel=\"next\" href=\"/in/%s/followers/?page=%d\">Next</a>\n", esc(vanity), page+1)
	}
	b.WriteString("</body></html>")

	fmt.Fprint(w, b.String())
}

func degreeLabel(d int) string {
	switch d {
	case 1:
		return "1st"
	case 2:
		return "2nd"
	case 3:
		return "3rd+"
	}
	return ""
}

func (s *Server) handleInvitation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.intercept(w, r) {
		return
	}

	var req struct {
		Invitee struct {
			Profile struct {
				ProfileID string `json:"profileId"`
			} `json:"com.linkedin.voyager.growth.invitation.InviteeProfile"`
		} `json:"invitee"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	_, known := s.profiles[req.Invitee.Profile.ProfileID]
	if known {
		s.invitations = append(s.invitations, Invitation{ProfileID: req.Invitee.Profile.ProfileID, Message: req.Message})
	}
	s.mu.Unlock()

	if !known {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Query().Get("action") != "create" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if s.intercept(w, r) {
		return
	}

	var req struct {
		ConversationCreate struct {
			EventCreate struct {
				Value struct {
					MessageCreate struct {
						Body string `json:"body"`
					} `json:"com.linkedin.voyager.messaging.create.MessageCreate"`
				} `json:"value"`
			} `json:"eventCreate"`
			Recipients []string `json:"recipients"`
		} `json:"conversationCreate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.ConversationCreate.Recipients) == 0 {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.messages = append(s.messages, Message{
		Recipient: req.ConversationCreate.Recipients[0],
		Body:      req.ConversationCreate.EventCreate.Value.MessageCreate.Body,
	})
	s.mu.Unlock()
	w.WriteHeader(http.StatusCreated)
}

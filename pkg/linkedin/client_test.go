package linkedin

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "linkreach/pkg/errors"
	"linkreach/pkg/logger"
	"linkreach/pkg/retry"
)

const testToken = "AQEDARcWxyz0123456789abcdefGHIJ"

// recordingSource is a CredentialSource that remembers invalidations
type recordingSource struct {
	mu          sync.Mutex
	token       string
	invalidated []string
}

func (r *recordingSource) Current() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.token, r.token != ""
}

func (r *recordingSource) Invalidate(token, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if token == r.token {
		r.token = ""
		r.invalidated = append(r.invalidated, reason)
	}
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *recordingSource) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	src := &recordingSource{token: testToken}
	client := NewClient(src, Options{
		BaseURL: srv.URL,
		Retry: &retry.Config{
			MaxAttempts: 3,
			Backoff:     &retry.ConstantBackoff{Delay: time.Millisecond},
			Logger:      logger.NewNopLogger(),
		},
		Logger: logger.NewNopLogger(),
	})
	return client, src
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(StaticToken(testToken), Options{Logger: logger.NewTestLogger()})

	assert.Equal(t, BaseURL, client.baseURL)
	assert.NotNil(t, client.httpClient)
	assert.NotNil(t, client.limiter)
	assert.NotNil(t, client.actionLimiter)
	assert.NotNil(t, client.retry)
	assert.True(t, strings.HasPrefix(client.csrfToken, "ajax:"))
	assert.NotEmpty(t, client.headers["User-Agent"])
}

func TestRequestCarriesSessionCookie(t *testing.T) {
	var cookie, csrf string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie = r.Header.Get("Cookie")
		csrf = r.Header.Get("Csrf-Token")
		w.Write([]byte("<html><h1>Jane Doe</h1></html>"))
	}))

	_, err := client.FetchProfile(context.Background(), "jane-doe")
	require.NoError(t, err)
	assert.Contains(t, cookie, "li_at="+testToken)
	assert.Contains(t, cookie, "JSESSIONID=\"ajax:")
	assert.Empty(t, csrf, "reads do not send a csrf header")
}

func TestFetchProfile(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/in/jane-doe/", r.URL.Path)
		w.Write([]byte(profileFixture))
	}))

	profile, err := client.FetchProfile(context.Background(), "https://www.linkedin.com/in/jane-doe?trk=x")
	require.NoError(t, err)
	assert.Equal(t, "https://www.linkedin.com/in/jane-doe", profile.ProfileURL)
	assert.Equal(t, "Jane Doe", profile.Name)
	assert.Equal(t, "Staff Engineer at Initech", profile.Headline)
	assert.Equal(t, 500, profile.ConnectionCount)
}

func TestFetchProfileInvalidURL(t *testing.T) {
	client, _ := newTestClient(t, http.NotFoundHandler())

	_, err := client.FetchProfile(context.Background(), "https://example.com/in/jane")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   errs.Kind
	}{
		{"not found", http.StatusNotFound, errs.KindNotFound},
		{"too many requests", http.StatusTooManyRequests, errs.KindRateLimited},
		{"linkedin throttle", 999, errs.KindRateLimited},
		{"server error", http.StatusBadGateway, errs.KindTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, src := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			_, err := client.FetchProfile(context.Background(), "jane-doe")
			require.Error(t, err)
			assert.True(t, errs.IsKind(err, tt.kind), "got %v", err)
			assert.Empty(t, src.invalidated)
		})
	}
}

func TestTransportFailuresAreRetried(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(profileFixture))
	}))

	profile, err := client.FetchProfile(context.Background(), "jane-doe")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", profile.Name)
	assert.Equal(t, 3, calls)
}

func TestRateLimitIsNotRetried(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.FetchProfile(context.Background(), "jane-doe")
	assert.True(t, errs.IsKind(err, errs.KindRateLimited))
	assert.Equal(t, 1, calls)
}

func TestUnauthorizedInvalidatesCredential(t *testing.T) {
	client, src := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.FetchProfile(context.Background(), "jane-doe")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindUnauthorized))
	assert.Len(t, src.invalidated, 1)

	// with the credential gone no request is made
	_, err = client.FetchProfile(context.Background(), "jane-doe")
	assert.True(t, errs.IsKind(err, errs.KindUnauthorized))
	assert.Len(t, src.invalidated, 1)
}

func TestLoginWallIsUnauthorized(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/in/jane-doe/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/authwall?trk=abc", http.StatusFound)
	})
	mux.HandleFunc("/authwall", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>Sign in</html>"))
	})
	client, src := newTestClient(t, mux)

	_, err := client.FetchProfile(context.Background(), "jane-doe")
	assert.True(t, errs.IsKind(err, errs.KindUnauthorized))
	assert.Len(t, src.invalidated, 1)
}

func TestVerifySession(t *testing.T) {
	client, src := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, FeedPath, r.URL.Path)
		if strings.Contains(r.Header.Get("Cookie"), "li_at="+testToken) {
			w.Write([]byte("<html>feed</html>"))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))

	assert.NoError(t, client.VerifySession(context.Background(), testToken))

	err := client.VerifySession(context.Background(), "AQEDARcWnotTheRightTokenAtAll")
	assert.True(t, errs.IsKind(err, errs.KindUnauthorized))
	assert.Empty(t, src.invalidated, "verification leaves the active credential alone")
}

func TestConnect(t *testing.T) {
	var got invitationRequest
	var csrf string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, InvitationPath, r.URL.Path)
		csrf = r.Header.Get("Csrf-Token")
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusCreated)
	}))

	note := strings.Repeat("é", MaxNoteLength+20)
	err := client.Connect(context.Background(), "https://www.linkedin.com/in/jane-doe/", note)
	require.NoError(t, err)

	assert.Equal(t, "jane-doe", got.Invitee.Profile.ProfileID)
	assert.NotEmpty(t, got.TrackingID)
	assert.Equal(t, MaxNoteLength, len([]rune(got.Message)))
	assert.True(t, strings.HasPrefix(csrf, "ajax:"))
}

func TestConnectIsNotRetried(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))

	err := client.Connect(context.Background(), "jane-doe", "")
	assert.True(t, errs.IsKind(err, errs.KindTransport))
	assert.Equal(t, 1, calls)
}

func TestMessage(t *testing.T) {
	var got conversationRequest
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ConversationPath, r.URL.Path)
		assert.Equal(t, "create", r.URL.Query().Get("action"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))

	require.NoError(t, client.Message(context.Background(), "jane-doe", "Hi Jane"))
	assert.Equal(t, []string{"jane-doe"}, got.ConversationCreate.Recipients)
	assert.Equal(t, "Hi Jane", got.ConversationCreate.EventCreate.Value.MessageCreate.Body)

	err := client.Message(context.Background(), "jane-doe", "   ")
	assert.ErrorIs(t, err, errs.ErrEmptyMessage)
	assert.False(t, errs.IsKind(err, errs.KindTransport))
}

func TestFetchFollowersPage(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/in/acme-founder/followers/", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		w.Write([]byte(followersFixture))
	}))

	page, err := client.FetchFollowersPage(context.Background(), "acme-founder", "2")
	require.NoError(t, err)
	require.Len(t, page.Profiles, 2)
	assert.Equal(t, 42, page.TotalCount)
	assert.Equal(t, "3", page.NextCursor)
}

func TestContextCancellation(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(profileFixture))
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchProfile(ctx, "jane-doe")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindTransport))
}

package panel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// panelStub simulates the Marzban HTTP API for client tests.
type panelStub struct {
	mux       *http.ServeMux
	authCalls int
	userCalls int

	// userResponses is consumed one per /api/user/ GET; the last entry
	// repeats once exhausted.
	userResponses []func(w http.ResponseWriter)
}

func newPanelStub() *panelStub {
	s := &panelStub{mux: http.NewServeMux()}
	s.mux.HandleFunc("/api/admin/token", func(w http.ResponseWriter, r *http.Request) {
		s.authCalls++
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123"})
	})
	s.mux.HandleFunc("/api/user/", func(w http.ResponseWriter, r *http.Request) {
		s.userCalls++
		idx := s.userCalls - 1
		if idx >= len(s.userResponses) {
			idx = len(s.userResponses) - 1
		}
		s.userResponses[idx](w)
	})
	return s
}

func respondUser(u marzbanUser) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		json.NewEncoder(w).Encode(u)
	}
}

func respondStatus(code int) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.WriteHeader(code)
	}
}

func newTestClient(t *testing.T, stub *panelStub) (*MarzbanClient, *[]time.Duration) {
	t.Helper()
	srv := httptest.NewServer(stub.mux)
	t.Cleanup(srv.Close)

	var sleeps []time.Duration
	c := NewMarzbanClient(srv.URL, "admin", "secret", true).WithRetryPolicy(RetryPolicy{
		Attempts: 3,
		Delay:    2 * time.Second,
		Sleep:    func(d time.Duration) { sleeps = append(sleeps, d) },
	})
	return c, &sleeps
}

func TestGetUserNotFound(t *testing.T) {
	tests := []struct {
		name    string
		respond func(w http.ResponseWriter)
	}{
		{"http 404", respondStatus(http.StatusNotFound)},
		{"detail body", respondUser(marzbanUser{Detail: "User not found"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := newPanelStub()
			stub.userResponses = []func(http.ResponseWriter){tt.respond}
			c, _ := newTestClient(t, stub)

			user, err := c.GetUser(context.Background(), "qwqvpn_1")
			if err != nil {
				t.Fatalf("missing account must not be an error: %v", err)
			}
			if user != nil {
				t.Fatalf("user = %+v, want nil", user)
			}
		})
	}
}

func TestGetUserParsesOptionalFields(t *testing.T) {
	limit := int64(5 << 30)
	expire := int64(1790000000)
	stub := newPanelStub()
	stub.userResponses = []func(http.ResponseWriter){respondUser(marzbanUser{
		Username:        "qwqvpn_1",
		Status:          "active",
		DataLimit:       &limit,
		Expire:          &expire,
		SubscriptionURL: "https://p/sub/x",
	})}
	c, _ := newTestClient(t, stub)

	user, err := c.GetUser(context.Background(), "qwqvpn_1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if user.DataLimit != limit || user.ExpireAt != expire {
		t.Errorf("parsed %d/%d, want %d/%d", user.DataLimit, user.ExpireAt, limit, expire)
	}
	if user.SubURL != "https://p/sub/x" {
		t.Errorf("sub url = %q", user.SubURL)
	}

	// Absent optional fields fall back to zero, meaning unlimited/no expiry.
	stub.userResponses = []func(http.ResponseWriter){respondUser(marzbanUser{
		Username: "qwqvpn_1", Status: "active",
	})}
	stub.userCalls = 0
	user, err = c.GetUser(context.Background(), "qwqvpn_1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if user.DataLimit != 0 || user.ExpireAt != 0 {
		t.Errorf("absent fields should parse as zero, got %d/%d", user.DataLimit, user.ExpireAt)
	}
}

func TestSubscriptionLinkRetriesUntilProvisioned(t *testing.T) {
	stub := newPanelStub()
	stub.userResponses = []func(http.ResponseWriter){
		respondUser(marzbanUser{Username: "qwqvpn_1", Status: "active"}), // no URL yet
		respondUser(marzbanUser{Username: "qwqvpn_1", Status: "active", SubscriptionURL: "https://p/sub/ready"}),
	}
	c, sleeps := newTestClient(t, stub)

	link, err := c.GetSubscriptionLink(context.Background(), "qwqvpn_1")
	if err != nil {
		t.Fatalf("GetSubscriptionLink: %v", err)
	}
	if link != "https://p/sub/ready" {
		t.Errorf("link = %q", link)
	}
	if stub.userCalls != 2 {
		t.Errorf("expected success on attempt 2 to stop retrying, got %d calls", stub.userCalls)
	}
	if len(*sleeps) != 1 || (*sleeps)[0] != 2*time.Second {
		t.Errorf("expected one 2s sleep between attempts, got %v", *sleeps)
	}
}

func TestSubscriptionLinkExhaustsRetries(t *testing.T) {
	stub := newPanelStub()
	stub.userResponses = []func(http.ResponseWriter){
		respondUser(marzbanUser{Username: "qwqvpn_1", Status: "active"}),
	}
	c, sleeps := newTestClient(t, stub)

	_, err := c.GetSubscriptionLink(context.Background(), "qwqvpn_1")
	if err == nil {
		t.Fatal("expected failure after exhausted retries")
	}
	if stub.userCalls != 3 {
		t.Errorf("attempts = %d, want 3", stub.userCalls)
	}
	// No sleep after the final attempt.
	if len(*sleeps) != 2 {
		t.Errorf("sleeps = %d, want 2", len(*sleeps))
	}
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
}

func TestTokenRenewalWindow(t *testing.T) {
	stub := newPanelStub()
	stub.userResponses = []func(http.ResponseWriter){
		respondUser(marzbanUser{Username: "qwqvpn_1", Status: "active", SubscriptionURL: "https://p/s"}),
	}
	c, _ := newTestClient(t, stub)

	current := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	if _, err := c.GetUser(context.Background(), "qwqvpn_1"); err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if stub.authCalls != 1 {
		t.Fatalf("auth calls = %d, want 1", stub.authCalls)
	}

	// Well inside the token lifetime: no re-auth.
	current = current.Add(10 * time.Hour)
	if _, err := c.GetUser(context.Background(), "qwqvpn_1"); err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if stub.authCalls != 1 {
		t.Errorf("auth calls = %d, want 1 (token still fresh)", stub.authCalls)
	}

	// Inside the final hour of the 23h lifetime: renew before use.
	current = current.Add(12*time.Hour + 30*time.Minute)
	if _, err := c.GetUser(context.Background(), "qwqvpn_1"); err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if stub.authCalls != 2 {
		t.Errorf("auth calls = %d, want 2 (renewal window reached)", stub.authCalls)
	}
}

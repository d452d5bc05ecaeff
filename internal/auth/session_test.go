package auth

import (
	"strings"
	"testing"
	"time"
)

// newTestSessionService creates a SessionService for testing.
// It uses a fixed, known secret so tests are deterministic.
func newTestSessionService(t *testing.T) *SessionService {
	t.Helper()
	s, err := NewSessionService("test-secret-at-least-16-chars!!", 7*24*time.Hour)
	if err != nil {
		t.Fatalf("NewSessionService: %v", err)
	}
	return s
}

func testSession() Session {
	return Session{
		UserID:      "user-abc-123",
		Email:       "jane@example.com",
		Name:        "Jane Doe",
		AccessToken: "li-access-token-xyz",
	}
}

// =========================================================================
// CONSTRUCTION TESTS
// =========================================================================

func TestNewSessionService_ShortSecret(t *testing.T) {
	_, err := NewSessionService("short", time.Hour)
	if err == nil {
		t.Fatal("NewSessionService() should reject secrets shorter than 16 chars")
	}
}

func TestNewSessionService_ZeroTTL(t *testing.T) {
	_, err := NewSessionService("this-is-16-chars", 0)
	if err == nil {
		t.Fatal("NewSessionService() should reject a non-positive TTL")
	}
}

// =========================================================================
// ISSUE TESTS
// =========================================================================

func TestIssue_ReturnsWellFormedToken(t *testing.T) {
	s := newTestSessionService(t)

	token, err := s.Issue(testSession())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if token == "" {
		t.Error("Issue() returned empty token")
	}

	// JWT tokens have 3 dot-separated parts: header.payload.signature
	if parts := strings.Split(token, "."); len(parts) != 3 {
		t.Errorf("Issue() token doesn't look like a JWT (got %d parts, want 3)", len(parts))
	}
}

func TestIssue_EmptySubjectRejected(t *testing.T) {
	s := newTestSessionService(t)

	_, err := s.Issue(Session{Email: "jane@example.com"})
	if err == nil {
		t.Fatal("Issue() should reject a session with no user ID")
	}
}

// =========================================================================
// VERIFY TESTS
// =========================================================================

func TestVerify_RoundTrip(t *testing.T) {
	s := newTestSessionService(t)
	want := testSession()

	token, err := s.Issue(want)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	// Verify should return exactly the claims we put in
	got, err := s.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got.UserID != want.UserID {
		t.Errorf("UserID = %q, want %q", got.UserID, want.UserID)
	}
	if got.Email != want.Email {
		t.Errorf("Email = %q, want %q", got.Email, want.Email)
	}
	if got.Name != want.Name {
		t.Errorf("Name = %q, want %q", got.Name, want.Name)
	}
	if got.AccessToken != want.AccessToken {
		t.Errorf("AccessToken = %q, want %q", got.AccessToken, want.AccessToken)
	}
}

func TestVerify_ExpiredToken(t *testing.T) {
	s := newTestSessionService(t)

	// Mint a token that expired 1 second ago. The signature is perfectly
	// valid — only the expiry check should reject it.
	token, err := s.IssueWithDuration(testSession(), -1*time.Second)
	if err != nil {
		t.Fatalf("IssueWithDuration() error = %v", err)
	}

	_, err = s.Verify(token)
	if err == nil {
		t.Fatal("Verify() should return an error for an expired token")
	}
	t.Logf("Expired token error (expected): %v", err)
}

func TestVerify_TamperedToken(t *testing.T) {
	s := newTestSessionService(t)

	token, _ := s.Issue(testSession())

	// Flip a character in the signature (the segment after the 2nd dot).
	// Any change to any byte must invalidate the HMAC.
	lastDot := strings.LastIndex(token, ".")
	sig := token[lastDot+1:]
	flipped := "A"
	if sig[0] == 'A' {
		flipped = "B"
	}
	tampered := token[:lastDot+1] + flipped + sig[1:]

	if _, err := s.Verify(tampered); err == nil {
		t.Fatal("Verify() should reject a token with a tampered signature")
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	s1 := newTestSessionService(t)
	s2, err := NewSessionService("a-completely-different-secret!!", time.Hour)
	if err != nil {
		t.Fatalf("NewSessionService: %v", err)
	}

	token, _ := s1.Issue(testSession())

	if _, err := s2.Verify(token); err == nil {
		t.Fatal("Verify() should reject a token signed with a different secret")
	}
}

func TestVerify_Garbage(t *testing.T) {
	s := newTestSessionService(t)

	for _, tokenStr := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := s.Verify(tokenStr); err == nil {
			t.Errorf("Verify(%q) should fail", tokenStr)
		}
	}
}

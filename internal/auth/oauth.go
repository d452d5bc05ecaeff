package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/linkedin"
)

// userInfoURL is LinkedIn's OpenID Connect userinfo endpoint. Requires the
// "openid profile email" scopes granted during authorization.
const userInfoURL = "https://api.linkedin.com/v2/userinfo"

// LinkedInUser is the portion of the userinfo response we care about.
// LinkedIn returns a larger object — we only unmarshal the fields we need.
type LinkedInUser struct {
	Sub     string `json:"sub"`     // LinkedIn's stable member identifier
	Name    string `json:"name"`    // Localized full name
	Email   string `json:"email"`   // Primary email address
	Picture string `json:"picture"` // Profile picture URL (may be empty)

	// AccessToken is filled in by Exchange, not by LinkedIn's JSON. The
	// callback handler embeds it in the session so later publish actions can
	// act on the member's behalf.
	AccessToken string `json:"-"`
}

// LinkedInProvider wraps golang.org/x/oauth2 for the LinkedIn Authorization
// Code flow.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
// 1. Our server redirects the user to LinkedIn's authorization endpoint,
//    with our ClientID and the requested scopes.
// 2. The user approves (or denies) the request on LinkedIn.
// 3. LinkedIn redirects back to our RedirectURI with a short-lived "code".
// 4. Our server exchanges the code for an access token (server-to-server).
// 5. Our server uses the access token to fetch the member's profile.
//
// WHY SERVER-SIDE EXCHANGE?
// The code-for-token exchange happens server-to-server, using the
// ClientSecret. The secret and the access token never touch the browser.
type LinkedInProvider struct {
	config      *oauth2.Config
	userInfoURL string
}

// NewLinkedInProvider creates a LinkedInProvider with the given credentials.
//
// redirectURI must EXACTLY match one of the authorized redirect URLs
// configured on the LinkedIn developer app — LinkedIn rejects the callback
// otherwise.
//
// Scopes we request:
//   - "openid", "profile", "email" — OpenID Connect identity (sub, name, email)
//   - "w_member_social"            — permission to publish posts on the
//     member's behalf (used by the publish automation downstream)
func NewLinkedInProvider(clientID, clientSecret, redirectURI string) *LinkedInProvider {
	return &LinkedInProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       []string{"openid", "profile", "email", "w_member_social"},
			Endpoint:     linkedin.Endpoint, // pre-defined LinkedIn OAuth endpoints
		},
		userInfoURL: userInfoURL,
	}
}

// AuthURL returns the URL to redirect the user to for authorization.
//
// STATE PARAMETER:
// The state is a random nonce we generate and store in a cookie before
// redirecting. When LinkedIn calls back, the handler verifies the returned
// state matches the cookie. This prevents CSRF attacks where an attacker
// tricks a victim's browser into completing an OAuth flow the victim never
// started.
func (p *LinkedInProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange completes the OAuth flow: trades the authorization code for a
// LinkedIn member profile plus the access token. This is the core of the
// callback handler.
//
// Steps:
//  1. Exchange the code for an OAuth access token (server-to-server)
//  2. Use the token to call LinkedIn's userinfo endpoint
//  3. Unmarshal the response into a LinkedInUser
//
// Both network calls are bounded by ctx — the caller passes the request
// context so an abandoned callback doesn't hold a connection open.
func (p *LinkedInProvider) Exchange(ctx context.Context, code string) (*LinkedInUser, error) {
	// Step 1: authorization code → OAuth access token.
	// This POSTs to LinkedIn's token endpoint using our ClientSecret.
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// Step 2: call the userinfo endpoint with the token.
	// oauth2.Config.Client returns an *http.Client that automatically adds
	// the "Authorization: Bearer <token>" header to every request.
	client := p.config.Client(ctx, oauthToken)

	resp, err := client.Get(p.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("auth: fetching LinkedIn profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: LinkedIn userinfo returned status %d", resp.StatusCode)
	}

	// Step 3: unmarshal the JSON response
	var liUser LinkedInUser
	if err := json.NewDecoder(resp.Body).Decode(&liUser); err != nil {
		return nil, fmt.Errorf("auth: decoding LinkedIn userinfo response: %w", err)
	}

	if liUser.Sub == "" {
		return nil, fmt.Errorf("auth: LinkedIn returned a profile with no subject")
	}
	if liUser.Email == "" {
		// The email scope can be granted but unfilled for some member states.
		// Without an email we cannot key the user record, so fail the flow.
		return nil, fmt.Errorf("auth: LinkedIn profile has no email address")
	}

	liUser.AccessToken = oauthToken.AccessToken
	return &liUser, nil
}

// ABOUTME: OAuth2 authorization-code consent flow for interactive sign-in
// ABOUTME: Exchanges a user-approved code and reads the userinfo endpoint

package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Authorizer obtains a user-approved authorization code for the given consent
// URL. It is the pop-up seam: the portal implements it by steering the
// browser, tests implement it directly. Returning ErrConsentDismissed means
// the user closed the consent step.
type Authorizer func(ctx context.Context, consentURL string) (code string, err error)

// OAuthConsent implements ConsentFlow over a standard authorization-code
// exchange followed by a userinfo lookup.
type OAuthConsent struct {
	kind        string
	cfg         *oauth2.Config
	userInfoURL string
	authorize   Authorizer
	logger      *slog.Logger
}

// NewOAuthConsent builds a consent flow for one provider kind.
func NewOAuthConsent(kind string, cfg *oauth2.Config, userInfoURL string, authorize Authorizer) *OAuthConsent {
	return &OAuthConsent{
		kind:        kind,
		cfg:         cfg,
		userInfoURL: userInfoURL,
		authorize:   authorize,
		logger:      slog.Default().With("component", "oauth-consent", "kind", kind),
	}
}

// userInfo is the subset of the userinfo response this flow consumes.
// Providers disagree on the id field name, so both are accepted.
type userInfo struct {
	Sub     string `json:"sub"`
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// Authorize runs the consent exchange and returns identity facts. It commits
// nothing: dismissal or failure at any step leaves no trace.
func (c *OAuthConsent) Authorize(ctx context.Context) (*Identity, error) {
	state := uuid.New().String()
	consentURL := c.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline)

	code, err := c.authorize(ctx, consentURL)
	if err != nil {
		return nil, err
	}

	token, err := c.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: token exchange: %v", ErrProviderUnavailable, err)
	}

	info, err := c.fetchUserInfo(ctx, token)
	if err != nil {
		return nil, err
	}

	subject := info.Sub
	if subject == "" {
		subject = info.ID
	}
	if subject == "" || info.Email == "" {
		return nil, fmt.Errorf("%w: userinfo missing subject or email", ErrProviderUnavailable)
	}

	c.logger.Info("consent completed", "subject", subject)
	return &Identity{
		AccountID:   c.kind + ":" + subject,
		Email:       info.Email,
		DisplayName: info.Name,
		AvatarURL:   info.Picture,
	}, nil
}

func (c *OAuthConsent) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*userInfo, error) {
	client := c.cfg.Client(ctx, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building userinfo request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: userinfo: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: userinfo returned %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: decoding userinfo: %v", ErrProviderUnavailable, err)
	}
	return &info, nil
}

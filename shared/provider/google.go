package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

var (
	ErrInvalidGoogleAudience = errors.New("invalid google audience")
	ErrInvalidGoogleToken    = errors.New("invalid google access token")
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v1/userinfo"

// GoogleUserInfo carries the identity attributes confirmed by Google for an
// access token.
type GoogleUserInfo struct {
	Email         string
	Name          string
	Picture       string
	Subject       string
	EmailVerified bool
}

// GoogleVerifier exchanges a Google access token for verified identity
// attributes.
type GoogleVerifier interface {
	Verify(ctx context.Context, accessToken string) (*GoogleUserInfo, error)
}

// GoogleOAuthProvider verifies access tokens against Google's tokeninfo and
// userinfo endpoints.
type GoogleOAuthProvider struct {
	clientID string
	client   *http.Client
}

// NewGoogleOAuthProvider creates a verifier bound to the given OAuth client
// id. An empty client id skips the audience check.
func NewGoogleOAuthProvider(clientID string) *GoogleOAuthProvider {
	return &GoogleOAuthProvider{
		clientID: clientID,
		client:   &http.Client{},
	}
}

// Verify validates the access token with Google and returns the token
// holder's identity attributes.
func (p *GoogleOAuthProvider) Verify(ctx context.Context, accessToken string) (*GoogleUserInfo, error) {
	tokenInfo, err := p.validateAccessToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	userInfo, err := p.fetchUserInfo(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	return &GoogleUserInfo{
		Email:         userInfo.Email,
		Name:          userInfo.Name,
		Picture:       userInfo.Picture,
		Subject:       userInfo.Id,
		EmailVerified: tokenInfo.VerifiedEmail,
	}, nil
}

func (p *GoogleOAuthProvider) validateAccessToken(ctx context.Context, accessToken string) (*oauth2.Tokeninfo, error) {
	oauth2Service, err := oauth2.NewService(ctx, option.WithHTTPClient(p.client))
	if err != nil {
		return nil, err
	}

	tokenInfoCall := oauth2Service.Tokeninfo()
	tokenInfoCall.AccessToken(accessToken)
	tokenInfo, err := tokenInfoCall.Context(ctx).Do()
	if err != nil {
		return nil, ErrInvalidGoogleToken
	}

	if p.clientID != "" && tokenInfo.Audience != p.clientID {
		return nil, ErrInvalidGoogleAudience
	}

	return tokenInfo, nil
}

func (p *GoogleOAuthProvider) fetchUserInfo(ctx context.Context, accessToken string) (*oauth2.Userinfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleUserInfoURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrInvalidGoogleToken
	}

	var userInfo oauth2.Userinfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return nil, err
	}

	return &userInfo, nil
}

package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/you/go-flight-aggregator/internal/token"
)

// TBOAuthenticator performs TBO's session login. TBO wants the caller IP in the
// payload and invalidates sessions early, hence the conservative default TTL.
type TBOAuthenticator struct {
	Host      string
	ClientID  string
	Username  string
	Password  string
	EndUserIP string
	Client    *http.Client
}

func (a *TBOAuthenticator) Provider() string { return "tbo" }

func (a *TBOAuthenticator) Authenticate(ctx context.Context) (token.Credential, error) {
	payload := map[string]string{
		"ClientId":  a.ClientID,
		"UserName":  a.Username,
		"Password":  a.Password,
		"EndUserIp": a.EndUserIP,
	}
	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.Host+"/api/v1/Authenticate", bytes.NewReader(b))
	if err != nil {
		return token.Credential{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient().Do(req)
	if err != nil {
		return token.Credential{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return token.Credential{}, &token.AuthError{Provider: "tbo", Message: resp.Status}
	}

	var out struct {
		Status  int    `json:"Status"`
		TokenId string `json:"TokenId"`
		Error   struct {
			ErrorCode    int    `json:"ErrorCode"`
			ErrorMessage string `json:"ErrorMessage"`
		} `json:"Error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return token.Credential{}, &token.AuthError{Provider: "tbo", Message: err.Error()}
	}
	if out.TokenId == "" || out.Error.ErrorCode != 0 {
		return token.Credential{}, &token.AuthError{Provider: "tbo", Message: out.Error.ErrorMessage}
	}
	// TBO does not state a TTL; the manager applies its conservative default.
	return token.Credential{Token: out.TokenId}, nil
}

func (a *TBOAuthenticator) httpClient() *http.Client {
	if a.Client != nil {
		return a.Client
	}
	return http.DefaultClient
}

// AmadeusAuthenticator runs the OAuth2 client-credentials flow, deriving expiry
// from the stated expires_in.
type AmadeusAuthenticator struct {
	Host         string
	ClientID     string
	ClientSecret string
	Client       *http.Client
}

func (a *AmadeusAuthenticator) Provider() string { return "amadeus" }

func (a *AmadeusAuthenticator) Authenticate(ctx context.Context) (token.Credential, error) {
	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", a.ClientID)
	data.Set("client_secret", a.ClientSecret)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.Host+"/v1/security/oauth2/token", strings.NewReader(data.Encode()))
	if err != nil {
		return token.Credential{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return token.Credential{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return token.Credential{}, &token.AuthError{Provider: "amadeus", Message: resp.Status}
	}

	var tr struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return token.Credential{}, &token.AuthError{Provider: "amadeus", Message: err.Error()}
	}
	if tr.AccessToken == "" {
		return token.Credential{}, &token.AuthError{Provider: "amadeus", Message: "empty access token"}
	}
	cred := token.Credential{Token: tr.AccessToken, IssuedAt: time.Now()}
	if tr.ExpiresIn > 0 {
		cred.ExpiresAt = cred.IssuedAt.Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return cred, nil
}

// StaticKeyAuthenticator wraps providers that only want an API key header.
// The "token" never expires on our side; a rejection surfaces as AuthError.
type StaticKeyAuthenticator struct {
	ProviderID string
	APIKey     string
}

func (a *StaticKeyAuthenticator) Provider() string { return a.ProviderID }

func (a *StaticKeyAuthenticator) Authenticate(_ context.Context) (token.Credential, error) {
	if a.APIKey == "" {
		return token.Credential{}, &token.AuthError{Provider: a.ProviderID, Message: "missing API key"}
	}
	return token.Credential{
		Token:     a.APIKey,
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(365 * 24 * time.Hour),
	}, nil
}

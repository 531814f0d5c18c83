package linkedin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"social-link-bot/internal/apperr"
	"social-link-bot/internal/metrics"
	"social-link-bot/internal/models"
	"social-link-bot/internal/result"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	DefaultUserInfoURL = "https://api.linkedin.com/v2/userinfo"

	stageToken   = "token"
	stageProfile = "profile"
)

// DefaultScopes are the OpenID Connect scopes requested on authorization.
var DefaultScopes = []string{"openid", "profile", "email"}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// Endpoint and UserInfoURL default to LinkedIn's production URLs.
	Endpoint    oauth2.Endpoint
	UserInfoURL string

	HTTPClient *http.Client
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger
}

// AuthRequest carries the authorization code returned on the redirect.
type AuthRequest struct {
	Code string
}

// OAuth completes LinkedIn's authorization-code grant.
type OAuth struct {
	OAuthConfig *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
	metrics     *metrics.Metrics
	log         zerolog.Logger
}

func NewOAuth(cfg Config) *OAuth {
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" || endpoint.TokenURL == "" {
		endpoint = endpoints.LinkedIn
	}
	// LinkedIn wants client credentials in the form body.
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	userInfo := cfg.UserInfoURL
	if userInfo == "" {
		userInfo = DefaultUserInfoURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &OAuth{
		OAuthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       scopes,
			RedirectURL:  cfg.RedirectURL,
		},
		userInfoURL: userInfo,
		httpClient:  client,
		metrics:     cfg.Metrics,
		log:         cfg.Logger.With().Str("component", "linkedin").Logger(),
	}
}

// AuthURL builds the authorization URL the user opens to grant access.
func (o *OAuth) AuthURL(state string) string {
	return o.OAuthConfig.AuthCodeURL(state)
}

// Authenticate exchanges the code for a token and fetches the member's profile.
// A failed exchange is returned as is; the profile endpoint is not called.
func (o *OAuth) Authenticate(ctx context.Context, req AuthRequest) result.Result[*models.OAuthProfile[models.LinkedInProfile]] {
	token := o.exchange(ctx, req.Code)
	if token.IsFailure() {
		return result.Cast[*models.OAuthProfile[models.LinkedInProfile]](token)
	}
	return o.profile(ctx, token.Data())
}

func (o *OAuth) exchange(ctx context.Context, code string) result.Result[*oauth2.Token] {
	const op = "linkedin.accessToken"
	if strings.TrimSpace(code) == "" {
		return result.Fail[*oauth2.Token](apperr.InvalidInput(op, "authorization code is empty"))
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
	token, err := o.OAuthConfig.Exchange(ctx, code)
	o.metrics.RecordOAuth(stageToken, err)
	if err != nil {
		e := classifyTokenError(op, err)
		o.log.Error().Err(e).Interface("details", e.Details).Msg("error getting LinkedIn access token")
		return result.Fail[*oauth2.Token](e)
	}

	o.log.Info().Time("expires_at", token.Expiry).Msg("LinkedIn access token obtained")
	return result.Success(token)
}

func (o *OAuth) profile(ctx context.Context, token *oauth2.Token) result.Result[*models.OAuthProfile[models.LinkedInProfile]] {
	const op = "linkedin.userinfo"
	fail := func(e *apperr.Error) result.Result[*models.OAuthProfile[models.LinkedInProfile]] {
		o.metrics.RecordOAuth(stageProfile, e)
		o.log.Error().Err(e).Interface("details", e.Details).Msg("error getting LinkedIn profile")
		return result.Fail[*models.OAuthProfile[models.LinkedInProfile]](e)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.userInfoURL, nil)
	if err != nil {
		return fail(apperr.InvalidInput(op, err.Error()))
	}
	token.SetAuthHeader(req)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fail(apperr.Network(op, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fail(apperr.Network(op, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(apperr.Provider(op, resp.StatusCode, fmt.Sprintf("userinfo returned %s", resp.Status), decodeBody(body)))
	}

	var p models.LinkedInProfile
	if err := json.Unmarshal(body, &p); err != nil {
		return fail(apperr.Provider(op, resp.StatusCode, "malformed userinfo response", string(body)))
	}
	if p.Sub == "" {
		return fail(apperr.Provider(op, resp.StatusCode, "userinfo response has no subject", decodeBody(body)))
	}

	o.metrics.RecordOAuth(stageProfile, nil)
	o.log.Info().Str("sub", p.Sub).Msg("LinkedIn profile fetched")

	return result.Success(&models.OAuthProfile[models.LinkedInProfile]{
		Provider:    models.ProviderLinkedIn,
		Profile:     p,
		AccessToken: token.AccessToken,
		ExpiresAt:   token.Expiry,
	})
}

// classifyTokenError prefers LinkedIn's structured error body over the transport message.
func classifyTokenError(op string, err error) *apperr.Error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return apperr.Network(op, err)
	}

	status := 0
	if re.Response != nil {
		status = re.Response.StatusCode
	}
	details := decodeBody(re.Body)
	msg := re.ErrorDescription
	if msg == "" {
		msg = re.ErrorCode
	}
	if msg == "" {
		msg = fmt.Sprintf("token endpoint returned status %d", status)
	}

	switch re.ErrorCode {
	case "invalid_grant", "invalid_request":
		e := apperr.InvalidCode(op, msg, details)
		e.Code = status
		return e
	}
	return apperr.Provider(op, status, msg, details)
}

// decodeBody returns the JSON value of body, or its text when it is not JSON.
func decodeBody(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return strings.TrimSpace(string(body))
	}
	return v
}

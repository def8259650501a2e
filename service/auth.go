package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/zlnvch/layerdeck/models"
	"github.com/zlnvch/layerdeck/store"
)

const tokenLifetime = 24 * time.Hour

// Provider-specific structs
type gitHubUser struct {
	Login string `json:"login"`
	ID    int    `json:"id"`
}

type googleUser struct {
	Email string `json:"email"`
	Sub   string `json:"sub"`
}

type OAuthAPI struct {
	URL     string
	Headers map[string]string
}

func defaultOAuthAPIs() map[string]OAuthAPI {
	return map[string]OAuthAPI{
		"github": {
			URL: "https://api.github.com/user",
			Headers: map[string]string{
				"X-GitHub-Api-Version": "2022-11-28",
			},
		},
		"google": {
			URL:     "https://openidconnect.googleapis.com/v1/userinfo",
			Headers: map[string]string{},
		},
	}
}

var oauthConfigsTemplate = map[string]*oauth2.Config{
	"github": {
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://github.com/login/oauth/authorize",
			TokenURL: "https://github.com/login/oauth/access_token",
		},
		Scopes: []string{""},
	},
	"google": {
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		},
		Scopes: []string{"openid", "email"},
	},
}

// addOauthEndpointsAndScopes fills in provider endpoints that were not set
func addOauthEndpointsAndScopes(oauthConfigs map[string]*oauth2.Config) (map[string]*oauth2.Config, error) {
	for provider, conf := range oauthConfigs {
		template, ok := oauthConfigsTemplate[provider]
		if !ok {
			return nil, fmt.Errorf("unsupported provider: %s", provider)
		}
		if conf.Endpoint.TokenURL == "" {
			conf.Endpoint = template.Endpoint
		}
		if len(conf.Scopes) == 0 {
			conf.Scopes = template.Scopes
		}
	}

	return oauthConfigs, nil
}

func (s *Service) HandleOauth(ctx context.Context, provider string, code string) (models.Owner, error) {
	conf, ok := s.OAuthConfigs[provider]
	if !ok {
		return models.Owner{}, fmt.Errorf("unsupported provider: %s", provider)
	}
	api, ok := s.OAuthAPIs[provider]
	if !ok {
		return models.Owner{}, fmt.Errorf("unsupported provider: %s", provider)
	}

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		log.Printf("Token exchange with %s failed: %v", provider, err)
		return models.Owner{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, api.URL, nil)
	if err != nil {
		return models.Owner{}, err
	}
	for k, v := range api.Headers {
		req.Header.Set(k, v)
	}

	resp, err := conf.Client(ctx, tok).Do(req)
	if err != nil {
		log.Printf("User info request to %s failed: %v", provider, err)
		return models.Owner{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Owner{}, fmt.Errorf("user info request to %s failed: status %d", provider, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Owner{}, err
	}

	return parseOwner(body, provider)
}

func parseOwner(jsonData []byte, provider string) (models.Owner, error) {
	o := models.Owner{Provider: provider}

	switch provider {
	case "github":
		var gh gitHubUser
		if err := json.Unmarshal(jsonData, &gh); err != nil {
			return models.Owner{}, err
		}
		if gh.ID == 0 {
			return models.Owner{}, errors.New("github user without id")
		}
		o.Username = gh.Login
		o.ProviderId = strconv.Itoa(gh.ID)
	case "google":
		var g googleUser
		if err := json.Unmarshal(jsonData, &g); err != nil {
			return models.Owner{}, err
		}
		if g.Sub == "" {
			return models.Owner{}, errors.New("google user without sub")
		}
		o.Username = g.Email
		o.ProviderId = g.Sub
	default:
		return models.Owner{}, fmt.Errorf("unsupported provider: %s", provider)
	}

	return o, nil
}

// Claims identify the owner a token was issued to
type Claims struct {
	Id         string
	Provider   string
	ProviderId string
	Expiry     time.Time
}

func (s *Service) CreateJWT(id string, provider string, providerId string) (string, error) {
	return s.CreateJWTWithLifetime(id, provider, providerId, tokenLifetime)
}

func (s *Service) CreateJWTWithLifetime(id string, provider string, providerId string, lifetime time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"id":         id,
		"provider":   provider,
		"providerId": providerId,
		"exp":        now.Add(lifetime).Unix(),
		"iat":        now.Unix(),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.JWTSecret)
}

func (s *Service) VerifyJWT(tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return s.JWTSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return Claims{}, err
	}
	if !token.Valid {
		return Claims{}, errors.New("invalid token")
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, errors.New("invalid token claims")
	}

	var c Claims
	for name, dst := range map[string]*string{"id": &c.Id, "provider": &c.Provider, "providerId": &c.ProviderId} {
		v, ok := mapClaims[name].(string)
		if !ok {
			return Claims{}, fmt.Errorf("missing %s claim", name)
		}
		*dst = v
	}

	exp, err := mapClaims.GetExpirationTime()
	if err != nil || exp == nil {
		return Claims{}, errors.New("missing exp claim")
	}
	c.Expiry = exp.Time

	return c, nil
}

func (s *Service) AuthenticateToken(ctx context.Context, token string) (models.Owner, error) {
	if len(token) == 0 {
		return models.Owner{}, errors.New("token not provided")
	}

	claims, err := s.VerifyJWT(token)
	if err != nil {
		return models.Owner{}, err
	}

	owner, err := s.Store.GetOwner(ctx, claims.Provider, claims.ProviderId)
	if err != nil {
		return models.Owner{}, err
	}
	if owner.Id != claims.Id {
		// The identity was deleted and signed up again
		return models.Owner{}, store.ErrItemNotFound
	}

	return owner, nil
}

func (s *Service) Login(ctx context.Context, provider, code string) (models.Owner, string, error) {
	owner, err := s.HandleOauth(ctx, provider, code)
	if err != nil {
		return models.Owner{}, "", fmt.Errorf("oauth failed: %w", err)
	}

	existing, err := s.Store.GetOwner(ctx, owner.Provider, owner.ProviderId)
	switch {
	case err == nil:
		owner = existing
	case errors.Is(err, store.ErrItemNotFound):
		owner, err = s.Store.CreateOwner(ctx, owner)
		if err != nil {
			return models.Owner{}, "", fmt.Errorf("create owner failed: %w", err)
		}
	default:
		return models.Owner{}, "", fmt.Errorf("get owner failed: %w", err)
	}

	token, err := s.CreateJWT(owner.Id, owner.Provider, owner.ProviderId)
	if err != nil {
		return models.Owner{}, "", fmt.Errorf("token generation failed: %w", err)
	}

	return owner, token, nil
}

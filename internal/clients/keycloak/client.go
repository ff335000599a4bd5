package keycloak

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/utils"
)

// Sentinel errors the broker branches on. 404 and 409 from the IdP are
// control flow here, not failures.
var (
	ErrNotFound = errors.New("keycloak: not found")
	ErrConflict = errors.New("keycloak: conflict")
)

type TokenPair struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshExpiresIn int    `json:"refresh_expires_in"`
	TokenType        string `json:"token_type"`
}

type IdpUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Enabled  bool   `json:"enabled"`
}

type Userinfo struct {
	Sub               string `json:"sub"`
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
}

// Client is the slice of the IdP admin and token surface the broker consumes.
type Client interface {
	PasswordToken(ctx context.Context, username, password string, staySigned bool) (*TokenPair, error)
	RefreshGrant(ctx context.Context, clientID, refreshToken string) (*TokenPair, error)
	CreateUser(ctx context.Context, username, email, password string) (string, error)
	GetUser(ctx context.Context, userID string) (*IdpUser, error)
	FindUserByEmail(ctx context.Context, email string) (*IdpUser, error)
	SetPassword(ctx context.Context, userID, password string) error
	DeleteUser(ctx context.Context, userID string) error
	GetUserinfo(ctx context.Context, accessToken string) (*Userinfo, error)
	Logout(ctx context.Context, refreshToken string) error
	Impersonate(ctx context.Context, userID string) (*TokenPair, error)
	DefaultClientID() string
	JWKSURL() string
}

type client struct {
	log           *logger.Logger
	http          *http.Client
	baseURL       string
	realm         string
	clientID      string
	clientSecret  string
	staySignedID  string
	adminUser     string
	adminPassword string

	mu         sync.Mutex
	adminTok   string
	adminUntil time.Time
}

func New(log *logger.Logger) (Client, error) {
	baseURL := utils.GetEnv("KEYCLOAK_BASE_URL", "", log)
	if baseURL == "" {
		return nil, fmt.Errorf("missing env var KEYCLOAK_BASE_URL")
	}
	realm := utils.GetEnv("KEYCLOAK_REALM", "likenovel", log)
	return &client{
		log:           log.With("client", "KeycloakClient"),
		http:          &http.Client{Timeout: 10 * time.Second},
		baseURL:       strings.TrimRight(baseURL, "/"),
		realm:         realm,
		clientID:      utils.GetEnv("KEYCLOAK_CLIENT_ID", "likenovel-app", log),
		clientSecret:  utils.GetEnv("KEYCLOAK_CLIENT_SECRET", "", log),
		staySignedID:  utils.GetEnv("KEYCLOAK_STAY_SIGNED_CLIENT_ID", "likenovel-app-long", log),
		adminUser:     utils.GetEnv("KEYCLOAK_ADMIN_USER", "", log),
		adminPassword: utils.GetEnv("KEYCLOAK_ADMIN_PASSWORD", "", log),
	}, nil
}

func (c *client) DefaultClientID() string {
	return c.clientID
}

func (c *client) JWKSURL() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/certs", c.baseURL, c.realm)
}

func (c *client) tokenURL() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", c.baseURL, c.realm)
}

func (c *client) adminURL(path string) string {
	return fmt.Sprintf("%s/admin/realms/%s%s", c.baseURL, c.realm, path)
}

func (c *client) PasswordToken(ctx context.Context, username, password string, staySigned bool) (*TokenPair, error) {
	clientID := c.clientID
	if staySigned {
		clientID = c.staySignedID
	}
	form := url.Values{
		"grant_type": {"password"},
		"client_id":  {clientID},
		"username":   {username},
		"password":   {password},
	}
	if c.clientSecret != "" {
		form.Set("client_secret", c.clientSecret)
	}
	return c.tokenRequest(ctx, form)
}

func (c *client) RefreshGrant(ctx context.Context, clientID, refreshToken string) (*TokenPair, error) {
	if clientID == "" {
		clientID = c.clientID
	}
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {clientID},
		"refresh_token": {refreshToken},
	}
	if c.clientSecret != "" {
		form.Set("client_secret", c.clientSecret)
	}
	return c.tokenRequest(ctx, form)
}

// Impersonate issues tokens for the integrated-ID canonical account via the
// token-exchange grant.
func (c *client) Impersonate(ctx context.Context, userID string) (*TokenPair, error) {
	form := url.Values{
		"grant_type":           {"urn:ietf:params:oauth:grant-type:token-exchange"},
		"client_id":            {c.clientID},
		"client_secret":        {c.clientSecret},
		"requested_subject":    {userID},
		"requested_token_type": {"urn:ietf:params:oauth:token-type:refresh_token"},
	}
	return c.tokenRequest(ctx, form)
}

func (c *client) tokenRequest(ctx context.Context, form url.Values) (*TokenPair, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("keycloak token request failed (%d): %s", resp.StatusCode, string(body))
	}
	var pair TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return nil, err
	}
	return &pair, nil
}

func (c *client) adminToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.adminTok != "" && time.Now().Before(c.adminUntil) {
		return c.adminTok, nil
	}
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
	}
	if c.adminUser != "" {
		form = url.Values{
			"grant_type": {"password"},
			"client_id":  {"admin-cli"},
			"username":   {c.adminUser},
			"password":   {c.adminPassword},
		}
	}
	pair, err := c.tokenRequest(ctx, form)
	if err != nil {
		return "", err
	}
	c.adminTok = pair.AccessToken
	c.adminUntil = time.Now().Add(time.Duration(pair.ExpiresIn-30) * time.Second)
	return c.adminTok, nil
}

func (c *client) adminDo(ctx context.Context, method, path string, payload interface{}) (*http.Response, error) {
	token, err := c.adminToken(ctx)
	if err != nil {
		return nil, err
	}
	var body io.Reader
	if payload != nil {
		raw, mErr := json.Marshal(payload)
		if mErr != nil {
			return nil, mErr
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.adminURL(path), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.http.Do(req)
}

func (c *client) CreateUser(ctx context.Context, username, email, password string) (string, error) {
	payload := map[string]interface{}{
		"username": username,
		"email":    email,
		"enabled":  true,
	}
	if password != "" {
		payload["credentials"] = []map[string]interface{}{
			{"type": "password", "value": password, "temporary": false},
		}
	}
	resp, err := c.adminDo(ctx, http.MethodPost, "/users", payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusCreated:
		// id comes back in the Location header
		loc := resp.Header.Get("Location")
		if idx := strings.LastIndex(loc, "/"); idx >= 0 {
			return loc[idx+1:], nil
		}
		return "", fmt.Errorf("keycloak create user: missing Location header")
	case http.StatusConflict:
		return "", ErrConflict
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("keycloak create user failed (%d): %s", resp.StatusCode, string(body))
	}
}

func (c *client) GetUser(ctx context.Context, userID string) (*IdpUser, error) {
	resp, err := c.adminDo(ctx, http.MethodGet, "/users/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("keycloak get user failed (%d)", resp.StatusCode)
	}
	var user IdpUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *client) FindUserByEmail(ctx context.Context, email string) (*IdpUser, error) {
	path := "/users?exact=true&email=" + url.QueryEscape(email)
	resp, err := c.adminDo(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("keycloak search users failed (%d)", resp.StatusCode)
	}
	var users []IdpUser
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, ErrNotFound
	}
	return &users[0], nil
}

func (c *client) SetPassword(ctx context.Context, userID, password string) error {
	payload := map[string]interface{}{
		"type":      "password",
		"value":     password,
		"temporary": false,
	}
	resp, err := c.adminDo(ctx, http.MethodPut, "/users/"+url.PathEscape(userID)+"/reset-password", payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("keycloak set password failed (%d)", resp.StatusCode)
	}
	return nil
}

func (c *client) DeleteUser(ctx context.Context, userID string) error {
	resp, err := c.adminDo(ctx, http.MethodDelete, "/users/"+url.PathEscape(userID), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("keycloak delete user failed (%d)", resp.StatusCode)
	}
	return nil
}

func (c *client) GetUserinfo(ctx context.Context, accessToken string) (*Userinfo, error) {
	endpoint := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/userinfo", c.baseURL, c.realm)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("keycloak userinfo failed (%d)", resp.StatusCode)
	}
	var info Userinfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *client) Logout(ctx context.Context, refreshToken string) error {
	endpoint := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/logout", c.baseURL, c.realm)
	form := url.Values{
		"client_id":     {c.clientID},
		"refresh_token": {refreshToken},
	}
	if c.clientSecret != "" {
		form.Set("client_secret", c.clientSecret)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("keycloak logout failed (%d)", resp.StatusCode)
	}
	return nil
}

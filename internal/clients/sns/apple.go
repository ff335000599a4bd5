package sns

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/types"
	"github.com/likenovel/likenovel-backend/internal/utils"
)

// apple cannot ride oauth2.Config directly: the client secret is a short-lived
// ES256 JWT signed with the team's private key, and the identity lives in the
// id_token rather than behind a userinfo endpoint.
type apple struct {
	log        *logger.Logger
	http       *http.Client
	clientID   string
	teamID     string
	keyID      string
	privateKey *ecdsa.PrivateKey
	redirect   map[Flow]string
}

func newApple(log *logger.Logger, httpClient *http.Client) Provider {
	a := &apple{
		log:      log.With("client", "AppleClient"),
		http:     httpClient,
		clientID: utils.GetEnv("APPLE_CLIENT_ID", "", log),
		teamID:   utils.GetEnv("APPLE_TEAM_ID", "", log),
		keyID:    utils.GetEnv("APPLE_KEY_ID", "", log),
		redirect: map[Flow]string{
			FlowSignup: redirectURI(types.SignedTypeApple, FlowSignup, log),
			FlowSignin: redirectURI(types.SignedTypeApple, FlowSignin, log),
		},
	}
	if keyPEM := utils.GetEnv("APPLE_PRIVATE_KEY", "", log); keyPEM != "" {
		key, err := parseECPrivateKey(keyPEM)
		if err != nil {
			a.log.Error("apple private key unusable", "error", err)
		} else {
			a.privateKey = key
		}
	}
	return a
}

func parseECPrivateKey(keyPEM string) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(strings.ReplaceAll(keyPEM, `\n`, "\n")))
	if block == nil {
		return nil, errors.New("no PEM block in APPLE_PRIVATE_KEY")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.New("APPLE_PRIVATE_KEY is not an EC key")
	}
	return key, nil
}

func (a *apple) Kind() string {
	return types.SignedTypeApple
}

func (a *apple) clientSecret() (string, error) {
	if a.privateKey == nil {
		return "", errors.New("apple private key not configured")
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iss": a.teamID,
		"iat": now.Unix(),
		"exp": now.Add(10 * time.Minute).Unix(),
		"aud": "https://appleid.apple.com",
		"sub": a.clientID,
	})
	token.Header["kid"] = a.keyID
	return token.SignedString(a.privateKey)
}

// Exchange returns the id_token rather than the access token: Apple has no
// userinfo endpoint, so the id_token carries everything Me needs.
func (a *apple) Exchange(ctx context.Context, flow Flow, code string) (string, error) {
	secret, err := a.clientSecret()
	if err != nil {
		return "", err
	}
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {a.clientID},
		"client_secret": {secret},
		"redirect_uri":  {a.redirect[flow]},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://appleid.apple.com/auth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := a.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("apple code exchange failed (%d)", resp.StatusCode)
	}
	var body struct {
		IDToken string `json:"id_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.IDToken == "" {
		return "", errors.New("apple token response missing id_token")
	}
	return body.IDToken, nil
}

func (a *apple) Me(_ context.Context, idToken string) (*Profile, error) {
	// The token came straight off Apple's TLS endpoint in Exchange, so the
	// claims are read without a second signature pass.
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return nil, fmt.Errorf("apple id_token parse: %w", err)
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, errors.New("apple id_token missing sub")
	}
	email, _ := claims["email"].(string)
	return &Profile{LinkID: sub, Email: email}, nil
}

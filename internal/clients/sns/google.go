package sns

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/types"
	"github.com/likenovel/likenovel-backend/internal/utils"
)

type google struct {
	log  *logger.Logger
	http *http.Client
	conf map[Flow]*oauth2.Config
}

func newGoogle(log *logger.Logger, httpClient *http.Client) Provider {
	clientID := utils.GetEnv("GOOGLE_CLIENT_ID", "", log)
	clientSecret := utils.GetEnv("GOOGLE_CLIENT_SECRET", "", log)
	conf := map[Flow]*oauth2.Config{}
	for _, flow := range []Flow{FlowSignup, FlowSignin} {
		conf[flow] = &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     googleoauth.Endpoint,
			RedirectURL:  redirectURI(types.SignedTypeGoogle, flow, log),
			Scopes:       []string{"openid", "email"},
		}
	}
	return &google{log: log.With("client", "GoogleClient"), http: httpClient, conf: conf}
}

func (g *google) Kind() string {
	return types.SignedTypeGoogle
}

func (g *google) Exchange(ctx context.Context, flow Flow, code string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.http)
	token, err := g.conf[flow].Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("google code exchange: %w", err)
	}
	return token.AccessToken, nil
}

func (g *google) Me(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://openidconnect.googleapis.com/v1/userinfo", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := g.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google userinfo failed (%d)", resp.StatusCode)
	}
	var body struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	// Google grants neither birthdate nor gender on the basic scopes.
	return &Profile{LinkID: body.Sub, Email: body.Email}, nil
}

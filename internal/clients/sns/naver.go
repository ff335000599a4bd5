package sns

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/types"
	"github.com/likenovel/likenovel-backend/internal/utils"
)

var naverEndpoint = oauth2.Endpoint{
	AuthURL:  "https://nid.naver.com/oauth2.0/authorize",
	TokenURL: "https://nid.naver.com/oauth2.0/token",
}

type naver struct {
	log  *logger.Logger
	http *http.Client
	conf map[Flow]*oauth2.Config
}

func newNaver(log *logger.Logger, httpClient *http.Client) Provider {
	clientID := utils.GetEnv("NAVER_CLIENT_ID", "", log)
	clientSecret := utils.GetEnv("NAVER_CLIENT_SECRET", "", log)
	conf := map[Flow]*oauth2.Config{}
	for _, flow := range []Flow{FlowSignup, FlowSignin} {
		conf[flow] = &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     naverEndpoint,
			RedirectURL:  redirectURI(types.SignedTypeNaver, flow, log),
		}
	}
	return &naver{log: log.With("client", "NaverClient"), http: httpClient, conf: conf}
}

func (n *naver) Kind() string {
	return types.SignedTypeNaver
}

func (n *naver) Exchange(ctx context.Context, flow Flow, code string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, n.http)
	token, err := n.conf[flow].Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("naver code exchange: %w", err)
	}
	return token.AccessToken, nil
}

func (n *naver) Me(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://openapi.naver.com/v1/nid/me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := n.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("naver /me failed (%d)", resp.StatusCode)
	}
	var body struct {
		Response struct {
			ID        string `json:"id"`
			Email     string `json:"email"`
			Birthyear string `json:"birthyear"`
			Birthday  string `json:"birthday"`
			Gender    string `json:"gender"`
		} `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return &Profile{
		LinkID:    body.Response.ID,
		Email:     body.Response.Email,
		Birthyear: body.Response.Birthyear,
		Birthday:  body.Response.Birthday,
		Gender:    body.Response.Gender,
	}, nil
}

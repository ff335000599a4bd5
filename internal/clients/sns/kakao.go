package sns

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"

	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/types"
	"github.com/likenovel/likenovel-backend/internal/utils"
)

var kakaoEndpoint = oauth2.Endpoint{
	AuthURL:  "https://kauth.kakao.com/oauth/authorize",
	TokenURL: "https://kauth.kakao.com/oauth/token",
}

type kakao struct {
	log  *logger.Logger
	http *http.Client
	conf map[Flow]*oauth2.Config
}

func newKakao(log *logger.Logger, httpClient *http.Client) Provider {
	clientID := utils.GetEnv("KAKAO_CLIENT_ID", "", log)
	clientSecret := utils.GetEnv("KAKAO_CLIENT_SECRET", "", log)
	conf := map[Flow]*oauth2.Config{}
	for _, flow := range []Flow{FlowSignup, FlowSignin} {
		conf[flow] = &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     kakaoEndpoint,
			RedirectURL:  redirectURI(types.SignedTypeKakao, flow, log),
		}
	}
	return &kakao{log: log.With("client", "KakaoClient"), http: httpClient, conf: conf}
}

func (k *kakao) Kind() string {
	return types.SignedTypeKakao
}

func (k *kakao) Exchange(ctx context.Context, flow Flow, code string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, k.http)
	token, err := k.conf[flow].Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("kakao code exchange: %w", err)
	}
	return token.AccessToken, nil
}

func (k *kakao) Me(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://kapi.kakao.com/v2/user/me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := k.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("kakao /me failed (%d)", resp.StatusCode)
	}
	var body struct {
		ID      int64 `json:"id"`
		Account struct {
			Email     string `json:"email"`
			Birthyear string `json:"birthyear"`
			Birthday  string `json:"birthday"`
			Gender    string `json:"gender"`
		} `json:"kakao_account"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	birthday := body.Account.Birthday
	if len(birthday) == 4 {
		birthday = birthday[:2] + "-" + birthday[2:]
	}
	gender := ""
	switch body.Account.Gender {
	case "male":
		gender = "M"
	case "female":
		gender = "F"
	}
	return &Profile{
		LinkID:    strconv.FormatInt(body.ID, 10),
		Email:     body.Account.Email,
		Birthyear: body.Account.Birthyear,
		Birthday:  birthday,
		Gender:    gender,
	}, nil
}

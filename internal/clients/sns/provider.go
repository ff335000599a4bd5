package sns

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/utils"
)

// Flow distinguishes the registered redirect URIs: each provider registers
// one per flow and the exchange must present the matching one.
type Flow string

const (
	FlowSignup Flow = "signup"
	FlowSignin Flow = "signin"
)

// Profile is the best-effort identity a provider /me call yields. Birthyear,
// Birthday (MM-DD) and Gender are only populated where the provider grants
// them.
type Profile struct {
	LinkID    string
	Email     string
	Birthyear string
	Birthday  string
	Gender    string
}

// Provider exchanges an authorization code and resolves the profile behind it.
type Provider interface {
	Kind() string
	Exchange(ctx context.Context, flow Flow, code string) (string, error)
	Me(ctx context.Context, accessToken string) (*Profile, error)
}

// Registry holds one provider per social kind.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(log *logger.Logger) *Registry {
	httpClient := &http.Client{Timeout: 10 * time.Second}
	reg := &Registry{providers: map[string]Provider{}}
	reg.register(newNaver(log, httpClient))
	reg.register(newKakao(log, httpClient))
	reg.register(newGoogle(log, httpClient))
	reg.register(newApple(log, httpClient))
	return reg
}

func (r *Registry) register(p Provider) {
	r.providers[p.Kind()] = p
}

func (r *Registry) Get(kind string) (Provider, error) {
	p, ok := r.providers[kind]
	if !ok {
		return nil, fmt.Errorf("unknown social provider %q", kind)
	}
	return p, nil
}

func redirectURI(kind string, flow Flow, log *logger.Logger) string {
	base := utils.GetEnv("OAUTH_REDIRECT_BASE", "https://api.likenovel.co.kr", log)
	return fmt.Sprintf("%s/auth/%s/%s/callback", base, kind, flow)
}

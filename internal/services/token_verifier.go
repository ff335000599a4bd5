package services

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/likenovel/likenovel-backend/internal/apierr"
	"github.com/likenovel/likenovel-backend/internal/clients/keycloak"
	rediscache "github.com/likenovel/likenovel-backend/internal/clients/redis"
	"github.com/likenovel/likenovel-backend/internal/logger"
)

// AccessClaims is what the middleware and reissue path need out of a
// Keycloak access token.
type AccessClaims struct {
	Sub     string
	Email   string
	Azp     string
	AdultYn string
	AdminYn string
}

// TokenVerifier checks Keycloak access tokens against the realm JWKS. Keys
// are cached in redis so a fleet of instances shares one fetch; a hard-coded
// realm public key PEM from the environment is the fallback when the JWKS
// endpoint is unreachable.
type TokenVerifier interface {
	Verify(ctx context.Context, tokenString string) (*AccessClaims, error)
	DecodeExpired(tokenString string) (*AccessClaims, error)
}

type tokenVerifier struct {
	log        *logger.Logger
	httpClient *http.Client
	cache      rediscache.Cache
	jwksURL    string

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
	ttl       time.Duration

	fallbackPEM string
}

const jwksCacheKey = "auth:jwks"

func NewTokenVerifier(log *logger.Logger, kc keycloak.Client, cache rediscache.Cache) TokenVerifier {
	return &tokenVerifier{
		log:         log.With("service", "TokenVerifier"),
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		cache:       cache,
		jwksURL:     kc.JWKSURL(),
		keys:        map[string]*rsa.PublicKey{},
		ttl:         6 * time.Hour,
		fallbackPEM: os.Getenv("KC_REALM_PUBLIC_KEY_PEM"),
	}
}

func (v *tokenVerifier) Verify(ctx context.Context, tokenString string) (*AccessClaims, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}))
	tok, err := parser.ParseWithClaims(tokenString, claims, v.keyFunc(ctx))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apierr.Unauthorized(apierr.CodeExpiredAccessToken)
		}
		return nil, apierr.New(http.StatusUnauthorized, apierr.CodeLoginRequired, err)
	}
	if tok == nil || !tok.Valid {
		return nil, apierr.Unauthorized(apierr.CodeLoginRequired)
	}
	return claimsToAccess(claims), nil
}

// DecodeExpired reads the claims of a possibly expired token. The signature
// is still checked when a key is available; only the time claims are waived.
// Reissue needs this to recover azp from the dead access token.
func (v *tokenVerifier) DecodeExpired(tokenString string) (*AccessClaims, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithoutClaimsValidation(),
	)
	_, err := parser.ParseWithClaims(tokenString, claims, v.keyFunc(context.Background()))
	if err != nil {
		// A signature that fails against a known key is a forgery, not drift.
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, apierr.Unauthorized(apierr.CodeExpiredRefreshToken)
		}
		// No key material at all (JWKS unreachable, no fallback PEM): decode
		// unverified for azp; the refresh grant itself is the real gate.
		claims = jwt.MapClaims{}
		if _, _, uerr := jwt.NewParser().ParseUnverified(tokenString, claims); uerr != nil {
			return nil, apierr.Unauthorized(apierr.CodeExpiredRefreshToken)
		}
		v.log.Warn("jwks unavailable for reissue decode, falling back to unverified", "error", err)
	}
	out := claimsToAccess(claims)
	if out.Azp == "" {
		return nil, apierr.Unauthorized(apierr.CodeExpiredRefreshToken)
	}
	return out, nil
}

func claimsToAccess(c jwt.MapClaims) *AccessClaims {
	out := &AccessClaims{}
	out.Sub, _ = c["sub"].(string)
	out.Email, _ = c["email"].(string)
	out.Azp, _ = c["azp"].(string)
	out.AdultYn, _ = c["adult_yn"].(string)
	out.AdminYn, _ = c["admin_yn"].(string)
	return out
}

func (v *tokenVerifier) keyFunc(ctx context.Context) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if strings.TrimSpace(kid) == "" {
			return nil, fmt.Errorf("missing kid")
		}
		return v.getKey(ctx, kid)
	}
}

func (v *tokenVerifier) getKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key := v.keys[kid]
	stale := time.Since(v.fetchedAt) > v.ttl
	v.mu.RUnlock()
	if key != nil && !stale {
		return key, nil
	}

	if err := v.refresh(ctx); err != nil {
		v.mu.RLock()
		key = v.keys[kid]
		v.mu.RUnlock()
		if key != nil {
			return key, nil
		}
		if pub, perr := parseRSAPEM(v.fallbackPEM); perr == nil {
			v.log.Warn("jwks unavailable, verifying with configured realm PEM", "error", err)
			return pub, nil
		}
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	key = v.keys[kid]
	if key == nil {
		return nil, fmt.Errorf("kid %q not in realm jwks", kid)
	}
	return key, nil
}

type realmJWKS struct {
	Keys []struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

func (v *tokenVerifier) refresh(ctx context.Context) error {
	var set realmJWKS
	fromCache := false
	if v.cache != nil {
		hit, _ := v.cache.GetJSON(ctx, jwksCacheKey, &set)
		fromCache = hit && len(set.Keys) > 0
	}
	if !fromCache {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
		if err != nil {
			return err
		}
		resp, err := v.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("jwks fetch: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("jwks fetch failed: %s", resp.Status)
		}
		if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
			return err
		}
		if v.cache != nil {
			if err := v.cache.SetJSON(ctx, jwksCacheKey, set, v.ttl); err != nil {
				v.log.Warn("jwks cache write failed", "error", err)
			}
		}
	}

	next := map[string]*rsa.PublicKey{}
	for _, k := range set.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		pub, err := rsaFromModExp(k.N, k.E)
		if err != nil {
			continue
		}
		next[k.Kid] = pub
	}
	if len(next) == 0 {
		return errors.New("realm jwks contained no usable keys")
	}

	v.mu.Lock()
	v.keys = next
	v.fetchedAt = time.Now()
	v.mu.Unlock()
	return nil
}

func rsaFromModExp(nB64, eB64 string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(nB64)
	if err != nil {
		return nil, err
	}
	eb, err := base64.RawURLEncoding.DecodeString(eB64)
	if err != nil {
		return nil, err
	}
	n := new(big.Int).SetBytes(nb)
	e := 0
	for _, b := range eb {
		e = e<<8 + int(b)
	}
	if e == 0 {
		return nil, fmt.Errorf("invalid exponent")
	}
	return &rsa.PublicKey{N: n, E: e}, nil
}

func parseRSAPEM(keyPEM string) (*rsa.PublicKey, error) {
	if strings.TrimSpace(keyPEM) == "" {
		return nil, errors.New("no fallback PEM configured")
	}
	block, _ := pem.Decode([]byte(strings.ReplaceAll(keyPEM, `\n`, "\n")))
	if block == nil {
		return nil, errors.New("no PEM block")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("fallback key is not RSA")
	}
	return pub, nil
}

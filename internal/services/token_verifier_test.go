package services

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/likenovel/likenovel-backend/internal/apierr"
)

// jwksIdp serves the realm keys from a local test server.
type jwksIdp struct {
	*fakeIdp
	url string
}

func (j jwksIdp) JWKSURL() string { return j.url }

func newJWKSServer(t *testing.T, kid string, pub *rsa.PublicKey) *httptest.Server {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": kid,
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   "AQAB",
		}},
	})
	if err != nil {
		t.Fatalf("marshal jwks: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(payload)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func signAccessToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	signed, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func newVerifierFixture(t *testing.T) (TokenVerifier, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	srv := newJWKSServer(t, "realm-key", &key.PublicKey)
	log := newTestLogger(t)
	verifier := NewTokenVerifier(log, jwksIdp{fakeIdp: newFakeIdp(), url: srv.URL}, noopCache{})
	return verifier, key
}

func TestDecodeExpired_AcceptsExpiredRealmToken(t *testing.T) {
	verifier, key := newVerifierFixture(t)
	token := signAccessToken(t, key, "realm-key", jwt.MapClaims{
		"sub": "kc-1",
		"azp": "likenovel-app",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	// Verify itself must refuse the dead token.
	_, err := verifier.Verify(context.Background(), token)
	wantCode(t, err, apierr.CodeExpiredAccessToken)

	claims, err := verifier.DecodeExpired(token)
	if err != nil {
		t.Fatalf("DecodeExpired: %v", err)
	}
	if claims.Azp != "likenovel-app" || claims.Sub != "kc-1" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestDecodeExpired_RejectsForgedSignature(t *testing.T) {
	verifier, _ := newVerifierFixture(t)
	attacker, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate attacker key: %v", err)
	}
	forged := signAccessToken(t, attacker, "realm-key", jwt.MapClaims{
		"sub": "kc-1",
		"azp": "likenovel-app",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	_, err = verifier.DecodeExpired(forged)
	wantCode(t, err, apierr.CodeExpiredRefreshToken)
}

func TestDecodeExpired_RejectsGarbage(t *testing.T) {
	verifier, _ := newVerifierFixture(t)

	_, err := verifier.DecodeExpired("not-a-jwt")
	wantCode(t, err, apierr.CodeExpiredRefreshToken)
}

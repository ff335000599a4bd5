package services

import (
	"testing"

	"github.com/likenovel/likenovel-backend/internal/apierr"
	"github.com/likenovel/likenovel-backend/internal/types"
)

func TestParseSocialState_NaverShortForm(t *testing.T) {
	parsed, err := ParseSocialState(types.SignedTypeNaver, "Y-likenovel")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.MarketingYn != "Y" || parsed.Birthdate != "" || parsed.Gender != "" {
		t.Fatalf("unexpected parse: %+v", parsed)
	}

	parsed, err = ParseSocialState(types.SignedTypeKakao, "N-likenovel")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.MarketingYn != "N" {
		t.Fatalf("expected consent N, got %q", parsed.MarketingYn)
	}
}

func TestParseSocialState_GoogleLongForm(t *testing.T) {
	parsed, err := ParseSocialState(types.SignedTypeGoogle, "Y-1994-07-21-F-likenovel")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.MarketingYn != "Y" || parsed.Birthdate != "1994-07-21" || parsed.Gender != "F" {
		t.Fatalf("unexpected parse: %+v", parsed)
	}
}

func TestParseSocialState_Rejections(t *testing.T) {
	cases := []struct {
		name  string
		kind  string
		state string
	}{
		{"short wrong length", types.SignedTypeNaver, "Y-likenovel1"},
		{"short bad consent", types.SignedTypeNaver, "X-likenovel"},
		{"short bad suffix", types.SignedTypeKakao, "Y-likenove1"},
		{"long wrong length", types.SignedTypeGoogle, "Y-1994-07-21-F-likenove"},
		{"long bad month", types.SignedTypeApple, "Y-1994-13-21-F-likenovel"},
		{"long bad day", types.SignedTypeGoogle, "Y-1994-07-32-F-likenovel"},
		{"long bad century", types.SignedTypeGoogle, "Y-1894-07-21-F-likenovel"},
		{"long bad gender", types.SignedTypeApple, "Y-1994-07-21-X-likenovel"},
		{"long bad consent", types.SignedTypeGoogle, "A-1994-07-21-F-likenovel"},
		{"unknown kind", "github", "Y-likenovel"},
	}
	for _, tc := range cases {
		if _, err := ParseSocialState(tc.kind, tc.state); err == nil {
			t.Fatalf("%s: expected rejection for %q", tc.name, tc.state)
		} else {
			ae := apierr.From(err)
			if ae.Status != 422 || ae.Code != apierr.CodeInvalidState {
				t.Fatalf("%s: expected 422 INVALID_STATE, got %d %s", tc.name, ae.Status, ae.Code)
			}
		}
	}
}

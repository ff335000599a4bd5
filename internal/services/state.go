package services

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/likenovel/likenovel-backend/internal/apierr"
	"github.com/likenovel/likenovel-backend/internal/types"
)

// SocialState is the intent the client encodes into the OAuth state
// parameter. Naver and Kakao carry only the marketing consent bit; Google and
// Apple additionally carry birthdate and gender since their /me responses
// omit them.
type SocialState struct {
	MarketingYn string
	Birthdate   string
	Gender      string
}

const stateSuffix = "likenovel"

var birthdateRe = regexp.MustCompile(`^(19|20)\d{2}-(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01])$`)

// ParseSocialState validates the state string against the per-provider
// grammar. Anything off by even one byte is rejected, intent is never
// inferred from other request fields.
func ParseSocialState(kind string, state string) (*SocialState, error) {
	switch kind {
	case types.SignedTypeNaver, types.SignedTypeKakao:
		return parseShortState(state)
	case types.SignedTypeGoogle, types.SignedTypeApple:
		return parseLongState(state)
	default:
		return nil, invalidState("unsupported social kind")
	}
}

// parseShortState handles `<A>-likenovel`, length 11, A in {Y,N}.
func parseShortState(state string) (*SocialState, error) {
	if len(state) != 11 {
		return nil, invalidState("state length mismatch")
	}
	consent := state[:1]
	if consent != types.YnYes && consent != types.YnNo {
		return nil, invalidState("bad consent flag")
	}
	if state[1:] != "-"+stateSuffix {
		return nil, invalidState("bad state suffix")
	}
	return &SocialState{MarketingYn: consent}, nil
}

// parseLongState handles `<A>-<YYYY-MM-DD>-<G>-likenovel`, length 24,
// A in {Y,N}, G in {M,F}.
func parseLongState(state string) (*SocialState, error) {
	if len(state) != 24 {
		return nil, invalidState("state length mismatch")
	}
	if !strings.HasSuffix(state, "-"+stateSuffix) {
		return nil, invalidState("bad state suffix")
	}
	consent := state[:1]
	if consent != types.YnYes && consent != types.YnNo {
		return nil, invalidState("bad consent flag")
	}
	if state[1] != '-' || state[12] != '-' || state[14] != '-' {
		return nil, invalidState("bad state layout")
	}
	birthdate := state[2:12]
	if !birthdateRe.MatchString(birthdate) {
		return nil, invalidState("bad birthdate")
	}
	gender := state[13:14]
	if gender != "M" && gender != "F" {
		return nil, invalidState("bad gender flag")
	}
	return &SocialState{MarketingYn: consent, Birthdate: birthdate, Gender: gender}, nil
}

func invalidState(reason string) *apierr.Error {
	return apierr.New(http.StatusUnprocessableEntity, apierr.CodeInvalidState, errors.New(reason))
}

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/likenovel/likenovel-backend/internal/apierr"
	"github.com/likenovel/likenovel-backend/internal/clients/keycloak"
	"github.com/likenovel/likenovel-backend/internal/clients/sns"
	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/repos"
	"github.com/likenovel/likenovel-backend/internal/types"
	"github.com/likenovel/likenovel-backend/internal/utils"
)

// SessionTokens is what every successful signin/signup/reissue returns.
type SessionTokens struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshExpiresIn int    `json:"refresh_expires_in"`
	UserID           int64  `json:"user_id"`
}

// FoundAccount is the find-account answer: enough to tell the user where
// their account lives without leaking the address.
type FoundAccount struct {
	MaskedEmail      string `json:"masked_email"`
	LatestSignedType string `json:"latest_signed_type"`
}

type LocalSignupInput struct {
	Email       string
	Password    string
	Nickname    string
	Birthdate   string
	Gender      string
	MarketingYn string
	StaySigned  bool
}

// AuthService brokers between the local user table and the IdP. The IdP owns
// credentials and token grants; the local table owns everything else.
type AuthService interface {
	SignupLocal(ctx context.Context, input LocalSignupInput) (*SessionTokens, error)
	SocialCallback(ctx context.Context, kind string, flow sns.Flow, code, state string, staySigned bool) (*SessionTokens, error)
	SigninLocal(ctx context.Context, email, password string, staySigned bool) (*SessionTokens, error)
	AdminSignin(ctx context.Context, email, password string) (*SessionTokens, error)
	Signoff(ctx context.Context, userID int64) error
	Reissue(ctx context.Context, accessToken, refreshToken string) (*SessionTokens, error)
	ResetPassword(ctx context.Context, email, newPassword string) error
	FindAccount(ctx context.Context, nickname string) (*FoundAccount, error)
}

type authService struct {
	log       *logger.Logger
	db        *gorm.DB
	kc        keycloak.Client
	providers *sns.Registry
	verifier  TokenVerifier
	reconcile ReconcileService
	users     repos.UserRepo
	bindings  repos.SocialBindingRepo
	profiles  repos.ProfileRepo
}

func NewAuthService(
	log *logger.Logger,
	db *gorm.DB,
	kc keycloak.Client,
	providers *sns.Registry,
	verifier TokenVerifier,
	reconcile ReconcileService,
	users repos.UserRepo,
	bindings repos.SocialBindingRepo,
	profiles repos.ProfileRepo,
) AuthService {
	return &authService{
		log:       log.With("service", "AuthService"),
		db:        db,
		kc:        kc,
		providers: providers,
		verifier:  verifier,
		reconcile: reconcile,
		users:     users,
		bindings:  bindings,
		profiles:  profiles,
	}
}

// snsPassword is the deterministic IdP credential for social accounts. The
// user never sees it; it only backs recovery and the initial CreateUser.
func snsPassword(kind, linkID string) string {
	return fmt.Sprintf("sns!%s!%s", kind, linkID)
}

func (as *authService) SignupLocal(ctx context.Context, input LocalSignupInput) (*SessionTokens, error) {
	existing, err := as.users.GetByEmail(ctx, nil, input.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		switch {
		case existing.UseYn == types.YnNo:
			return nil, apierr.BadRequest(apierr.CodeAlreadyWithdrawnMember)
		case existing.LatestSignedType != types.SignedTypeLocal:
			return nil, apierr.Conflict(apierr.CodeAlreadyExistEmailOtherMethod)
		default:
			return nil, apierr.Conflict(apierr.CodeAlreadyExistEmail)
		}
	}

	kcID, err := as.kc.CreateUser(ctx, input.Email, input.Email, input.Password)
	if err != nil {
		if errors.Is(err, keycloak.ErrConflict) {
			return nil, apierr.Conflict(apierr.CodeAlreadyExistEmail)
		}
		return nil, err
	}

	user, err := as.provisionUser(ctx, kcID, types.SignedTypeLocal, input.Email, input.Birthdate, input.Gender, input.Nickname, input.MarketingYn, input.StaySigned, "")
	if err != nil {
		// The IdP record must not outlive a failed local signup.
		if delErr := as.kc.DeleteUser(ctx, kcID); delErr != nil {
			as.log.Error("idp compensation failed after signup rollback", "kcUserID", kcID, "error", delErr)
		}
		return nil, err
	}

	pair, err := as.kc.PasswordToken(ctx, input.Email, input.Password, input.StaySigned)
	if err != nil {
		return nil, err
	}
	return sessionFrom(pair, user.ID), nil
}

func (as *authService) SocialCallback(ctx context.Context, kind string, flow sns.Flow, code, state string, staySigned bool) (*SessionTokens, error) {
	st, err := ParseSocialState(kind, state)
	if err != nil {
		return nil, err
	}
	provider, err := as.providers.Get(kind)
	if err != nil {
		return nil, apierr.New(http.StatusUnprocessableEntity, apierr.CodeInvalidState, err)
	}
	token, err := provider.Exchange(ctx, flow, code)
	if err != nil {
		return nil, apierr.New(http.StatusUnauthorized, apierr.CodeLoginRequired, err)
	}
	profile, err := provider.Me(ctx, token)
	if err != nil {
		return nil, apierr.New(http.StatusUnauthorized, apierr.CodeLoginRequired, err)
	}

	binding, err := as.bindings.GetBySns(ctx, nil, kind, profile.LinkID)
	if err != nil {
		return nil, err
	}

	if flow == sns.FlowSignup && binding == nil {
		return as.socialSignup(ctx, kind, profile, st, staySigned)
	}
	return as.socialSignin(ctx, kind, profile, binding, staySigned)
}

func (as *authService) socialSignup(ctx context.Context, kind string, profile *sns.Profile, st *SocialState, staySigned bool) (*SessionTokens, error) {
	existing, err := as.users.GetByEmail(ctx, nil, profile.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.UseYn == types.YnNo {
			return nil, apierr.BadRequest(apierr.CodeAlreadyWithdrawnMember)
		}
		return nil, apierr.Conflict(apierr.CodeAlreadyExistEmailOtherMethod)
	}

	password := snsPassword(kind, profile.LinkID)
	kcID, err := as.createIdpUserProbed(ctx, profile.Email, password)
	if err != nil {
		return nil, err
	}

	birthdate := st.Birthdate
	gender := st.Gender
	if birthdate == "" && profile.Birthyear != "" && profile.Birthday != "" {
		birthdate = profile.Birthyear + "-" + profile.Birthday
	}
	if gender == "" {
		gender = profile.Gender
	}

	user, err := as.provisionUser(ctx, kcID, kind, profile.Email, birthdate, gender, "", st.MarketingYn, staySigned, profile.LinkID)
	if err != nil {
		if delErr := as.kc.DeleteUser(ctx, kcID); delErr != nil {
			as.log.Error("idp compensation failed after signup rollback", "kcUserID", kcID, "error", delErr)
		}
		return nil, err
	}

	pair, err := as.kc.Impersonate(ctx, kcID)
	if err != nil {
		return nil, err
	}
	return sessionFrom(pair, user.ID), nil
}

func (as *authService) socialSignin(ctx context.Context, kind string, profile *sns.Profile, binding *types.SocialBinding, staySigned bool) (*SessionTokens, error) {
	var user *types.User
	var err error
	switch {
	case binding != nil:
		user, err = as.users.GetByID(ctx, nil, binding.UserID)
	default:
		// Legacy accounts predate the binding table; recover the link from
		// latest_signed_type + email.
		user, err = as.users.GetByEmail(ctx, nil, profile.Email)
		if err == nil && user != nil && user.LatestSignedType == kind && user.UseYn == types.YnYes {
			binding, err = as.bindings.Create(ctx, nil, &types.SocialBinding{
				UserID:    user.ID,
				SnsType:   kind,
				SnsLinkID: profile.LinkID,
			})
		} else if err == nil {
			user = nil
		}
	}
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apierr.NotFound(apierr.CodeNotRegisteredAccount)
	}
	if user.UseYn == types.YnNo {
		return nil, apierr.BadRequest(apierr.CodeAlreadyWithdrawnMember)
	}

	// Integrated-ID: answer with the canonical account's tokens.
	if binding != nil && binding.IntegratedYn == types.YnYes && binding.IntegratedUserID != nil {
		pair, err := as.kc.PasswordToken(ctx, binding.IntegratedUsername, binding.IntegratedPassword, staySigned)
		if err != nil {
			return nil, err
		}
		return sessionFrom(pair, *binding.IntegratedUserID), nil
	}

	if err := as.healIfDrifted(ctx, user, snsPassword(kind, profile.LinkID)); err != nil {
		return nil, err
	}

	pair, err := as.kc.Impersonate(ctx, user.KcUserID)
	if err != nil {
		return nil, err
	}
	if err := as.users.UpdateLatestSignedType(ctx, nil, user.ID, kind); err != nil {
		as.log.Warn("latest_signed_type update failed", "userID", user.ID, "error", err)
	}
	return sessionFrom(pair, user.ID), nil
}

func (as *authService) SigninLocal(ctx context.Context, email, password string, staySigned bool) (*SessionTokens, error) {
	user, err := as.signinPrecheck(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := as.healIfDrifted(ctx, user, password); err != nil {
		return nil, err
	}
	pair, err := as.kc.PasswordToken(ctx, email, password, staySigned)
	if err != nil {
		return nil, apierr.New(http.StatusUnauthorized, apierr.CodeLoginRequired, err)
	}
	if err := as.users.UpdateLatestSignedType(ctx, nil, user.ID, types.SignedTypeLocal); err != nil {
		as.log.Warn("latest_signed_type update failed", "userID", user.ID, "error", err)
	}
	return sessionFrom(pair, user.ID), nil
}

func (as *authService) AdminSignin(ctx context.Context, email, password string) (*SessionTokens, error) {
	user, err := as.signinPrecheck(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.RoleCode != "admin" {
		return nil, apierr.New(http.StatusForbidden, apierr.CodeAdminAccountRequired, nil)
	}
	pair, err := as.kc.PasswordToken(ctx, email, password, false)
	if err != nil {
		return nil, apierr.New(http.StatusUnauthorized, apierr.CodeLoginRequired, err)
	}
	return sessionFrom(pair, user.ID), nil
}

func (as *authService) signinPrecheck(ctx context.Context, email string) (*types.User, error) {
	user, err := as.users.GetByEmail(ctx, nil, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apierr.NotFound(apierr.CodeNotRegisteredAccount)
	}
	if user.UseYn == types.YnNo {
		return nil, apierr.BadRequest(apierr.CodeAlreadyWithdrawnMember)
	}
	return user, nil
}

// healIfDrifted runs the reconciliation machine before a token grant so the
// grant never 404s on a vanished IdP record.
func (as *authService) healIfDrifted(ctx context.Context, user *types.User, password string) error {
	state, found, err := as.reconcile.Assess(ctx, user)
	if err != nil {
		return err
	}
	if state == StateWithdrawn {
		return apierr.BadRequest(apierr.CodeAlreadyWithdrawnMember)
	}
	if state == StateInSync {
		return nil
	}
	_, err = as.reconcile.Heal(ctx, user, state, found, password)
	return err
}

func (as *authService) Signoff(ctx context.Context, userID int64) error {
	user, err := as.users.GetByID(ctx, nil, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return apierr.NotFound(apierr.CodeNotRegisteredAccount)
	}
	if user.UseYn == types.YnNo {
		return apierr.BadRequest(apierr.CodeAlreadyWithdrawnMember)
	}

	members, err := as.integratedGroup(ctx, user)
	if err != nil {
		return err
	}

	type idpRef struct {
		userID   int64
		kcUserID string
	}
	var refs []idpRef

	err = as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		for _, member := range members {
			if member.UseYn == types.YnNo {
				continue
			}
			if err := as.users.Withdraw(ctx, tx, member.ID, now); err != nil {
				return err
			}
			if err := as.bindings.DeleteByUserID(ctx, tx, member.ID); err != nil {
				return err
			}
			if err := as.profiles.DeleteFeatureVector(ctx, tx, member.ID); err != nil {
				return err
			}
			refs = append(refs, idpRef{userID: member.ID, kcUserID: member.KcUserID})
		}
		return nil
	})
	if err != nil {
		return err
	}

	// IdP-side records are hard-deleted; local tombstones already hold, so a
	// failure here is logged and retried by the next reconcile, not rolled
	// back.
	for _, ref := range refs {
		if ref.kcUserID == "" {
			continue
		}
		if err := as.kc.DeleteUser(ctx, ref.kcUserID); err != nil && !errors.Is(err, keycloak.ErrNotFound) {
			as.log.Error("idp delete failed on signoff", "userID", ref.userID, "kcUserID", ref.kcUserID, "error", err)
		}
	}
	return nil
}

// integratedGroup expands a user to every member of their integrated-ID
// group, the user alone when no integration exists.
func (as *authService) integratedGroup(ctx context.Context, user *types.User) ([]*types.User, error) {
	bindings, err := as.bindings.GetByUserID(ctx, nil, user.ID)
	if err != nil {
		return nil, err
	}
	canonicalID := user.ID
	integrated := false
	for _, b := range bindings {
		if b.IntegratedYn == types.YnYes && b.IntegratedUserID != nil {
			canonicalID = *b.IntegratedUserID
			integrated = true
			break
		}
	}
	if !integrated {
		return []*types.User{user}, nil
	}

	memberIDs := map[int64]struct{}{user.ID: {}, canonicalID: {}}
	groupBindings, err := as.bindings.ListByIntegratedUserID(ctx, nil, canonicalID)
	if err != nil {
		return nil, err
	}
	for _, b := range groupBindings {
		memberIDs[b.UserID] = struct{}{}
	}

	var members []*types.User
	for id := range memberIDs {
		member, err := as.users.GetByID(ctx, nil, id)
		if err != nil {
			return nil, err
		}
		if member != nil {
			members = append(members, member)
		}
	}
	return members, nil
}

func (as *authService) Reissue(ctx context.Context, accessToken, refreshToken string) (*SessionTokens, error) {
	claims, err := as.verifier.DecodeExpired(accessToken)
	if err != nil {
		return nil, err
	}
	pair, err := as.kc.RefreshGrant(ctx, claims.Azp, refreshToken)
	if err != nil {
		return nil, apierr.New(http.StatusUnauthorized, apierr.CodeExpiredRefreshToken, err)
	}
	var userID int64
	if user, uerr := as.users.GetByKcUserID(ctx, nil, claims.Sub); uerr == nil && user != nil {
		userID = user.ID
	}
	return sessionFrom(pair, userID), nil
}

func (as *authService) ResetPassword(ctx context.Context, email, newPassword string) error {
	user, err := as.users.GetByEmail(ctx, nil, email)
	if err != nil {
		return err
	}
	if user == nil {
		return apierr.NotFound(apierr.CodeNotRegisteredAccount)
	}
	if user.UseYn == types.YnNo {
		return apierr.BadRequest(apierr.CodeAlreadyWithdrawnMember)
	}
	if user.LatestSignedType != types.SignedTypeLocal {
		return apierr.BadRequest(apierr.CodeSnsPasswordResetNotAllowed)
	}

	err = as.kc.SetPassword(ctx, user.KcUserID, newPassword)
	if err == nil {
		return nil
	}
	if !errors.Is(err, keycloak.ErrNotFound) {
		return err
	}

	// Vanished IdP record. Heal (relink by email or recreate) and retry.
	state, found, err := as.reconcile.Assess(ctx, user)
	if err != nil {
		return err
	}
	kcID, err := as.reconcile.Heal(ctx, user, state, found, newPassword)
	if err != nil {
		return err
	}
	if err := as.kc.SetPassword(ctx, kcID, newPassword); err != nil {
		return err
	}
	return nil
}

func (as *authService) FindAccount(ctx context.Context, nickname string) (*FoundAccount, error) {
	profile, err := as.profiles.GetByNickname(ctx, nil, nickname)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, apierr.NotFound(apierr.CodeNotRegisteredAccount)
	}
	user, err := as.users.GetByID(ctx, nil, profile.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || user.UseYn == types.YnNo {
		return nil, apierr.NotFound(apierr.CodeNotRegisteredAccount)
	}
	return &FoundAccount{
		MaskedEmail:      utils.MaskEmail(user.Email),
		LatestSignedType: user.LatestSignedType,
	}, nil
}

// provisionUser runs every signup step in one transaction: the user row, the
// five notification prefs, the feature vector, a profile with a probed
// nickname, the default badge, the starter quests and, for social signups,
// the provider binding. A failure anywhere leaves no partial account behind.
func (as *authService) provisionUser(ctx context.Context, kcID, signedType, email, birthdate, gender, nickname, marketingYn string, staySigned bool, snsLinkID string) (*types.User, error) {
	if marketingYn != types.YnYes {
		marketingYn = types.YnNo
	}
	staySignedYn := types.YnNo
	if staySigned {
		staySignedYn = types.YnYes
	}

	var user *types.User
	err := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := as.users.Create(ctx, tx, &types.User{
			KcUserID:         kcID,
			Email:            email,
			Birthdate:        birthdate,
			Gender:           gender,
			UseYn:            types.YnYes,
			LatestSignedType: signedType,
			StaySignedYn:     staySignedYn,
		})
		if err != nil {
			return err
		}
		user = created

		prefs := make([]*types.NotificationPref, 0, len(types.NotificationPrefTypes))
		for _, prefType := range types.NotificationPrefTypes {
			prefs = append(prefs, &types.NotificationPref{
				UserID:   user.ID,
				PrefType: prefType,
				AllowYn:  marketingYn,
			})
		}
		if err := as.profiles.CreatePrefs(ctx, tx, prefs); err != nil {
			return err
		}
		if err := as.profiles.EnsureFeatureVector(ctx, tx, user.ID); err != nil {
			return err
		}

		probed, err := as.probeNickname(ctx, tx, nickname)
		if err != nil {
			return err
		}
		if _, err := as.profiles.Create(ctx, tx, &types.Profile{UserID: user.ID, Nickname: probed}); err != nil {
			return err
		}
		if err := as.profiles.CreateBadge(ctx, tx, &types.UserBadge{UserID: user.ID, BadgeCode: "newbie"}); err != nil {
			return err
		}
		if err := as.profiles.CreateQuests(ctx, tx, []*types.UserQuest{
			{UserID: user.ID, QuestCode: "first_read"},
			{UserID: user.ID, QuestCode: "first_bookmark"},
			{UserID: user.ID, QuestCode: "first_comment"},
		}); err != nil {
			return err
		}
		if snsLinkID == "" {
			return nil
		}
		_, err = as.bindings.Create(ctx, tx, &types.SocialBinding{
			UserID:    user.ID,
			SnsType:   signedType,
			SnsLinkID: snsLinkID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// createIdpUserProbed retries random usernames until the IdP stops answering
// 409, bounded by the probe limit.
func (as *authService) createIdpUserProbed(ctx context.Context, email, password string) (string, error) {
	var lastErr error
	for i := 0; i < utils.ProbeLimit; i++ {
		username := utils.RandomName("ln")
		kcID, err := as.kc.CreateUser(ctx, username, email, password)
		if err == nil {
			return kcID, nil
		}
		if !errors.Is(err, keycloak.ErrConflict) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("idp username probing exhausted: %w", lastErr)
}

func (as *authService) probeNickname(ctx context.Context, tx *gorm.DB, base string) (string, error) {
	if base == "" {
		base = utils.RandomName("독자")
	}
	candidate := base
	for i := 0; i < utils.ProbeLimit; i++ {
		exists, err := as.profiles.NicknameExists(ctx, tx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = utils.RandomName(base)
	}
	return "", apierr.Conflict(apierr.CodeInvalidNicknameInfo)
}

func sessionFrom(pair *keycloak.TokenPair, userID int64) *SessionTokens {
	return &SessionTokens{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		ExpiresIn:        pair.ExpiresIn,
		RefreshExpiresIn: pair.RefreshExpiresIn,
		UserID:           userID,
	}
}

package services

import (
	"context"
	"net/http"
	"testing"

	"gorm.io/gorm"

	"github.com/likenovel/likenovel-backend/internal/apierr"
	"github.com/likenovel/likenovel-backend/internal/clients/sns"
	"github.com/likenovel/likenovel-backend/internal/repos"
	"github.com/likenovel/likenovel-backend/internal/types"
)

type stubVerifier struct{}

func (stubVerifier) Verify(ctx context.Context, tokenString string) (*AccessClaims, error) {
	return &AccessClaims{}, nil
}

func (stubVerifier) DecodeExpired(tokenString string) (*AccessClaims, error) {
	return &AccessClaims{}, nil
}

type authFixture struct {
	db  *gorm.DB
	idp *fakeIdp
	svc AuthService
	raw *authService
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	db := newTestDB(t)
	log := newTestLogger(t)
	idp := newFakeIdp()
	users := repos.NewUserRepo(db, log)
	svc := NewAuthService(
		log, db, idp, sns.NewRegistry(log), stubVerifier{},
		NewReconcileService(log, idp, users),
		users,
		repos.NewSocialBindingRepo(db, log),
		repos.NewProfileRepo(db, log),
	)
	return &authFixture{db: db, idp: idp, svc: svc, raw: svc.(*authService)}
}

func localInput(email string) LocalSignupInput {
	return LocalSignupInput{Email: email, Password: "secret1!", Nickname: "글쟁이"}
}

func TestSignupLocal_ProvisionsAccount(t *testing.T) {
	f := newAuthFixture(t)

	session, err := f.svc.SignupLocal(context.Background(), localInput("new@example.com"))
	if err != nil {
		t.Fatalf("SignupLocal: %v", err)
	}
	if session.UserID == 0 || session.AccessToken == "" {
		t.Fatalf("session = %+v", session)
	}

	var user types.User
	if err := f.db.First(&user, session.UserID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if user.Email != "new@example.com" || user.LatestSignedType != types.SignedTypeLocal {
		t.Fatalf("user = %+v", user)
	}
	var prefCount int64
	f.db.Model(&types.NotificationPref{}).Where("user_id = ?", user.ID).Count(&prefCount)
	if prefCount != int64(len(types.NotificationPrefTypes)) {
		t.Fatalf("pref rows = %d", prefCount)
	}
	// A local signup carries no provider link.
	var bindingCount int64
	f.db.Model(&types.SocialBinding{}).Where("user_id = ?", user.ID).Count(&bindingCount)
	if bindingCount != 0 {
		t.Fatalf("binding rows = %d, want 0", bindingCount)
	}
}

func TestSignupLocal_WithdrawnEmailIsBadRequest(t *testing.T) {
	f := newAuthFixture(t)
	if err := f.db.Create(&types.User{Email: "gone@example.com", KcUserID: "kc-gone", UseYn: types.YnNo}).Error; err != nil {
		t.Fatalf("seed withdrawn user: %v", err)
	}

	_, err := f.svc.SignupLocal(context.Background(), localInput("gone@example.com"))
	wantCodeStatus(t, err, apierr.CodeAlreadyWithdrawnMember, http.StatusBadRequest)
}

func TestSignupLocal_DuplicateEmailIsConflict(t *testing.T) {
	f := newAuthFixture(t)
	if err := f.db.Create(&types.User{Email: "dup@example.com", KcUserID: "kc-dup", UseYn: types.YnYes, LatestSignedType: types.SignedTypeLocal}).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	_, err := f.svc.SignupLocal(context.Background(), localInput("dup@example.com"))
	wantCodeStatus(t, err, apierr.CodeAlreadyExistEmail, http.StatusConflict)
}

func TestSocialSignup_CreatesUserAndBindingTogether(t *testing.T) {
	f := newAuthFixture(t)
	profile := &sns.Profile{LinkID: "kakao-77", Email: "social@example.com"}

	session, err := f.raw.socialSignup(context.Background(), types.SignedTypeKakao, profile, &SocialState{MarketingYn: types.YnYes}, false)
	if err != nil {
		t.Fatalf("socialSignup: %v", err)
	}

	var binding types.SocialBinding
	if err := f.db.Where("sns_type = ? AND sns_link_id = ?", types.SignedTypeKakao, "kakao-77").First(&binding).Error; err != nil {
		t.Fatalf("binding lookup: %v", err)
	}
	if binding.UserID != session.UserID {
		t.Fatalf("binding.UserID = %d, want %d", binding.UserID, session.UserID)
	}
}

func TestSocialSignup_BindingFailureRollsBackUser(t *testing.T) {
	f := newAuthFixture(t)
	// Occupy the (sns_type, sns_link_id) slot so the provisioning insert hits
	// the unique index.
	if err := f.db.Create(&types.SocialBinding{UserID: 999, SnsType: types.SignedTypeKakao, SnsLinkID: "kakao-dup"}).Error; err != nil {
		t.Fatalf("seed binding: %v", err)
	}
	profile := &sns.Profile{LinkID: "kakao-dup", Email: "race@example.com"}

	if _, err := f.raw.socialSignup(context.Background(), types.SignedTypeKakao, profile, &SocialState{}, false); err == nil {
		t.Fatalf("socialSignup accepted a taken provider link")
	}

	var userCount int64
	f.db.Model(&types.User{}).Where("email = ?", "race@example.com").Count(&userCount)
	if userCount != 0 {
		t.Fatalf("user rows = %d, want 0 after rollback", userCount)
	}
	// The compensating IdP delete must have run too.
	for _, rec := range f.idp.byID {
		if rec.Email == "race@example.com" {
			t.Fatalf("idp record survived the rollback")
		}
	}
}

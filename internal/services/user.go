package services

import (
	"context"

	"github.com/likenovel/likenovel-backend/internal/apierr"
	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/repos"
	"github.com/likenovel/likenovel-backend/internal/types"
)

// Me is the signed-in reader's account snapshot.
type Me struct {
	UserID           int64  `json:"user_id"`
	Email            string `json:"email"`
	Nickname         string `json:"nickname"`
	Birthdate        string `json:"birthdate"`
	Gender           string `json:"gender"`
	AdultYn          string `json:"adult_yn"`
	RoleCode         string `json:"role_code"`
	LatestSignedType string `json:"latest_signed_type"`
	CashBalance      int64  `json:"cash_balance"`
}

type UserService interface {
	Me(ctx context.Context, userID int64) (*Me, error)
	CashBalance(ctx context.Context, userID int64) (int64, error)
}

type userService struct {
	log      *logger.Logger
	users    repos.UserRepo
	profiles repos.ProfileRepo
	cash     repos.UserCashRepo
}

func NewUserService(log *logger.Logger, users repos.UserRepo, profiles repos.ProfileRepo, cash repos.UserCashRepo) UserService {
	return &userService{
		log:      log.With("service", "UserService"),
		users:    users,
		profiles: profiles,
		cash:     cash,
	}
}

func (us *userService) Me(ctx context.Context, userID int64) (*Me, error) {
	user, err := us.users.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if user == nil || user.UseYn != types.YnYes {
		return nil, apierr.Unauthorized(apierr.CodeLoginRequired)
	}
	me := &Me{
		UserID:           user.ID,
		Email:            user.Email,
		Birthdate:        user.Birthdate,
		Gender:           user.Gender,
		AdultYn:          user.AdultYn,
		RoleCode:         user.RoleCode,
		LatestSignedType: user.LatestSignedType,
	}
	profile, err := us.profiles.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		me.Nickname = profile.Nickname
	}
	balance, err := us.CashBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	me.CashBalance = balance
	return me, nil
}

// CashBalance treats a missing wallet row as a zero balance; the row is only
// created on the first credit or purchase.
func (us *userService) CashBalance(ctx context.Context, userID int64) (int64, error) {
	wallet, err := us.cash.GetForUpdate(ctx, nil, userID)
	if err != nil {
		return 0, err
	}
	if wallet == nil {
		return 0, nil
	}
	return wallet.Balance, nil
}

package repos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/types"
)

type UserRepo interface {
	Create(ctx context.Context, tx *gorm.DB, user *types.User) (*types.User, error)
	GetByID(ctx context.Context, tx *gorm.DB, userID int64) (*types.User, error)
	GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*types.User, error)
	GetByKcUserID(ctx context.Context, tx *gorm.DB, kcUserID string) (*types.User, error)
	UpdateKcUserID(ctx context.Context, tx *gorm.DB, userID int64, kcUserID string) error
	UpdateLatestSignedType(ctx context.Context, tx *gorm.DB, userID int64, signedType string) error
	Withdraw(ctx context.Context, tx *gorm.DB, userID int64, now time.Time) error
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return &userRepo{db: db, log: baseLog.With("repo", "UserRepo")}
}

func (ur *userRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return ur.db
}

func (ur *userRepo) Create(ctx context.Context, tx *gorm.DB, user *types.User) (*types.User, error) {
	if err := ur.conn(tx).WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (ur *userRepo) GetByID(ctx context.Context, tx *gorm.DB, userID int64) (*types.User, error) {
	var result types.User
	err := ur.conn(tx).WithContext(ctx).
		Where("id = ?", userID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (ur *userRepo) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*types.User, error) {
	var result types.User
	err := ur.conn(tx).WithContext(ctx).
		Where("email = ?", email).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (ur *userRepo) GetByKcUserID(ctx context.Context, tx *gorm.DB, kcUserID string) (*types.User, error) {
	var result types.User
	err := ur.conn(tx).WithContext(ctx).
		Where("kc_user_id = ?", kcUserID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (ur *userRepo) UpdateKcUserID(ctx context.Context, tx *gorm.DB, userID int64, kcUserID string) error {
	return ur.conn(tx).WithContext(ctx).
		Model(&types.User{}).
		Where("id = ?", userID).
		Update("kc_user_id", kcUserID).Error
}

func (ur *userRepo) UpdateLatestSignedType(ctx context.Context, tx *gorm.DB, userID int64, signedType string) error {
	return ur.conn(tx).WithContext(ctx).
		Model(&types.User{}).
		Where("id = ?", userID).
		Update("latest_signed_type", signedType).Error
}

// Withdraw tombstones the email so the address can sign up again later while
// the row itself stays for bookkeeping.
func (ur *userRepo) Withdraw(ctx context.Context, tx *gorm.DB, userID int64, now time.Time) error {
	var user types.User
	conn := ur.conn(tx).WithContext(ctx)
	if err := conn.Where("id = ?", userID).First(&user).Error; err != nil {
		return err
	}
	tombstone := fmt.Sprintf("outed;%d;%s", now.Unix(), user.Email)
	return conn.Model(&types.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"use_yn": types.YnNo,
			"email":  tombstone,
		}).Error
}

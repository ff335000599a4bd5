package services

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/likenovel/likenovel-backend/internal/apierr"
	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/types"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

// newTestDB opens a per-test in-memory sqlite database. The shared-cache name
// keeps every pooled connection on the same store.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&types.User{},
		&types.SocialBinding{},
		&types.Profile{},
		&types.NotificationPref{},
		&types.AlgorithmFeature{},
		&types.UserCash{},
		&types.UserBadge{},
		&types.UserQuest{},
		&types.UserNotification{},
		&types.Product{},
		&types.Episode{},
		&types.FileGroup{},
		&types.FileItem{},
		&types.Ticketbook{},
		&types.Giftbook{},
		&types.UsageRecord{},
		&types.AppliedPromotion{},
		&types.DirectPromotion{},
		&types.RecommendSection{},
		&types.RecommendSetTopic{},
		&types.RecommendSimilar{},
		&types.Bookmark{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error code %s, got nil", code)
	}
	ae := apierr.From(err)
	if ae.Code != code {
		t.Fatalf("expected error code %s, got %s (%v)", code, ae.Code, err)
	}
}

func wantCodeStatus(t *testing.T, err error, code string, status int) {
	t.Helper()
	wantCode(t, err, code)
	if ae := apierr.From(err); ae.Status != status {
		t.Fatalf("expected status %d for %s, got %d", status, code, ae.Status)
	}
}

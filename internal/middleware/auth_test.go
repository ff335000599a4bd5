package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/repos"
	"github.com/likenovel/likenovel-backend/internal/services"
	"github.com/likenovel/likenovel-backend/internal/types"
)

// staticVerifier maps any bearer token to a fixed subject.
type staticVerifier struct {
	sub string
}

func (s staticVerifier) Verify(ctx context.Context, tokenString string) (*services.AccessClaims, error) {
	return &services.AccessClaims{Sub: s.sub}, nil
}

func (s staticVerifier) DecodeExpired(tokenString string) (*services.AccessClaims, error) {
	return &services.AccessClaims{Sub: s.sub}, nil
}

func newAuthRouter(t *testing.T, sub string) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&types.User{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	am := NewAuthMiddleware(log, staticVerifier{sub: sub}, repos.NewUserRepo(db, log))

	r := gin.New()
	r.GET("/protected", am.RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": "ok"})
	})
	return r, db
}

func doAuthed(t *testing.T, r *gin.Engine, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body.Error.Code
}

func TestRequireAuth_ActiveUserPasses(t *testing.T) {
	r, db := newAuthRouter(t, "kc-active")
	if err := db.Create(&types.User{KcUserID: "kc-active", Email: "a@example.com", UseYn: types.YnYes}).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	rec := doAuthed(t, r, "token")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
}

func TestRequireAuth_MissingTokenUnauthorized(t *testing.T) {
	r, _ := newAuthRouter(t, "kc-any")

	rec := doAuthed(t, r, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if code := errorCode(t, rec); code != "LOGIN_REQUIRED" {
		t.Fatalf("code = %q", code)
	}
}

func TestRequireAuth_UnknownSubjectUnauthorized(t *testing.T) {
	r, _ := newAuthRouter(t, "kc-ghost")

	rec := doAuthed(t, r, "token")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if code := errorCode(t, rec); code != "NOT_REGISTERED_ACCOUNT" {
		t.Fatalf("code = %q", code)
	}
}

func TestRequireAuth_WithdrawnUserForbidden(t *testing.T) {
	r, db := newAuthRouter(t, "kc-gone")
	if err := db.Create(&types.User{KcUserID: "kc-gone", Email: "gone@example.com", UseYn: types.YnNo}).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	rec := doAuthed(t, r, "token")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if code := errorCode(t, rec); code != "WITHDRAWN_ACCOUNT_ACCESS" {
		t.Fatalf("code = %q", code)
	}
}

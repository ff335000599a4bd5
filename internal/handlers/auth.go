package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/likenovel/likenovel-backend/internal/apierr"
	"github.com/likenovel/likenovel-backend/internal/clients/sns"
	"github.com/likenovel/likenovel-backend/internal/observability"
	"github.com/likenovel/likenovel-backend/internal/requestdata"
	"github.com/likenovel/likenovel-backend/internal/services"
	"github.com/likenovel/likenovel-backend/internal/types"
)

type AuthHandler struct {
	authService services.AuthService
	metrics     *observability.Metrics
}

func NewAuthHandler(authService services.AuthService, metrics *observability.Metrics) *AuthHandler {
	return &AuthHandler{authService: authService, metrics: metrics}
}

func (ah *AuthHandler) Signup(c *gin.Context) {
	var req struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		Nickname    string `json:"nickname"`
		Birthdate   string `json:"birthdate"`
		Gender      string `json:"gender"`
		MarketingYn string `json:"marketing_yn"`
		StaySigned  bool   `json:"stay_signed"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "INVALID_REQUEST_BODY")
		return
	}
	tokens, err := ah.authService.SignupLocal(c.Request.Context(), services.LocalSignupInput{
		Email:       req.Email,
		Password:    req.Password,
		Nickname:    req.Nickname,
		Birthdate:   req.Birthdate,
		Gender:      req.Gender,
		MarketingYn: req.MarketingYn,
		StaySigned:  req.StaySigned,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	ah.metrics.RecordSignin(types.SignedTypeLocal)
	RespondOK(c, tokens)
}

func (ah *AuthHandler) Signin(c *gin.Context) {
	var req struct {
		Email      string `json:"email"`
		Password   string `json:"password"`
		StaySigned bool   `json:"stay_signed"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "INVALID_REQUEST_BODY")
		return
	}
	tokens, err := ah.authService.SigninLocal(c.Request.Context(), req.Email, req.Password, req.StaySigned)
	if err != nil {
		RespondError(c, err)
		return
	}
	ah.metrics.RecordSignin(types.SignedTypeLocal)
	RespondOK(c, tokens)
}

func (ah *AuthHandler) AdminSignin(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "INVALID_REQUEST_BODY")
		return
	}
	tokens, err := ah.authService.AdminSignin(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, tokens)
}

// SocialCallback finishes the provider redirect for both signup and signin.
// kind is the provider, mode distinguishes the two flows.
func (ah *AuthHandler) SocialCallback(c *gin.Context) {
	kind := c.Param("kind")
	var flow sns.Flow
	switch c.Param("mode") {
	case "signup":
		flow = sns.FlowSignup
	case "signin":
		flow = sns.FlowSignin
	default:
		RespondBadRequest(c, "INVALID_SOCIAL_MODE")
		return
	}
	var req struct {
		Code       string `json:"code"`
		State      string `json:"state"`
		StaySigned bool   `json:"stay_signed"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "INVALID_REQUEST_BODY")
		return
	}
	tokens, err := ah.authService.SocialCallback(c.Request.Context(), kind, flow, req.Code, req.State, req.StaySigned)
	if err != nil {
		RespondError(c, err)
		return
	}
	ah.metrics.RecordSignin(kind)
	RespondOK(c, tokens)
}

func (ah *AuthHandler) Reissue(c *gin.Context) {
	var req struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "INVALID_REQUEST_BODY")
		return
	}
	tokens, err := ah.authService.Reissue(c.Request.Context(), req.AccessToken, req.RefreshToken)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, tokens)
}

func (ah *AuthHandler) Signoff(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, apierr.Unauthorized(apierr.CodeLoginRequired))
		return
	}
	if err := ah.authService.Signoff(c.Request.Context(), rd.UserID); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"withdrawn": true})
}

func (ah *AuthHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Email       string `json:"email"`
		NewPassword string `json:"new_password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "INVALID_REQUEST_BODY")
		return
	}
	if err := ah.authService.ResetPassword(c.Request.Context(), req.Email, req.NewPassword); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"reset": true})
}

func (ah *AuthHandler) FindAccount(c *gin.Context) {
	nickname := c.Query("nickname")
	if nickname == "" {
		RespondBadRequest(c, "NICKNAME_REQUIRED")
		return
	}
	found, err := ah.authService.FindAccount(c.Request.Context(), nickname)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, found)
}

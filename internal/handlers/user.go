package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/likenovel/likenovel-backend/internal/requestdata"
	"github.com/likenovel/likenovel-backend/internal/services"
)

type UserHandler struct {
	users         services.UserService
	notifications services.NotificationService
}

func NewUserHandler(users services.UserService, notifications services.NotificationService) *UserHandler {
	return &UserHandler{users: users, notifications: notifications}
}

func (uh *UserHandler) Me(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	me, err := uh.users.Me(c.Request.Context(), rd.UserID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, me)
}

func (uh *UserHandler) Notifications(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "30"))
	rows, err := uh.notifications.ListByUser(c.Request.Context(), rd.UserID, limit)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, rows)
}

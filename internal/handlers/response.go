package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/likenovel/likenovel-backend/internal/apierr"
)

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

type DataEnvelope struct {
	Data any `json:"data"`
}

// RespondError maps any error through apierr.From so unknown errors surface
// as 500 DB_OPERATION_ERROR rather than leaking raw messages.
func RespondError(c *gin.Context, err error) {
	ae := apierr.From(err)
	c.JSON(ae.Status, ErrorEnvelope{Error: APIError{Code: ae.Code, Message: ae.Error()}})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, DataEnvelope{Data: payload})
}

func RespondBadRequest(c *gin.Context, code string) {
	c.JSON(http.StatusBadRequest, ErrorEnvelope{Error: APIError{Code: code, Message: code}})
}

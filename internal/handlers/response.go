package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"taskboard/internal/repositories"
	"taskboard/internal/services"
)

// envelope is the body of every REST response.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Field   string      `json:"field,omitempty"`
}

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, envelope{Success: true, Data: data})
}

func respondError(c *gin.Context, status int, msg, field string) {
	c.AbortWithStatusJSON(status, envelope{Success: false, Error: msg, Field: field})
}

// respondServiceError maps a service error onto a status code. Store failures
// are logged here and reported without detail.
func respondServiceError(c *gin.Context, log *logrus.Entry, err error) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		respondError(c, http.StatusBadRequest, ve.Error(), ve.Field)
	case errors.Is(err, repositories.ErrNotFound):
		respondError(c, http.StatusNotFound, "task not found", "")
	default:
		log.WithError(err).Error("request failed")
		respondError(c, http.StatusInternalServerError, "store unavailable", "")
	}
}

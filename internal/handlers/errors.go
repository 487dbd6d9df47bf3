package handlers

import (
	"net/http"

	"github.com/Mandaris-LLC/stagemaster-ai/internal/staging"

	"github.com/gin-gonic/gin"
)

// respondError maps the error taxonomy onto HTTP status codes with the
// standard {"error": ...} body.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case staging.IsNotFound(err):
		status = http.StatusNotFound
	case staging.IsValidation(err):
		status = http.StatusBadRequest
	case staging.IsPrecondition(err):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

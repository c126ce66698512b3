package handlers

import (
	"github.com/gin-gonic/gin"

	"salome-be/internal/apperrors"
)

// respondError maps a service error onto the HTTP status its kind implies.
func respondError(c *gin.Context, err error) {
	c.Error(err)
	c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
}

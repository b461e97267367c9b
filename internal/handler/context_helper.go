package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sweep-app/sweep-api/internal/middleware"
	"github.com/sweep-app/sweep-api/internal/models"
	"github.com/sweep-app/sweep-api/internal/service"
	appErrors "github.com/sweep-app/sweep-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func actorFromContext(c *gin.Context) (service.Actor, error) {
	claims := claimsFromContext(c)
	if claims == nil {
		return service.Actor{}, appErrors.ErrUnauthorized
	}
	return service.Actor{UserID: claims.UserID, Role: claims.Role}, nil
}

func paramID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid "+name)
	}
	return id, nil
}

package handlers

import (
	"errors"

	"github.com/chachabrian/swiftride-backend/internal/confirm"
	"github.com/chachabrian/swiftride-backend/internal/rides"
	"github.com/gin-gonic/gin"
)

// respond writes the standard response envelope.
func respond(c *gin.Context, status int, data interface{}, message string) {
	c.JSON(status, gin.H{
		"success": status < 400,
		"data":    data,
		"message": message,
	})
}

func respondError(c *gin.Context, status int, message string) {
	respond(c, status, nil, message)
}

// respondServiceError maps lifecycle errors to HTTP statuses.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, rides.ErrNotFound):
		respondError(c, 404, "Ride not found")
	case errors.Is(err, rides.ErrAlreadyAccepted):
		respondError(c, 409, "Ride was already accepted by another driver")
	case errors.Is(err, rides.ErrInvalidTransition):
		respondError(c, 409, "Ride is not in a state that allows this action")
	case errors.Is(err, rides.ErrDriverUnavailable):
		respondError(c, 409, "Driver is not available for this ride")
	case errors.Is(err, rides.ErrUnauthorized):
		respondError(c, 403, "You are not a party to this ride")
	case errors.Is(err, confirm.ErrExpired):
		respondError(c, 410, "Confirmation token expired, request a new quote")
	case errors.Is(err, confirm.ErrNotFound):
		respondError(c, 404, "Confirmation token not found or already used")
	default:
		respondError(c, 500, "Internal server error")
	}
}

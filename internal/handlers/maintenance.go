package handlers

import (
	"strconv"

	"github.com/chachabrian/swiftride-backend/internal/reaper"
	"github.com/gin-gonic/gin"
)

// TriggerCleanup runs one orphan sweep on demand and reports the count.
// Safe to call repeatedly; already-cleaned rides are simply not matched
// again.
func TriggerCleanup(r *reaper.Reaper) gin.HandlerFunc {
	return func(c *gin.Context) {
		cleaned, err := r.SweepOnce(c.Request.Context(), "manual")
		if err != nil {
			respondError(c, 500, "Cleanup failed")
			return
		}
		respond(c, 200, gin.H{"cleaned": cleaned}, "Cleanup complete")
	}
}

// ForceResetUser unconditionally retires all of one user's active rides
// and resets their driver flags. Emergency use.
func ForceResetUser(r *reaper.Reaper) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseUint(c.Param("userId"), 10, 32)
		if err != nil {
			respondError(c, 400, "Invalid user id")
			return
		}

		cleaned, err := r.ForceReset(c.Request.Context(), uint(userID))
		if err != nil {
			respondError(c, 500, "Force reset failed")
			return
		}
		respond(c, 200, gin.H{"cleaned": cleaned}, "User state reset")
	}
}

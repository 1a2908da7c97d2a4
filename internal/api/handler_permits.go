package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"smart-street-backend/internal/parse"
)

// VerifyPermit checks a permit credential offline and reports whether its
// occupancy window is active right now.
func (h *Handler) VerifyPermit(c *gin.Context) {
	token, err := parse.Required("token", c.Query("token"))
	if err != nil {
		writeError(c, err)
		return
	}

	claims, err := h.verifier.Verify(token)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":      true,
		"active":     claims.ActiveAt(time.Now()),
		"permit_id":  claims.PermitID,
		"request_id": claims.RequestID,
		"vendor_id":  claims.VendorID,
		"valid_from": claims.ValidFrom,
		"valid_to":   claims.ValidTo,
	})
}

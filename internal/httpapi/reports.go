package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"rbac-admin/internal/reporting"

	"github.com/gin-gonic/gin"
)

// LoginReport summarizes sign-in activity. from/to are RFC 3339; the window
// defaults to the last 24 hours.
func (h Handlers) LoginReport(c *gin.Context) {
	to := time.Now().UTC()
	from := to.Add(-24 * time.Hour)

	var err error
	if raw := c.Query("from"); raw != "" {
		if from, err = time.Parse(time.RFC3339, raw); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC 3339"})
			return
		}
	}
	if raw := c.Query("to"); raw != "" {
		if to, err = time.Parse(time.RFC3339, raw); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC 3339"})
			return
		}
	}
	top, _ := strconv.Atoi(c.Query("top"))

	out, err := h.Reports.LoginSummary(c.Request.Context(), reporting.LoginSummaryRequest{
		Range: reporting.TimeRange{From: from, To: to},
		Top:   top,
	})
	if errors.Is(err, reporting.ErrInvalidRequest) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid time range"})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

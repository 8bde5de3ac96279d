package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lendingdesk/backoffice/internal/auth"
	admindomain "github.com/lendingdesk/backoffice/internal/domain/admin"
	creditdomain "github.com/lendingdesk/backoffice/internal/domain/credit"
	loandomain "github.com/lendingdesk/backoffice/internal/domain/loan"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{loandomain.ErrNotFound, http.StatusNotFound},
	{creditdomain.ErrNotFound, http.StatusNotFound},
	{admindomain.ErrNotFound, http.StatusNotFound},

	{loandomain.ErrInvalidInput, http.StatusBadRequest},
	{loandomain.ErrInvalidPeriod, http.StatusBadRequest},
	{creditdomain.ErrInvalidInput, http.StatusBadRequest},
	{creditdomain.ErrInvalidPeriod, http.StatusBadRequest},
	{admindomain.ErrInvalidRole, http.StatusBadRequest},
	{auth.ErrInvalidEmail, http.StatusBadRequest},
	{auth.ErrWeakPassword, http.StatusBadRequest},

	{auth.ErrInvalidCredentials, http.StatusUnauthorized},
	{auth.ErrInvalidSession, http.StatusUnauthorized},

	{loandomain.ErrForbidden, http.StatusForbidden},
	{creditdomain.ErrForbidden, http.StatusForbidden},
	{admindomain.ErrForbidden, http.StatusForbidden},
	{admindomain.ErrSelfDemote, http.StatusForbidden},

	{auth.ErrEmailTaken, http.StatusConflict},
	{loandomain.ErrInvalidTransition, http.StatusConflict},
	{loandomain.ErrRepaymentRejected, http.StatusConflict},
	{loandomain.ErrStaleState, http.StatusConflict},
	{creditdomain.ErrInvalidTransition, http.StatusConflict},
	{creditdomain.ErrPayoutRejected, http.StatusConflict},
	{creditdomain.ErrStaleState, http.StatusConflict},

	{loandomain.ErrOverpayment, http.StatusUnprocessableEntity},
	{creditdomain.ErrPayoutExceeds, http.StatusUnprocessableEntity},
}

// writeError maps a domain sentinel to its status and snake_case code.
// Anything unrecognised becomes a 500 carrying fallback.
func writeError(c *gin.Context, err error, fallback string) {
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			body := gin.H{"error": m.err.Error()}
			if m.status == http.StatusBadRequest || m.status == http.StatusUnprocessableEntity {
				if detail := err.Error(); detail != m.err.Error() {
					body["detail"] = strings.TrimPrefix(detail, m.err.Error()+": ")
				}
			}
			c.JSON(m.status, body)
			return
		}
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
}

func page(c *gin.Context) (limit, offset int32) {
	l, _ := strconv.ParseInt(strings.TrimSpace(c.DefaultQuery("limit", "50")), 10, 32)
	o, _ := strconv.ParseInt(strings.TrimSpace(c.DefaultQuery("offset", "0")), 10, 32)
	if l <= 0 || l > 200 {
		l = 50
	}
	if o < 0 {
		o = 0
	}
	return int32(l), int32(o)
}

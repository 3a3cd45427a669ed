package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// NewRelicUser tags the request's New Relic transaction with the authenticated caller.
// Must run after nrgin.Middleware and Authenticate.
func NewRelicUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if txn := nrgin.Transaction(c); txn != nil {
			if uid := UserID(c); uid != "" {
				txn.AddAttribute("user_id", uid)
			}
		}
		c.Next()

		if txn := nrgin.Transaction(c); txn != nil {
			for _, err := range c.Errors {
				txn.NoticeError(err.Err)
			}
		}
	}
}

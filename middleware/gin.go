package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Gin adapts RequirePayment's stdlib http.Handler middleware to gin's
// HandlerFunc, for routes registered on a *gin.Engine rather than bare
// net/http.
func Gin(cfg Config, amountUSD float64, description string) gin.HandlerFunc {
	wrap := RequirePayment(cfg, amountUSD, description)
	return func(c *gin.Context) {
		handled := false
		h := wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handled = true
			c.Next()
		}))
		h.ServeHTTP(c.Writer, c.Request)
		if !handled {
			c.Abort()
		}
	}
}

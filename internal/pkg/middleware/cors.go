package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS allows any origin. Action clients (wallets, blink renderers) call the
// API straight from the browser.
func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type", "Authorization", "Content-Encoding", "Accept-Encoding",
			"X-Action-Version", "X-Blockchain-Ids", requestIdHeader,
		},
		ExposeHeaders: []string{"X-Action-Version", "X-Blockchain-Ids", requestIdHeader},
		MaxAge:        12 * time.Hour,
	})
}

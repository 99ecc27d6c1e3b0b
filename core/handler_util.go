package core

import "github.com/gin-gonic/gin"

// respondError sends unified error payload {"error": {"code", "message"}}.
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}

// abortError is respondError followed by c.Abort for middleware.
func abortError(c *gin.Context, status int, code, message string) {
	respondError(c, status, code, message)
	c.Abort()
}

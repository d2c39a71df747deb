package middleware

import (
	"github.com/gin-gonic/gin"
)

const sessionIDKey = "session_id"

// SessionID 将路径参数中的暂存会话ID存入上下文，供日志使用
func SessionID(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := c.Param(param); id != "" {
			SetSessionID(c, id)
		}
		c.Next()
	}
}

// SetSessionID 记录本次请求涉及的会话ID
func SetSessionID(c *gin.Context, id string) {
	c.Set(sessionIDKey, id)
}

// GetSessionID 从上下文获取会话ID
func GetSessionID(c *gin.Context) (string, bool) {
	id, exists := c.Get(sessionIDKey)
	if !exists {
		return "", false
	}
	return id.(string), true
}

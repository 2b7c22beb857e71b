package middleware

import (
	"net/http"

	"github.com/Baptiste-Yucca/rent2repay/internal/config"
	"github.com/Baptiste-Yucca/rent2repay/internal/service"
	"github.com/gin-gonic/gin"
)

const (
	HeaderAdminKey = "X-Admin-Key"
	// ContextCallerKey 保存经过认证的链上 caller 地址
	ContextCallerKey = "caller_address"
)

// AdminMiddleware 校验管理密钥并把当前 admin 地址注入为 caller。
// 地址从 Controller 实时读取：两段式转移完成后，密钥映射到新任 admin，
// 而不是启动时配置的那个。核心层仍按地址做权限校验。
func AdminMiddleware(cfg *config.Config, ctrl *service.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg == nil || cfg.Auth.AdminKey == "" {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin key not configured"})
			c.Abort()
			return
		}
		if c.GetHeader(HeaderAdminKey) != cfg.Auth.AdminKey {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid admin key"})
			c.Abort()
			return
		}
		c.Set(ContextCallerKey, ctrl.State().Admin)
		c.Next()
	}
}

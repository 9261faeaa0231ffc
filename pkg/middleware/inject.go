package middleware

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// DbField gin 上下文中数据库实例的键
const DbField = "db"

// InjectDB 将全局数据库实例注入请求上下文
func InjectDB(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(DbField, db)
		c.Next()
	}
}

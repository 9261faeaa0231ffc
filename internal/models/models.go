package models

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// gin 上下文键，由认证中间件写入
const (
	UserIDKey    = "userID"
	UserEmailKey = "userEmail"
)

// CurrentUserID 返回当前登录用户 ID，未认证时为空串
func CurrentUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

// CurrentUser 按上下文中的用户 ID 查出用户
func CurrentUser(c *gin.Context, db *gorm.DB) (*User, error) {
	id := CurrentUserID(c)
	if id == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var u User
	if err := db.First(&u, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// Migrate 建表
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&AudioRecording{},
		&Transcription{},
		&Task{},
	)
}

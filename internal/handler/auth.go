package handlers

import (
	"strings"

	"HibiscusMeet/internal/models"
	"HibiscusMeet/pkg/middleware"
	"HibiscusMeet/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type signupRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type signinRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// 注册
func (h *Handlers) handleUserSignup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "invalid signup request", nil)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	var count int64
	if err := h.db.Model(&models.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		response.Fail(c, "can not check email", nil)
		return
	}
	if count > 0 {
		response.Fail(c, "email already registered", nil)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		response.Fail(c, "can not hash password", nil)
		return
	}

	user := models.User{
		Email:     req.Email,
		Password:  string(hash),
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
	if err := h.db.Create(&user).Error; err != nil {
		h.logger.Error("create user failed", zap.Error(err))
		response.Fail(c, "can not create user", nil)
		return
	}

	token, err := middleware.GenerateToken(user.ID, user.Email)
	if err != nil {
		response.Fail(c, "can not issue token", nil)
		return
	}
	response.Created(c, "user registered", gin.H{"token": token, "user": user})
}

// 登录
func (h *Handlers) handleUserSignin(c *gin.Context) {
	var req signinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "invalid login request", nil)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	var user models.User
	if err := h.db.First(&user, "email = ?", req.Email).Error; err != nil {
		// 不区分用户不存在和密码错误
		response.Unauthorized(c, "invalid email or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	token, err := middleware.GenerateToken(user.ID, user.Email)
	if err != nil {
		response.Fail(c, "can not issue token", nil)
		return
	}
	response.Success(c, "login ok", gin.H{"token": token, "user": user})
}

// 当前用户信息
func (h *Handlers) handleUserInfo(c *gin.Context) {
	user, err := models.CurrentUser(c, h.db)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			response.NotFound(c, "user not found")
			return
		}
		response.Fail(c, "can not load user", nil)
		return
	}
	response.Success(c, "user info", user)
}

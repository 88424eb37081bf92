package api

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"kolia/internal/domain"     // Importing domain models
	"kolia/internal/middleware" // Context keys
	"kolia/internal/utils"      // Utility functions

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
	"golang.org/x/crypto/bcrypt" // Password hashing
)

// RegisterRequest is the sign-up payload
type RegisterRequest struct {
	Name     string      `json:"name" binding:"required,min=2,max=100"`
	Email    string      `json:"email" binding:"required,email"`
	Password string      `json:"password" binding:"required,min=8,max=72"` // bcrypt limit
	Phone    string      `json:"phone" binding:"required,kolia_phone"`
	Address  string      `json:"address"`
	Role     domain.Role `json:"role"` // client, restaurant or livreur; admin cannot self-register
}

// LoginRequest is the sign-in payload
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// RegisterHandler creates an account and returns a token for it
func RegisterHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid registration data")
			return
		}
		if req.Role == "" {
			req.Role = domain.RoleClient
		}
		if !req.Role.Valid() || req.Role == domain.RoleAdmin {
			badRequest(c, "Invalid role")
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			respond(c, http.StatusInternalServerError, "Failed to hash password", nil)
			return
		}
		user := domain.User{
			Name:     strings.TrimSpace(req.Name),
			Email:    strings.ToLower(strings.TrimSpace(req.Email)), // Emails are unique case-insensitively
			Password: string(hash),
			Phone:    req.Phone,
			Address:  req.Address,
			Role:     req.Role,
		}
		var existing int64
		d.DB.Model(&domain.User{}).Where("email = ?", user.Email).Count(&existing)
		if existing > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Email already registered", "code": "email_taken"})
			return
		}
		if err := d.DB.Create(&user).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Email already registered", "code": "email_taken"})
			return
		}
		token, err := utils.GenerateJWT(user.ID, user.Role, d.JWTSecret, d.JWTTTL)
		if err != nil {
			respond(c, http.StatusInternalServerError, "Failed to generate token", nil)
			return
		}
		logrus.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("User registered")
		d.Cache.Invalidate(c.Request.Context(), "admin:users:*")
		respond(c, http.StatusCreated, "User registered successfully", AuthResponse{Token: token, User: &user})
	}
}

// LoginHandler authenticates a user and returns a JWT token
func LoginHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request")
			return
		}
		var user domain.User
		if err := d.DB.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error; err != nil {
			respond(c, http.StatusUnauthorized, "Invalid credentials", nil)
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
			respond(c, http.StatusUnauthorized, "Invalid credentials", nil)
			return
		}
		token, err := utils.GenerateJWT(user.ID, user.Role, d.JWTSecret, d.JWTTTL)
		if err != nil {
			respond(c, http.StatusInternalServerError, "Failed to generate token", nil)
			return
		}
		respondOK(c, AuthResponse{Token: token, User: &user})
	}
}

// MeHandler returns the authenticated account
func MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := c.Get(middleware.CtxUser) // Loaded by RequireRoles
		if !ok {
			respond(c, http.StatusUnauthorized, "Unauthorized", nil)
			return
		}
		respondOK(c, user)
	}
}

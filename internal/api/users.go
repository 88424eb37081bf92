package api

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"kolia/internal/domain" // Importing domain models
	"kolia/internal/service"

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// UpdateUserRequest holds the editable profile fields; nil fields are left unchanged
type UpdateUserRequest struct {
	Name    *string      `json:"name" binding:"omitempty,min=2,max=100"`
	Phone   *string      `json:"phone" binding:"omitempty,kolia_phone"`
	Address *string      `json:"address"`
	Role    *domain.Role `json:"role"` // Admin only
}

// ListUsersHandler pages through accounts, optionally filtered by role
func ListUsersHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		p := listParams(c)
		role := c.Query("role")
		cacheKey := "admin:users:role=" + role + ":page=" + itoa(p.Page) + ":size=" + itoa(p.PageSize)
		var cached gin.H
		if d.Cache.Get(ctx, cacheKey, &cached) {
			cached["cached"] = true
			respondOK(c, cached)
			return
		}
		limit, offset := p.Normalize()
		q := d.DB.WithContext(ctx).Model(&domain.User{})
		if role != "" {
			q = q.Where("role = ?", role)
		}
		q = q.Session(&gorm.Session{})
		var total int64
		if err := q.Count(&total).Error; err != nil {
			respond(c, http.StatusInternalServerError, "Failed to count users", nil)
			return
		}
		var users []domain.User
		if err := q.Order("id").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
			respond(c, http.StatusInternalServerError, "Failed to fetch users", nil)
			return
		}
		data := paged("users", users, p, total)
		d.Cache.Set(ctx, cacheKey, data, cacheTTL)
		data["cached"] = false
		respondOK(c, data)
	}
}

// canAccessUser allows users to reach their own account and admins to reach any
func canAccessUser(actor service.Actor, id uint) bool {
	return actor.IsAdmin() || actor.ID == id
}

// GetUserHandler returns one account
func GetUserHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uintParam(c, "id")
		if !ok {
			return
		}
		if !canAccessUser(currentActor(c), id) {
			respond(c, http.StatusForbidden, "Access denied", nil)
			return
		}
		var user domain.User
		if err := d.DB.WithContext(c.Request.Context()).First(&user, id).Error; err != nil {
			respond(c, http.StatusNotFound, "User not found", nil)
			return
		}
		respondOK(c, user)
	}
}

// UpdateUserHandler edits a profile. Only admins may change roles.
func UpdateUserHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uintParam(c, "id")
		if !ok {
			return
		}
		actor := currentActor(c)
		if !canAccessUser(actor, id) {
			respond(c, http.StatusForbidden, "Access denied", nil)
			return
		}
		var req UpdateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid profile data")
			return
		}
		updates := map[string]any{}
		if req.Name != nil {
			updates["name"] = strings.TrimSpace(*req.Name)
		}
		if req.Phone != nil {
			updates["phone"] = *req.Phone
		}
		if req.Address != nil {
			updates["address"] = *req.Address
		}
		if req.Role != nil {
			if !actor.IsAdmin() {
				respond(c, http.StatusForbidden, "Only admins can change roles", nil)
				return
			}
			if !req.Role.Valid() {
				badRequest(c, "Invalid role")
				return
			}
			updates["role"] = string(*req.Role)
		}
		var user domain.User
		db := d.DB.WithContext(c.Request.Context())
		if err := db.First(&user, id).Error; err != nil {
			respond(c, http.StatusNotFound, "User not found", nil)
			return
		}
		if len(updates) > 0 {
			if err := db.Model(&user).Updates(updates).Error; err != nil {
				respond(c, http.StatusInternalServerError, "Failed to update user", nil)
				return
			}
			d.Cache.Invalidate(c.Request.Context(), "admin:users:*")
		}
		db.First(&user, id)
		respond(c, http.StatusOK, "Profile updated", user)
	}
}

// DeleteUserHandler removes an account along with its restaurants and orders
func DeleteUserHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uintParam(c, "id")
		if !ok {
			return
		}
		res := d.DB.WithContext(c.Request.Context()).Delete(&domain.User{}, id)
		if res.Error != nil {
			logrus.WithFields(logrus.Fields{"user_id": id, "error": res.Error.Error()}).Error("Failed to delete user")
			respond(c, http.StatusInternalServerError, "Failed to delete user", nil)
			return
		}
		if res.RowsAffected == 0 {
			respond(c, http.StatusNotFound, "User not found", nil)
			return
		}
		logrus.WithFields(logrus.Fields{"user_id": id, "by": currentActor(c).ID}).Info("User deleted")
		d.Cache.Invalidate(c.Request.Context(), "admin:users:*", "restaurants:*", "dishes:*")
		respond(c, http.StatusOK, "User deleted", nil)
	}
}

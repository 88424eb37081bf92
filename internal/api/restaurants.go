package api

import (
	"errors"   // Error inspection
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"kolia/internal/domain" // Importing domain models

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Money
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/gorm"                  // GORM ORM library
)

// RestaurantRequest is the create/update payload. On update nil fields are left unchanged.
type RestaurantRequest struct {
	Name         *string          `json:"name" binding:"omitempty,min=2,max=100"`
	Description  *string          `json:"description"`
	Address      *string          `json:"address"`
	Phone        *string          `json:"phone" binding:"omitempty,kolia_phone"`
	Commune      *domain.Commune  `json:"commune"`
	Category     *string          `json:"category"`
	DeliveryFee  *decimal.Decimal `json:"deliveryFee"`
	DeliveryTime *string          `json:"deliveryTime"`
}

// StatusRequest carries a new restaurant status
type StatusRequest struct {
	Status domain.RestaurantStatus `json:"status" binding:"required"`
}

func invalidateCatalog(c *gin.Context, d *Deps) {
	d.Cache.Invalidate(c.Request.Context(), "restaurants:*", "dishes:*")
}

// loadOwnedRestaurant fetches a restaurant the caller may manage, answering 404/403 itself
func loadOwnedRestaurant(c *gin.Context, d *Deps, id uint) (*domain.Restaurant, bool) {
	var r domain.Restaurant
	if err := d.DB.WithContext(c.Request.Context()).First(&r, id).Error; err != nil {
		respond(c, http.StatusNotFound, "Restaurant not found", nil)
		return nil, false
	}
	actor := currentActor(c)
	if !actor.IsAdmin() && r.UserID != actor.ID {
		respond(c, http.StatusForbidden, "You do not manage this restaurant", nil)
		return nil, false
	}
	return &r, true
}

// ListRestaurantsHandler lists restaurants filtered by commune, category and a name search
func ListRestaurantsHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		p := listParams(c)
		commune, category, search := c.Query("commune"), c.Query("category"), strings.TrimSpace(c.Query("search"))
		cacheKey := "restaurants:list:commune=" + commune + ":category=" + category + ":search=" + search +
			":page=" + itoa(p.Page) + ":size=" + itoa(p.PageSize)
		var cached gin.H
		if d.Cache.Get(ctx, cacheKey, &cached) {
			respondOK(c, cached)
			return
		}
		limit, offset := p.Normalize()
		q := d.DB.WithContext(ctx).Model(&domain.Restaurant{}).Where("status = ?", domain.RestaurantActive)
		if commune != "" {
			q = q.Where("commune = ?", commune)
		}
		if category != "" {
			q = q.Where("category = ?", category)
		}
		if search != "" {
			like := "%" + strings.ToLower(search) + "%"
			q = q.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", like, like)
		}
		q = q.Session(&gorm.Session{})
		var total int64
		if err := q.Count(&total).Error; err != nil {
			respond(c, http.StatusInternalServerError, "Failed to count restaurants", nil)
			return
		}
		var list []domain.Restaurant
		if err := q.Order("rating DESC, id").Offset(offset).Limit(limit).Find(&list).Error; err != nil {
			respond(c, http.StatusInternalServerError, "Failed to fetch restaurants", nil)
			return
		}
		data := paged("restaurants", list, p, total)
		d.Cache.Set(ctx, cacheKey, data, cacheTTL)
		respondOK(c, data)
	}
}

// MyRestaurantHandler returns the restaurant owned by the caller
func MyRestaurantHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var r domain.Restaurant
		err := d.DB.WithContext(c.Request.Context()).Preload("Dishes").
			Where("user_id = ?", currentActor(c).ID).First(&r).Error
		if err != nil {
			respond(c, http.StatusNotFound, "You have no restaurant yet", nil)
			return
		}
		respondOK(c, r)
	}
}

// GetRestaurantHandler returns a restaurant with its available dishes
func GetRestaurantHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uintParam(c, "id")
		if !ok {
			return
		}
		var r domain.Restaurant
		err := d.DB.WithContext(c.Request.Context()).
			Preload("Dishes", "is_available = ?", true).
			First(&r, id).Error
		if err != nil {
			respond(c, http.StatusNotFound, "Restaurant not found", nil)
			return
		}
		respondOK(c, r)
	}
}

// ListRestaurantDishesHandler lists a restaurant's menu. all=true includes unavailable
// dishes and is honoured for the owner only; the route is public so the token is optional.
func ListRestaurantDishesHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uintParam(c, "id")
		if !ok {
			return
		}
		db := d.DB.WithContext(c.Request.Context())
		var r domain.Restaurant
		if err := db.Select("id", "user_id").First(&r, id).Error; err != nil {
			respond(c, http.StatusNotFound, "Restaurant not found", nil)
			return
		}
		q := db.Where("restaurant_id = ?", id)
		if !(c.Query("all") == "true" && optionalUserID(c, d) == r.UserID) {
			q = q.Where("is_available = ?", true)
		}
		var dishes []domain.Dish
		if err := q.Order("category, name").Find(&dishes).Error; err != nil {
			respond(c, http.StatusInternalServerError, "Failed to fetch dishes", nil)
			return
		}
		respondOK(c, gin.H{"dishes": dishes})
	}
}

// CreateRestaurantHandler opens the caller's restaurant. An owner has at most one.
func CreateRestaurantHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RestaurantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid restaurant data")
			return
		}
		if req.Name == nil || req.Address == nil || req.Phone == nil || req.Commune == nil || req.Category == nil {
			badRequest(c, "name, address, phone, commune and category are required")
			return
		}
		if !req.Commune.Valid() {
			badRequest(c, "Unknown commune")
			return
		}
		if req.DeliveryFee != nil && req.DeliveryFee.IsNegative() {
			badRequest(c, "Delivery fee cannot be negative")
			return
		}
		owner := currentActor(c).ID
		r := domain.Restaurant{
			UserID:   owner,
			Name:     strings.TrimSpace(*req.Name),
			Address:  *req.Address,
			Phone:    *req.Phone,
			Commune:  *req.Commune,
			Category: *req.Category,
			Status:   domain.RestaurantActive,
		}
		if req.Description != nil {
			r.Description = *req.Description
		}
		if req.DeliveryFee != nil {
			r.DeliveryFee = decimal.NewNullDecimal(*req.DeliveryFee)
		}
		r.DeliveryTime = "25-35 min"
		if req.DeliveryTime != nil {
			r.DeliveryTime = *req.DeliveryTime
		}

		err := d.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			var n int64
			if err := tx.Model(&domain.Restaurant{}).Where("user_id = ?", owner).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return errOwnerHasRestaurant
			}
			return tx.Create(&r).Error
		})
		if errors.Is(err, errOwnerHasRestaurant) {
			badRequest(c, "You already own a restaurant")
			return
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{"user_id": owner, "error": err.Error()}).Error("Failed to create restaurant")
			respond(c, http.StatusInternalServerError, "Failed to create restaurant", nil)
			return
		}
		logrus.WithFields(logrus.Fields{"restaurant_id": r.ID, "user_id": owner}).Info("Restaurant created")
		invalidateCatalog(c, d)
		respond(c, http.StatusCreated, "Restaurant created", r)
	}
}

var errOwnerHasRestaurant = errors.New("owner already has a restaurant")

// UpdateRestaurantHandler edits restaurant details
func UpdateRestaurantHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uintParam(c, "id")
		if !ok {
			return
		}
		r, ok := loadOwnedRestaurant(c, d, id)
		if !ok {
			return
		}
		var req RestaurantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid restaurant data")
			return
		}
		updates := map[string]any{}
		if req.Name != nil {
			updates["name"] = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			updates["description"] = *req.Description
		}
		if req.Address != nil {
			updates["address"] = *req.Address
		}
		if req.Phone != nil {
			updates["phone"] = *req.Phone
		}
		if req.Commune != nil {
			if !req.Commune.Valid() {
				badRequest(c, "Unknown commune")
				return
			}
			updates["commune"] = string(*req.Commune)
		}
		if req.Category != nil {
			updates["category"] = *req.Category
		}
		if req.DeliveryFee != nil {
			if req.DeliveryFee.IsNegative() {
				badRequest(c, "Delivery fee cannot be negative")
				return
			}
			updates["delivery_fee"] = decimal.NewNullDecimal(*req.DeliveryFee)
		}
		if req.DeliveryTime != nil {
			updates["delivery_time"] = *req.DeliveryTime
		}
		db := d.DB.WithContext(c.Request.Context())
		if len(updates) > 0 {
			if err := db.Model(r).Updates(updates).Error; err != nil {
				respond(c, http.StatusInternalServerError, "Failed to update restaurant", nil)
				return
			}
			invalidateCatalog(c, d)
		}
		db.First(r, id)
		respond(c, http.StatusOK, "Restaurant updated", r)
	}
}

// UpdateRestaurantStatusHandler lets owners open or close their restaurant and admins also suspend it
func UpdateRestaurantStatusHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uintParam(c, "id")
		if !ok {
			return
		}
		var req StatusRequest
		if err := c.ShouldBindJSON(&req); err != nil || !req.Status.Valid() {
			badRequest(c, "Invalid status")
			return
		}
		r, ok := loadOwnedRestaurant(c, d, id)
		if !ok {
			return
		}
		actor := currentActor(c)
		if req.Status == domain.RestaurantSuspended && !actor.IsAdmin() {
			respond(c, http.StatusForbidden, "Only admins can suspend a restaurant", nil)
			return
		}
		if r.Status == domain.RestaurantSuspended && !actor.IsAdmin() {
			respond(c, http.StatusForbidden, "Restaurant is suspended", nil)
			return
		}
		if err := d.DB.WithContext(c.Request.Context()).Model(r).Update("status", req.Status).Error; err != nil {
			respond(c, http.StatusInternalServerError, "Failed to update status", nil)
			return
		}
		r.Status = req.Status
		logrus.WithFields(logrus.Fields{"restaurant_id": id, "status": req.Status, "by": actor.ID}).Info("Restaurant status changed")
		invalidateCatalog(c, d)
		respond(c, http.StatusOK, "Status updated", r)
	}
}

// DeleteRestaurantHandler removes a restaurant and its dishes
func DeleteRestaurantHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uintParam(c, "id")
		if !ok {
			return
		}
		r, ok := loadOwnedRestaurant(c, d, id)
		if !ok {
			return
		}
		if err := d.DB.WithContext(c.Request.Context()).Delete(r).Error; err != nil {
			logrus.WithFields(logrus.Fields{"restaurant_id": id, "error": err.Error()}).Error("Failed to delete restaurant")
			respond(c, http.StatusInternalServerError, "Failed to delete restaurant", nil)
			return
		}
		invalidateCatalog(c, d)
		respond(c, http.StatusOK, "Restaurant deleted", nil)
	}
}

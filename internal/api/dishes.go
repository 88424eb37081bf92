package api

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"kolia/internal/domain" // Importing domain models

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Money
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/gorm"                  // GORM ORM library
)

// DishRequest is the create/update payload; nil fields are left unchanged on update
type DishRequest struct {
	Name            *string          `json:"name" binding:"omitempty,min=2,max=100"`
	Description     *string          `json:"description"`
	Price           *decimal.Decimal `json:"price"`
	Category        *string          `json:"category"`
	IsVegetarian    *bool            `json:"isVegetarian"`
	IsVegan         *bool            `json:"isVegan"`
	IsGlutenFree    *bool            `json:"isGlutenFree"`
	IsSpicy         *bool            `json:"isSpicy"`
	PreparationTime *int             `json:"preparationTime" binding:"omitempty,min=1,max=600"`
	Ingredients     *string          `json:"ingredients"`
	IsAvailable     *bool            `json:"isAvailable"`
}

func (r DishRequest) updates() map[string]any {
	u := map[string]any{}
	if r.Name != nil {
		u["name"] = strings.TrimSpace(*r.Name)
	}
	if r.Description != nil {
		u["description"] = *r.Description
	}
	if r.Price != nil {
		u["price"] = *r.Price
	}
	if r.Category != nil {
		u["category"] = *r.Category
	}
	if r.IsVegetarian != nil {
		u["is_vegetarian"] = *r.IsVegetarian
	}
	if r.IsVegan != nil {
		u["is_vegan"] = *r.IsVegan
	}
	if r.IsGlutenFree != nil {
		u["is_gluten_free"] = *r.IsGlutenFree
	}
	if r.IsSpicy != nil {
		u["is_spicy"] = *r.IsSpicy
	}
	if r.PreparationTime != nil {
		u["preparation_time"] = *r.PreparationTime
	}
	if r.Ingredients != nil {
		u["ingredients"] = *r.Ingredients
	}
	if r.IsAvailable != nil {
		u["is_available"] = *r.IsAvailable
	}
	return u
}

// DishCreateRequest wraps DishRequest with the owning restaurant
type DishCreateRequest struct {
	RestaurantID uint `json:"restaurantId"`
	DishRequest
}

// dishFilters applies the catalog query-string filters shared by list and search
func dishFilters(c *gin.Context, q *gorm.DB) *gorm.DB {
	q = q.Where("dishes.is_available = ?", true).
		Joins("JOIN restaurants ON restaurants.id = dishes.restaurant_id").
		Where("restaurants.status = ?", domain.RestaurantActive)
	if v := c.Query("restaurant_id"); v != "" {
		q = q.Where("dishes.restaurant_id = ?", v)
	}
	if v := c.Query("category"); v != "" {
		q = q.Where("dishes.category = ?", v)
	}
	for param, column := range map[string]string{
		"vegetarian":  "dishes.is_vegetarian",
		"vegan":       "dishes.is_vegan",
		"gluten_free": "dishes.is_gluten_free",
		"spicy":       "dishes.is_spicy",
	} {
		if c.Query(param) == "true" {
			q = q.Where(column+" = ?", true)
		}
	}
	return q
}

func listDishes(c *gin.Context, d *Deps, prefix string, scope func(*gorm.DB) *gorm.DB) {
	ctx := c.Request.Context()
	p := listParams(c)
	cacheKey := prefix + ":" + c.Request.URL.Query().Encode() + ":page=" + itoa(p.Page) + ":size=" + itoa(p.PageSize)
	var cached gin.H
	if d.Cache.Get(ctx, cacheKey, &cached) {
		respondOK(c, cached)
		return
	}
	limit, offset := p.Normalize()
	q := scope(dishFilters(c, d.DB.WithContext(ctx).Model(&domain.Dish{}))).Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		respond(c, http.StatusInternalServerError, "Failed to count dishes", nil)
		return
	}
	var dishes []domain.Dish
	if err := q.Select("dishes.*").Order("dishes.name").Offset(offset).Limit(limit).Find(&dishes).Error; err != nil {
		respond(c, http.StatusInternalServerError, "Failed to fetch dishes", nil)
		return
	}
	data := paged("dishes", dishes, p, total)
	d.Cache.Set(ctx, cacheKey, data, cacheTTL)
	respondOK(c, data)
}

// ListDishesHandler lists available dishes of active restaurants
func ListDishesHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		listDishes(c, d, "dishes:list", func(q *gorm.DB) *gorm.DB { return q })
	}
}

// SearchDishesHandler matches dishes by name, description or ingredients
func SearchDishesHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		term := strings.ToLower(strings.TrimSpace(c.Query("q")))
		if term == "" {
			badRequest(c, "Search term q is required")
			return
		}
		like := "%" + term + "%"
		listDishes(c, d, "dishes:search", func(q *gorm.DB) *gorm.DB {
			return q.Where("LOWER(dishes.name) LIKE ? OR LOWER(dishes.description) LIKE ? OR LOWER(dishes.ingredients) LIKE ?", like, like, like)
		})
	}
}

// GetDishHandler returns one dish
func GetDishHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uintParam(c, "id")
		if !ok {
			return
		}
		var dish domain.Dish
		if err := d.DB.WithContext(c.Request.Context()).First(&dish, id).Error; err != nil {
			respond(c, http.StatusNotFound, "Dish not found", nil)
			return
		}
		respondOK(c, dish)
	}
}

// CreateDishHandler adds a dish to the caller's restaurant
func CreateDishHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req DishCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid dish data")
			return
		}
		if req.Name == nil || req.Price == nil || req.Category == nil {
			badRequest(c, "name, price and category are required")
			return
		}
		if req.Price.IsNegative() {
			badRequest(c, "Price cannot be negative")
			return
		}
		db := d.DB.WithContext(c.Request.Context())
		var r domain.Restaurant
		q := db.Where("user_id = ?", currentActor(c).ID)
		if req.RestaurantID != 0 {
			q = q.Where("id = ?", req.RestaurantID)
		}
		if err := q.First(&r).Error; err != nil {
			respond(c, http.StatusForbidden, "You do not manage this restaurant", nil)
			return
		}
		dish := domain.Dish{
			RestaurantID:    r.ID,
			Name:            strings.TrimSpace(*req.Name),
			Price:           *req.Price,
			Category:        *req.Category,
			PreparationTime: 25,
			IsAvailable:     true,
		}
		if err := db.Create(&dish).Error; err != nil {
			respond(c, http.StatusInternalServerError, "Failed to create dish", nil)
			return
		}
		// Optional fields go through the same path as updates so explicit false values stick
		if u := req.DishRequest.updates(); len(u) > 0 {
			if err := db.Model(&dish).Updates(u).Error; err != nil {
				respond(c, http.StatusInternalServerError, "Failed to create dish", nil)
				return
			}
		}
		db.First(&dish, dish.ID)
		logrus.WithFields(logrus.Fields{"dish_id": dish.ID, "restaurant_id": r.ID}).Info("Dish created")
		invalidateCatalog(c, d)
		respond(c, http.StatusCreated, "Dish created", dish)
	}
}

// loadOwnedDish fetches a dish whose restaurant belongs to the caller
func loadOwnedDish(c *gin.Context, d *Deps) (*domain.Dish, bool) {
	id, ok := uintParam(c, "id")
	if !ok {
		return nil, false
	}
	db := d.DB.WithContext(c.Request.Context())
	var dish domain.Dish
	if err := db.First(&dish, id).Error; err != nil {
		respond(c, http.StatusNotFound, "Dish not found", nil)
		return nil, false
	}
	var n int64
	db.Model(&domain.Restaurant{}).Where("id = ? AND user_id = ?", dish.RestaurantID, currentActor(c).ID).Count(&n)
	if n == 0 {
		respond(c, http.StatusForbidden, "You do not manage this dish", nil)
		return nil, false
	}
	return &dish, true
}

// UpdateDishHandler edits a dish of the caller's restaurant
func UpdateDishHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		dish, ok := loadOwnedDish(c, d)
		if !ok {
			return
		}
		var req DishRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid dish data")
			return
		}
		if req.Price != nil && req.Price.IsNegative() {
			badRequest(c, "Price cannot be negative")
			return
		}
		db := d.DB.WithContext(c.Request.Context())
		if u := req.updates(); len(u) > 0 {
			if err := db.Model(dish).Updates(u).Error; err != nil {
				respond(c, http.StatusInternalServerError, "Failed to update dish", nil)
				return
			}
			invalidateCatalog(c, d)
		}
		db.First(dish, dish.ID)
		respond(c, http.StatusOK, "Dish updated", dish)
	}
}

// DeleteDishHandler removes a dish. Existing order items keep their snapshot.
func DeleteDishHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		dish, ok := loadOwnedDish(c, d)
		if !ok {
			return
		}
		if err := d.DB.WithContext(c.Request.Context()).Delete(dish).Error; err != nil {
			logrus.WithFields(logrus.Fields{"dish_id": dish.ID, "error": err.Error()}).Error("Failed to delete dish")
			respond(c, http.StatusInternalServerError, "Failed to delete dish", nil)
			return
		}
		invalidateCatalog(c, d)
		respond(c, http.StatusOK, "Dish deleted", nil)
	}
}

package api

import (
	"net/http" // HTTP status codes

	"kolia/internal/domain" // Importing domain models

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Money
	"gorm.io/gorm"                  // GORM ORM library
)

// Dashboard is the platform overview shown to admins
type Dashboard struct {
	UsersByRole       map[domain.Role]int64        `json:"users_by_role"`
	OrdersByStatus    map[domain.OrderStatus]int64 `json:"orders_by_status"`
	ActiveRestaurants int64                        `json:"active_restaurants"`
	Revenue           decimal.Decimal              `json:"revenue"`    // Total of delivered orders
	Commission        decimal.Decimal              `json:"commission"` // Platform share of delivered orders
	PendingPayments   int64                        `json:"pending_payments"`
}

type groupCount struct {
	Key   string
	Total int64
}

func countBy(db *gorm.DB, model any, column string) (map[string]int64, error) {
	var rows []groupCount
	err := db.Model(model).Select(column + " AS `key`, COUNT(*) AS total").Group(column).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Total
	}
	return out, nil
}

func buildDashboard(db *gorm.DB) (*Dashboard, error) {
	dash := &Dashboard{
		UsersByRole:    map[domain.Role]int64{},
		OrdersByStatus: map[domain.OrderStatus]int64{},
	}
	byRole, err := countBy(db, &domain.User{}, "role")
	if err != nil {
		return nil, err
	}
	for _, r := range []domain.Role{domain.RoleClient, domain.RoleRestaurant, domain.RoleLivreur, domain.RoleAdmin} {
		dash.UsersByRole[r] = byRole[string(r)]
	}
	statuses, err := countBy(db, &domain.Order{}, "status")
	if err != nil {
		return nil, err
	}
	for _, s := range domain.OrderStatuses {
		dash.OrdersByStatus[s] = statuses[string(s)]
	}
	if err := db.Model(&domain.Restaurant{}).Where("status = ?", domain.RestaurantActive).
		Count(&dash.ActiveRestaurants).Error; err != nil {
		return nil, err
	}
	var sums struct {
		Revenue    decimal.NullDecimal
		Commission decimal.NullDecimal
	}
	if err := db.Model(&domain.Order{}).
		Select("SUM(total) AS revenue, SUM(commission) AS commission").
		Where("status = ?", domain.StatusDelivered).
		Scan(&sums).Error; err != nil {
		return nil, err
	}
	dash.Revenue = sums.Revenue.Decimal
	dash.Commission = sums.Commission.Decimal
	if err := db.Model(&domain.Transaction{}).Where("status = ?", domain.TxPending).
		Count(&dash.PendingPayments).Error; err != nil {
		return nil, err
	}
	return dash, nil
}

// DashboardHandler returns platform statistics, cached briefly
func DashboardHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		const cacheKey = "admin:dashboard"
		var cached Dashboard
		if d.Cache.Get(ctx, cacheKey, &cached) {
			respondOK(c, cached)
			return
		}
		dash, err := buildDashboard(d.DB.WithContext(ctx))
		if err != nil {
			respond(c, http.StatusInternalServerError, "Failed to build dashboard", nil)
			return
		}
		d.Cache.Set(ctx, cacheKey, dash, cacheTTL)
		respondOK(c, dash)
	}
}

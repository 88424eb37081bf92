package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kolia/internal/config"
	"kolia/internal/domain"
	"kolia/internal/errs"
	"kolia/internal/notify"
	"kolia/internal/statemachine"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// OrderService places orders and drives them through their lifecycle
type OrderService struct {
	db             *gorm.DB
	notifier       notify.Dispatcher
	commissionRate decimal.Decimal
	defaultFee     decimal.Decimal
	now            func() time.Time
}

func NewOrderService(db *gorm.DB, notifier notify.Dispatcher, cfg *config.Config) *OrderService {
	return &OrderService{
		db:             db,
		notifier:       notifier,
		commissionRate: decimal.NewFromFloat(cfg.CommissionRate),
		defaultFee:     decimal.NewFromFloat(cfg.DefaultDeliveryFee),
		now:            time.Now,
	}
}

// CartItem is one line of a checkout. It carries no price: prices always come from the dish record.
type CartItem struct {
	DishID   uint
	Quantity int
}

// CreateOrderInput is a buyer's checkout request
type CreateOrderInput struct {
	RestaurantID    uint
	Items           []CartItem
	DeliveryAddress string
	Phone           string
	PaymentMethod   domain.PaymentMethod
	Notes           string
}

func (in CreateOrderInput) validate() error {
	switch {
	case in.RestaurantID == 0:
		return errs.Validation(errs.CodeInvalidInput, "restaurant is required").With("field", "restaurantId")
	case len(in.Items) == 0:
		return errs.Validation(errs.CodeInvalidInput, "order must contain at least one item").With("field", "items")
	case strings.TrimSpace(in.DeliveryAddress) == "":
		return errs.Validation(errs.CodeInvalidInput, "delivery address is required").With("field", "deliveryAddress")
	case !domain.ValidPhone(in.Phone):
		return errs.Validation(errs.CodeInvalidInput, "phone must be in +243XXXXXXXXX format").With("field", "phone")
	case !in.PaymentMethod.Valid():
		return errs.Validation(errs.CodeInvalidInput, "unsupported payment method").With("field", "paymentMethod")
	}
	for _, it := range in.Items {
		if it.DishID == 0 || it.Quantity < 1 {
			return errs.Validation(errs.CodeInvalidInput, "each item needs a dish and a quantity of at least 1").With("dishId", it.DishID)
		}
	}
	return nil
}

// CreateOrder prices the cart from the catalog and persists the order, its items and
// the first history entry atomically. The buyer is notified once the order is committed.
func (s *OrderService) CreateOrder(ctx context.Context, buyerID uint, in CreateOrderInput) (*domain.Order, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)

	var restaurant domain.Restaurant
	if err := db.First(&restaurant, in.RestaurantID).Error; err != nil {
		if isNotFound(err) {
			return nil, errs.Validation(errs.CodeRestaurantNotFound, "restaurant not found").With("restaurantId", in.RestaurantID)
		}
		return nil, errs.Persistence("failed to load restaurant", err)
	}
	if restaurant.Status != domain.RestaurantActive {
		return nil, errs.Validation(errs.CodeInvalidInput, "restaurant is not accepting orders").With("restaurantId", in.RestaurantID)
	}

	ids := make([]uint, 0, len(in.Items))
	for _, it := range in.Items {
		ids = append(ids, it.DishID)
	}
	var dishes []domain.Dish
	if err := db.Where("id IN ? AND restaurant_id = ? AND is_available = ?", ids, in.RestaurantID, true).
		Find(&dishes).Error; err != nil {
		return nil, errs.Persistence("failed to load dishes", err)
	}
	byID := make(map[uint]domain.Dish, len(dishes))
	for _, d := range dishes {
		byID[d.ID] = d
	}

	subtotal := decimal.Zero
	items := make([]domain.OrderItem, 0, len(in.Items))
	for _, it := range in.Items {
		dish, ok := byID[it.DishID]
		if !ok {
			return nil, errs.Validation(errs.CodeInvalidItem, "dish is unavailable or not sold by this restaurant").
				With("dishId", it.DishID)
		}
		line := dish.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		subtotal = subtotal.Add(line)
		items = append(items, domain.OrderItem{
			DishID:    dish.ID,
			DishName:  dish.Name,
			Quantity:  it.Quantity,
			UnitPrice: dish.Price,
			LineTotal: line,
		})
	}

	fee := s.defaultFee
	if restaurant.DeliveryFee.Valid {
		fee = restaurant.DeliveryFee.Decimal
	}

	order := domain.Order{
		UserID:          buyerID,
		RestaurantID:    restaurant.ID,
		Status:          domain.StatusPending,
		Subtotal:        subtotal,
		DeliveryFee:     fee,
		Total:           subtotal.Add(fee),
		Commission:      subtotal.Mul(s.commissionRate).Round(2),
		DeliveryAddress: strings.TrimSpace(in.DeliveryAddress),
		Phone:           in.Phone,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   domain.PaymentPending,
		Notes:           in.Notes,
		Version:         1,
		Items:           items,
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		return tx.Create(&domain.OrderStatusHistory{
			OrderID:   order.ID,
			Status:    domain.StatusPending,
			ChangedBy: &buyerID,
			Note:      "order placed",
		}).Error
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id":       buyerID,
			"restaurant_id": restaurant.ID,
			"error":         err.Error(),
		}).Error("Order creation failed")
		return nil, errs.Persistence("failed to create order", err)
	}

	logrus.WithFields(logrus.Fields{
		"order_id":      order.ID,
		"user_id":       buyerID,
		"restaurant_id": restaurant.ID,
		"total":         order.Total.String(),
	}).Info("Order created")

	sendBestEffort(ctx, s.notifier, order.ID, order.Phone, notify.OrderCreatedMessage(order.ID, order.Total.String()))
	return &order, nil
}

func (s *OrderService) load(ctx context.Context, id uint) (*domain.Order, error) {
	var order domain.Order
	err := s.db.WithContext(ctx).Preload("Restaurant").Preload("Items").First(&order, id).Error
	if err != nil {
		if isNotFound(err) {
			return nil, errs.NotFound(errs.CodeOrderNotFound, "order not found").With("orderId", id)
		}
		return nil, errs.Persistence("failed to load order", err)
	}
	return &order, nil
}

func ownsRestaurant(order *domain.Order, actor Actor) bool {
	return order.Restaurant != nil && order.Restaurant.UserID == actor.ID
}

// canView decides who may read an order
func canView(order *domain.Order, actor Actor) bool {
	switch actor.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleClient:
		return order.UserID == actor.ID
	case domain.RoleRestaurant:
		return ownsRestaurant(order, actor)
	case domain.RoleLivreur:
		return order.DriverID == nil || *order.DriverID == actor.ID
	}
	return false
}

// authorizeStatusChange enforces who may move an order to status
func authorizeStatusChange(order *domain.Order, actor Actor, status domain.OrderStatus) error {
	switch actor.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleRestaurant:
		if ownsRestaurant(order, actor) {
			return nil
		}
		return errs.Forbidden("order belongs to another restaurant")
	case domain.RoleLivreur:
		if order.DriverID != nil && *order.DriverID != actor.ID {
			return errs.Forbidden("order is assigned to another driver")
		}
		if status != domain.StatusOutForDelivery && status != domain.StatusDelivered {
			return errs.Forbidden("drivers may only report delivery progress")
		}
		return nil
	}
	return errs.Forbidden("not allowed to change order status")
}

// GetOrder returns an order with its items. Orders the actor may not see are reported as missing.
func (s *OrderService) GetOrder(ctx context.Context, id uint, actor Actor) (*domain.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(order, actor) {
		return nil, errs.NotFound(errs.CodeOrderNotFound, "order not found").With("orderId", id)
	}
	return order, nil
}

func (s *OrderService) list(ctx context.Context, scope func(*gorm.DB) *gorm.DB, p ListParams) ([]domain.Order, int64, error) {
	limit, offset := p.Normalize()
	q := scope(s.db.WithContext(ctx).Model(&domain.Order{}))
	if p.Status != "" {
		if !domain.OrderStatus(p.Status).Valid() {
			return nil, 0, errs.Validation(errs.CodeInvalidStatus, "unknown order status").With("status", p.Status)
		}
		q = q.Where("status = ?", p.Status)
	}
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, errs.Persistence("failed to count orders", err)
	}
	var orders []domain.Order
	if err := q.Preload("Restaurant").Preload("Items").
		Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&orders).Error; err != nil {
		return nil, 0, errs.Persistence("failed to list orders", err)
	}
	return orders, total, nil
}

// ListUserOrders lists the orders a buyer placed
func (s *OrderService) ListUserOrders(ctx context.Context, userID uint, p ListParams) ([]domain.Order, int64, error) {
	return s.list(ctx, func(q *gorm.DB) *gorm.DB { return q.Where("user_id = ?", userID) }, p)
}

// ListDriverOrders lists the orders assigned to a driver
func (s *OrderService) ListDriverOrders(ctx context.Context, driverID uint, p ListParams) ([]domain.Order, int64, error) {
	return s.list(ctx, func(q *gorm.DB) *gorm.DB { return q.Where("driver_id = ?", driverID) }, p)
}

// ListRestaurantOrders lists a restaurant's orders; only its owner and admins may see them
func (s *OrderService) ListRestaurantOrders(ctx context.Context, restaurantID uint, actor Actor, p ListParams) ([]domain.Order, int64, error) {
	var restaurant domain.Restaurant
	if err := s.db.WithContext(ctx).Select("id", "user_id").First(&restaurant, restaurantID).Error; err != nil {
		if isNotFound(err) {
			return nil, 0, errs.NotFound(errs.CodeRestaurantNotFound, "restaurant not found")
		}
		return nil, 0, errs.Persistence("failed to load restaurant", err)
	}
	if !actor.IsAdmin() && restaurant.UserID != actor.ID {
		return nil, 0, errs.Forbidden("restaurant belongs to another user")
	}
	return s.list(ctx, func(q *gorm.DB) *gorm.DB { return q.Where("restaurant_id = ?", restaurantID) }, p)
}

// ListOrders lists every order; admin only
func (s *OrderService) ListOrders(ctx context.Context, p ListParams) ([]domain.Order, int64, error) {
	return s.list(ctx, func(q *gorm.DB) *gorm.DB { return q }, p)
}

// History returns the status trail of an order, oldest first
func (s *OrderService) History(ctx context.Context, id uint, actor Actor) ([]domain.OrderStatusHistory, error) {
	if _, err := s.GetOrder(ctx, id, actor); err != nil {
		return nil, err
	}
	var rows []domain.OrderStatusHistory
	if err := s.db.WithContext(ctx).Where("order_id = ?", id).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, errs.Persistence("failed to load order history", err)
	}
	return rows, nil
}

// UpdateStatus moves an order to a new status. expectedVersion, when set, must match the
// stored version. Setting the current status again is a no-op.
func (s *OrderService) UpdateStatus(ctx context.Context, id uint, actor Actor, status domain.OrderStatus, expectedVersion *int) (*domain.Order, error) {
	if !statemachine.IsValid(status) {
		return nil, errs.Validation(errs.CodeInvalidStatus, "unknown order status").With("status", status)
	}
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeStatusChange(order, actor, status); err != nil {
		return nil, err
	}
	if expectedVersion != nil && *expectedVersion != order.Version {
		return nil, errs.Conflict(errs.CodeStaleOrder, "order was modified by someone else").
			With("version", order.Version)
	}
	if order.Status == status {
		return order, nil
	}
	if err := statemachine.CanTransition(order.Status, status); err != nil {
		e := errs.Conflict(errs.CodeInvalidTransition, "status change not allowed")
		e.Err = err
		return nil, e.With("from", order.Status).With("to", status)
	}
	if err := s.apply(ctx, order, status, &actor.ID, nil, "status update"); err != nil {
		return nil, err
	}
	logTransition(order.ID, actor, order.Status, status)
	s.notifyStatus(ctx, order, status)
	return s.load(ctx, id)
}

// CancelOrder cancels an order that is neither delivered nor already cancelled
func (s *OrderService) CancelOrder(ctx context.Context, id uint, actor Actor) (*domain.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !(actor.Role == domain.RoleClient && order.UserID == actor.ID) {
		return nil, errs.Forbidden("only the buyer or an admin may cancel this order")
	}
	if order.IsTerminal() {
		return nil, errs.Conflict(errs.CodeInvalidTransition, "order can no longer be cancelled").
			With("status", order.Status)
	}
	if err := s.apply(ctx, order, domain.StatusCancelled, &actor.ID, nil, "cancelled"); err != nil {
		return nil, err
	}
	logTransition(order.ID, actor, order.Status, domain.StatusCancelled)
	s.notifyStatus(ctx, order, domain.StatusCancelled)
	return s.load(ctx, id)
}

// AssignDriver hands the order to a livreur and marks it out for delivery in one write
func (s *OrderService) AssignDriver(ctx context.Context, id uint, actor Actor, driverID uint) (*domain.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !(actor.Role == domain.RoleRestaurant && ownsRestaurant(order, actor)) {
		return nil, errs.Forbidden("only the restaurant owner or an admin may assign a driver")
	}
	var driver domain.User
	if err := s.db.WithContext(ctx).First(&driver, driverID).Error; err != nil {
		if isNotFound(err) {
			return nil, errs.Validation(errs.CodeInvalidInput, "driver not found").With("driverId", driverID)
		}
		return nil, errs.Persistence("failed to load driver", err)
	}
	if driver.Role != domain.RoleLivreur {
		return nil, errs.Validation(errs.CodeInvalidInput, "user is not a driver").With("driverId", driverID)
	}
	if order.IsTerminal() {
		return nil, errs.Conflict(errs.CodeInvalidTransition, "order is already closed").With("status", order.Status)
	}
	extra := map[string]any{"driver_id": driverID}
	if err := s.apply(ctx, order, domain.StatusOutForDelivery, &actor.ID, extra, fmt.Sprintf("assigned to driver %d", driverID)); err != nil {
		return nil, err
	}
	logTransition(order.ID, actor, order.Status, domain.StatusOutForDelivery)
	if order.Status != domain.StatusOutForDelivery {
		s.notifyStatus(ctx, order, domain.StatusOutForDelivery)
	}
	return s.load(ctx, id)
}

// apply writes a status change guarded by the order version and records it in the history
func (s *OrderService) apply(ctx context.Context, order *domain.Order, to domain.OrderStatus, by *uint, extra map[string]any, note string) error {
	now := s.now()
	updates := map[string]any{
		"status":  string(to),
		"version": gorm.Expr("version + 1"),
	}
	switch to {
	case domain.StatusDelivered:
		updates["delivered_at"] = now
	case domain.StatusCancelled:
		updates["cancelled_at"] = now
	}
	for k, v := range extra {
		updates[k] = v
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Order{}).Where("id = ? AND version = ?", order.ID, order.Version).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errs.Conflict(errs.CodeStaleOrder, "order was modified by someone else")
		}
		return tx.Create(&domain.OrderStatusHistory{
			OrderID:    order.ID,
			FromStatus: order.Status,
			Status:     to,
			ChangedBy:  by,
			Note:       note,
		}).Error
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"order_id": order.ID,
			"from":     order.Status,
			"to":       to,
			"error":    err.Error(),
		}).Error("Order status update failed")
		return dbErr(err, "failed to update order status")
	}
	return nil
}

func (s *OrderService) notifyStatus(ctx context.Context, order *domain.Order, status domain.OrderStatus) {
	msg, ok := notify.StatusMessage(order.ID, status)
	if !ok {
		return
	}
	sendBestEffort(ctx, s.notifier, order.ID, buyerPhone(ctx, s.db, order), msg)
}

// logTransition logs a committed status change
func logTransition(orderID uint, actor Actor, from, to domain.OrderStatus) {
	logrus.WithFields(logrus.Fields{
		"order_id": orderID,
		"user_id":  actor.ID,
		"role":     actor.Role,
		"from":     from,
		"to":       to,
	}).Info("Order status updated")
}

package api

import (
	"net/http" // HTTP status codes

	"kolia/internal/domain"     // Importing domain models
	"kolia/internal/middleware" // Operation metrics
	"kolia/internal/service"    // Order service

	"github.com/gin-gonic/gin" // Gin web framework
)

// CartItemRequest is one checkout line. Any price sent by the client is ignored.
type CartItemRequest struct {
	DishID   uint `json:"dishId" binding:"required"`
	Quantity int  `json:"quantity" binding:"required,min=1"`
}

// CreateOrderRequest is the checkout payload
type CreateOrderRequest struct {
	RestaurantID    uint                 `json:"restaurantId" binding:"required"`
	Items           []CartItemRequest    `json:"items" binding:"required,min=1,dive"`
	DeliveryAddress string               `json:"deliveryAddress" binding:"required"`
	Phone           string               `json:"phone" binding:"required,kolia_phone"`
	PaymentMethod   domain.PaymentMethod `json:"paymentMethod" binding:"required"`
	Notes           string               `json:"notes"`
}

// UpdateStatusRequest moves an order; version enables optimistic locking
type UpdateStatusRequest struct {
	Status  domain.OrderStatus `json:"status" binding:"required"`
	Version *int               `json:"version"`
}

// AssignDriverRequest names the livreur taking the order
type AssignDriverRequest struct {
	DriverID uint `json:"driverId" binding:"required"`
}

func respondOrders(c *gin.Context, d *Deps, orders []domain.Order, p service.ListParams, total int64, err error) {
	if err != nil {
		respondError(c, err, d.IsProd)
		return
	}
	respondOK(c, paged("orders", orders, p, total))
}

// MyOrdersHandler lists the caller's orders
func MyOrdersHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := listParams(c)
		orders, total, err := d.Orders.ListUserOrders(c.Request.Context(), currentActor(c).ID, p)
		respondOrders(c, d, orders, p, total, err)
	}
}

// DriverOrdersHandler lists orders assigned to the calling livreur
func DriverOrdersHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := listParams(c)
		orders, total, err := d.Orders.ListDriverOrders(c.Request.Context(), currentActor(c).ID, p)
		respondOrders(c, d, orders, p, total, err)
	}
}

// RestaurantOrdersHandler lists the orders of one restaurant
func RestaurantOrdersHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uintParam(c, "restaurantId")
		if !ok {
			return
		}
		p := listParams(c)
		orders, total, err := d.Orders.ListRestaurantOrders(c.Request.Context(), id, currentActor(c), p)
		respondOrders(c, d, orders, p, total, err)
	}
}

// ListOrdersHandler lists all orders
func ListOrdersHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := listParams(c)
		orders, total, err := d.Orders.ListOrders(c.Request.Context(), p)
		respondOrders(c, d, orders, p, total, err)
	}
}

// CreateOrderHandler places an order for the calling client
func CreateOrderHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		success := false
		defer func() { middleware.RecordOrderOperation("create", success) }()

		var req CreateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid order data")
			return
		}
		in := service.CreateOrderInput{
			RestaurantID:    req.RestaurantID,
			DeliveryAddress: req.DeliveryAddress,
			Phone:           req.Phone,
			PaymentMethod:   req.PaymentMethod,
			Notes:           req.Notes,
		}
		for _, it := range req.Items {
			in.Items = append(in.Items, service.CartItem{DishID: it.DishID, Quantity: it.Quantity})
		}
		order, err := d.Orders.CreateOrder(c.Request.Context(), currentActor(c).ID, in)
		if err != nil {
			respondError(c, err, d.IsProd)
			return
		}
		success = true
		d.Cache.Invalidate(c.Request.Context(), "admin:dashboard")
		respond(c, http.StatusCreated, "Order created successfully", order)
	}
}

// GetOrderHandler returns one order with its items
func GetOrderHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uintParam(c, "id")
		if !ok {
			return
		}
		order, err := d.Orders.GetOrder(c.Request.Context(), id, currentActor(c))
		if err != nil {
			respondError(c, err, d.IsProd)
			return
		}
		respondOK(c, order)
	}
}

// OrderHistoryHandler returns the status trail of an order
func OrderHistoryHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uintParam(c, "id")
		if !ok {
			return
		}
		rows, err := d.Orders.History(c.Request.Context(), id, currentActor(c))
		if err != nil {
			respondError(c, err, d.IsProd)
			return
		}
		respondOK(c, gin.H{"history": rows})
	}
}

// UpdateOrderStatusHandler applies a status change
func UpdateOrderStatusHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		success := false
		defer func() { middleware.RecordOrderOperation("update_status", success) }()

		id, ok := uintParam(c, "id")
		if !ok {
			return
		}
		var req UpdateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Status is required")
			return
		}
		order, err := d.Orders.UpdateStatus(c.Request.Context(), id, currentActor(c), req.Status, req.Version)
		if err != nil {
			respondError(c, err, d.IsProd)
			return
		}
		success = true
		d.Cache.Invalidate(c.Request.Context(), "admin:dashboard")
		respond(c, http.StatusOK, "Order status updated", order)
	}
}

// CancelOrderHandler cancels an order that has not been delivered
func CancelOrderHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		success := false
		defer func() { middleware.RecordOrderOperation("cancel", success) }()

		id, ok := uintParam(c, "id")
		if !ok {
			return
		}
		order, err := d.Orders.CancelOrder(c.Request.Context(), id, currentActor(c))
		if err != nil {
			respondError(c, err, d.IsProd)
			return
		}
		success = true
		d.Cache.Invalidate(c.Request.Context(), "admin:dashboard")
		respond(c, http.StatusOK, "Order cancelled", order)
	}
}

// AssignDriverHandler assigns a livreur and sends the order out for delivery
func AssignDriverHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		success := false
		defer func() { middleware.RecordOrderOperation("assign_driver", success) }()

		id, ok := uintParam(c, "id")
		if !ok {
			return
		}
		var req AssignDriverRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "driverId is required")
			return
		}
		order, err := d.Orders.AssignDriver(c.Request.Context(), id, currentActor(c), req.DriverID)
		if err != nil {
			respondError(c, err, d.IsProd)
			return
		}
		success = true
		respond(c, http.StatusOK, "Driver assigned", order)
	}
}

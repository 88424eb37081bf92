// Package service implements order placement, the order status lifecycle
// and payment reconciliation on top of gorm.
package service

import (
	"context"
	"errors"

	"kolia/internal/domain"
	"kolia/internal/errs"
	"kolia/internal/notify"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Actor is the authenticated caller of a service operation
type Actor struct {
	ID   uint
	Role domain.Role
}

func (a Actor) IsAdmin() bool { return a.Role == domain.RoleAdmin }

// ListParams pages through list results
type ListParams struct {
	Status   string
	Page     int
	PageSize int
}

const maxPageSize = 100

// Normalize clamps the page to sane bounds and returns limit and offset
func (p *ListParams) Normalize() (limit, offset int) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
	return p.PageSize, (p.Page - 1) * p.PageSize
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// dbErr passes typed errors through and wraps anything else as a persistence failure
func dbErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	if _, ok := errs.As(err); ok {
		return err
	}
	return errs.Persistence(msg, err)
}

// buyerPhone returns the phone on the buyer's account, falling back to the delivery phone
func buyerPhone(ctx context.Context, db *gorm.DB, order *domain.Order) string {
	var buyer domain.User
	if err := db.WithContext(ctx).Select("id", "phone").First(&buyer, order.UserID).Error; err == nil && buyer.Phone != "" {
		return buyer.Phone
	}
	return order.Phone
}

// sendBestEffort dispatches a notification and only logs failures
func sendBestEffort(ctx context.Context, n notify.Dispatcher, orderID uint, phone, msg string) {
	if n == nil {
		return
	}
	res := n.Send(ctx, phone, msg)
	if !res.Success {
		logrus.WithFields(logrus.Fields{
			"order_id": orderID,
			"phone":    phone,
			"error":    res.Error,
		}).Warn("Notification failed")
	}
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Restaurant Model
type Restaurant struct {
	ID           uint                `json:"id" gorm:"primaryKey"`
	UserID       uint                `json:"user_id" gorm:"index;not null"` // Owner
	Owner        *User               `json:"owner,omitempty" gorm:"foreignKey:UserID"`
	Name         string              `json:"name" gorm:"size:100;not null"`
	Description  string              `json:"description" gorm:"type:text"`
	Address      string              `json:"address" gorm:"type:text;not null"`
	Phone        string              `json:"phone" gorm:"size:20;not null"`
	Commune      Commune             `json:"commune" gorm:"size:50;index;not null;check:commune IN ('Kadutu','Ibanda','Bagira')"`
	Category     string              `json:"category" gorm:"size:100;index;not null"`
	DeliveryFee  decimal.NullDecimal `json:"delivery_fee" gorm:"type:decimal(12,2)"` // NULL means the platform default applies
	DeliveryTime string              `json:"delivery_time" gorm:"size:50"`
	Rating       decimal.Decimal     `json:"rating" gorm:"type:decimal(3,2);default:0"`
	Status       RestaurantStatus    `json:"status" gorm:"size:20;index;not null;default:active;check:status IN ('active','inactive','suspended')"`
	Dishes       []Dish              `json:"dishes,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// Dish Model
type Dish struct {
	ID              uint            `json:"id" gorm:"primaryKey"`
	RestaurantID    uint            `json:"restaurant_id" gorm:"index;not null"`
	Name            string          `json:"name" gorm:"size:100;not null"`
	Description     string          `json:"description" gorm:"type:text"`
	Price           decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null;check:price >= 0"`
	Category        string          `json:"category" gorm:"size:100;index;not null"`
	IsVegetarian    bool            `json:"is_vegetarian" gorm:"default:false"`
	IsVegan         bool            `json:"is_vegan" gorm:"default:false"`
	IsGlutenFree    bool            `json:"is_gluten_free" gorm:"default:false"`
	IsSpicy         bool            `json:"is_spicy" gorm:"default:false"`
	PreparationTime int             `json:"preparation_time" gorm:"default:25"` // Minutes
	Ingredients     string          `json:"ingredients" gorm:"type:text"`
	IsAvailable     bool            `json:"is_available" gorm:"index"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

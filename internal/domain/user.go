package domain

import (
	"regexp"
	"time"
)

// User Model
type User struct {
	ID          uint          `json:"id" gorm:"primaryKey"`                                                                                      // Primary key
	Name        string        `json:"name" gorm:"size:100;not null"`                                                                             // Display name
	Email       string        `json:"email" gorm:"size:255;uniqueIndex;not null"`                                                                // Unique email
	Password    string        `json:"-" gorm:"size:255;not null"`                                                                                // Hashed password
	Phone       string        `json:"phone" gorm:"size:20;not null"`                                                                             // Phone number (+243...)
	Address     string        `json:"address" gorm:"type:text"`                                                                                  // Postal address
	Role        Role          `json:"role" gorm:"size:20;index;not null;default:client;check:role IN ('client','restaurant','livreur','admin')"` // client, restaurant, livreur, admin
	Restaurants []Restaurant  `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`                                                    // Owned restaurants
	Orders      []Order       `json:"-" gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`                                  // Orders placed
	Payments    []Transaction `json:"-" gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`                                  // Payment attempts
	CreatedAt   time.Time     `json:"created_at"`                                                                                                // Creation time
	UpdatedAt   time.Time     `json:"updated_at"`                                                                                                // Last update time
}

var phonePattern = regexp.MustCompile(`^\+243[0-9]{9}$`)

// ValidPhone reports whether phone is a Congolese number in +243XXXXXXXXX form
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

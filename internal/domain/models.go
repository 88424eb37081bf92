package domain

// Models returns every persisted model in migration order
func Models() []any {
	return []any{
		&User{},
		&Restaurant{},
		&Dish{},
		&Order{},
		&OrderItem{},
		&OrderStatusHistory{},
		&Transaction{},
	}
}

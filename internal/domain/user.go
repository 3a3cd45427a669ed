package domain

import "time"

// User is a rider or driver account. A negative Balance means the user owes money.
type User struct {
	ID        string
	Name      string
	Phone     string
	Gender    Gender
	Balance   int64
	CreatedAt time.Time
}

package entity

import "time"

type User struct {
	ID             uint64
	Email          string
	HashedPassword string
	IsAdmin        bool
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

package models

import "time"

// Config stores server-side settings like the generated API key.
type Config struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

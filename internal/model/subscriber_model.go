package model

import "time"

type Subscriber struct {
	ID       int64  `gorm:"column:id;primaryKey" json:"-"`
	Email    string `gorm:"column:email" json:"email"`
	Name     string `gorm:"column:name" json:"name"`
	IsActive bool   `gorm:"column:is_active" json:"is_active"`
	DripStep int    `gorm:"column:drip_step" json:"drip_step"`
	// Unix milliseconds, zero when no dispatcher holds the subscriber.
	DripLeaseUntil int64     `gorm:"column:drip_lease_until" json:"-"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"created_at"`
}

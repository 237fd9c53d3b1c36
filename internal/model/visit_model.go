package model

import "time"

type VisitLog struct {
	ID        int64     `gorm:"column:id;primaryKey" json:"-"`
	Path      string    `gorm:"column:path" json:"path"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

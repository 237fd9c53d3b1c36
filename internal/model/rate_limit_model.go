package model

import "time"

type RateLimitRecord struct {
	Count       int
	WindowStart time.Time
}

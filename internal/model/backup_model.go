package model

import "time"

// Backup is derived from a file in the backup directory, it is never stored
// as a row.
type Backup struct {
	Name          string    `json:"name"`
	Size          int64     `json:"size"`
	SizeFormatted string    `json:"sizeFormatted"`
	CreatedAt     time.Time `json:"created"`
}

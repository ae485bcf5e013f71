package models

import "time"

type Table struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"type"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

package models

import "time"

type MenuCollection struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

type MenuItem struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	Price            int64   `json:"price"`
	Category         string  `json:"category"`
	ImageURL         *string `json:"imageUrl"`
	Available        bool    `json:"available"`
	MenuCollectionID int64   `json:"menuCollectionId"`
}

// MenuFilter narrows menu item listings. Zero values mean "any".
type MenuFilter struct {
	CollectionID  int64
	Search        string
	AvailableOnly bool
}

type MenuCollectionPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"isActive,omitempty"`
}

type MenuItemPatch struct {
	Name             *string `json:"name,omitempty"`
	Price            *int64  `json:"price,omitempty"`
	Category         *string `json:"category,omitempty"`
	ImageURL         *string `json:"imageUrl,omitempty"`
	Available        *bool   `json:"available,omitempty"`
	MenuCollectionID *int64  `json:"menuCollectionId,omitempty"`
}

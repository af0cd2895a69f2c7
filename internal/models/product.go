package models

import "time"

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProductQuery is a normalized catalog listing request.
type ProductQuery struct {
	Search    string
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

type PageMeta struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

type ProductPage struct {
	Data []Product `json:"data"`
	Meta PageMeta  `json:"meta"`
}

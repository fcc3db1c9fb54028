package model

import (
	"time"
)

// Article is a published blog post. Author holds the username of the user
// who created it, stamped once at creation; it is a denormalized marker for
// the ownership check, not a foreign key.
type Article struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

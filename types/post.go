package types

import "time"

// Post represents a blog post. Title and Body are stored encrypted, each
// as an independent ciphertext token under the author's content key; the
// service layer decrypts them before a post leaves the API.
type Post struct {
	// ID is the unique identifier of the post.
	ID int `json:"id" db:"id"`

	// UserID references the author.
	UserID int `json:"user_id" db:"user_id"`

	// Created is the creation or last-update time.
	Created time.Time `json:"created" db:"created"`

	// Title is the post title.
	Title string `json:"title" db:"title"`

	// Body is the post body.
	Body string `json:"body" db:"body"`
}

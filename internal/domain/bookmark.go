package domain

import "time"

type BookmarkKind string

const (
	BookmarkKindForm    BookmarkKind = "form"
	BookmarkKindWebsite BookmarkKind = "website"
)

type Bookmark struct {
	ID        int64        `json:"id"`
	Kind      BookmarkKind `json:"-"`
	Title     string       `json:"title"`
	URL       string       `json:"url"`
	CreatedAt time.Time    `json:"created_at"`
}

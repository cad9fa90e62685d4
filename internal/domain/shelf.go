package domain

import "time"

// Genre is a book genre produced by the classifier. Name is the natural key.
type Genre struct {
	ID          int64
	Name        string
	Description string
}

// ClassifiedPost records that a post was classified into a genre.
type ClassifiedPost struct {
	PostID  int64
	GenreID int64
}

// Book is identified by (Title, Author). An empty Author means the author
// could not be extracted. GenreID is fixed at creation.
type Book struct {
	ID      int64
	Title   string
	Author  string
	GenreID int64
}

// SavedSkeet links a user's save of a post to an optional book.
type SavedSkeet struct {
	ID      int64
	PostID  int64
	UserID  int64
	BookID  *int64
	SavedAt time.Time
}

// Entities is the cleaned output of entity extraction. Empty strings mean
// nothing usable was found.
type Entities struct {
	Author string
	Title  string
}

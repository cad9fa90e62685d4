package usecase

import (
	"context"
	"fmt"

	"SkeetShelf/internal/domain"
	"SkeetShelf/internal/ports"
	"SkeetShelf/internal/validation"
)

// Shelf serves interactive saves for an authenticated user.
type Shelf struct {
	store ports.ShelfStore
}

// NewShelf builds the shelf use case over a store.
func NewShelf(store ports.ShelfStore) *Shelf {
	return &Shelf{store: store}
}

// SavePost stores raw (if new) and records a book-less save for userID.
// A book found later by the pipeline under the same user is backfilled.
func (s *Shelf) SavePost(ctx context.Context, userID int64, raw domain.RawPost) (domain.SavedSkeet, error) {
	if userID <= 0 {
		return domain.SavedSkeet{}, fmt.Errorf("%w: user id must be positive", domain.ErrValidation)
	}
	if err := validation.Struct(raw); err != nil {
		return domain.SavedSkeet{}, err
	}
	post, err := raw.ToPost()
	if err != nil {
		return domain.SavedSkeet{}, err
	}

	stored, err := s.store.EnsurePost(ctx, post)
	if err != nil {
		return domain.SavedSkeet{}, fmt.Errorf("save post: %w", err)
	}
	saved, err := s.store.EnsureSavedSkeet(ctx, stored.ID, userID, nil)
	if err != nil {
		return domain.SavedSkeet{}, fmt.Errorf("save post: %w", err)
	}
	return saved, nil
}

// Unsave drops userID's save of postID.
func (s *Shelf) Unsave(ctx context.Context, userID, postID int64) error {
	return s.store.DeleteSavedSkeet(ctx, userID, postID)
}

// MyPosts lists the posts userID saved; an empty shelf is ErrNotFound.
func (s *Shelf) MyPosts(ctx context.Context, userID int64) ([]domain.Post, error) {
	posts, err := s.store.SavedPosts(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, fmt.Errorf("saved posts for user %d: %w", userID, domain.ErrNotFound)
	}
	return posts, nil
}

// MyBooks lists the distinct books behind userID's saves.
func (s *Shelf) MyBooks(ctx context.Context, userID int64) ([]domain.Book, error) {
	books, err := s.store.SavedBooks(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, fmt.Errorf("saved books for user %d: %w", userID, domain.ErrNotFound)
	}
	return books, nil
}

// Genres lists every genre the classifier has produced so far.
func (s *Shelf) Genres(ctx context.Context) ([]domain.Genre, error) {
	return s.store.ListGenres(ctx)
}

// PostDetail bundles a post with the genres it was classified into.
type PostDetail struct {
	Post   domain.Post
	Genres []domain.Genre
}

// Post returns one stored post with its genres.
func (s *Shelf) Post(ctx context.Context, postID int64) (PostDetail, error) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return PostDetail{}, err
	}
	genres, err := s.store.GenresForPost(ctx, postID)
	if err != nil {
		return PostDetail{}, err
	}
	return PostDetail{Post: post, Genres: genres}, nil
}

// BookDetail bundles a book with the genre it was first discovered under.
type BookDetail struct {
	Book  domain.Book
	Genre domain.Genre
}

// Book returns one stored book with its genre.
func (s *Shelf) Book(ctx context.Context, bookID int64) (BookDetail, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return BookDetail{}, err
	}
	genre, err := s.store.GetGenre(ctx, book.GenreID)
	if err != nil {
		return BookDetail{}, err
	}
	return BookDetail{Book: book, Genre: genre}, nil
}

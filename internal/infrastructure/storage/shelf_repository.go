package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"SkeetShelf/internal/domain"
)

var postColumns = []string{"id", "handle", "display_name", "text", "posted_at", "like_count", "uri"}

// EnsurePost looks a post up by its text and inserts it when absent.
// An existing row is returned as stored; incoming fields never overwrite it.
func (s *Store) EnsurePost(ctx context.Context, post domain.Post) (domain.Post, error) {
	if strings.TrimSpace(post.Text) == "" {
		return domain.Post{}, fmt.Errorf("%w: post text is empty", domain.ErrValidation)
	}

	lookup := func(q querier) (domain.Post, bool, error) {
		return s.findPost(ctx, q, sq.Eq{"text": post.Text})
	}
	create := func(q querier) (domain.Post, error) {
		query, args, err := s.sb.Insert("posts").
			Columns("handle", "display_name", "text", "posted_at", "like_count", "uri").
			Values(post.Handle, post.DisplayName, post.Text, formatTime(post.Timestamp), post.LikeCount, post.URI).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return domain.Post{}, fmt.Errorf("build insert post: %w", err)
		}
		created := post
		created.Timestamp = post.Timestamp.UTC()
		if err := q.QueryRowContext(ctx, query, args...).Scan(&created.ID); err != nil {
			return domain.Post{}, fmt.Errorf("insert post: %w", err)
		}
		return created, nil
	}

	return ensure(ctx, s, "posts", lookup, create, nil)
}

// EnsureGenre looks a genre up by name and creates it with an empty
// description when absent.
func (s *Store) EnsureGenre(ctx context.Context, name string) (domain.Genre, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Genre{}, fmt.Errorf("%w: genre name is empty", domain.ErrValidation)
	}

	lookup := func(q querier) (domain.Genre, bool, error) {
		return s.findGenre(ctx, q, sq.Eq{"name": name})
	}
	create := func(q querier) (domain.Genre, error) {
		query, args, err := s.sb.Insert("genres").
			Columns("name", "description").
			Values(name, "").
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return domain.Genre{}, fmt.Errorf("build insert genre: %w", err)
		}
		genre := domain.Genre{Name: name}
		if err := q.QueryRowContext(ctx, query, args...).Scan(&genre.ID); err != nil {
			return domain.Genre{}, fmt.Errorf("insert genre: %w", err)
		}
		return genre, nil
	}

	return ensure(ctx, s, "genres", lookup, create, nil)
}

// EnsureClassification records that postID was classified into genreID.
// Re-recording an existing pair is a no-op.
func (s *Store) EnsureClassification(ctx context.Context, postID, genreID int64) error {
	query, args, err := s.sb.Insert("classified_posts").
		Columns("post_id", "genre_id").
		Values(postID, genreID).
		Suffix("ON CONFLICT (post_id, genre_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert classification: %w", err)
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("ensure classified_posts: %w", err)
	}
	return nil
}

// EnsureBook looks a book up by (title, author) and creates it under
// genreID when absent. The genre of an existing book is never revised.
func (s *Store) EnsureBook(ctx context.Context, title, author string, genreID int64) (domain.Book, error) {
	if strings.TrimSpace(title) == "" {
		return domain.Book{}, fmt.Errorf("%w: book title is empty", domain.ErrValidation)
	}

	lookup := func(q querier) (domain.Book, bool, error) {
		return s.findBook(ctx, q, sq.Eq{"title": title, "author": author})
	}
	create := func(q querier) (domain.Book, error) {
		query, args, err := s.sb.Insert("books").
			Columns("title", "author", "genre_id").
			Values(title, author, genreID).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return domain.Book{}, fmt.Errorf("build insert book: %w", err)
		}
		book := domain.Book{Title: title, Author: author, GenreID: genreID}
		if err := q.QueryRowContext(ctx, query, args...).Scan(&book.ID); err != nil {
			return domain.Book{}, fmt.Errorf("insert book: %w", err)
		}
		return book, nil
	}

	return ensure(ctx, s, "books", lookup, create, nil)
}

// EnsureSavedSkeet records that userID saved postID. When the save already
// exists, bookID only fills a null book_id; a set book_id is kept.
func (s *Store) EnsureSavedSkeet(ctx context.Context, postID, userID int64, bookID *int64) (domain.SavedSkeet, error) {
	lookup := func(q querier) (domain.SavedSkeet, bool, error) {
		return s.findSavedSkeet(ctx, q, sq.Eq{"post_id": postID, "user_id": userID})
	}
	create := func(q querier) (domain.SavedSkeet, error) {
		saved := domain.SavedSkeet{PostID: postID, UserID: userID, BookID: bookID, SavedAt: s.now()}
		query, args, err := s.sb.Insert("saved_skeets").
			Columns("post_id", "user_id", "book_id", "saved_at").
			Values(postID, userID, nullableID(bookID), formatTime(saved.SavedAt)).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return domain.SavedSkeet{}, fmt.Errorf("build insert saved skeet: %w", err)
		}
		if err := q.QueryRowContext(ctx, query, args...).Scan(&saved.ID); err != nil {
			return domain.SavedSkeet{}, fmt.Errorf("insert saved skeet: %w", err)
		}
		return saved, nil
	}
	backfill := func(q querier, found domain.SavedSkeet) (domain.SavedSkeet, error) {
		if bookID == nil || found.BookID != nil {
			return found, nil
		}
		query, args, err := s.sb.Update("saved_skeets").
			Set("book_id", *bookID).
			Where(sq.Eq{"id": found.ID}).
			Where("book_id IS NULL").
			ToSql()
		if err != nil {
			return domain.SavedSkeet{}, fmt.Errorf("build backfill: %w", err)
		}
		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return domain.SavedSkeet{}, fmt.Errorf("backfill book: %w", err)
		}

		updated, ok, err := s.findSavedSkeet(ctx, q, sq.Eq{"id": found.ID})
		if err != nil {
			return domain.SavedSkeet{}, err
		}
		if !ok {
			return domain.SavedSkeet{}, fmt.Errorf("saved skeet %d vanished during backfill: %w", found.ID, domain.ErrNotFound)
		}
		return updated, nil
	}

	return ensure(ctx, s, "saved_skeets", lookup, create, backfill)
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) findPost(ctx context.Context, q querier, where sq.Sqlizer) (domain.Post, bool, error) {
	query, args, err := s.sb.Select(postColumns...).From("posts").Where(where).Limit(1).ToSql()
	if err != nil {
		return domain.Post{}, false, fmt.Errorf("build select post: %w", err)
	}
	post, err := scanPost(q.QueryRowContext(ctx, query, args...))
	return lookupResult(post, err, "post")
}

func scanPost(row rowScanner) (domain.Post, error) {
	var (
		post     domain.Post
		postedAt string
	)
	if err := row.Scan(&post.ID, &post.Handle, &post.DisplayName, &post.Text, &postedAt, &post.LikeCount, &post.URI); err != nil {
		return domain.Post{}, err
	}
	ts, err := parseTime(postedAt)
	if err != nil {
		return domain.Post{}, err
	}
	post.Timestamp = ts
	return post, nil
}

func (s *Store) findGenre(ctx context.Context, q querier, where sq.Sqlizer) (domain.Genre, bool, error) {
	query, args, err := s.sb.Select("id", "name", "description").From("genres").Where(where).Limit(1).ToSql()
	if err != nil {
		return domain.Genre{}, false, fmt.Errorf("build select genre: %w", err)
	}
	var genre domain.Genre
	err = q.QueryRowContext(ctx, query, args...).Scan(&genre.ID, &genre.Name, &genre.Description)
	return lookupResult(genre, err, "genre")
}

func (s *Store) findBook(ctx context.Context, q querier, where sq.Sqlizer) (domain.Book, bool, error) {
	query, args, err := s.sb.Select("id", "title", "author", "genre_id").From("books").Where(where).Limit(1).ToSql()
	if err != nil {
		return domain.Book{}, false, fmt.Errorf("build select book: %w", err)
	}
	var book domain.Book
	err = q.QueryRowContext(ctx, query, args...).Scan(&book.ID, &book.Title, &book.Author, &book.GenreID)
	return lookupResult(book, err, "book")
}

func (s *Store) findSavedSkeet(ctx context.Context, q querier, where sq.Sqlizer) (domain.SavedSkeet, bool, error) {
	query, args, err := s.sb.Select("id", "post_id", "user_id", "book_id", "saved_at").
		From("saved_skeets").Where(where).Limit(1).ToSql()
	if err != nil {
		return domain.SavedSkeet{}, false, fmt.Errorf("build select saved skeet: %w", err)
	}

	var (
		saved   domain.SavedSkeet
		bookID  sql.NullInt64
		savedAt string
	)
	err = q.QueryRowContext(ctx, query, args...).Scan(&saved.ID, &saved.PostID, &saved.UserID, &bookID, &savedAt)
	if err == nil {
		if bookID.Valid {
			id := bookID.Int64
			saved.BookID = &id
		}
		saved.SavedAt, err = parseTime(savedAt)
	}
	return lookupResult(saved, err, "saved skeet")
}

// lookupResult turns sql.ErrNoRows into a clean miss.
func lookupResult[T any](v T, err error, what string) (T, bool, error) {
	var zero T
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("select %s: %w", what, err)
	}
	return v, true, nil
}

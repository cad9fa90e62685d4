package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"SkeetShelf/internal/domain"
)

// GetPost returns the post with id or domain.ErrNotFound.
func (s *Store) GetPost(ctx context.Context, id int64) (domain.Post, error) {
	post, ok, err := s.findPost(ctx, s.db, sq.Eq{"id": id})
	if err != nil {
		return domain.Post{}, err
	}
	if !ok {
		return domain.Post{}, fmt.Errorf("post %d: %w", id, domain.ErrNotFound)
	}
	return post, nil
}

// GetGenre returns the genre with id or domain.ErrNotFound.
func (s *Store) GetGenre(ctx context.Context, id int64) (domain.Genre, error) {
	genre, ok, err := s.findGenre(ctx, s.db, sq.Eq{"id": id})
	if err != nil {
		return domain.Genre{}, err
	}
	if !ok {
		return domain.Genre{}, fmt.Errorf("genre %d: %w", id, domain.ErrNotFound)
	}
	return genre, nil
}

// GetBook returns the book with id or domain.ErrNotFound.
func (s *Store) GetBook(ctx context.Context, id int64) (domain.Book, error) {
	book, ok, err := s.findBook(ctx, s.db, sq.Eq{"id": id})
	if err != nil {
		return domain.Book{}, err
	}
	if !ok {
		return domain.Book{}, fmt.Errorf("book %d: %w", id, domain.ErrNotFound)
	}
	return book, nil
}

// ListGenres returns every known genre ordered by name.
func (s *Store) ListGenres(ctx context.Context) ([]domain.Genre, error) {
	query, args, err := s.sb.Select("id", "name", "description").From("genres").OrderBy("name").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list genres: %w", err)
	}
	return s.queryGenres(ctx, query, args)
}

// GenresForPost returns the genres a post was classified into.
func (s *Store) GenresForPost(ctx context.Context, postID int64) ([]domain.Genre, error) {
	query, args, err := s.sb.Select("g.id", "g.name", "g.description").
		From("genres g").
		Join("classified_posts cp ON cp.genre_id = g.id").
		Where(sq.Eq{"cp.post_id": postID}).
		OrderBy("g.name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build genres for post: %w", err)
	}
	return s.queryGenres(ctx, query, args)
}

func (s *Store) queryGenres(ctx context.Context, query string, args []any) ([]domain.Genre, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query genres: %w", err)
	}
	defer rows.Close()

	var genres []domain.Genre
	for rows.Next() {
		var g domain.Genre
		if err := rows.Scan(&g.ID, &g.Name, &g.Description); err != nil {
			return nil, fmt.Errorf("scan genre: %w", err)
		}
		genres = append(genres, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return genres, nil
}

// SavedPosts returns the posts userID saved, oldest save first.
func (s *Store) SavedPosts(ctx context.Context, userID int64) ([]domain.Post, error) {
	query, args, err := s.sb.Select("p.id", "p.handle", "p.display_name", "p.text", "p.posted_at", "p.like_count", "p.uri").
		From("saved_skeets ss").
		Join("posts p ON p.id = ss.post_id").
		Where(sq.Eq{"ss.user_id": userID}).
		OrderBy("ss.saved_at", "ss.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build saved posts: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query saved posts: %w", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return posts, nil
}

// SavedBooks returns the distinct books linked to userID's saves.
func (s *Store) SavedBooks(ctx context.Context, userID int64) ([]domain.Book, error) {
	query, args, err := s.sb.Select("b.id", "b.title", "b.author", "b.genre_id").
		Distinct().
		From("saved_skeets ss").
		Join("books b ON b.id = ss.book_id").
		Where(sq.Eq{"ss.user_id": userID}).
		OrderBy("b.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build saved books: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query saved books: %w", err)
	}
	defer rows.Close()

	var books []domain.Book
	for rows.Next() {
		var b domain.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.GenreID); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return books, nil
}

// DeleteSavedSkeet removes userID's save of postID. The post itself stays.
func (s *Store) DeleteSavedSkeet(ctx context.Context, userID, postID int64) error {
	query, args, err := s.sb.Delete("saved_skeets").
		Where(sq.Eq{"user_id": userID, "post_id": postID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete saved skeet: %w", err)
	}

	var affected int64
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("delete saved skeet: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("saved post %d for user %d: %w", postID, userID, domain.ErrNotFound)
	}
	return nil
}

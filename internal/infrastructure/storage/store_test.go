package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"SkeetShelf/internal/domain"
	"SkeetShelf/internal/logging"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	ctx := context.Background()
	store, err := Open(ctx, SQLite, filepath.Join(t.TempDir(), "shelf.db"), logging.Discard())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate error: %v", err)
	}
	return store
}

func samplePost(text string) domain.Post {
	return domain.Post{
		Handle:      "h",
		DisplayName: "H",
		Text:        text,
		Timestamp:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		LikeCount:   5,
		URI:         "at://1",
	}
}

func TestEnsureGenreIsIdempotent(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	first, err := store.EnsureGenre(ctx, "Thriller")
	if err != nil {
		t.Fatalf("EnsureGenre error: %v", err)
	}
	second, err := store.EnsureGenre(ctx, "Thriller")
	if err != nil {
		t.Fatalf("EnsureGenre error: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same id, got %d and %d", first.ID, second.ID)
	}

	genres, err := store.ListGenres(ctx)
	if err != nil {
		t.Fatalf("ListGenres error: %v", err)
	}
	if len(genres) != 1 || genres[0].Description != "" {
		t.Fatalf("expected one genre with empty description, got %+v", genres)
	}
}

func TestEnsurePostKeepsFirstSighting(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	first, err := store.EnsurePost(ctx, samplePost("I loved Dune by Frank Herbert!"))
	if err != nil {
		t.Fatalf("EnsurePost error: %v", err)
	}

	again := samplePost("I loved Dune by Frank Herbert!")
	again.LikeCount = 99
	again.Handle = "someone-else"
	second, err := store.EnsurePost(ctx, again)
	if err != nil {
		t.Fatalf("EnsurePost error: %v", err)
	}
	if second.ID != first.ID || second.LikeCount != 5 || second.Handle != "h" {
		t.Fatalf("expected stored row unchanged, got %+v", second)
	}

	stored, err := store.GetPost(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetPost error: %v", err)
	}
	if !stored.Timestamp.Equal(samplePost("").Timestamp) {
		t.Fatalf("timestamp round-trip mismatch: %v", stored.Timestamp)
	}
}

func TestEnsureBookUniqueness(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	scifi, err := store.EnsureGenre(ctx, "science fiction")
	if err != nil {
		t.Fatalf("EnsureGenre error: %v", err)
	}
	fantasy, err := store.EnsureGenre(ctx, "fantasy")
	if err != nil {
		t.Fatalf("EnsureGenre error: %v", err)
	}

	first, err := store.EnsureBook(ctx, "Dune", "Frank Herbert", scifi.ID)
	if err != nil {
		t.Fatalf("EnsureBook error: %v", err)
	}
	second, err := store.EnsureBook(ctx, "Dune", "Frank Herbert", fantasy.ID)
	if err != nil {
		t.Fatalf("EnsureBook error: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same book, got %d and %d", first.ID, second.ID)
	}
	if second.GenreID != scifi.ID {
		t.Fatalf("genre must stay at first discovery, got %d", second.GenreID)
	}

	other, err := store.EnsureBook(ctx, "Dune", "", scifi.ID)
	if err != nil {
		t.Fatalf("EnsureBook error: %v", err)
	}
	if other.ID == first.ID {
		t.Fatal("authorless book must be a distinct row")
	}
}

func TestEnsureBookRejectsEmptyTitle(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	genre, err := store.EnsureGenre(context.Background(), "romance")
	if err != nil {
		t.Fatalf("EnsureGenre error: %v", err)
	}
	_, err = store.EnsureBook(context.Background(), "  ", "Jane Austen", genre.ID)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestEnsureSavedSkeetBackfillsOnce(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	post, err := store.EnsurePost(ctx, samplePost("reading pile"))
	if err != nil {
		t.Fatalf("EnsurePost error: %v", err)
	}
	genre, err := store.EnsureGenre(ctx, "fantasy")
	if err != nil {
		t.Fatalf("EnsureGenre error: %v", err)
	}
	var bookIDs []int64
	for _, title := range []string{"Emma", "Persuasion"} {
		book, err := store.EnsureBook(ctx, title, "Jane Austen", genre.ID)
		if err != nil {
			t.Fatalf("EnsureBook error: %v", err)
		}
		bookIDs = append(bookIDs, book.ID)
	}

	saved, err := store.EnsureSavedSkeet(ctx, post.ID, 1, nil)
	if err != nil {
		t.Fatalf("EnsureSavedSkeet error: %v", err)
	}
	if saved.BookID != nil {
		t.Fatalf("expected book-less save, got %v", *saved.BookID)
	}

	backfilled, err := store.EnsureSavedSkeet(ctx, post.ID, 1, &bookIDs[0])
	if err != nil {
		t.Fatalf("EnsureSavedSkeet error: %v", err)
	}
	if backfilled.ID != saved.ID || backfilled.BookID == nil || *backfilled.BookID != bookIDs[0] {
		t.Fatalf("expected backfill onto same row, got %+v", backfilled)
	}

	kept, err := store.EnsureSavedSkeet(ctx, post.ID, 1, &bookIDs[1])
	if err != nil {
		t.Fatalf("EnsureSavedSkeet error: %v", err)
	}
	if kept.ID != saved.ID || *kept.BookID != bookIDs[0] {
		t.Fatalf("book_id must not be overwritten, got %+v", kept)
	}

	books, err := store.SavedBooks(ctx, 1)
	if err != nil {
		t.Fatalf("SavedBooks error: %v", err)
	}
	if len(books) != 1 || books[0].Title != "Emma" {
		t.Fatalf("expected one saved book, got %+v", books)
	}
}

func TestEnsureClassificationIsNoOpOnRepeat(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	post, err := store.EnsurePost(ctx, samplePost("Project Hail Mary was great"))
	if err != nil {
		t.Fatalf("EnsurePost error: %v", err)
	}
	genre, err := store.EnsureGenre(ctx, "science fiction")
	if err != nil {
		t.Fatalf("EnsureGenre error: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := store.EnsureClassification(ctx, post.ID, genre.ID); err != nil {
			t.Fatalf("EnsureClassification error: %v", err)
		}
	}

	genres, err := store.GenresForPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("GenresForPost error: %v", err)
	}
	if len(genres) != 1 || genres[0].Name != "science fiction" {
		t.Fatalf("unexpected classifications %+v", genres)
	}
}

func TestEnsureClassificationRequiresExistingRows(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	if err := store.EnsureClassification(context.Background(), 404, 405); err == nil {
		t.Fatal("expected foreign key failure for unknown post and genre")
	}
}

func TestReadsReportNotFound(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.GetPost(ctx, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetPost: expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetGenre(ctx, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetGenre: expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetBook(ctx, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetBook: expected ErrNotFound, got %v", err)
	}
	if err := store.DeleteSavedSkeet(ctx, 1, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("DeleteSavedSkeet: expected ErrNotFound, got %v", err)
	}
}

func TestDeleteSavedSkeetKeepsPost(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	post, err := store.EnsurePost(ctx, samplePost("tbr"))
	if err != nil {
		t.Fatalf("EnsurePost error: %v", err)
	}
	if _, err := store.EnsureSavedSkeet(ctx, post.ID, 7, nil); err != nil {
		t.Fatalf("EnsureSavedSkeet error: %v", err)
	}

	posts, err := store.SavedPosts(ctx, 7)
	if err != nil || len(posts) != 1 {
		t.Fatalf("SavedPosts: %v %+v", err, posts)
	}

	if err := store.DeleteSavedSkeet(ctx, 7, post.ID); err != nil {
		t.Fatalf("DeleteSavedSkeet error: %v", err)
	}
	if posts, _ := store.SavedPosts(ctx, 7); len(posts) != 0 {
		t.Fatalf("expected no saved posts, got %+v", posts)
	}
	if _, err := store.GetPost(ctx, post.ID); err != nil {
		t.Fatalf("post must survive unsave: %v", err)
	}
}

func TestNewRejectsUnknownDialect(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, "mysql", nil); err == nil {
		t.Fatal("expected error for unsupported dialect")
	}
}

func TestSavedPostsOrderBySaveTimeWithinOneSecond(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	instants := []time.Time{
		time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 1, 12, 0, 0, 100_000_000, time.UTC),
		time.Date(2024, 5, 1, 12, 0, 0, 120_000_000, time.UTC),
	}
	texts := []string{"whole second", "first fraction", "second fraction"}

	// Insert newest first so row ids cannot mask the ordering.
	for i := len(instants) - 1; i >= 0; i-- {
		at := instants[i]
		store.now = func() time.Time { return at }

		post, err := store.EnsurePost(ctx, samplePost(texts[i]))
		if err != nil {
			t.Fatalf("EnsurePost error: %v", err)
		}
		saved, err := store.EnsureSavedSkeet(ctx, post.ID, 3, nil)
		if err != nil {
			t.Fatalf("EnsureSavedSkeet error: %v", err)
		}
		if !saved.SavedAt.Equal(at) {
			t.Fatalf("saved_at = %v, want %v", saved.SavedAt, at)
		}
	}

	posts, err := store.SavedPosts(ctx, 3)
	if err != nil {
		t.Fatalf("SavedPosts error: %v", err)
	}
	if len(posts) != len(texts) {
		t.Fatalf("expected %d posts, got %d", len(texts), len(posts))
	}
	for i, want := range texts {
		if posts[i].Text != want {
			t.Fatalf("posts[%d] = %q, want %q", i, posts[i].Text, want)
		}
	}
}

func TestFormatTimeIsFixedWidth(t *testing.T) {
	t.Parallel()

	whole := formatTime(time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("X", 3600)))
	frac := formatTime(time.Date(2024, 5, 1, 11, 0, 0, 1, time.UTC))
	if len(whole) != len(frac) || whole >= frac {
		t.Fatalf("expected fixed-width ordered values, got %q and %q", whole, frac)
	}

	parsed, err := parseTime(whole)
	if err != nil {
		t.Fatalf("parseTime error: %v", err)
	}
	if !parsed.Equal(time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)) {
		t.Fatalf("round trip mismatch: %v", parsed)
	}
}

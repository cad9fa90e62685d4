package storage

import (
	"context"
	"strings"
	"testing"
)

func TestPostgresPostTextKeyAvoidsBtreeOnRawText(t *testing.T) {
	t.Parallel()

	var postsTable, uniqueIndex string
	for _, stmt := range postgresSchema {
		switch {
		case strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS posts"):
			postsTable = stmt
		case strings.Contains(stmt, "posts_text_md5_key"):
			uniqueIndex = stmt
		}
	}

	if postsTable == "" || strings.Contains(postsTable, "text TEXT NOT NULL UNIQUE") {
		t.Fatalf("posts.text must not carry a btree unique constraint:\n%s", postsTable)
	}
	if !strings.Contains(uniqueIndex, "UNIQUE INDEX") || !strings.Contains(uniqueIndex, "md5(text)") {
		t.Fatalf("expected unique index on md5(text), got %q", uniqueIndex)
	}
}

func TestSQLiteStoresLongPostText(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	long := strings.Repeat("📚 本 ", 400)
	first, err := store.EnsurePost(ctx, samplePost(long))
	if err != nil {
		t.Fatalf("EnsurePost error: %v", err)
	}
	second, err := store.EnsurePost(ctx, samplePost(long))
	if err != nil {
		t.Fatalf("EnsurePost error: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected one row for repeated long text, got %d and %d", first.ID, second.ID)
	}
}

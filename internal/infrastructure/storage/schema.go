package storage

import (
	"context"
	"fmt"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS posts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	handle TEXT NOT NULL,
	display_name TEXT NOT NULL,
	text TEXT NOT NULL UNIQUE,
	posted_at TEXT NOT NULL,
	like_count INTEGER NOT NULL DEFAULT 0,
	uri TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS genres (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT ''
)`,
	`CREATE TABLE IF NOT EXISTS classified_posts (
	post_id INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
	genre_id INTEGER NOT NULL REFERENCES genres(id),
	PRIMARY KEY (post_id, genre_id)
)`,
	`CREATE TABLE IF NOT EXISTS books (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	author TEXT NOT NULL DEFAULT '',
	genre_id INTEGER NOT NULL REFERENCES genres(id),
	UNIQUE (title, author)
)`,
	`CREATE TABLE IF NOT EXISTS saved_skeets (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	post_id INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
	user_id INTEGER NOT NULL,
	book_id INTEGER REFERENCES books(id),
	saved_at TEXT NOT NULL,
	UNIQUE (user_id, post_id)
)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS posts (
	id BIGSERIAL PRIMARY KEY,
	handle TEXT NOT NULL,
	display_name TEXT NOT NULL,
	text TEXT NOT NULL,
	posted_at TEXT NOT NULL,
	like_count INTEGER NOT NULL DEFAULT 0,
	uri TEXT NOT NULL
)`,
	// btree entries are capped near 2.7kB, so the text key is enforced on its
	// digest and looked up through a hash index.
	`CREATE UNIQUE INDEX IF NOT EXISTS posts_text_md5_key ON posts (md5(text))`,
	`CREATE INDEX IF NOT EXISTS posts_text_hash_idx ON posts USING hash (text)`,
	`CREATE TABLE IF NOT EXISTS genres (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT ''
)`,
	`CREATE TABLE IF NOT EXISTS classified_posts (
	post_id BIGINT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
	genre_id BIGINT NOT NULL REFERENCES genres(id),
	PRIMARY KEY (post_id, genre_id)
)`,
	`CREATE TABLE IF NOT EXISTS books (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	author TEXT NOT NULL DEFAULT '',
	genre_id BIGINT NOT NULL REFERENCES genres(id),
	UNIQUE (title, author)
)`,
	`CREATE TABLE IF NOT EXISTS saved_skeets (
	id BIGSERIAL PRIMARY KEY,
	post_id BIGINT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
	user_id BIGINT NOT NULL,
	book_id BIGINT REFERENCES books(id),
	saved_at TEXT NOT NULL,
	UNIQUE (user_id, post_id)
)`,
}

// Migrate creates the shelf tables if they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	statements := sqliteSchema
	if s.dialect == Postgres {
		statements = postgresSchema
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	s.logger.Info("schema ready", "dialect", s.dialect, "statements", len(statements))
	return nil
}

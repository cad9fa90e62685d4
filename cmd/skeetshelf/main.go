package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"SkeetShelf/internal/app"
	"SkeetShelf/internal/config"
	"SkeetShelf/internal/logging"
)

const usage = `usage: skeetshelf [command] [flags]

commands:
  run                      fetch, classify, extract and shelve posts (default)
  classify [-genre name]   group a fresh batch by predicted genre
  books -genre name        list books mentioned in posts of a genre
  shelf -user id [-books]  list a user's saved posts or books
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	command := "run"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		command, args = args[0], args[1:]
	}

	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(fs.Output(), usage) }
	genre := fs.String("genre", "", "genre to filter by")
	user := fs.Int64("user", 0, "user id whose shelf to list")
	books := fs.Bool("books", false, "list books instead of posts")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Load()
	logger := logging.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	switch command {
	case "run":
		return application.Run(ctx)
	case "classify":
		groups, err := application.Discovery().ClassifyPosts(ctx, *genre)
		if err != nil {
			return err
		}
		return writeJSON(out, groups)
	case "books":
		if *genre == "" {
			return fmt.Errorf("books: -genre is required")
		}
		found, err := application.Discovery().BooksForGenre(ctx, *genre)
		if err != nil {
			return err
		}
		return writeJSON(out, found)
	case "shelf":
		if *books {
			saved, err := application.Shelf().MyBooks(ctx, *user)
			if err != nil {
				return err
			}
			return writeJSON(out, saved)
		}
		saved, err := application.Shelf().MyPosts(ctx, *user)
		if err != nil {
			return err
		}
		return writeJSON(out, saved)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

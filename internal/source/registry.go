package source

import (
	"context"
	"fmt"
	"sort"

	"SkeetShelf/internal/domain"
	"SkeetShelf/internal/ports"
)

// Named is a post source that can be picked by config (search, jetstream).
type Named interface {
	ports.PostSource
	Name() string
}

// Registry keeps a mapping from source names to their implementations.
type Registry struct {
	sources map[string]Named
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: map[string]Named{}}
}

// Register adds or replaces a source implementation.
func (r *Registry) Register(src Named) {
	if r.sources == nil {
		r.sources = map[string]Named{}
	}
	r.sources[src.Name()] = src
}

// Resolve returns a source by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Named, error) {
	if src, ok := r.sources[name]; ok {
		return src, nil
	}
	return nil, fmt.Errorf("post source %q is not registered (have %v)", name, r.Names())
}

// Names lists registered sources in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Format renders a post the way it is shown to readers:
// "@handle (Display Name): text".
func Format(p domain.RawPost) string {
	handle := p.Handle
	if handle == "" {
		handle = "unknown"
	}
	name := p.DisplayName
	if name == "" {
		name = "Unknown"
	}
	return fmt.Sprintf("@%s (%s): %s", handle, name, p.Text)
}

// FormatAll formats a batch in order.
func FormatAll(posts []domain.RawPost) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, Format(p))
	}
	return out
}

// Static serves a fixed batch. Useful for replays and tests.
type Static struct {
	name  string
	posts []domain.RawPost
}

// NewStatic wraps posts as a named source.
func NewStatic(name string, posts []domain.RawPost) *Static {
	return &Static{name: name, posts: posts}
}

func (s *Static) Name() string { return s.name }

func (s *Static) FetchPosts(ctx context.Context) ([]domain.RawPost, []string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	posts := append([]domain.RawPost(nil), s.posts...)
	return posts, FormatAll(posts), nil
}

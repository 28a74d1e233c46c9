// Package export walks a subtree of the repository and writes it out as
// markdown, SVG, PNG or a SQLite snapshot.
package export

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/nodeview/pkg/model"
)

// DefaultConcurrency bounds the number of in-flight requests of a Walk.
const DefaultConcurrency = 8

// Source is the read side of the repository.
type Source interface {
	ListChildren(ctx context.Context, path string) ([]model.NodeSummary, error)
	GetProperties(ctx context.Context, path string) (model.Properties, error)
}

// Entry is one node of a walked subtree.
type Entry struct {
	Path        string
	Name        string
	Depth       int // relative to the walk root
	HasChildren bool
	Props       model.Properties
	Children    []*Entry

	// Truncated is set when HasChildren is true but MaxDepth stopped the
	// walk before listing them.
	Truncated bool
}

// WalkOptions controls a Walk.
type WalkOptions struct {
	MaxDepth    int  // 0 means unlimited
	Concurrency int  // 0 means DefaultConcurrency
	Properties  bool // also load the properties of every node
}

// Walk loads the subtree under root level by level. Every level is fetched
// concurrently, bounded by opts.Concurrency. The first failing request
// cancels the walk.
func Walk(ctx context.Context, src Source, root string, opts WalkOptions) (*Entry, error) {
	root = model.NormalizePath(root)
	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	top := &Entry{Path: root, Name: model.Base(root), HasChildren: true}
	level := []*Entry{top}
	for len(level) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(limit)

		for _, e := range level {
			g.Go(func() error {
				return visit(gctx, src, e, opts)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		var next []*Entry
		for _, e := range level {
			next = append(next, e.Children...)
		}
		level = next
	}
	return top, nil
}

// visit fills in the properties and direct children of e. Each goroutine
// only writes to its own entry.
func visit(ctx context.Context, src Source, e *Entry, opts WalkOptions) error {
	if opts.Properties {
		props, err := src.GetProperties(ctx, e.Path)
		if err != nil {
			return fmt.Errorf("properties of %s: %w", e.Path, err)
		}
		e.Props = props
	}

	if !e.HasChildren {
		return nil
	}
	if opts.MaxDepth > 0 && e.Depth >= opts.MaxDepth {
		e.Truncated = true
		return nil
	}

	children, err := src.ListChildren(ctx, e.Path)
	if err != nil {
		return fmt.Errorf("children of %s: %w", e.Path, err)
	}
	for _, c := range children {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("children of %s: %w", e.Path, err)
		}
		e.Children = append(e.Children, &Entry{
			Path:        c.Path,
			Name:        c.Name,
			Depth:       e.Depth + 1,
			HasChildren: c.HasChildren,
		})
	}
	return nil
}

// Flatten returns the entries of the subtree in depth-first pre-order.
func Flatten(root *Entry) []*Entry {
	if root == nil {
		return nil
	}
	var out []*Entry
	var walk func(e *Entry)
	walk = func(e *Entry) {
		out = append(out, e)
		for _, c := range e.Children {
			walk(c)
		}
	}
	walk(root)
	return out
}

// Stats summarises a walked subtree.
type Stats struct {
	Nodes      int
	Properties int
	MaxDepth   int
}

// Summarize counts the nodes and properties under root.
func Summarize(root *Entry) Stats {
	var s Stats
	for _, e := range Flatten(root) {
		s.Nodes++
		s.Properties += len(e.Props)
		if e.Depth > s.MaxDepth {
			s.MaxDepth = e.Depth
		}
	}
	return s
}

package tree

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/vanderheijden86/nodeview/pkg/model"
)

// Lister is the part of the repository client the tree needs.
type Lister interface {
	ListChildren(ctx context.Context, path string) ([]model.NodeSummary, error)
}

// Drain runs fetches one after another until the tree asks for no more.
// Listing failures degrade to an empty listing. Only a cancelled context
// stops the loop early.
func Drain(ctx context.Context, src Lister, t *Tree, pending []Fetch) error {
	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		f := pending[0]
		pending = pending[1:]
		pending = append(pending, t.ApplyFetch(f.Path, List(ctx, src, f.Path))...)
	}
	return nil
}

// List fetches one listing for the tree, logging and swallowing failures.
func List(ctx context.Context, src Lister, path string) []model.NodeSummary {
	children, err := src.ListChildren(ctx, path)
	if err != nil {
		log.Warn("list children failed", "path", path, "err", err)
		return nil
	}
	return children
}

package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/nodeview/pkg/model"
	"github.com/vanderheijden86/nodeview/pkg/tree"
)

// Repository is the remote node store the browser works against.
type Repository interface {
	ListChildren(ctx context.Context, path string) ([]model.NodeSummary, error)
	GetProperties(ctx context.Context, path string) (model.Properties, error)
	CreateNode(ctx context.Context, parentPath, name string) error
	DeleteNode(ctx context.Context, path string) error
	SetProperty(ctx context.Context, path, name, value string) error
	DeleteProperty(ctx context.Context, path, name string) error
}

// RepoOperation represents the type of mutation performed
type RepoOperation int

const (
	RepoOpCreateNode RepoOperation = iota
	RepoOpDeleteNode
	RepoOpSetProperty
	RepoOpDeleteProperty
)

func (op RepoOperation) String() string {
	switch op {
	case RepoOpCreateNode:
		return "create node"
	case RepoOpDeleteNode:
		return "delete node"
	case RepoOpSetProperty:
		return "save property"
	case RepoOpDeleteProperty:
		return "delete property"
	default:
		return "unknown operation"
	}
}

// RepoResultMsg is returned after a mutation completes
type RepoResultMsg struct {
	Operation RepoOperation
	Path      string // parent for creates, the node otherwise
	Name      string // node or property name, if any
	Err       error
}

// ChildrenMsg carries the listing requested by a tree Fetch. Err is kept
// for logging; the tree sees a failed listing as an empty one.
type ChildrenMsg struct {
	Path     string
	Children []model.NodeSummary
	Err      error
}

// PropertiesMsg carries the properties of a selected node.
type PropertiesMsg struct {
	Path  string
	Props model.Properties
	Err   error
}

// RepoWriter turns repository calls into bubbletea commands. Each call gets
// its own timeout so a hung server never blocks the UI.
type RepoWriter struct {
	repo    Repository
	timeout time.Duration
}

// NewRepoWriter wraps repo. A zero timeout means 10 seconds.
func NewRepoWriter(repo Repository, timeout time.Duration) *RepoWriter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RepoWriter{repo: repo, timeout: timeout}
}

// Fetch runs the tree's fetch requests concurrently.
func (w *RepoWriter) Fetch(fetches []tree.Fetch) tea.Cmd {
	if len(fetches) == 0 {
		return nil
	}
	cmds := make([]tea.Cmd, 0, len(fetches))
	for _, f := range fetches {
		cmds = append(cmds, w.listCmd(f.Path))
	}
	return tea.Batch(cmds...)
}

func (w *RepoWriter) listCmd(path string) tea.Cmd {
	repo, timeout := w.repo, w.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		children, err := repo.ListChildren(ctx, path)
		return ChildrenMsg{Path: path, Children: children, Err: err}
	}
}

// LoadProperties fetches the properties of path.
func (w *RepoWriter) LoadProperties(path string) tea.Cmd {
	repo, timeout := w.repo, w.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		props, err := repo.GetProperties(ctx, path)
		return PropertiesMsg{Path: path, Props: props, Err: err}
	}
}

// CreateNode adds name under parent.
func (w *RepoWriter) CreateNode(parent, name string) tea.Cmd {
	return w.run(RepoOpCreateNode, parent, name, func(ctx context.Context) error {
		return w.repo.CreateNode(ctx, parent, name)
	})
}

// DeleteNode removes path and its subtree.
func (w *RepoWriter) DeleteNode(path string) tea.Cmd {
	return w.run(RepoOpDeleteNode, path, "", func(ctx context.Context) error {
		return w.repo.DeleteNode(ctx, path)
	})
}

// SetProperty creates or updates a single-valued property.
func (w *RepoWriter) SetProperty(path, name, value string) tea.Cmd {
	return w.run(RepoOpSetProperty, path, name, func(ctx context.Context) error {
		return w.repo.SetProperty(ctx, path, name, value)
	})
}

// DeleteProperty removes a property.
func (w *RepoWriter) DeleteProperty(path, name string) tea.Cmd {
	return w.run(RepoOpDeleteProperty, path, name, func(ctx context.Context) error {
		return w.repo.DeleteProperty(ctx, path, name)
	})
}

func (w *RepoWriter) run(op RepoOperation, path, name string, fn func(context.Context) error) tea.Cmd {
	timeout := w.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return RepoResultMsg{Operation: op, Path: path, Name: name, Err: fn(ctx)}
	}
}

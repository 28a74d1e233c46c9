// Package tree holds the lazy tree state behind the node browser.
//
// A Tree is an arena of Node records indexed by path. Children are fetched
// on demand: operations that need a listing return Fetch requests, the
// caller runs them against the repository and hands the result back through
// ApplyFetch. The Tree never performs I/O itself, so it can be driven from a
// bubbletea update loop, from a CLI, or from a test.
//
// A Tree is not safe for concurrent use. All methods must be called from the
// goroutine that owns it (the bubbletea Update loop in the TUI).
package tree

import (
	"errors"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/vanderheijden86/nodeview/pkg/model"
)

var (
	ErrUnknownNode   = errors.New("unknown node")
	ErrNotExpandable = errors.New("node has no children")
	ErrNotAdmin      = errors.New("admin capability required")
	ErrRootNode      = errors.New("the root node cannot be deleted")
)

// Fetch asks the caller to list the children of Path and pass the result to
// ApplyFetch.
type Fetch struct {
	Path string
}

// Selection is emitted by Select for the host application.
type Selection struct {
	Path string
}

// Controls describes which actions are offered for a node.
type Controls struct {
	Expand bool // toggle is offered (the node may have children)
	Add    bool // add child is offered (admin only)
	Delete bool // delete is offered (admin only, never the root)
}

// Node is the state of one known node.
type Node struct {
	Summary  model.NodeSummary
	Expanded bool
	Status   model.FetchStatus
	Children []string // child paths in listing order; only set when Fetched
	Parent   string   // "" for the root
	Depth    int      // 0 for the root

	refetch bool     // invalidated while a fetch was in flight
	stale   []string // children hidden by an invalidation, reused on apply
}

// Path returns the node's identity.
func (n *Node) Path() string {
	return n.Summary.Path
}

// NoChildrenFound reports the "fetched, but the listing was empty" state,
// which is distinct from never having fetched.
func (n *Node) NoChildrenFound() bool {
	return n.Status == model.Fetched && len(n.Children) == 0
}

// Tree is the container that owns the root node and every known descendant.
type Tree struct {
	root  string
	nodes map[string]*Node
	admin bool

	autoDepth int             // children shallower than this expand on arrival
	restore   map[string]bool // paths to re-expand once they are listed
}

// New bootstraps a tree whose root is rootPath. The root always reports
// children, starts expanded and is already loading: the returned Fetch must
// be run by the caller.
func New(rootPath string) (*Tree, Fetch) {
	root := &Node{
		Summary: model.NodeSummary{
			Name:        model.Base(rootPath),
			Path:        rootPath,
			HasChildren: true,
		},
		Expanded: true,
		Status:   model.Loading,
	}
	t := &Tree{
		root:    rootPath,
		nodes:   map[string]*Node{rootPath: root},
		restore: make(map[string]bool),
	}
	return t, Fetch{Path: rootPath}
}

// RootPath returns the path of the root node.
func (t *Tree) RootPath() string {
	return t.root
}

// Root returns the root node.
func (t *Tree) Root() *Node {
	return t.nodes[t.root]
}

// Node looks up a node by path.
func (t *Tree) Node(path string) (*Node, bool) {
	n, ok := t.nodes[path]
	return n, ok
}

// Len returns the number of known nodes, including the root.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// InFlight returns the number of nodes waiting for a listing.
func (t *Tree) InFlight() int {
	count := 0
	for _, n := range t.nodes {
		if n.Status == model.Loading {
			count++
		}
	}
	return count
}

// SetAdmin grants or revokes the admin capability for every node.
func (t *Tree) SetAdmin(admin bool) {
	t.admin = admin
}

// Admin reports whether the admin capability is granted.
func (t *Tree) Admin() bool {
	return t.admin
}

// SetAutoExpand makes nodes shallower than depth expand as soon as they are
// listed. Zero disables it.
func (t *Tree) SetAutoExpand(depth int) {
	t.autoDepth = depth
}

// Controls reports the actions offered for path.
func (t *Tree) Controls(path string) Controls {
	n, ok := t.nodes[path]
	if !ok {
		return Controls{}
	}
	return Controls{
		Expand: n.Summary.HasChildren,
		Add:    t.admin,
		Delete: t.admin && path != t.root,
	}
}

// Toggle flips the expansion of path. Expanding a node that was never
// fetched moves it to Loading and returns its Fetch. Toggling while Loading
// or after Fetched never fetches again.
func (t *Tree) Toggle(path string) ([]Fetch, error) {
	n, ok := t.nodes[path]
	if !ok {
		return nil, fmt.Errorf("toggle %s: %w", path, ErrUnknownNode)
	}
	if !n.Summary.HasChildren {
		return nil, fmt.Errorf("toggle %s: %w", path, ErrNotExpandable)
	}
	n.Expanded = !n.Expanded
	if n.Expanded && n.Status == model.NotFetched {
		n.Status = model.Loading
		return []Fetch{{Path: path}}, nil
	}
	return nil, nil
}

// Expand expands path if it is collapsed.
func (t *Tree) Expand(path string) ([]Fetch, error) {
	n, ok := t.nodes[path]
	if !ok {
		return nil, fmt.Errorf("expand %s: %w", path, ErrUnknownNode)
	}
	if n.Expanded {
		return nil, nil
	}
	return t.Toggle(path)
}

// Collapse collapses path if it is expanded. The cached listing is kept.
func (t *Tree) Collapse(path string) error {
	n, ok := t.nodes[path]
	if !ok {
		return fmt.Errorf("collapse %s: %w", path, ErrUnknownNode)
	}
	n.Expanded = false
	return nil
}

// Select returns the selection event for path. It changes no node state.
func (t *Tree) Select(path string) (Selection, error) {
	if _, ok := t.nodes[path]; !ok {
		return Selection{}, fmt.Errorf("select %s: %w", path, ErrUnknownNode)
	}
	return Selection{Path: path}, nil
}

// Invalidate drops the cached listing of path, expands it and fetches it
// again. If a fetch is already in flight, one more is issued when it lands.
func (t *Tree) Invalidate(path string) ([]Fetch, error) {
	n, ok := t.nodes[path]
	if !ok {
		return nil, fmt.Errorf("invalidate %s: %w", path, ErrUnknownNode)
	}
	if !n.Summary.HasChildren {
		return nil, fmt.Errorf("invalidate %s: %w", path, ErrNotExpandable)
	}
	n.Expanded = true
	if n.Status == model.Loading {
		n.refetch = true
		return nil, nil
	}
	t.beginRefetch(n)
	return []Fetch{{Path: path}}, nil
}

func (t *Tree) beginRefetch(n *Node) {
	n.stale = append(n.stale, n.Children...)
	n.Children = nil
	n.Status = model.Loading
}

// ValidateAdd checks that a child called name may be added under parent.
func (t *Tree) ValidateAdd(parent, name string) error {
	if !t.admin {
		return ErrNotAdmin
	}
	if _, ok := t.nodes[parent]; !ok {
		return fmt.Errorf("add under %s: %w", parent, ErrUnknownNode)
	}
	return model.ValidateName(name)
}

// AfterCreate refreshes parent once a create request has finished, whether
// it succeeded or not. The parent is marked as having children, expanded,
// and re-listed regardless of its cached state.
func (t *Tree) AfterCreate(parent string) ([]Fetch, error) {
	n, ok := t.nodes[parent]
	if !ok {
		return nil, fmt.Errorf("refresh %s: %w", parent, ErrUnknownNode)
	}
	n.Summary.HasChildren = true
	return t.Invalidate(parent)
}

// ValidateDelete checks that path may be deleted.
func (t *Tree) ValidateDelete(path string) error {
	if !t.admin {
		return ErrNotAdmin
	}
	if path == t.root {
		return ErrRootNode
	}
	if _, ok := t.nodes[path]; !ok {
		return fmt.Errorf("delete %s: %w", path, ErrUnknownNode)
	}
	return nil
}

// Remove splices a deleted node out of its parent's listing and forgets its
// subtree.
func (t *Tree) Remove(path string) error {
	if path == t.root {
		return ErrRootNode
	}
	n, ok := t.nodes[path]
	if !ok {
		return fmt.Errorf("remove %s: %w", path, ErrUnknownNode)
	}
	if parent, ok := t.nodes[n.Parent]; ok {
		parent.Children = without(parent.Children, path)
		parent.stale = without(parent.stale, path)
	}
	t.drop(path)
	return nil
}

// ApplyFetch stores the listing of path. A nil or empty listing (also used
// for failed fetches) leaves the node Fetched with no children. Records of
// children that are listed again keep their own state; children that
// disappeared are forgotten with their subtrees. Entries that are malformed
// or not direct children of path are skipped. Results for nodes that no
// longer exist are ignored.
func (t *Tree) ApplyFetch(path string, children []model.NodeSummary) []Fetch {
	n, ok := t.nodes[path]
	if !ok {
		return nil
	}

	previous := make(map[string]bool, len(n.Children)+len(n.stale))
	for _, p := range n.Children {
		previous[p] = true
	}
	for _, p := range n.stale {
		previous[p] = true
	}

	var fetches []Fetch
	listed := make([]string, 0, len(children))
	seen := make(map[string]bool, len(children))
	for _, summary := range children {
		if err := summary.Validate(); err != nil {
			log.Warn("skipping malformed listing entry", "parent", path, "err", err)
			continue
		}
		if summary.Path != model.JoinPath(path, summary.Name) {
			log.Warn("skipping listing entry outside its parent", "parent", path, "entry", summary.Path)
			continue
		}
		if seen[summary.Path] {
			continue
		}
		seen[summary.Path] = true
		listed = append(listed, summary.Path)

		child, exists := t.nodes[summary.Path]
		if exists {
			child.Summary = summary
			if !summary.HasChildren {
				t.reset(child)
			}
		} else {
			child = &Node{
				Summary: summary,
				Parent:  path,
				Depth:   n.Depth + 1,
			}
			t.nodes[summary.Path] = child
		}

		if t.shouldAutoExpand(child) {
			delete(t.restore, child.Path())
			child.Expanded = true
			if child.Status == model.NotFetched {
				child.Status = model.Loading
				fetches = append(fetches, Fetch{Path: child.Path()})
			}
		}
	}

	for p := range previous {
		if !seen[p] {
			t.drop(p)
		}
	}

	n.Children = listed
	n.stale = nil
	n.Status = model.Fetched

	if n.refetch {
		n.refetch = false
		t.beginRefetch(n)
		fetches = append([]Fetch{{Path: path}}, fetches...)
	}
	return fetches
}

func (t *Tree) shouldAutoExpand(n *Node) bool {
	if !n.Summary.HasChildren || n.Expanded {
		return false
	}
	return t.restore[n.Path()] || n.Depth < t.autoDepth
}

// reset returns a node to NotFetched and forgets its descendants.
func (t *Tree) reset(n *Node) {
	for _, p := range append(n.Children, n.stale...) {
		t.drop(p)
	}
	n.Children = nil
	n.stale = nil
	n.Expanded = false
	n.refetch = false
	if n.Status == model.Fetched {
		n.Status = model.NotFetched
	}
}

func (t *Tree) drop(path string) {
	n, ok := t.nodes[path]
	if !ok {
		return
	}
	for _, p := range n.Children {
		t.drop(p)
	}
	for _, p := range n.stale {
		t.drop(p)
	}
	delete(t.nodes, path)
}

// ExpandedPaths returns every expanded path except the root, sorted.
func (t *Tree) ExpandedPaths() []string {
	var paths []string
	for p, n := range t.nodes {
		if p != t.root && n.Expanded {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}

// RestoreExpanded remembers paths to expand once their parents are listed.
// Nodes that are already known and collapsed are expanded right away.
func (t *Tree) RestoreExpanded(paths []string) []Fetch {
	var fetches []Fetch
	for _, p := range paths {
		if p == t.root {
			continue
		}
		n, ok := t.nodes[p]
		if !ok {
			t.restore[p] = true
			continue
		}
		if n.Expanded || !n.Summary.HasChildren {
			continue
		}
		f, _ := t.Toggle(p)
		fetches = append(fetches, f...)
	}
	return fetches
}

func without(paths []string, path string) []string {
	out := paths[:0]
	for _, p := range paths {
		if p != path {
			out = append(out, p)
		}
	}
	return out
}

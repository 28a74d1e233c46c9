package tree

import "github.com/vanderheijden86/nodeview/pkg/model"

// RowKind distinguishes node rows from placeholder rows.
type RowKind int

const (
	// RowNode is a node itself.
	RowNode RowKind = iota
	// RowLoading sits under an expanded node waiting for its listing.
	RowLoading
	// RowNoChildren sits under an expanded node whose listing was empty.
	RowNoChildren
)

// Row is one line of the flattened, visible tree.
type Row struct {
	Kind  RowKind
	Path  string // node path; for placeholders, the parent's path
	Depth int
	Last  bool   // last entry under its parent
	Guide []bool // per ancestor level below the root: draw a vertical guide
}

// Visible flattens the expanded part of the tree in display order. An
// expanded node that is loading, or fetched with nothing in it, gets a
// single placeholder row underneath.
func (t *Tree) Visible() []Row {
	root, ok := t.nodes[t.root]
	if !ok {
		return nil
	}
	rows := make([]Row, 0, len(t.nodes))
	rows = append(rows, Row{Kind: RowNode, Path: t.root, Depth: 0, Last: true})
	return t.appendVisible(rows, root, nil)
}

func (t *Tree) appendVisible(rows []Row, n *Node, guide []bool) []Row {
	if !n.Expanded {
		return rows
	}

	childGuide := guide
	if n.Depth > 0 {
		childGuide = append(append([]bool(nil), guide...), !t.isLast(n))
	}

	switch n.Status {
	case model.NotFetched:
		return rows
	case model.Loading:
		return append(rows, Row{Kind: RowLoading, Path: n.Path(), Depth: n.Depth + 1, Last: true, Guide: childGuide})
	}
	if len(n.Children) == 0 {
		return append(rows, Row{Kind: RowNoChildren, Path: n.Path(), Depth: n.Depth + 1, Last: true, Guide: childGuide})
	}

	for i, p := range n.Children {
		child, ok := t.nodes[p]
		if !ok {
			continue
		}
		rows = append(rows, Row{
			Kind:  RowNode,
			Path:  p,
			Depth: child.Depth,
			Last:  i == len(n.Children)-1,
			Guide: childGuide,
		})
		rows = t.appendVisible(rows, child, childGuide)
	}
	return rows
}

func (t *Tree) isLast(n *Node) bool {
	parent, ok := t.nodes[n.Parent]
	if !ok {
		return true
	}
	return len(parent.Children) > 0 && parent.Children[len(parent.Children)-1] == n.Path()
}

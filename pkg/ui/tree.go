// tree.go - Lazy node tree pane backed by pkg/tree
package ui

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/nodeview/pkg/model"
	"github.com/vanderheijden86/nodeview/pkg/tree"
)

// TreeState represents the persistent state of the tree pane.
// It is saved to <state dir>/tree-state.json when ui.remember_expanded is
// on, so expanded branches survive a restart.
//
// File format (JSON):
//
//	{
//	  "version": 1,
//	  "server": "http://localhost:8080",
//	  "expanded": ["/oh/content", "/oh/content/news"]
//	}
//
// A state saved for another server is ignored. A corrupted or missing file
// means a fresh tree.
type TreeState struct {
	Version  int      `json:"version"`
	Server   string   `json:"server,omitempty"`
	Expanded []string `json:"expanded"`
}

// TreeStateVersion is the current schema version for tree persistence
const TreeStateVersion = 1

// treeStateFileName is the filename for persisted tree state
const treeStateFileName = "tree-state.json"

// TreeStatePath returns the path to the tree state file in stateDir.
func TreeStatePath(stateDir string) string {
	return filepath.Join(stateDir, treeStateFileName)
}

// TreeModel renders a tree.Tree and keeps the cursor over its visible rows.
type TreeModel struct {
	tree     *tree.Tree
	rows     []tree.Row
	cursor   int
	offset   int // index of the first rendered row
	width    int
	height   int
	theme    Theme
	spinner  spinner.Model
	selected string // path last emitted by Select

	// Persistence
	stateDir string
	server   string
	remember bool
}

// NewTreeModel creates a tree pane. Nothing is shown until Mount.
func NewTreeModel(theme Theme) TreeModel {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = theme.Renderer.NewStyle().Foreground(theme.Secondary)
	return TreeModel{theme: theme, spinner: sp}
}

// SetPersistence enables saving expanded paths for server in stateDir.
func (t *TreeModel) SetPersistence(stateDir, server string, remember bool) {
	t.stateDir = stateDir
	t.server = server
	t.remember = remember && stateDir != ""
}

// Mount starts a fresh tree at the repository root and returns the fetches
// to run: the root listing plus any remembered expansions.
func (t *TreeModel) Mount(admin bool) []tree.Fetch {
	tr, boot := tree.New(model.RootPath)
	tr.SetAdmin(admin)
	t.tree = tr
	t.cursor = 0
	t.offset = 0
	t.clearSelection()

	fetches := []tree.Fetch{boot}
	if state := t.loadState(); state != nil {
		fetches = append(fetches, tr.RestoreExpanded(state.Expanded)...)
	}
	t.refresh()
	return fetches
}

// Tree returns the underlying state, or nil before Mount.
func (t *TreeModel) Tree() *tree.Tree {
	return t.tree
}

// SetSize updates the available dimensions for the tree view
func (t *TreeModel) SetSize(width, height int) {
	t.width = width
	t.height = height
	t.clampOffset()
}

// Apply stores a listing and returns follow-up fetches.
func (t *TreeModel) Apply(path string, children []model.NodeSummary) []tree.Fetch {
	if t.tree == nil {
		return nil
	}
	current := t.SelectedPath()
	fetches := t.tree.ApplyFetch(path, children)
	t.refresh()
	t.SelectByPath(current)
	return fetches
}

// Loading reports whether any listing is outstanding.
func (t *TreeModel) Loading() bool {
	return t.tree != nil && t.tree.InFlight() > 0
}

// Tick starts the loading spinner.
func (t *TreeModel) Tick() tea.Cmd {
	return t.spinner.Tick
}

// UpdateSpinner advances the spinner. It stops ticking once nothing is
// loading.
func (t *TreeModel) UpdateSpinner(msg spinner.TickMsg) tea.Cmd {
	var cmd tea.Cmd
	t.spinner, cmd = t.spinner.Update(msg)
	if !t.Loading() {
		return nil
	}
	return cmd
}

// refresh rebuilds the visible rows and keeps the cursor in bounds.
func (t *TreeModel) refresh() {
	if t.tree == nil {
		t.rows = nil
		return
	}
	t.rows = t.tree.Visible()
	if t.cursor >= len(t.rows) {
		t.cursor = len(t.rows) - 1
	}
	if t.cursor < 0 {
		t.cursor = 0
	}
	t.clampOffset()
}

// SelectedRow returns the row under the cursor.
func (t *TreeModel) SelectedRow() (tree.Row, bool) {
	if t.cursor >= 0 && t.cursor < len(t.rows) {
		return t.rows[t.cursor], true
	}
	return tree.Row{}, false
}

// SelectedPath returns the node under the cursor. A placeholder row
// resolves to its parent.
func (t *TreeModel) SelectedPath() string {
	row, ok := t.SelectedRow()
	if !ok {
		return ""
	}
	return row.Path
}

// SelectByPath moves the cursor to the node row for path.
func (t *TreeModel) SelectByPath(path string) bool {
	for i, row := range t.rows {
		if row.Kind == tree.RowNode && row.Path == path {
			t.cursor = i
			t.clampOffset()
			return true
		}
	}
	return false
}

// Selected returns the path last chosen with Select.
func (t *TreeModel) Selected() string {
	return t.selected
}

// Select emits the selection for the node under the cursor. It changes no
// expansion state.
func (t *TreeModel) Select() (tree.Selection, bool) {
	row, ok := t.SelectedRow()
	if !ok || row.Kind != tree.RowNode || t.tree == nil {
		return tree.Selection{}, false
	}
	sel, err := t.tree.Select(row.Path)
	if err != nil {
		return tree.Selection{}, false
	}
	t.selected = sel.Path
	return sel, true
}

// clearSelection forgets the selected path.
func (t *TreeModel) clearSelection() {
	t.selected = ""
}

// MoveDown moves the cursor down.
func (t *TreeModel) MoveDown() {
	if t.cursor < len(t.rows)-1 {
		t.cursor++
	}
	t.clampOffset()
}

// MoveUp moves the cursor up.
func (t *TreeModel) MoveUp() {
	if t.cursor > 0 {
		t.cursor--
	}
	t.clampOffset()
}

// JumpToTop moves cursor to the root.
func (t *TreeModel) JumpToTop() {
	t.cursor = 0
	t.clampOffset()
}

// JumpToBottom moves cursor to the last row.
func (t *TreeModel) JumpToBottom() {
	if len(t.rows) > 0 {
		t.cursor = len(t.rows) - 1
	}
	t.clampOffset()
}

// PageDown moves cursor down by half a pane.
func (t *TreeModel) PageDown() {
	t.cursor += t.pageSize()
	if t.cursor >= len(t.rows) {
		t.cursor = len(t.rows) - 1
	}
	if t.cursor < 0 {
		t.cursor = 0
	}
	t.clampOffset()
}

// PageUp moves cursor up by half a pane.
func (t *TreeModel) PageUp() {
	t.cursor -= t.pageSize()
	if t.cursor < 0 {
		t.cursor = 0
	}
	t.clampOffset()
}

func (t *TreeModel) pageSize() int {
	if size := t.height / 2; size > 0 {
		return size
	}
	return 5
}

// Toggle expands or collapses the node under the cursor.
func (t *TreeModel) Toggle() []tree.Fetch {
	row, ok := t.SelectedRow()
	if !ok || row.Kind != tree.RowNode || t.tree == nil {
		return nil
	}
	fetches, err := t.tree.Toggle(row.Path)
	if err != nil {
		return nil
	}
	t.refresh()
	t.saveState()
	return fetches
}

// ExpandOrMoveToChild handles the → / l key:
//   - collapsed node with children: expand it
//   - expanded node: move to the first row below it
//   - leaf: do nothing
func (t *TreeModel) ExpandOrMoveToChild() []tree.Fetch {
	row, ok := t.SelectedRow()
	if !ok || row.Kind != tree.RowNode || t.tree == nil {
		return nil
	}
	n, ok := t.tree.Node(row.Path)
	if !ok || !n.Summary.HasChildren {
		return nil
	}
	if !n.Expanded {
		return t.Toggle()
	}
	if t.cursor+1 < len(t.rows) && t.rows[t.cursor+1].Depth > row.Depth {
		t.cursor++
		t.clampOffset()
	}
	return nil
}

// CollapseOrJumpToParent handles the ← / h key:
//   - expanded node: collapse it
//   - otherwise: jump to the parent
func (t *TreeModel) CollapseOrJumpToParent() {
	row, ok := t.SelectedRow()
	if !ok || t.tree == nil {
		return
	}
	if row.Kind != tree.RowNode {
		t.SelectByPath(row.Path)
		return
	}
	n, ok := t.tree.Node(row.Path)
	if !ok {
		return
	}
	if n.Expanded && n.Summary.HasChildren {
		_ = t.tree.Collapse(row.Path)
		t.refresh()
		t.saveState()
		return
	}
	t.SelectByPath(n.Parent)
}

// Invalidate re-lists the node under the cursor, or its parent for a leaf.
func (t *TreeModel) Invalidate() []tree.Fetch {
	path := t.SelectedPath()
	if path == "" || t.tree == nil {
		return nil
	}
	if n, ok := t.tree.Node(path); ok && !n.Summary.HasChildren {
		path = n.Parent
	}
	fetches, err := t.tree.Invalidate(path)
	if err != nil {
		log.Debug("refresh skipped", "path", path, "err", err)
		return nil
	}
	t.refresh()
	return fetches
}

// AfterCreate refreshes parent after a create request finished.
func (t *TreeModel) AfterCreate(parent string) []tree.Fetch {
	if t.tree == nil {
		return nil
	}
	fetches, err := t.tree.AfterCreate(parent)
	if err != nil {
		log.Debug("refresh after create skipped", "path", parent, "err", err)
		return nil
	}
	t.refresh()
	return fetches
}

// Remove drops a deleted node and moves the cursor to its parent.
func (t *TreeModel) Remove(path string) {
	if t.tree == nil {
		return
	}
	parent := model.ParentPath(path)
	if err := t.tree.Remove(path); err != nil {
		log.Debug("remove skipped", "path", path, "err", err)
		return
	}
	if t.selected == path || strings.HasPrefix(t.selected, path+"/") {
		t.clearSelection()
	}
	t.refresh()
	t.SelectByPath(parent)
	t.saveState()
}

// Controls reports the actions offered for the node under the cursor.
func (t *TreeModel) Controls() tree.Controls {
	row, ok := t.SelectedRow()
	if !ok || row.Kind != tree.RowNode || t.tree == nil {
		return tree.Controls{}
	}
	return t.tree.Controls(row.Path)
}

// clampOffset keeps the cursor inside the rendered window.
func (t *TreeModel) clampOffset() {
	visible := t.height
	if visible <= 0 {
		visible = 20
	}
	if t.cursor < t.offset {
		t.offset = t.cursor
	}
	if t.cursor >= t.offset+visible {
		t.offset = t.cursor - visible + 1
	}
	if maxOffset := len(t.rows) - visible; t.offset > maxOffset {
		t.offset = maxOffset
	}
	if t.offset < 0 {
		t.offset = 0
	}
}

// visibleRange returns the [start, end) rows to render.
func (t *TreeModel) visibleRange() (start, end int) {
	visible := t.height
	if visible <= 0 {
		visible = 20
	}
	start = t.offset
	end = start + visible
	if end > len(t.rows) {
		end = len(t.rows)
	}
	return start, end
}

// View renders the visible window of the tree.
func (t *TreeModel) View() string {
	if t.tree == nil {
		return t.theme.Renderer.NewStyle().Foreground(t.theme.Muted).Render("Not connected.")
	}

	var sb strings.Builder
	start, end := t.visibleRange()
	for i := start; i < end; i++ {
		line := t.renderRow(t.rows[i])
		if i == t.cursor {
			line = t.theme.Selected.Render(line)
		}
		sb.WriteString(line)
		if i < end-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// renderRow renders one node or placeholder row.
func (t *TreeModel) renderRow(row tree.Row) string {
	r := t.theme.Renderer
	prefix := t.buildTreePrefix(row)
	muted := r.NewStyle().Foreground(t.theme.Muted)

	switch row.Kind {
	case tree.RowLoading:
		return prefix + t.spinner.View() + muted.Render(" loading…")
	case tree.RowNoChildren:
		return prefix + muted.Italic(true).Render("no children found")
	}

	n, ok := t.tree.Node(row.Path)
	if !ok {
		return prefix
	}

	var sb strings.Builder
	sb.WriteString(prefix)
	sb.WriteString(r.NewStyle().Foreground(t.theme.Secondary).Render(t.getExpandIndicator(n)))
	sb.WriteString(" ")

	name := n.Summary.Name
	if row.Depth == 0 {
		name = n.Path()
	}
	maxLen := t.width - lipgloss.Width(prefix) - 2
	if maxLen < 8 {
		maxLen = 8
	}
	name = runewidth.Truncate(name, maxLen, "…")

	style := r.NewStyle().Foreground(t.theme.Base.GetForeground())
	if n.Path() == t.selected {
		style = style.Foreground(t.theme.Highlight).Bold(true)
	}
	sb.WriteString(style.Render(name))
	return sb.String()
}

// buildTreePrefix builds the indentation and branch characters for a row.
func (t *TreeModel) buildTreePrefix(row tree.Row) string {
	if row.Depth == 0 {
		return "" // Root has no prefix
	}

	var sb strings.Builder
	for _, guide := range row.Guide {
		if guide {
			sb.WriteString("│   ")
		} else {
			sb.WriteString("    ")
		}
	}
	if row.Last {
		sb.WriteString("└── ")
	} else {
		sb.WriteString("├── ")
	}
	return t.theme.Renderer.NewStyle().Foreground(t.theme.Muted).Render(sb.String())
}

// getExpandIndicator returns the expand/collapse indicator for a node.
func (t *TreeModel) getExpandIndicator(n *tree.Node) string {
	if !n.Summary.HasChildren {
		return "•" // Leaf node
	}
	if n.Expanded {
		return "▾"
	}
	return "▸"
}

// saveState persists the expanded paths. Errors are logged but do not
// interrupt the user.
func (t *TreeModel) saveState() {
	if !t.remember || t.tree == nil {
		return
	}
	state := TreeState{
		Version:  TreeStateVersion,
		Server:   t.server,
		Expanded: t.tree.ExpandedPaths(),
	}
	if state.Expanded == nil {
		state.Expanded = []string{}
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		log.Warn("failed to marshal tree state", "err", err)
		return
	}
	if err := os.MkdirAll(t.stateDir, 0o755); err != nil {
		log.Warn("failed to create state directory", "dir", t.stateDir, "err", err)
		return
	}
	path := TreeStatePath(t.stateDir)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Warn("failed to write tree state", "path", path, "err", err)
	}
}

// loadState reads the saved expanded paths, or nil.
func (t *TreeModel) loadState() *TreeState {
	if !t.remember {
		return nil
	}
	data, err := os.ReadFile(TreeStatePath(t.stateDir))
	if err != nil {
		// First run.
		return nil
	}
	var state TreeState
	if err := json.Unmarshal(data, &state); err != nil {
		log.Warn("invalid tree state file, starting fresh", "err", err)
		return nil
	}
	if state.Version != TreeStateVersion || (state.Server != "" && state.Server != t.server) {
		return nil
	}
	return &state
}

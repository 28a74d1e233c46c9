package ui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/nodeview/pkg/client"
	"github.com/vanderheijden86/nodeview/pkg/model"
	"github.com/vanderheijden86/nodeview/pkg/tree"
)

// drainPane runs fetches against repo synchronously until none are left.
func drainPane(t *testing.T, tm *TreeModel, repo *client.Memory, fetches []tree.Fetch) {
	t.Helper()
	for len(fetches) > 0 {
		f := fetches[0]
		fetches = fetches[1:]
		children, _ := repo.ListChildren(context.Background(), f.Path)
		fetches = append(fetches, tm.Apply(f.Path, children)...)
	}
}

func mountedPane(t *testing.T, repo *client.Memory, admin bool) *TreeModel {
	t.Helper()
	tm := NewTreeModel(newTestTheme())
	tm.SetSize(60, 20)
	drainPane(t, &tm, repo, tm.Mount(admin))
	return &tm
}

// TestTreeViewNotConnected verifies the pane before Mount
func TestTreeViewNotConnected(t *testing.T) {
	tm := NewTreeModel(newTestTheme())
	if !strings.Contains(tm.View(), "Not connected.") {
		t.Errorf("unexpected view %q", tm.View())
	}
	if tm.Toggle() != nil || tm.Invalidate() != nil {
		t.Error("actions before Mount must not fetch")
	}
}

// TestTreeViewLoadingPlaceholder verifies the spinner row before the first listing
func TestTreeViewLoadingPlaceholder(t *testing.T) {
	tm := NewTreeModel(newTestTheme())
	tm.SetSize(60, 20)
	fetches := tm.Mount(false)

	if len(fetches) != 1 || fetches[0].Path != model.RootPath {
		t.Fatalf("expected one root fetch, got %v", fetches)
	}
	if !tm.Loading() {
		t.Error("expected Loading while the root is in flight")
	}
	if !strings.Contains(tm.View(), "loading…") {
		t.Errorf("expected loading placeholder, got %q", tm.View())
	}
}

// TestTreeViewRendering verifies indicators and branch characters
func TestTreeViewRendering(t *testing.T) {
	repo := client.NewDemo()
	tm := mountedPane(t, repo, false)
	tm.SelectByPath("/oh/content")
	drainPane(t, tm, repo, tm.Toggle())

	lines := strings.Split(tm.View(), "\n")
	want := []string{
		"▾ /oh",
		"├── ▾ content",
		"│   ├── ▸ news",
		"│   └── • about",
		"├── ▸ config",
		"└── • archive",
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d:\n%s", len(want), len(lines), tm.View())
	}
	for i, w := range want {
		if strings.TrimSpace(lines[i]) != w {
			t.Errorf("line %d = %q, want %q", i, lines[i], w)
		}
	}
}

// TestTreeViewNoChildrenFound verifies the empty listing placeholder
func TestTreeViewNoChildrenFound(t *testing.T) {
	repo := client.NewDemo()
	tm := mountedPane(t, repo, false)
	tm.SelectByPath("/oh/config")
	fetches := tm.Toggle()

	// The listing comes back empty.
	tm.Apply(fetches[0].Path, nil)

	if !strings.Contains(tm.View(), "no children found") {
		t.Errorf("expected placeholder, got\n%s", tm.View())
	}
	if tm.Loading() {
		t.Error("nothing should be loading")
	}
}

// TestTreeTruncateName verifies long names are cut to the pane width
func TestTreeTruncateName(t *testing.T) {
	repo := client.NewDemo()
	long := "/oh/" + strings.Repeat("x", 80)
	repo.Seed(long, nil)
	tm := mountedPane(t, repo, false)
	tm.SetSize(30, 20)

	for _, line := range strings.Split(tm.View(), "\n") {
		if len([]rune(line)) > 30 {
			t.Errorf("line wider than pane: %q", line)
		}
	}
	if !strings.Contains(tm.View(), "…") {
		t.Error("expected an ellipsis for the long name")
	}
}

// TestTreeNavigation verifies cursor movement over visible rows
func TestTreeNavigation(t *testing.T) {
	tm := mountedPane(t, client.NewDemo(), false)

	if tm.SelectedPath() != model.RootPath {
		t.Errorf("expected cursor on the root, got %q", tm.SelectedPath())
	}
	tm.MoveDown()
	if tm.SelectedPath() != "/oh/content" {
		t.Errorf("expected /oh/content, got %q", tm.SelectedPath())
	}
	tm.JumpToBottom()
	if tm.SelectedPath() != "/oh/archive" {
		t.Errorf("expected /oh/archive, got %q", tm.SelectedPath())
	}
	tm.MoveDown()
	if tm.SelectedPath() != "/oh/archive" {
		t.Error("cursor must stop at the last row")
	}
	tm.JumpToTop()
	tm.MoveUp()
	if tm.SelectedPath() != model.RootPath {
		t.Error("cursor must stop at the first row")
	}
}

// TestTreeExpandOrMoveToChild verifies l expands, then steps in
func TestTreeExpandOrMoveToChild(t *testing.T) {
	repo := client.NewDemo()
	tm := mountedPane(t, repo, false)
	tm.SelectByPath("/oh/content")

	drainPane(t, tm, repo, tm.ExpandOrMoveToChild())
	if tm.SelectedPath() != "/oh/content" {
		t.Fatalf("first press must only expand, cursor on %q", tm.SelectedPath())
	}
	tm.ExpandOrMoveToChild()
	if tm.SelectedPath() != "/oh/content/news" {
		t.Errorf("second press must step to the first child, got %q", tm.SelectedPath())
	}
}

// TestTreeCollapseOrJumpToParent verifies h collapses, then jumps up
func TestTreeCollapseOrJumpToParent(t *testing.T) {
	repo := client.NewDemo()
	tm := mountedPane(t, repo, false)
	tm.SelectByPath("/oh/content")
	drainPane(t, tm, repo, tm.Toggle())
	tm.SelectByPath("/oh/content/about")

	tm.CollapseOrJumpToParent()
	if tm.SelectedPath() != "/oh/content" {
		t.Fatalf("leaf must jump to parent, got %q", tm.SelectedPath())
	}
	tm.CollapseOrJumpToParent()
	n, _ := tm.Tree().Node("/oh/content")
	if n.Expanded {
		t.Error("expected /oh/content to collapse")
	}
	if n.Status != model.Fetched {
		t.Error("collapse must keep the cached listing")
	}
}

// TestTreeCursorFollowsPathAcrossListings verifies Apply keeps the cursor on its node
func TestTreeCursorFollowsPathAcrossListings(t *testing.T) {
	repo := client.NewDemo()
	tm := mountedPane(t, repo, false)
	tm.SelectByPath("/oh/archive")

	tm.SelectByPath("/oh/content")
	fetches := tm.Toggle()
	tm.SelectByPath("/oh/archive")
	drainPane(t, tm, repo, fetches)

	if tm.SelectedPath() != "/oh/archive" {
		t.Errorf("cursor moved to %q", tm.SelectedPath())
	}
}

// TestTreeSelectHighlightsWithoutExpanding verifies Select only records the path
func TestTreeSelectHighlightsWithoutExpanding(t *testing.T) {
	repo := client.NewDemo()
	tm := mountedPane(t, repo, false)
	tm.SelectByPath("/oh/config")

	sel, ok := tm.Select()
	if !ok || sel.Path != "/oh/config" {
		t.Fatalf("unexpected selection %+v", sel)
	}
	if tm.Selected() != "/oh/config" {
		t.Errorf("selected = %q", tm.Selected())
	}
	if repo.Calls("ListChildren", "/oh/config") != 0 {
		t.Error("select must not fetch")
	}
}

// TestTreeInvalidateLeafRelistsParent verifies refresh on a leaf
func TestTreeInvalidateLeafRelistsParent(t *testing.T) {
	repo := client.NewDemo()
	tm := mountedPane(t, repo, false)
	tm.SelectByPath("/oh/archive")

	fetches := tm.Invalidate()
	if len(fetches) != 1 || fetches[0].Path != model.RootPath {
		t.Fatalf("expected the root to be re-listed, got %v", fetches)
	}
	drainPane(t, tm, repo, fetches)
	if repo.Calls("ListChildren", model.RootPath) != 2 {
		t.Errorf("expected 2 root listings, got %d", repo.Calls("ListChildren", model.RootPath))
	}
}

// TestTreeRemoveMovesCursorToParent verifies Remove clears the subtree
func TestTreeRemoveMovesCursorToParent(t *testing.T) {
	repo := client.NewDemo()
	tm := mountedPane(t, repo, true)
	tm.SelectByPath("/oh/content")
	drainPane(t, tm, repo, tm.Toggle())
	tm.SelectByPath("/oh/content/news")
	tm.Select()

	tm.Remove("/oh/content/news")

	if tm.SelectedPath() != "/oh/content" {
		t.Errorf("cursor on %q, want parent", tm.SelectedPath())
	}
	if tm.Selected() != "" {
		t.Error("selection inside the removed subtree must be cleared")
	}
	if _, ok := tm.Tree().Node("/oh/content/news"); ok {
		t.Error("removed node still known")
	}
}

// TestTreeRemoveKeepsUnrelatedSelection verifies only a selection inside the removed subtree is cleared
func TestTreeRemoveKeepsUnrelatedSelection(t *testing.T) {
	repo := client.NewDemo()
	tm := mountedPane(t, repo, true)
	tm.SelectByPath("/oh/archive")
	tm.Select()

	tm.Remove("/oh/config")

	if tm.Selected() != "/oh/archive" {
		t.Errorf("selection = %q, want /oh/archive", tm.Selected())
	}
	if tm.SelectedPath() != "/oh" {
		t.Errorf("cursor on %q, want the removed node's parent", tm.SelectedPath())
	}
}

// TestTreeControls verifies admin-only controls and the root exception
func TestTreeControls(t *testing.T) {
	reader := mountedPane(t, client.NewDemo(), false)
	reader.SelectByPath("/oh/content")
	if c := reader.Controls(); c.Add || c.Delete || !c.Expand {
		t.Errorf("reader controls = %+v", c)
	}

	admin := mountedPane(t, client.NewDemo(), true)
	admin.JumpToTop()
	if c := admin.Controls(); !c.Add || c.Delete {
		t.Errorf("admin root controls = %+v", c)
	}
	admin.SelectByPath("/oh/archive")
	if c := admin.Controls(); !c.Add || !c.Delete || c.Expand {
		t.Errorf("admin leaf controls = %+v", c)
	}
}

// TestTreePageNavigation verifies half-page jumps
func TestTreePageNavigation(t *testing.T) {
	repo := client.NewMemory()
	for i := 0; i < 40; i++ {
		repo.Seed(model.JoinPath(model.RootPath, fmt.Sprintf("n%02d", i)), nil)
	}
	tm := NewTreeModel(newTestTheme())
	tm.SetSize(60, 10)
	drainPane(t, &tm, repo, tm.Mount(false))

	tm.PageDown()
	if tm.cursor != 5 {
		t.Errorf("cursor after PageDown = %d, want 5", tm.cursor)
	}
	tm.PageUp()
	if tm.cursor != 0 {
		t.Errorf("cursor after PageUp = %d, want 0", tm.cursor)
	}

	tm.JumpToBottom()
	start, end := tm.visibleRange()
	if end != len(tm.rows) || end-start > 10 {
		t.Errorf("visible range [%d,%d) for %d rows", start, end, len(tm.rows))
	}
}

// TestTreeStatePath verifies the state file location
func TestTreeStatePath(t *testing.T) {
	got := TreeStatePath(filepath.Join("a", "b"))
	if got != filepath.Join("a", "b", "tree-state.json") {
		t.Errorf("TreeStatePath = %q", got)
	}
}

// TestSaveAndRestoreExpanded verifies expanded paths survive a remount
func TestSaveAndRestoreExpanded(t *testing.T) {
	dir := t.TempDir()
	repo := client.NewDemo()

	tm := NewTreeModel(newTestTheme())
	tm.SetPersistence(dir, "http://example.test", true)
	tm.SetSize(60, 20)
	drainPane(t, &tm, repo, tm.Mount(false))
	tm.SelectByPath("/oh/content")
	drainPane(t, &tm, repo, tm.Toggle())
	tm.SelectByPath("/oh/content/news")
	drainPane(t, &tm, repo, tm.Toggle())

	data, err := os.ReadFile(TreeStatePath(dir))
	if err != nil {
		t.Fatalf("state not written: %v", err)
	}
	var state TreeState
	if err := json.Unmarshal(data, &state); err != nil {
		t.Fatalf("invalid state: %v", err)
	}
	if state.Version != TreeStateVersion || state.Server != "http://example.test" {
		t.Errorf("unexpected state header %+v", state)
	}
	if strings.Join(state.Expanded, ",") != "/oh/content,/oh/content/news" {
		t.Errorf("expanded = %v", state.Expanded)
	}

	again := NewTreeModel(newTestTheme())
	again.SetPersistence(dir, "http://example.test", true)
	again.SetSize(60, 20)
	drainPane(t, &again, repo, again.Mount(false))

	for _, p := range []string{"/oh/content", "/oh/content/news"} {
		n, ok := again.Tree().Node(p)
		if !ok || !n.Expanded || n.Status != model.Fetched {
			t.Errorf("%s not restored: %+v", p, n)
		}
	}
	if !again.SelectByPath("/oh/content/news/2026") {
		t.Error("expected restored grandchild to be visible")
	}
}

// TestLoadStateOtherServer verifies state for another server is ignored
func TestLoadStateOtherServer(t *testing.T) {
	dir := t.TempDir()
	data, _ := json.Marshal(TreeState{Version: TreeStateVersion, Server: "http://other", Expanded: []string{"/oh/content"}})
	if err := os.WriteFile(TreeStatePath(dir), data, 0o644); err != nil {
		t.Fatal(err)
	}

	tm := NewTreeModel(newTestTheme())
	tm.SetPersistence(dir, "http://mine", true)
	if tm.loadState() != nil {
		t.Error("state of another server must be ignored")
	}
}

// TestLoadStateCorrupted verifies a broken file means a fresh tree
func TestLoadStateCorrupted(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(TreeStatePath(dir), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	tm := NewTreeModel(newTestTheme())
	tm.SetPersistence(dir, "http://mine", true)
	if tm.loadState() != nil {
		t.Error("corrupted state must be ignored")
	}
	if fetches := tm.Mount(false); len(fetches) != 1 {
		t.Errorf("expected only the root fetch, got %v", fetches)
	}
}

// TestSaveStateDisabled verifies nothing is written when remembering is off
func TestSaveStateDisabled(t *testing.T) {
	dir := t.TempDir()
	repo := client.NewDemo()
	tm := NewTreeModel(newTestTheme())
	tm.SetPersistence(dir, "http://mine", false)
	drainPane(t, &tm, repo, tm.Mount(false))
	tm.SelectByPath("/oh/content")
	drainPane(t, &tm, repo, tm.Toggle())

	if _, err := os.Stat(TreeStatePath(dir)); !os.IsNotExist(err) {
		t.Errorf("expected no state file, stat err = %v", err)
	}
}

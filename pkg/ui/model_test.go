package ui

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/nodeview/pkg/client"
	"github.com/vanderheijden86/nodeview/pkg/config"
	"github.com/vanderheijden86/nodeview/pkg/model"
	"github.com/vanderheijden86/nodeview/pkg/tree"
)

func newTestTheme() Theme {
	return DefaultTheme(lipgloss.NewRenderer(io.Discard))
}

// Helper to create a KeyMsg for a string key
func keyMsg(key string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
}

// run executes cmd and feeds every resulting message back into m until
// nothing is left. Spinner ticks are dropped so tests never sleep.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 1000 {
			t.Fatal("command loop did not settle")
		}
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case nil, spinner.TickMsg:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			next, cmd := m.Update(msg)
			m = next.(Model)
			queue = append(queue, cmd)
		}
	}
	return m
}

func press(t *testing.T, m Model, key string) Model {
	t.Helper()
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "space":
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
	default:
		msg = keyMsg(key)
	}
	next, cmd := m.Update(msg)
	m = next.(Model)
	if m.prompt != nil {
		// Forms are driven directly by the tests.
		return m
	}
	return run(t, m, cmd)
}

// submit completes the open prompt as if the user had confirmed it.
func submit(t *testing.T, m Model) Model {
	t.Helper()
	p := m.prompt
	if p == nil {
		t.Fatal("no prompt open")
	}
	m.prompt = nil
	cmd := m.finishPrompt(p)
	return run(t, m, cmd)
}

func newTestModel(t *testing.T, repo Repository, user string) Model {
	t.Helper()
	theme := newTestTheme()
	cfg := config.Default()
	cfg.UI.RememberExpanded = false
	m := NewModel(Options{
		Repo:   repo,
		Creds:  model.Credentials{Username: user, Password: "pw"},
		Config: cfg,
		Theme:  &theme,
	})
	m = run(t, m, m.Init())
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model)
}

func visiblePaths(m Model) []string {
	var out []string
	for _, r := range m.tree.rows {
		if r.Kind == tree.RowNode {
			out = append(out, r.Path)
		}
	}
	return out
}

// TestMountListsRootOnce verifies the root is listed exactly once at startup
func TestMountListsRootOnce(t *testing.T) {
	repo := client.NewDemo()
	m := newTestModel(t, repo, "reader")

	if n := repo.Calls("ListChildren", "/oh"); n != 1 {
		t.Errorf("expected 1 listing of /oh, got %d", n)
	}
	want := []string{"/oh", "/oh/content", "/oh/config", "/oh/archive"}
	if got := visiblePaths(m); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("visible = %v, want %v", got, want)
	}
	if m.FocusState() != "tree" {
		t.Errorf("expected initial focus 'tree', got %q", m.FocusState())
	}
}

// TestToggleFetchesOnce verifies expand, collapse, expand lists a node once
func TestToggleFetchesOnce(t *testing.T) {
	repo := client.NewDemo()
	m := newTestModel(t, repo, "reader")

	m = press(t, m, "j") // /oh/content
	m = press(t, m, "space")
	m = press(t, m, "space")
	m = press(t, m, "space")

	if n := repo.Calls("ListChildren", "/oh/content"); n != 1 {
		t.Errorf("expected 1 listing of /oh/content, got %d", n)
	}
	if !m.TreePane().SelectByPath("/oh/content/news") {
		t.Error("expected children of /oh/content to be visible")
	}
}

// TestLeafShowsNoToggle verifies a leaf is never listed
func TestLeafShowsNoToggle(t *testing.T) {
	repo := client.NewDemo()
	m := newTestModel(t, repo, "reader")

	m.tree.SelectByPath("/oh/archive")
	m = press(t, m, "space")
	m = press(t, m, "l")

	if n := repo.Calls("ListChildren", "/oh/archive"); n != 0 {
		t.Errorf("leaf must not be listed, got %d", n)
	}
}

// TestSelectLoadsProperties verifies enter selects without touching expansion
func TestSelectLoadsProperties(t *testing.T) {
	repo := client.NewDemo()
	m := newTestModel(t, repo, "reader")

	m.tree.SelectByPath("/oh/content")
	m = press(t, m, "enter")

	if m.tree.Selected() != "/oh/content" {
		t.Errorf("selected = %q", m.tree.Selected())
	}
	if got := m.props.Properties()["jcr:title"]; got != "Content" {
		t.Errorf("expected jcr:title=Content, got %q", got)
	}
	n, _ := m.tree.Tree().Node("/oh/content")
	if n.Expanded || n.Status != model.NotFetched {
		t.Errorf("select must not expand: %+v", n)
	}
}

// TestReaderCannotMutate verifies non-admin users get no add/delete prompts
func TestReaderCannotMutate(t *testing.T) {
	m := newTestModel(t, client.NewDemo(), "reader")

	m.tree.SelectByPath("/oh/content")
	m = press(t, m, "a")
	if m.Prompting() {
		t.Error("add must not be offered to a reader")
	}
	m = press(t, m, "d")
	if m.Prompting() {
		t.Error("delete must not be offered to a reader")
	}
}

// TestAdminAddNode verifies a created node appears after the forced refresh
func TestAdminAddNode(t *testing.T) {
	repo := client.NewDemo()
	m := newTestModel(t, repo, model.AdminUser)

	m.tree.SelectByPath("/oh/archive")
	m = press(t, m, "a")
	if !m.Prompting() || m.prompt.kind != promptAddNode {
		t.Fatal("expected add prompt")
	}
	m.prompt.name = "x"
	m = submit(t, m)

	if !repo.Has("/oh/archive/x") {
		t.Fatal("expected node to be created")
	}
	if !m.tree.SelectByPath("/oh/archive/x") {
		t.Errorf("expected new node to be visible, got %v", visiblePaths(m))
	}
	if m.AlertMessage() != "" {
		t.Errorf("unexpected alert %q", m.AlertMessage())
	}
}

// TestAdminAddNodeFailureStillRefreshes verifies the parent is re-listed on failure
func TestAdminAddNodeFailureStillRefreshes(t *testing.T) {
	repo := client.NewDemo()
	m := newTestModel(t, repo, model.AdminUser)

	m.tree.SelectByPath("/oh/content")
	m = press(t, m, "space")
	before := repo.Calls("ListChildren", "/oh/content")

	repo.FailOn("CreateNode", errors.New("name clash"))
	m = press(t, m, "a")
	m.prompt.name = "news"
	m = submit(t, m)

	if got := repo.Calls("ListChildren", "/oh/content"); got != before+1 {
		t.Errorf("expected a forced refresh, listings %d -> %d", before, got)
	}
	if !strings.Contains(m.AlertMessage(), "name clash") {
		t.Errorf("expected failure alert, got %q", m.AlertMessage())
	}

	// Any key dismisses the alert.
	m = press(t, m, "j")
	if m.AlertMessage() != "" {
		t.Error("expected alert to be dismissed")
	}
}

// TestAdminAddNodeInvalidName verifies names are checked before any request
func TestAdminAddNodeInvalidName(t *testing.T) {
	repo := client.NewDemo()
	m := newTestModel(t, repo, model.AdminUser)

	m = press(t, m, "a")
	m.prompt.name = "a/b"
	m = submit(t, m)

	if m.AlertMessage() == "" {
		t.Error("expected an alert for an invalid name")
	}
	if repo.Has("/oh/a") {
		t.Error("no node must be created")
	}
}

// TestAdminDeleteNode verifies a deleted node disappears from its parent
func TestAdminDeleteNode(t *testing.T) {
	repo := client.NewDemo()
	m := newTestModel(t, repo, model.AdminUser)

	m.tree.SelectByPath("/oh/config")
	m = press(t, m, "enter")
	m = press(t, m, "d")
	if !m.Prompting() || m.prompt.kind != promptDeleteNode {
		t.Fatal("expected delete prompt")
	}
	m.prompt.confirmed = true
	m = submit(t, m)

	if repo.Has("/oh/config") {
		t.Error("expected node to be deleted")
	}
	if m.tree.SelectByPath("/oh/config") {
		t.Error("deleted node must not be visible")
	}
	if m.props.Path() != "" {
		t.Error("properties of a deleted node must be cleared")
	}
}

// TestDeleteRootNotOffered verifies the root has no delete control
func TestDeleteRootNotOffered(t *testing.T) {
	m := newTestModel(t, client.NewDemo(), model.AdminUser)

	m.tree.JumpToTop()
	m = press(t, m, "d")
	if m.Prompting() {
		t.Error("delete must not be offered for the root")
	}
	if !strings.Contains(m.StatusMessage(), "root") {
		t.Errorf("expected a status hint, got %q", m.StatusMessage())
	}
}

// TestDeclinedDeleteKeepsNode verifies cancelling the confirmation does nothing
func TestDeclinedDeleteKeepsNode(t *testing.T) {
	repo := client.NewDemo()
	m := newTestModel(t, repo, model.AdminUser)

	m.tree.SelectByPath("/oh/config")
	m = press(t, m, "d")
	m = submit(t, m) // confirmed stays false

	if !repo.Has("/oh/config") {
		t.Error("node must survive a declined confirmation")
	}
}

// TestEditPropertyOnlyWhenChanged verifies unchanged edits send nothing
func TestEditPropertyOnlyWhenChanged(t *testing.T) {
	repo := client.NewDemo()
	m := newTestModel(t, repo, model.AdminUser)

	m.tree.SelectByPath("/oh/config")
	m = press(t, m, "enter")
	m = press(t, m, "tab")
	if m.FocusState() != "properties" {
		t.Fatalf("expected properties focus, got %q", m.FocusState())
	}

	m = press(t, m, "e")
	if !m.Prompting() || m.prompt.kind != promptEditProperty {
		t.Fatal("expected edit prompt")
	}
	m = submit(t, m)
	if repo.Calls("SetProperty", "/oh/config") != 0 {
		t.Error("unchanged value must not be sent")
	}

	m = press(t, m, "e")
	m.prompt.value = "author"
	m = submit(t, m)
	if got := m.props.Properties()["mode"]; got != "author" {
		t.Errorf("expected reloaded mode=author, got %q", got)
	}
}

// TestMultiValuedPropertyReadOnly verifies multi-valued properties are not editable
func TestMultiValuedPropertyReadOnly(t *testing.T) {
	m := newTestModel(t, client.NewDemo(), model.AdminUser)

	m.tree.SelectByPath("/oh/content")
	m = press(t, m, "space")
	m.tree.SelectByPath("/oh/content/news")
	m = press(t, m, "enter")
	m = press(t, m, "tab")
	m.props.SelectByName("tags")

	m = press(t, m, "e")
	if m.Prompting() {
		t.Error("multi-valued property must not open an editor")
	}
	if !strings.Contains(m.AlertMessage(), "multiple values") {
		t.Errorf("expected read-only alert, got %q", m.AlertMessage())
	}
}

// TestDeleteProperty verifies confirmed property deletion reloads the table
func TestDeleteProperty(t *testing.T) {
	repo := client.NewDemo()
	m := newTestModel(t, repo, model.AdminUser)

	m.tree.SelectByPath("/oh/config")
	m = press(t, m, "enter")
	m = press(t, m, "tab")
	m = press(t, m, "x")
	if !m.Prompting() || m.prompt.kind != promptDeleteProperty {
		t.Fatal("expected delete property prompt")
	}
	m.prompt.confirmed = true
	m = submit(t, m)

	if _, ok := m.props.Properties()["mode"]; ok {
		t.Error("expected mode to be deleted")
	}
}

// TestRefreshRelistsNode verifies r forces a new listing
func TestRefreshRelistsNode(t *testing.T) {
	repo := client.NewDemo()
	m := newTestModel(t, repo, "reader")

	m.tree.SelectByPath("/oh/content")
	m = press(t, m, "space")
	repo.Seed("/oh/content/blog", nil)
	m = press(t, m, "r")

	if repo.Calls("ListChildren", "/oh/content") != 2 {
		t.Errorf("expected 2 listings, got %d", repo.Calls("ListChildren", "/oh/content"))
	}
	if !m.tree.SelectByPath("/oh/content/blog") {
		t.Error("expected new child after refresh")
	}
}

// TestFailedListingShowsNoChildren verifies a failed listing degrades to empty
func TestFailedListingShowsNoChildren(t *testing.T) {
	repo := client.NewDemo()
	m := newTestModel(t, repo, "reader")

	repo.FailOn("ListChildren", errors.New("boom"))
	m.tree.SelectByPath("/oh/content")
	m = press(t, m, "space")

	n, _ := m.tree.Tree().Node("/oh/content")
	if !n.NoChildrenFound() {
		t.Errorf("expected no children found, got %+v", n)
	}
	if !strings.Contains(m.View(), "no children found") {
		t.Error("expected placeholder in view")
	}
}

// TestUnauthorizedAsksForLogin verifies a 401 leads back to the login form
func TestUnauthorizedAsksForLogin(t *testing.T) {
	repo := client.NewDemo()
	m := newTestModel(t, repo, "reader")

	repo.FailOn("ListChildren", &client.HTTPError{StatusCode: 401})
	m.tree.SelectByPath("/oh/content")
	m = press(t, m, "space")
	if m.AlertMessage() == "" {
		t.Fatal("expected an alert")
	}

	next, _ := m.Update(keyMsg("j"))
	m = next.(Model)
	if !m.Prompting() || m.prompt.kind != promptLogin {
		t.Error("expected the login form after dismissing the alert")
	}
}

// TestLoginFlow verifies the browser connects after a successful login
func TestLoginFlow(t *testing.T) {
	repo := client.NewDemo()
	theme := newTestTheme()
	cfg := config.Default()
	cfg.UI.RememberExpanded = false

	var got model.Credentials
	m := NewModel(Options{
		Config: cfg,
		Theme:  &theme,
		Login: func(_ context.Context, creds model.Credentials) (Repository, error) {
			got = creds
			if creds.Password != "secret" {
				return nil, errors.New("rejected")
			}
			return repo, nil
		},
	})
	if !m.Prompting() || m.Connected() {
		t.Fatal("expected to start at the login form")
	}

	m.prompt.username = model.AdminUser
	m.prompt.password = "wrong"
	m = submit(t, m)
	if m.Connected() || !strings.Contains(m.AlertMessage(), "rejected") {
		t.Fatalf("expected rejected login, alert=%q", m.AlertMessage())
	}

	next, _ := m.Update(keyMsg("x"))
	m = next.(Model)
	if !m.Prompting() {
		t.Fatal("expected the login form again")
	}
	m.prompt.username = model.AdminUser
	m.prompt.password = "secret"
	m = submit(t, m)

	if !m.Connected() {
		t.Fatal("expected to be connected")
	}
	if got.Username != model.AdminUser {
		t.Errorf("login got user %q", got.Username)
	}
	if !m.tree.Tree().Admin() {
		t.Error("admin login must grant the admin capability")
	}
}

// TestConfigReloadAppliesSplit verifies live config changes reach the layout
func TestConfigReloadAppliesSplit(t *testing.T) {
	m := newTestModel(t, client.NewDemo(), "reader")

	cfg := config.Default()
	cfg.UI.SplitRatio = 0.5
	next, _ := m.Update(ConfigReloadedMsg{Config: cfg})
	m = next.(Model)

	if m.cfg.UI.SplitRatio != 0.5 {
		t.Errorf("split ratio = %v", m.cfg.UI.SplitRatio)
	}
	if m.tree.width != 58 {
		t.Errorf("tree width = %d", m.tree.width)
	}
}

// TestHelpOverlay verifies ? opens and closes the help
func TestHelpOverlay(t *testing.T) {
	m := newTestModel(t, client.NewDemo(), "reader")

	m = press(t, m, "?")
	if m.help == nil {
		t.Fatal("expected help to open")
	}
	m = press(t, m, "?")
	if m.help != nil {
		t.Error("expected help to close")
	}
}

// TestViewShowsAdminBadge verifies the header reflects the capability
func TestViewShowsAdminBadge(t *testing.T) {
	m := newTestModel(t, client.NewDemo(), model.AdminUser)
	if !strings.Contains(m.View(), "(admin)") {
		t.Error("expected admin badge in header")
	}
	r := newTestModel(t, client.NewDemo(), "reader")
	if strings.Contains(r.View(), "(admin)") {
		t.Error("reader must not get the admin badge")
	}
}

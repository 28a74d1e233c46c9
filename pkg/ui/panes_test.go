package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/nodeview/pkg/client"
	"github.com/vanderheijden86/nodeview/pkg/model"
	"github.com/vanderheijden86/nodeview/pkg/tree"
)

func TestPropertiesPaneStates(t *testing.T) {
	p := NewPropertiesModel(newTestTheme())
	p.SetSize(60, 20)

	if !strings.Contains(p.View(), "Select a node with enter.") {
		t.Errorf("empty pane view = %q", p.View())
	}

	p.SetLoading("/oh/content")
	if !p.Loading() || !strings.Contains(p.View(), "loading…") {
		t.Errorf("expected loading view, got %q", p.View())
	}

	p.SetProperties("/oh/content", model.Properties{}, nil)
	if !strings.Contains(p.View(), "no properties") {
		t.Errorf("expected empty view, got %q", p.View())
	}

	p.SetLoading("/oh/content")
	p.SetProperties("/oh/content", nil, errors.New("timeout"))
	if !strings.Contains(p.View(), "could not load properties: timeout") {
		t.Errorf("expected error view, got %q", p.View())
	}
}

func TestPropertiesPaneIgnoresStaleResponse(t *testing.T) {
	p := NewPropertiesModel(newTestTheme())
	p.SetLoading("/oh/a")
	p.SetLoading("/oh/b")

	if p.SetProperties("/oh/a", model.Properties{"x": "1"}, nil) {
		t.Error("response for a previous selection must be ignored")
	}
	if !p.Loading() {
		t.Error("still waiting for /oh/b")
	}
	if !p.SetProperties("/oh/b", model.Properties{"y": "2"}, nil) {
		t.Error("expected current response to be applied")
	}
	if p.Properties()["y"] != "2" {
		t.Errorf("props = %v", p.Properties())
	}
}

func TestPropertiesPaneSortedAndMarked(t *testing.T) {
	p := NewPropertiesModel(newTestTheme())
	p.SetSize(60, 20)
	p.SetLoading("/oh/n")
	p.SetProperties("/oh/n", model.Properties{
		"zeta":  "last",
		"alpha": "first",
		"tags":  model.MultipleValues,
	}, nil)

	if p.SelectedName() != "alpha" {
		t.Errorf("expected sorted names, first = %q", p.SelectedName())
	}
	p.MoveDown()
	if p.SelectedName() != "tags" {
		t.Errorf("second = %q", p.SelectedName())
	}
	p.SelectByName("zeta")
	if p.SelectedName() != "zeta" {
		t.Errorf("SelectByName: got %q", p.SelectedName())
	}

	var tagsLine string
	for _, line := range strings.Split(p.View(), "\n") {
		if strings.Contains(line, "tags") {
			tagsLine = line
		}
	}
	if !strings.Contains(tagsLine, model.MultipleValues) || !strings.Contains(tagsLine, " ro") {
		t.Errorf("expected multi-valued marker on the tags row, got %q", tagsLine)
	}

	p.Clear()
	if p.Path() != "" || p.SelectedName() != "" {
		t.Error("Clear must empty the pane")
	}
}

func TestPropertyColumnsFitWidth(t *testing.T) {
	tests := []struct {
		name  string
		width int
	}{
		{"narrow", 10},
		{"normal", 60},
		{"wide", 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols := propertyColumns(tt.width)
			if len(cols) != 3 {
				t.Fatalf("expected 3 columns, got %d", len(cols))
			}
			for _, c := range cols {
				if c.Width <= 0 {
					t.Errorf("column %q has width %d", c.Title, c.Width)
				}
			}
			if cols[2].Width != 3 {
				t.Errorf("flag column width = %d", cols[2].Width)
			}
		})
	}
}

func TestAlertView(t *testing.T) {
	a := NewAlertModel("Could not create node", "name clash", true, newTestTheme())
	a.SetSize(80, 24)

	view := a.View()
	for _, want := range []string{"Could not create node", "name clash", "press any key"} {
		if !strings.Contains(view, want) {
			t.Errorf("alert view missing %q", want)
		}
	}
	if a.Message() != "name clash" {
		t.Errorf("Message() = %q", a.Message())
	}
}

func TestRepoOperationString(t *testing.T) {
	tests := []struct {
		op   RepoOperation
		want string
	}{
		{RepoOpCreateNode, "create node"},
		{RepoOpDeleteNode, "delete node"},
		{RepoOpSetProperty, "save property"},
		{RepoOpDeleteProperty, "delete property"},
		{RepoOperation(99), "unknown operation"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", int(tt.op), got, tt.want)
		}
	}
}

func TestRepoWriterFetchBatches(t *testing.T) {
	repo := client.NewDemo()
	w := NewRepoWriter(repo, time.Second)

	if w.Fetch(nil) != nil {
		t.Error("no fetches must give a nil command")
	}

	cmd := w.Fetch([]tree.Fetch{{Path: "/oh"}, {Path: "/oh/content"}})
	batch, ok := cmd().(tea.BatchMsg)
	if !ok {
		t.Fatalf("expected a batch, got %T", cmd())
	}
	got := map[string]int{}
	for _, c := range batch {
		msg := c().(ChildrenMsg)
		if msg.Err != nil {
			t.Errorf("%s: %v", msg.Path, msg.Err)
		}
		got[msg.Path] = len(msg.Children)
	}
	if got["/oh"] != 3 || got["/oh/content"] != 2 {
		t.Errorf("listings = %v", got)
	}
}

func TestRepoWriterReportsErrors(t *testing.T) {
	repo := client.NewDemo()
	w := NewRepoWriter(repo, 0)

	msg := w.DeleteNode("/oh/missing")().(RepoResultMsg)
	if msg.Operation != RepoOpDeleteNode || msg.Path != "/oh/missing" || msg.Err == nil {
		t.Errorf("unexpected result %+v", msg)
	}

	msg = w.CreateNode("/oh", "fresh")().(RepoResultMsg)
	if msg.Err != nil || msg.Name != "fresh" || !repo.Has("/oh/fresh") {
		t.Errorf("create failed: %+v", msg)
	}

	props := w.LoadProperties("/oh/config")().(PropertiesMsg)
	if props.Props["mode"] != "publish" {
		t.Errorf("props = %v", props.Props)
	}
}

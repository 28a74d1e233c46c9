// Package ui provides the terminal browser for a remote node repository.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/vanderheijden86/nodeview/pkg/client"
	"github.com/vanderheijden86/nodeview/pkg/config"
	"github.com/vanderheijden86/nodeview/pkg/model"
	"github.com/vanderheijden86/nodeview/pkg/tree"
)

type focus int

const (
	focusTree focus = iota
	focusProps
)

// LoginFunc checks credentials and returns a repository bound to them.
type LoginFunc func(ctx context.Context, creds model.Credentials) (Repository, error)

// LoginResultMsg is returned after a login attempt.
type LoginResultMsg struct {
	Repo  Repository
	Creds model.Credentials
	Err   error
}

// ConfigReloadedMsg is sent by the config watcher.
type ConfigReloadedMsg struct {
	Config config.Config
}

type clipboardMsg struct {
	Path string
	Err  error
}

// Options configures a Model.
type Options struct {
	// Repo is an already authenticated repository. Without one the
	// browser starts with the login form.
	Repo  Repository
	Creds model.Credentials
	Login LoginFunc

	Config config.Config
	Theme  *Theme
}

// Model is the bubbletea model of the browser.
type Model struct {
	cfg    config.Config
	login  LoginFunc
	repo   Repository
	writer *RepoWriter
	creds  model.Credentials

	theme Theme
	keys  KeyMap
	tree  TreeModel
	props PropertiesModel

	prompt  *prompt
	alert   *AlertModel
	relogin bool // show the login form once the alert is dismissed
	help    *HelpModel

	focused focus
	status  string
	width   int
	height  int
	ready   bool
	init    []tea.Cmd
}

// NewModel creates the browser.
func NewModel(opts Options) Model {
	theme := DefaultTheme(lipgloss.DefaultRenderer())
	if opts.Theme != nil {
		theme = *opts.Theme
	}
	cfg := opts.Config
	if cfg.Server.URL == "" {
		cfg = config.Default()
	}

	m := Model{
		cfg:   cfg,
		login: opts.Login,
		creds: opts.Creds,
		theme: theme,
		keys:  DefaultKeyMap(),
		tree:  NewTreeModel(theme),
		props: NewPropertiesModel(theme),
	}
	m.tree.SetPersistence(cfg.ResolvedStateDir(), cfg.Server.URL, cfg.UI.RememberExpanded)

	if opts.Repo != nil {
		m.init = append(m.init, m.connect(opts.Repo, opts.Creds))
	} else {
		m.prompt = newLoginPrompt(opts.Creds.Username)
		m.init = append(m.init, m.prompt.form.Init())
	}
	return m
}

// connect mounts a fresh tree for repo and returns the initial fetches.
func (m *Model) connect(repo Repository, creds model.Credentials) tea.Cmd {
	m.repo = repo
	m.creds = creds
	m.writer = NewRepoWriter(repo, m.cfg.Server.Timeout)
	m.props.Clear()
	fetches := m.tree.Mount(creds.IsAdmin())
	log.Info("connected", "server", m.cfg.Server.URL, "user", creds.Username, "admin", creds.IsAdmin())
	return m.fetch(fetches)
}

// fetch runs tree fetches and keeps the spinner going.
func (m *Model) fetch(fetches []tree.Fetch) tea.Cmd {
	if len(fetches) == 0 || m.writer == nil {
		return nil
	}
	return tea.Batch(m.writer.Fetch(fetches), m.tree.Tick())
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.init...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		return m, nil

	case spinner.TickMsg:
		return m, m.tree.UpdateSpinner(msg)

	case ChildrenMsg:
		if msg.Err != nil {
			log.Warn("list children failed", "path", msg.Path, "err", msg.Err)
			if errors.Is(msg.Err, client.ErrUnauthorized) {
				m.showAlert("Session rejected", "The server refused the credentials. Log in again.", true)
				m.relogin = true
			}
		}
		return m, m.fetch(m.tree.Apply(msg.Path, msg.Children))

	case PropertiesMsg:
		if msg.Err != nil {
			log.Warn("get properties failed", "path", msg.Path, "err", msg.Err)
		}
		m.props.SetProperties(msg.Path, msg.Props, msg.Err)
		return m, nil

	case RepoResultMsg:
		return m, m.handleResult(msg)

	case LoginResultMsg:
		if msg.Err != nil {
			log.Warn("login failed", "user", msg.Creds.Username, "err", msg.Err)
			m.showAlert("Login failed", msg.Err.Error(), true)
			m.relogin = true
			return m, nil
		}
		return m, m.connect(msg.Repo, msg.Creds)

	case ConfigReloadedMsg:
		m.cfg.UI = msg.Config.UI
		if m.cfg.UI.SplitRatio == 0 {
			m.cfg.UI.SplitRatio = config.DefaultSplitRatio
		}
		m.tree.SetPersistence(m.cfg.ResolvedStateDir(), m.cfg.Server.URL, m.cfg.UI.RememberExpanded)
		m.layout()
		m.status = "config reloaded"
		return m, nil

	case clipboardMsg:
		if msg.Err != nil {
			m.status = "copy failed: " + msg.Err.Error()
		} else {
			m.status = "copied " + msg.Path
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.prompt != nil {
		return m.updatePrompt(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.alert != nil {
		m.alert = nil
		if m.relogin {
			m.relogin = false
			m.prompt = newLoginPrompt(m.creds.Username)
			m.layout()
			return m, m.prompt.form.Init()
		}
		return m, nil
	}

	if m.prompt != nil {
		return m.updatePrompt(msg)
	}

	if m.help != nil {
		switch {
		case key.Matches(msg, m.keys.Down):
			m.help.ScrollDown()
		case key.Matches(msg, m.keys.Up):
			m.help.ScrollUp()
		case key.Matches(msg, m.keys.Help), key.Matches(msg, m.keys.Quit), msg.String() == "esc":
			m.help = nil
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.tree.saveState()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		h := NewHelpModel(m.theme, m.width, m.height)
		m.help = &h
		return m, nil
	case key.Matches(msg, m.keys.Focus):
		if m.focused == focusTree {
			m.focused = focusProps
		} else {
			m.focused = focusTree
		}
		m.props.SetFocused(m.focused == focusProps)
		return m, nil
	}

	m.status = ""
	if m.focused == focusProps {
		return m, m.handlePropsKey(msg)
	}
	return m, m.handleTreeKey(msg)
}

func (m *Model) handleTreeKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Down):
		m.tree.MoveDown()
	case key.Matches(msg, m.keys.Up):
		m.tree.MoveUp()
	case key.Matches(msg, m.keys.Top):
		m.tree.JumpToTop()
	case key.Matches(msg, m.keys.Bottom):
		m.tree.JumpToBottom()
	case key.Matches(msg, m.keys.PageDown):
		m.tree.PageDown()
	case key.Matches(msg, m.keys.PageUp):
		m.tree.PageUp()
	case key.Matches(msg, m.keys.Toggle):
		return m.fetch(m.tree.Toggle())
	case key.Matches(msg, m.keys.Expand):
		return m.fetch(m.tree.ExpandOrMoveToChild())
	case key.Matches(msg, m.keys.Collapse):
		m.tree.CollapseOrJumpToParent()
	case key.Matches(msg, m.keys.Select):
		return m.selectNode()
	case key.Matches(msg, m.keys.Refresh):
		cmd := m.fetch(m.tree.Invalidate())
		if path := m.props.Path(); path != "" && m.writer != nil {
			m.props.SetLoading(path)
			cmd = tea.Batch(cmd, m.writer.LoadProperties(path))
		}
		return cmd
	case key.Matches(msg, m.keys.Add):
		if !m.tree.Controls().Add {
			return nil
		}
		m.prompt = newAddNodePrompt(m.tree.SelectedPath())
		return m.prompt.form.Init()
	case key.Matches(msg, m.keys.Delete):
		if !m.tree.Controls().Delete {
			if m.tree.Controls().Add && model.IsRoot(m.tree.SelectedPath()) {
				m.status = "the root node cannot be deleted"
			}
			return nil
		}
		m.prompt = newDeleteNodePrompt(m.tree.SelectedPath())
		return m.prompt.form.Init()
	case key.Matches(msg, m.keys.Yank):
		return copyPathCmd(m.tree.SelectedPath())
	}
	return nil
}

func (m *Model) handlePropsKey(msg tea.KeyMsg) tea.Cmd {
	path := m.props.Path()
	switch {
	case key.Matches(msg, m.keys.Down):
		m.props.MoveDown()
	case key.Matches(msg, m.keys.Up):
		m.props.MoveUp()
	case key.Matches(msg, m.keys.NewProp):
		if path == "" || m.props.Loading() {
			return nil
		}
		m.prompt = newPropertyPrompt(path)
		return m.prompt.form.Init()
	case key.Matches(msg, m.keys.EditProp):
		name := m.props.SelectedName()
		if name == "" {
			return nil
		}
		if m.props.Properties().IsMultiValued(name) {
			m.showAlert("Read-only property", fmt.Sprintf("%q has multiple values and cannot be edited here.", name), false)
			return nil
		}
		m.prompt = newEditPropertyPrompt(path, name, m.props.Properties()[name])
		return m.prompt.form.Init()
	case key.Matches(msg, m.keys.DeleteProp):
		name := m.props.SelectedName()
		if name == "" {
			return nil
		}
		m.prompt = newDeletePropertyPrompt(path, name)
		return m.prompt.form.Init()
	}
	return nil
}

// selectNode emits the selection and loads the node's properties.
func (m *Model) selectNode() tea.Cmd {
	sel, ok := m.tree.Select()
	if !ok || m.writer == nil {
		return nil
	}
	m.props.SetLoading(sel.Path)
	return m.writer.LoadProperties(sel.Path)
}

func (m Model) updatePrompt(msg tea.Msg) (tea.Model, tea.Cmd) {
	p := m.prompt
	updated, cmd := p.form.Update(msg)
	if f, ok := updated.(*huh.Form); ok {
		p.form = f
	}

	switch p.form.State {
	case huh.StateCompleted:
		m.prompt = nil
		return m, tea.Batch(cmd, m.finishPrompt(p))
	case huh.StateAborted:
		m.prompt = nil
		if p.kind == promptLogin && m.repo == nil {
			return m, tea.Quit
		}
		return m, cmd
	}
	return m, cmd
}

// finishPrompt acts on a submitted prompt.
func (m *Model) finishPrompt(p *prompt) tea.Cmd {
	switch p.kind {
	case promptLogin:
		return m.loginCmd(p.credentials())

	case promptAddNode:
		t := m.tree.Tree()
		if t == nil {
			return nil
		}
		if err := t.ValidateAdd(p.target, p.name); err != nil {
			m.showAlert("Cannot add node", err.Error(), true)
			return nil
		}
		m.status = "creating " + model.JoinPath(p.target, p.name)
		return m.writer.CreateNode(p.target, p.name)

	case promptDeleteNode:
		if !p.confirmed {
			return nil
		}
		t := m.tree.Tree()
		if t == nil {
			return nil
		}
		if err := t.ValidateDelete(p.target); err != nil {
			m.showAlert("Cannot delete node", err.Error(), true)
			return nil
		}
		m.status = "deleting " + p.target
		return m.writer.DeleteNode(p.target)

	case promptNewProperty:
		if err := model.ValidateName(p.name); err != nil {
			m.showAlert("Cannot add property", err.Error(), true)
			return nil
		}
		return m.writer.SetProperty(p.target, p.name, p.value)

	case promptEditProperty:
		if !p.changed() {
			m.status = "unchanged"
			return nil
		}
		return m.writer.SetProperty(p.target, p.name, p.value)

	case promptDeleteProperty:
		if !p.confirmed {
			return nil
		}
		return m.writer.DeleteProperty(p.target, p.name)
	}
	return nil
}

func (m *Model) loginCmd(creds model.Credentials) tea.Cmd {
	login := m.login
	timeout := m.cfg.Server.Timeout
	if timeout <= 0 {
		timeout = config.DefaultTimeout
	}
	return func() tea.Msg {
		if login == nil {
			return LoginResultMsg{Creds: creds, Err: errors.New("no login handler configured")}
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		repo, err := login(ctx, creds)
		return LoginResultMsg{Repo: repo, Creds: creds, Err: err}
	}
}

// handleResult applies a finished mutation.
func (m *Model) handleResult(msg RepoResultMsg) tea.Cmd {
	var cmds []tea.Cmd

	switch msg.Operation {
	case RepoOpCreateNode:
		// The parent is re-listed whether or not the create went through.
		cmds = append(cmds, m.fetch(m.tree.AfterCreate(msg.Path)))
		if msg.Err == nil {
			m.status = "created " + model.JoinPath(msg.Path, msg.Name)
		}

	case RepoOpDeleteNode:
		if msg.Err == nil {
			m.tree.Remove(msg.Path)
			if p := m.props.Path(); p == msg.Path || strings.HasPrefix(p, msg.Path+"/") {
				m.props.Clear()
			}
			m.status = "deleted " + msg.Path
		}

	case RepoOpSetProperty, RepoOpDeleteProperty:
		if m.props.Path() == msg.Path {
			m.props.SetLoading(msg.Path)
			cmds = append(cmds, m.writer.LoadProperties(msg.Path))
		}
		if msg.Err == nil {
			m.status = msg.Operation.String() + " " + msg.Name
		}
	}

	if msg.Err != nil {
		log.Warn("repository operation failed", "op", msg.Operation.String(), "path", msg.Path, "name", msg.Name, "err", msg.Err)
		m.status = ""
		title := "Could not " + msg.Operation.String()
		if errors.Is(msg.Err, client.ErrUnauthorized) {
			m.showAlert(title, "The server refused the credentials. Log in again.", true)
			m.relogin = true
		} else {
			m.showAlert(title, msg.Err.Error(), true)
		}
	}
	return tea.Batch(cmds...)
}

func (m *Model) showAlert(title, message string, danger bool) {
	a := NewAlertModel(title, message, danger, m.theme)
	a.SetSize(m.width, m.height)
	m.alert = &a
}

func copyPathCmd(path string) tea.Cmd {
	if path == "" {
		return nil
	}
	return func() tea.Msg {
		return clipboardMsg{Path: path, Err: clipboard.WriteAll(path)}
	}
}

// layout splits the screen between the two panes.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	bodyHeight := m.height - 2 // header and footer
	if bodyHeight < 3 {
		bodyHeight = 3
	}
	treeWidth := int(float64(m.width) * m.cfg.UI.SplitRatio)
	propsWidth := m.width - treeWidth

	m.tree.SetSize(treeWidth-2, bodyHeight-2) // -2 for border
	m.props.SetSize(propsWidth-2, bodyHeight-2)
	if m.alert != nil {
		m.alert.SetSize(m.width, m.height)
	}
	if m.help != nil {
		m.help.SetSize(m.width, m.height)
	}
	if m.prompt != nil {
		w := m.width - 10
		if w > 60 {
			w = 60
		}
		if w > 20 {
			m.prompt.form = m.prompt.form.WithWidth(w)
		}
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	switch {
	case m.alert != nil:
		return m.alert.View()
	case m.prompt != nil:
		box := m.theme.Renderer.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(m.theme.Primary).
			Padding(1, 2).
			Render(m.prompt.form.View())
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
	case m.help != nil:
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.help.View())
	}

	bodyHeight := m.height - 2
	treeWidth := int(float64(m.width) * m.cfg.UI.SplitRatio)
	propsWidth := m.width - treeWidth

	treeStyle, propsStyle := m.theme.Focused, m.theme.Panel
	if m.focused == focusProps {
		treeStyle, propsStyle = m.theme.Panel, m.theme.Focused
	}
	treeView := treeStyle.Width(treeWidth - 2).Height(bodyHeight - 2).Render(m.tree.View())
	propsView := propsStyle.Width(propsWidth - 2).Height(bodyHeight - 2).Render(m.props.View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, treeView, propsView)

	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body, m.renderFooter())
}

func (m Model) renderHeader() string {
	r := m.theme.Renderer
	title := m.theme.Header.Render("nodeview")
	server := r.NewStyle().Foreground(m.theme.Subtext).Padding(0, 1).Render(m.cfg.Server.URL)

	user := m.creds.Username
	if user == "" {
		user = "anonymous"
	}
	userStyle := r.NewStyle().Foreground(m.theme.Muted).Padding(0, 1)
	if m.creds.IsAdmin() {
		userStyle = userStyle.Foreground(m.theme.Admin).Bold(true)
		user += " (admin)"
	}
	return lipgloss.JoinHorizontal(lipgloss.Bottom, title, server, userStyle.Render(user))
}

func (m Model) renderFooter() string {
	if m.status != "" {
		return m.theme.Footer.Foreground(m.theme.Secondary).Render(m.status)
	}

	var keys string
	if m.focused == focusProps {
		keys = "j/k: move • n: new • e: edit • x: delete • tab: tree • ?: help • q: quit"
	} else {
		keys = "space: toggle • enter: select • r: refresh"
		c := m.tree.Controls()
		if c.Add {
			keys += " • a: add"
		}
		if c.Delete {
			keys += " • d: delete"
		}
		keys += " • y: copy • tab: properties • ?: help • q: quit"
	}
	return m.theme.Footer.Render(keys)
}

// FocusState returns "tree" or "properties" (exposed for testing).
func (m Model) FocusState() string {
	if m.focused == focusProps {
		return "properties"
	}
	return "tree"
}

// Prompting reports whether a form is open.
func (m Model) Prompting() bool {
	return m.prompt != nil
}

// AlertMessage returns the text of the open alert, or "".
func (m Model) AlertMessage() string {
	if m.alert == nil {
		return ""
	}
	return m.alert.Message()
}

// StatusMessage returns the footer status line.
func (m Model) StatusMessage() string {
	return m.status
}

// Connected reports whether a repository is bound.
func (m Model) Connected() bool {
	return m.repo != nil
}

// TreePane returns the tree pane (exposed for testing).
func (m Model) TreePane() *TreeModel {
	return &m.tree
}

// PropertiesPane returns the properties pane (exposed for testing).
func (m Model) PropertiesPane() *PropertiesModel {
	return &m.props
}

// SaveState writes the expanded paths if remembering is enabled.
func (m Model) SaveState() {
	m.tree.saveState()
}

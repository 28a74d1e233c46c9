package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vanderheijden86/nodeview/pkg/client"
	"github.com/vanderheijden86/nodeview/pkg/config"
	"github.com/vanderheijden86/nodeview/pkg/model"
	"github.com/vanderheijden86/nodeview/pkg/ui"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

// reloadDebounce coalesces the burst of events an editor save produces.
const reloadDebounce = 200 * time.Millisecond

func main() {
	if err := newRootCmd(newApp()).Execute(); err != nil {
		os.Exit(1)
	}
}

// repository is what every command needs from a backend.
type repository interface {
	ui.Repository
	Login(ctx context.Context) error
}

// app holds the global flags and the resolved configuration.
type app struct {
	configPath string
	server     string
	user       string
	logLevel   string
	demo       bool

	cfg      config.Config
	demoRepo *client.Memory
	logFile  *os.File

	getenv       func(string) string
	isTerminal   func() bool
	readPassword func(w io.Writer) (string, error)
}

func newApp() *app {
	return &app{
		getenv: os.Getenv,
		isTerminal: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
		},
		readPassword: func(w io.Writer) (string, error) {
			fmt.Fprint(w, "Password: ")
			b, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(w)
			return string(b), err
		},
	}
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "nv",
		Short:        "Browse and edit a remote node repository",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive browser
  nv

  # Try it without a server
  nv --demo

  # Scriptable commands
  nv ls /oh/content
  nv tree /oh --depth 2
  nv export /oh/content --format svg -o content.svg
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd)
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		if err := a.loadConfig(); err != nil {
			return err
		}
		// The TUI owns the terminal, so it logs to a file instead.
		return a.setupLogging(cmd.ErrOrStderr(), !cmd.HasParent() && a.isTerminal())
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if a.logFile != nil {
			err := a.logFile.Close()
			a.logFile = nil
			return err
		}
		return nil
	}

	f := cmd.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "config file (default: discovered .nodeview/config.yaml)")
	f.StringVar(&a.server, "server", "", "repository server URL (overrides server.url)")
	f.StringVarP(&a.user, "user", "u", "", "username (overrides auth.username)")
	f.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error")
	f.BoolVar(&a.demo, "demo", false, "use a built-in in-memory repository")

	cmd.AddCommand(
		newLsCmd(a),
		newPropsCmd(a),
		newTreeCmd(a),
		newExportCmd(a),
		newLoginCmd(a),
		newInitCmd(a),
		newVersionCmd(),
	)
	return cmd
}

// loadConfig resolves the config file, then the environment, then flags.
func (a *app) loadConfig() error {
	cfg, err := config.Resolve(a.configPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv(a.getenv)
	if a.server != "" {
		cfg.Server.URL = a.server
	}
	if a.user != "" {
		cfg.Auth.Username = a.user
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func (a *app) setupLogging(stderr io.Writer, tui bool) error {
	level, err := log.ParseLevel(a.cfg.Log.Level)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	if !tui {
		log.SetOutput(stderr)
		return nil
	}

	path := a.cfg.LogFile()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(file)
	log.SetReportTimestamp(true)
	a.logFile = file
	return nil
}

// connect returns a repository bound to creds after checking them.
func (a *app) connect(ctx context.Context, creds model.Credentials) (repository, error) {
	var repo repository
	if a.demo {
		if a.demoRepo == nil {
			a.demoRepo = client.NewDemo()
		}
		repo = a.demoRepo
	} else {
		c, err := client.New(a.cfg.Server.URL, creds, client.WithTimeout(a.cfg.Server.Timeout))
		if err != nil {
			return nil, err
		}
		repo = c
	}
	if err := repo.Login(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

// credentials collects the login for a non-interactive command. The
// password comes from the environment or a hidden prompt.
func (a *app) credentials(cmd *cobra.Command) (model.Credentials, error) {
	creds := model.Credentials{Username: a.cfg.Auth.Username, Password: a.cfg.Auth.Password}
	if a.demo {
		if creds.IsZero() {
			creds.Username = model.AdminUser
		}
		return creds, nil
	}
	if creds.IsZero() {
		return creds, fmt.Errorf("no username: use --user or %s", config.EnvUser)
	}
	if creds.Password == "" && a.isTerminal() {
		pw, err := a.readPassword(cmd.ErrOrStderr())
		if err != nil {
			return creds, fmt.Errorf("read password: %w", err)
		}
		creds.Password = pw
	}
	return creds, nil
}

// open logs in for a non-interactive command.
func (a *app) open(cmd *cobra.Command) (repository, model.Credentials, error) {
	creds, err := a.credentials(cmd)
	if err != nil {
		return nil, creds, err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Server.Timeout)
	defer cancel()
	repo, err := a.connect(ctx, creds)
	if err != nil {
		return nil, creds, fmt.Errorf("login as %s: %w", creds.Username, err)
	}
	return repo, creds, nil
}

func (a *app) runTUI(cmd *cobra.Command) error {
	if !a.isTerminal() {
		return errors.New("the browser needs a terminal; use a subcommand such as `nv ls` in scripts")
	}

	opts := ui.Options{
		Config: a.cfg,
		Creds:  model.Credentials{Username: a.cfg.Auth.Username, Password: a.cfg.Auth.Password},
		Login: func(ctx context.Context, creds model.Credentials) (ui.Repository, error) {
			return a.connect(ctx, creds)
		},
	}
	if a.demo && opts.Creds.IsZero() {
		opts.Creds.Username = model.AdminUser
	}

	// Skip the login form when the credentials are already known.
	if a.demo || (!opts.Creds.IsZero() && opts.Creds.Password != "") {
		ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Server.Timeout)
		repo, err := a.connect(ctx, opts.Creds)
		cancel()
		if err != nil {
			log.Warn("startup login failed", "user", opts.Creds.Username, "err", err)
		} else {
			opts.Repo = repo
		}
	}

	p := tea.NewProgram(ui.NewModel(opts), tea.WithAltScreen(), tea.WithContext(cmd.Context()))

	if a.cfg.Path != "" {
		w, err := config.NewWatcher(a.cfg.Path, reloadDebounce, func(cfg config.Config, err error) {
			if err != nil {
				log.Warn("config reload failed", "err", err)
				return
			}
			p.Send(ui.ConfigReloadedMsg{Config: cfg})
		})
		if err != nil {
			log.Warn("config watcher unavailable", "err", err)
		} else if err := w.Start(); err != nil {
			log.Warn("config watcher unavailable", "err", err)
		} else {
			defer w.Stop()
		}
	}

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running browser: %w", err)
	}
	return nil
}

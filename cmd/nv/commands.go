package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/vanderheijden86/nodeview/pkg/config"
	"github.com/vanderheijden86/nodeview/pkg/export"
	"github.com/vanderheijden86/nodeview/pkg/model"
	"github.com/vanderheijden86/nodeview/pkg/tree"
)

func pathArg(args []string) string {
	if len(args) == 0 {
		return model.RootPath
	}
	return model.NormalizePath(args[0])
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newLsCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List the children of a node",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, _, err := a.open(cmd)
			if err != nil {
				return err
			}
			path := pathArg(args)
			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Server.Timeout)
			defer cancel()
			children, err := repo.ListChildren(ctx, path)
			if err != nil {
				return fmt.Errorf("list %s: %w", path, err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				if children == nil {
					children = []model.NodeSummary{}
				}
				return writeJSON(out, children)
			}
			for _, c := range children {
				suffix := ""
				if c.HasChildren {
					suffix = "/"
				}
				fmt.Fprintln(out, c.Name+suffix)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the listing as JSON")
	return cmd
}

func newPropsCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "props [path]",
		Short: "Show the properties of a node",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, _, err := a.open(cmd)
			if err != nil {
				return err
			}
			path := pathArg(args)
			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Server.Timeout)
			defer cancel()
			props, err := repo.GetProperties(ctx, path)
			if err != nil {
				return fmt.Errorf("properties of %s: %w", path, err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				if props == nil {
					props = model.Properties{}
				}
				return writeJSON(out, props)
			}
			width := 0
			for name := range props {
				width = max(width, len(name))
			}
			for _, name := range props.Names() {
				line := fmt.Sprintf("%-*s  %s", width, name, props[name])
				if props.IsMultiValued(name) {
					line += "  (read-only)"
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the properties as JSON")
	return cmd
}

func newTreeCmd(a *app) *cobra.Command {
	var depth int
	cmd := &cobra.Command{
		Use:   "tree [path]",
		Short: "Print a subtree as an outline",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if depth < 1 {
				return fmt.Errorf("--depth must be at least 1")
			}
			repo, _, err := a.open(cmd)
			if err != nil {
				return err
			}
			t, boot := tree.New(pathArg(args))
			t.SetAutoExpand(depth)

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Server.Timeout)
			defer cancel()
			if err := tree.Drain(ctx, repo, t, []tree.Fetch{boot}); err != nil {
				return err
			}
			printOutline(cmd.OutOrStdout(), t)
			return nil
		},
	}
	cmd.Flags().IntVarP(&depth, "depth", "d", 1, "levels below the path to show")
	return cmd
}

// printOutline writes the visible rows of t the way the browser draws them.
func printOutline(w io.Writer, t *tree.Tree) {
	for _, row := range t.Visible() {
		var sb strings.Builder
		if row.Depth > 0 {
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
		}

		switch row.Kind {
		case tree.RowLoading:
			sb.WriteString("…")
		case tree.RowNoChildren:
			sb.WriteString("(no children)")
		default:
			n, _ := t.Node(row.Path)
			switch {
			case !n.Summary.HasChildren:
				sb.WriteString("• ")
			case n.Expanded:
				sb.WriteString("▾ ")
			default:
				sb.WriteString("▸ ")
			}
			if row.Depth == 0 {
				sb.WriteString(n.Path())
			} else {
				sb.WriteString(n.Summary.Name)
			}
		}
		fmt.Fprintln(w, sb.String())
	}
}

func newExportCmd(a *app) *cobra.Command {
	var (
		format      string
		output      string
		depth       int
		concurrency int
		preview     bool
	)
	cmd := &cobra.Command{
		Use:   "export [path]",
		Short: "Export a subtree as markdown, svg, png or sqlite",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "md", "svg", "png":
			case "sqlite":
				if output == "" {
					return errors.New("--format sqlite needs --output")
				}
			default:
				return fmt.Errorf("unknown format %q (md, svg, png, sqlite)", format)
			}

			repo, _, err := a.open(cmd)
			if err != nil {
				return err
			}
			root, err := export.Walk(cmd.Context(), repo, pathArg(args), export.WalkOptions{
				MaxDepth:    depth,
				Concurrency: concurrency,
				Properties:  format == "md" || format == "sqlite",
			})
			if err != nil {
				return err
			}
			return writeExport(cmd, root, format, output, preview)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&format, "format", "f", "md", "md, svg, png or sqlite")
	f.StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	f.IntVarP(&depth, "depth", "d", 0, "levels below the path to include (0: all)")
	f.IntVar(&concurrency, "concurrency", export.DefaultConcurrency, "parallel requests")
	f.BoolVar(&preview, "preview", false, "render markdown for the terminal")
	return cmd
}

func writeExport(cmd *cobra.Command, root *export.Entry, format, output string, preview bool) error {
	out := cmd.OutOrStdout()
	stats := export.Summarize(root)

	switch format {
	case "md":
		md, err := export.GenerateMarkdown(root, "Node Export: "+root.Path)
		if err != nil {
			return err
		}
		if output != "" {
			if err := os.WriteFile(output, []byte(md), 0o644); err != nil {
				return err
			}
		}
		if preview {
			rendered, err := export.PreviewMarkdown(md, 100)
			if err != nil {
				return err
			}
			_, err = io.WriteString(out, rendered)
			return err
		}
		if output == "" {
			_, err := io.WriteString(out, md)
			return err
		}

	case "svg":
		if output == "" {
			return export.WriteSVG(out, root)
		}
		if err := export.SaveSVGToFile(root, output); err != nil {
			return err
		}

	case "png":
		if output == "" {
			return export.WritePNG(out, root)
		}
		if err := export.SavePNGToFile(root, output); err != nil {
			return err
		}

	case "sqlite":
		if err := export.WriteSQLite(cmd.Context(), output, root); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "exported %d nodes to %s\n", stats.Nodes, output)
	return nil
}

func newLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Check credentials against the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, creds, err := a.open(cmd)
			if err != nil {
				return err
			}
			role := ""
			if creds.IsAdmin() {
				role = " (admin)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s%s\n", creds.Username, role)
			return nil
		},
	}
}

func newInitCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a project config in .nodeview/",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return err
			}
			path := config.ProjectPath(dir)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			cfg := config.Default()
			cfg.Server = a.cfg.Server
			cfg.Auth.Username = a.cfg.Auth.Username
			if err := config.Write(path, cfg); err != nil {
				return err
			}
			if err := config.EnsureStateIgnored(dir); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "nv %s\n", version)
		},
	}
}

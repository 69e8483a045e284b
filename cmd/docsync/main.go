package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vonshlovens/docsync/internal/config"
	"github.com/vonshlovens/docsync/internal/maker"
	"github.com/vonshlovens/docsync/internal/parser"
	"github.com/vonshlovens/docsync/internal/remote"
	"github.com/vonshlovens/docsync/internal/scanner"
	"github.com/vonshlovens/docsync/internal/sync"
	"github.com/vonshlovens/docsync/internal/watcher"
)

var (
	cfgFile string
	verbose bool
	version = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "docsync",
		Short:        "Sync a local markdown tree with a blog backend",
		Long:         `Pushes local markdown posts and pages to a blog backend, pulls remote content back into the tree, and manages backups and API keys.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})))
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(
		pushCmd(),
		pullCmd(),
		conflictCmd(),
		cleanCmd(),
		clearCmd(),
		backupCmd(),
		restoreCmd(),
		exampleCmd(),
		templateCmd(),
		getkeyCmd(),
		newkeyCmd(),
		showCmd(),
		statusCmd(),
		watchCmd(),
		initCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// session bundles what the remote commands share
type session struct {
	cfg     *config.Config
	client  *remote.Client
	scanner *scanner.Scanner
	journal *sync.Journal
	engine  *sync.Engine
}

func newSession(out io.Writer) (*session, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}

	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, client: client, scanner: newScanner(cfg)}
	if s.journal, err = openJournal(cfg); err != nil {
		return nil, err
	}
	s.engine = sync.NewEngine(sync.ClientServices(client), s.scanner, sync.Options{
		StaticDir:    cfg.StaticDir,
		PullPageSize: cfg.Sync.PullPageSize,
		Journal:      s.journal,
		Reporter:     sync.NewReporter(out),
	})
	return s, nil
}

func newClient(cfg *config.Config) (*remote.Client, error) {
	opts := remote.Options{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Timeout: cfg.HTTP.Timeout(),
	}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		opts.Progress = remote.BarProgress(os.Stderr)
	}

	client, err := remote.New(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

func newScanner(cfg *config.Config) *scanner.Scanner {
	return scanner.New(cfg.IgnorePatterns, parser.NewParser(cfg.Sync.ExcerptLength))
}

func openJournal(cfg *config.Config) (*sync.Journal, error) {
	dir, err := config.GetStateDir()
	if err != nil {
		return nil, err
	}
	j, err := sync.OpenJournal(dir, cfg.DocsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return j, nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func pushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Upload local documents to the backend",
		Long:  `Scans the docs path and creates or updates every post and page on the backend. Unchanged documents are left alone.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			s, err := newSession(cmd.OutOrStdout())
			if err != nil {
				return err
			}

			_, err = s.engine.Push(ctx, s.cfg.DocsPath)
			return err
		},
	}
}

func pullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Download every remote document into the docs path",
		Long:  `Downloads all posts and pages into the docs path, fetching their static attachments into the static directory. Existing files with the same name are overwritten.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			s, err := newSession(cmd.OutOrStdout())
			if err != nil {
				return err
			}

			_, err = s.engine.Pull(ctx, s.cfg.DocsPath, nil, nil)
			return err
		},
	}
}

func conflictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conflict",
		Short: "Handle documents that exist only on the backend",
		Long:  `Lists remote posts and pages that have no local document, then shows, pulls or deletes them according to --mode.`,
	}

	var mode string
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "show, pull or delete (defaults to conflict_mode)")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		s, err := newSession(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if mode == "" {
			mode = s.cfg.ConflictMode
		}

		_, _, err = s.engine.Conflict(ctx, mode, s.cfg.DocsPath)
		return err
	}

	return cmd
}

func cleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove static files no document references",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			s, err := newSession(cmd.OutOrStdout())
			if err != nil {
				return err
			}

			_, err = s.engine.Clean(ctx)
			return err
		},
	}
}

func clearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all remote posts and pages",
		Long:  `Deletes every post and page on the backend, then removes the orphaned static files. Asks for confirmation unless --yes is given.`,
	}

	var yes bool
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		s, err := newSession(cmd.OutOrStdout())
		if err != nil {
			return err
		}

		if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Delete ALL remote content? (y/N): ") {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil
		}

		_, err = s.engine.Clear(ctx)
		return err
	}

	return cmd
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	answer, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

func backupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Export remote data and static files into the backup path",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			s, err := newSession(cmd.OutOrStdout())
			if err != nil {
				return err
			}

			res, err := s.engine.Backup(ctx, s.cfg.BackupPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Data:   %s (%s)\n", res.DataPath, humanize.Bytes(uint64(res.DataSize)))
			fmt.Fprintf(out, "Static: %s (%s)\n", res.StaticPath, humanize.Bytes(uint64(res.StaticSize)))
			return nil
		},
	}
}

func restoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Import a backup from the backup path",
		Long:  `Validates and imports the data file and static archive in the backup path. The directory must hold exactly one .json and one .zip file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			s, err := newSession(cmd.OutOrStdout())
			if err != nil {
				return err
			}

			res, err := s.engine.Restore(ctx, s.cfg.BackupPath)
			if res != nil {
				report := sync.NewReporter(cmd.OutOrStdout())
				if res.Data != nil {
					report.Map("RESTORE", "data", res.Data)
				}
				if res.Static != nil {
					report.Map("RESTORE", "static", res.Static)
				}
			}
			return err
		},
	}
}

func exampleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "example",
		Short: "Create a sample docs tree",
		Long:  `Creates the docs path with two sample pages and two sample posts. Refuses to run when the docs path already exists.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			written, err := maker.Example(cfg.DocsPath)
			for _, path := range written {
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return err
		},
	}
}

func templateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "template",
		Short: "Write post and page templates into the docs path",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			written, err := maker.Templates(cfg.DocsPath)
			for _, path := range written {
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			if err == nil && len(written) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Templates already exist.")
			}
			return err
		},
	}
}

func getkeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "getkey",
		Short: "Log in and store the issued API key",
	}

	var username, password string
	cmd.Flags().StringVarP(&username, "username", "u", "", "account name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password (prompted when omitted)")
	cmd.MarkFlagRequired("username")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.RequireRemote(); err != nil {
			return err
		}

		if password == "" {
			if password, err = readPassword(cmd.ErrOrStderr()); err != nil {
				return err
			}
		}
		if password == "" {
			return errors.New("password is required")
		}

		client, err := newClient(cfg)
		if err != nil {
			return err
		}
		res, err := client.Auth().Login(ctx, username, password)
		if err != nil {
			return fmt.Errorf("failed to log in: %w", err)
		}

		return storeKey(cmd.OutOrStdout(), cfg, res.APIKey)
	}

	return cmd
}

func readPassword(prompt io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("--password is required when stdin is not a terminal")
	}

	fmt.Fprint(prompt, "Password: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func newkeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "newkey",
		Short: "Replace the API key with a freshly issued one",
	}

	var apiKey string
	cmd.Flags().StringVar(&apiKey, "apikey", "", "key to refresh (defaults to the configured key)")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.RequireRemote(); err != nil {
			return err
		}
		if apiKey == "" {
			apiKey = cfg.APIKey
		}
		if apiKey == "" {
			return config.ErrMissingAPIKey
		}

		client, err := newClient(cfg)
		if err != nil {
			return err
		}
		res, err := client.Auth().Refresh(ctx, apiKey)
		if err != nil {
			return fmt.Errorf("failed to refresh key: %w", err)
		}

		return storeKey(cmd.OutOrStdout(), cfg, res.APIKey)
	}

	return cmd
}

func storeKey(out io.Writer, cfg *config.Config, key string) error {
	path, err := cfg.SaveAPIKey(key)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "API key %s saved to %s\n", config.MaskKey(key), path)
	return nil
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			out := cmd.OutOrStdout()
			file := cfg.File()
			if file == "" {
				file = "(none)"
			}
			fmt.Fprintln(out, "=== docsync ===")
			fmt.Fprintf(out, "Config File:   %s\n", file)
			fmt.Fprintf(out, "Base URL:      %s\n", cfg.BaseURL)
			fmt.Fprintf(out, "API Key:       %s\n", config.MaskKey(cfg.APIKey))
			fmt.Fprintf(out, "Docs Path:     %s\n", cfg.DocsPath)
			fmt.Fprintf(out, "Backup Path:   %s\n", cfg.BackupPath)
			fmt.Fprintf(out, "Conflict Mode: %s\n", cfg.ConflictMode)
			fmt.Fprintf(out, "Static Dir:    %s\n", cfg.StaticDir)
			fmt.Fprintf(out, "Ignore:        %s\n", strings.Join(cfg.IgnorePatterns, ", "))

			if cfg.RequireAPIKey() != nil {
				return nil
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			client, err := newClient(cfg)
			if err != nil {
				return err
			}
			valid, err := client.Auth().Verify(ctx)
			switch {
			case err != nil:
				fmt.Fprintf(out, "Key Status:    unknown (%v)\n", err)
			case valid:
				fmt.Fprintln(out, "Key Status:    valid")
			default:
				fmt.Fprintln(out, "Key Status:    rejected")
			}
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List local documents changed since the last push",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			journal, err := openJournal(cfg)
			if err != nil {
				return err
			}
			engine := sync.NewEngine(sync.Services{}, newScanner(cfg), sync.Options{
				StaticDir: cfg.StaticDir,
				Journal:   journal,
			})

			statuses, err := engine.Status(cfg.DocsPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Docs Path: %s\n", cfg.DocsPath)
			fmt.Fprintf(out, "Last Push: %s\n", formatTime(journal.LastPush()))
			fmt.Fprintf(out, "Last Pull: %s\n", formatTime(journal.LastPull()))

			counts := make(map[sync.FileState]int)
			for _, st := range statuses {
				counts[st.State]++
				if st.State == sync.StateUnchanged {
					continue
				}
				fmt.Fprintf(out, "  %-9s %s\n", st.State, st.Path)
			}
			fmt.Fprintf(out, "Unchanged: %d  New: %d  Modified: %d  Missing: %d\n",
				counts[sync.StateUnchanged], counts[sync.StateNew], counts[sync.StateModified], counts[sync.StateMissing])
			return nil
		},
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return fmt.Sprintf("%s (%s)", t.Format(time.RFC3339), humanize.Time(*t))
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Push documents as they change",
		Long:  `Pushes the docs path once, then watches it and pushes each changed document after it has been quiet for the debounce period.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			s, err := newSession(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			root := s.cfg.DocsPath

			slog.Info("performing initial push")
			if _, err := s.engine.Push(ctx, root); err != nil {
				if errors.Is(err, sync.ErrPrecondition) {
					return err
				}
				slog.Error("initial push failed", "error", err)
			}

			w, err := watcher.New(root, s.cfg.Sync.DebounceMs, s.scanner, scanner.IsDocument)
			if err != nil {
				return fmt.Errorf("failed to create watcher: %w", err)
			}
			if err := w.Start(ctx); err != nil {
				return fmt.Errorf("failed to start watcher: %w", err)
			}
			defer w.Stop()

			fmt.Fprintln(cmd.OutOrStdout(), "Watching docs for changes. Press Ctrl+C to stop.")

			for {
				select {
				case <-ctx.Done():
					slog.Info("shutting down...")
					return nil

				case change := <-w.Changes():
					slog.Debug("document changed", "path", change.Path, "op", change.Op)
					if change.Op == watcher.OpRemove {
						s.journal.Forget(change.Path)
						if err := s.journal.Save(); err != nil {
							slog.Warn("failed to save journal", "error", err)
						}
						slog.Warn("document removed locally, remote copy kept", "path", change.Path)
						continue
					}
					path := filepath.Join(root, filepath.FromSlash(change.Path))
					if _, err := s.engine.PushFile(ctx, root, path); err != nil {
						slog.Error("push failed", "path", change.Path, "error", err)
					}
				}
			}
		},
	}
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
	}

	var baseURL string
	cmd.Flags().StringVar(&baseURL, "base-url", "http://127.0.0.1:8000", "backend address")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.DefaultConfigPath()
		}
		if err := config.WriteDefault(path, baseURL); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Config file written to: %s\n", path)
		fmt.Fprintln(out, "\nTo get an API key, run: docsync getkey --username <name>")
		fmt.Fprintln(out, "To create sample documents, run: docsync example")
		fmt.Fprintln(out, "To upload your documents, run: docsync push")
		return nil
	}

	return cmd
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/fang"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/petr-muller/issuedesk/internal/config"
	"github.com/petr-muller/issuedesk/internal/flagutil"
	"github.com/petr-muller/issuedesk/internal/issuedesk/model"
	"github.com/petr-muller/issuedesk/internal/issuedesk/render"
	"github.com/petr-muller/issuedesk/internal/issuedesk/service"
	"github.com/petr-muller/issuedesk/internal/issuedesk/ui"
)

const logFileName = "issuedesk.log"

var (
	jiraOptions  flagutil.JiraOptions
	settingsPath string
	settings     = config.NewSettings()
	overrides    = config.NewSettings()
	outputPath   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "issuedesk",
		Short: "View and discuss a single issue in the terminal",
		Long: `issuedesk opens an issue in a modal view where you can edit its title and
description and add, edit and delete comments, including inline images.

Issues come from the document store or from JIRA; comments always live in the document store.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadSettings(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&settingsPath, "config", config.SettingsPath(), "Path to the settings file")
	flags.StringVar(&overrides.Store, "store", overrides.Store, "Document store backend: memory, yaml or sqlite")
	flags.StringVar(&overrides.DataDir, "data-dir", "", "Directory where the document store keeps its data")
	flags.StringVar(&overrides.User, "user", "", "E-mail of the current user")
	flags.StringVar(&overrides.IDTokenFile, "id-token-file", "", "File with an ID token identifying the current user")
	flags.StringVar(&overrides.Issues, "issues", overrides.Issues, "Where issues come from: store or jira")
	flags.DurationVar(&overrides.Timeout, "timeout", overrides.Timeout, "Timeout of each store or JIRA call")
	flags.StringVar(&overrides.LogLevel, "log-level", overrides.LogLevel, "Log level")
	jiraOptions.AddPFlags(flags)

	rootCmd.AddCommand(
		newOpenCmd(),
		newCommentsCmd(),
		newExportCmd(),
	)

	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		logrus.WithError(err).Fatal("command failed")
	}
}

// loadSettings reads the settings file and applies the flags given on the command line over it
func loadSettings(cmd *cobra.Command) error {
	loaded, err := config.LoadSettings(settingsPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("store") {
		loaded.Store = overrides.Store
	}
	if flags.Changed("data-dir") {
		loaded.DataDir = overrides.DataDir
	}
	if flags.Changed("user") {
		loaded.User = overrides.User
	}
	if flags.Changed("id-token-file") {
		loaded.IDTokenFile = overrides.IDTokenFile
	}
	if flags.Changed("issues") {
		loaded.Issues = overrides.Issues
	}
	if flags.Changed("timeout") {
		loaded.Timeout = overrides.Timeout
	}
	if flags.Changed("log-level") {
		loaded.LogLevel = overrides.LogLevel
	}
	settings = loaded

	level, err := logrus.ParseLevel(settings.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logrus.SetLevel(level)
	return nil
}

func newOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <issue-id>",
		Short: "Open an issue in the modal view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpen(cmd.Context(), args[0])
		},
	}
}

func newCommentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "comments <issue-id>",
		Short: "Print the comments of an issue, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runComments(cmd.Context(), args[0])
		},
	}
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <issue-id>",
		Short: "Write the issue and its comments as a standalone HTML page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), args[0])
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (default: standard output)")

	return cmd
}

func createService() (*service.Service, error) {
	svc, err := service.NewService(settings, jiraOptions)
	if err != nil {
		return nil, fmt.Errorf("cannot create service: %w", err)
	}
	return svc, nil
}

// logToFile sends log output to the data directory while the TUI owns the terminal
func logToFile() (func(), error) {
	dataDir, err := settings.ResolveDataDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine data directory: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(dataDir, logFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	logrus.SetOutput(f)
	return func() {
		logrus.SetOutput(os.Stderr)
		_ = f.Close()
	}, nil
}

func runOpen(ctx context.Context, issueID string) error {
	svc, err := createService()
	if err != nil {
		return err
	}
	defer svc.Close()

	user, err := svc.CurrentUser(ctx)
	if err != nil {
		return err
	}

	issue, err := svc.Issue(ctx, issueID)
	if err != nil {
		return err
	}

	restoreLog, err := logToFile()
	if err != nil {
		return err
	}
	defer restoreLog()

	modal := ui.New(ui.Options{
		Issue:    issue,
		User:     user,
		Comments: svc.Comments(),
		Timeout:  svc.Timeout(),
		OnUpdate: func(issueID string, update model.IssueUpdate) tea.Cmd {
			return func() tea.Msg {
				updated, err := svc.UpdateIssue(context.Background(), issueID, update)
				if err != nil {
					logrus.WithError(err).WithField("issue", issueID).Error("Failed to update issue")
					return nil
				}
				return ui.IssueUpdatedMsg{Issue: updated}
			}
		},
	})
	program := tea.NewProgram(modal, tea.WithAltScreen())

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("cannot run TUI: %w", err)
	}

	return nil
}

func runComments(ctx context.Context, issueID string) error {
	svc, err := createService()
	if err != nil {
		return err
	}
	defer svc.Close()

	comments, err := svc.ListComments(ctx, issueID)
	if err != nil {
		return fmt.Errorf("cannot list comments: %w", err)
	}

	if len(comments) == 0 {
		fmt.Printf("No comments on issue '%s'\n", issueID)
		return nil
	}

	for _, c := range comments {
		fmt.Printf("%s, %s", render.Sanitize(model.DisplayName(c.CreatedBy)), describeTime(c.CreatedAt))
		if c.UpdatedAt != nil {
			fmt.Printf(" (edited %s)", describeTime(*c.UpdatedAt))
		}
		fmt.Printf(" [%s]\n", c.ID)
		for _, line := range strings.Split(render.Terminal(c.Text), "\n") {
			fmt.Printf("    %s\n", line)
		}
	}

	return nil
}

func describeTime(t time.Time) string {
	if t.IsZero() {
		return "unknown time"
	}
	return fmt.Sprintf("%s (%s)", t.Local().Format("2006-01-02 15:04"), humanize.Time(t))
}

func runExport(ctx context.Context, issueID string) error {
	svc, err := createService()
	if err != nil {
		return err
	}
	defer svc.Close()

	var out io.Writer = os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("cannot create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if err := svc.Export(ctx, issueID, out); err != nil {
		return fmt.Errorf("cannot export issue: %w", err)
	}

	if outputPath != "" {
		fmt.Printf("Issue '%s' exported to %s\n", issueID, outputPath)
	}
	return nil
}

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"echomic/internal/config"
	"echomic/internal/domain"
	"echomic/internal/logging"
)

// cli holds state shared by the subcommands of one invocation.
type cli struct {
	cfg      config.Config
	logLevel string
	closer   io.Closer
	color    bool
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:          "echomicctl",
		Short:        "Inspect echomic shortcuts, recordings and history",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			c.cfg = cfg

			// Console only; the desktop app owns the rotating log file.
			closer, err := logging.Setup(logging.Options{
				Format:  cfg.Log.Format,
				Level:   c.logLevel,
				Console: cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			c.closer = closer
			c.color = isTerminal(cmd.OutOrStdout())
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.closer == nil {
				return nil
			}
			return c.closer.Close()
		},
	}
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "log level: debug, info, warn or error")

	root.AddCommand(
		newConflictsCmd(c),
		newSegmentCmd(c),
		newListenCmd(c),
		newHistoryCmd(c),
	)
	return root
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(f.Fd())
}

var (
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	okStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
)

// paint renders text with style only when stdout is a terminal.
func (c *cli) paint(style lipgloss.Style, text string) string {
	if !c.color {
		return text
	}
	return style.Render(text)
}

func severityStyle(s domain.ConflictSeverity) lipgloss.Style {
	switch s {
	case domain.SeverityError:
		return errorStyle
	case domain.SeverityWarning:
		return warningStyle
	default:
		return infoStyle
	}
}

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"echomic/internal/conflict"
	"echomic/internal/domain"
)

var errBlockingConflict = errors.New("shortcut has a blocking conflict")

func newConflictsCmd(c *cli) *cobra.Command {
	var (
		mode     string
		platform string
	)
	cmd := &cobra.Command{
		Use:   "conflicts <shortcut>",
		Short: "Check a shortcut such as Ctrl+Shift+Space for conflicts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var m domain.ShortcutMode
			if err := m.UnmarshalText([]byte(mode)); err != nil {
				return err
			}
			s, err := domain.ParseShortcut(args[0], m)
			if err != nil {
				return err
			}

			engine := conflict.NewEngine(platform)
			found := engine.Check(s)
			cmd.Printf("%s (%s)\n", s.String(), s.Mode.String())
			if len(found) == 0 {
				cmd.Println(c.paint(okStyle, "no conflicts"))
				return nil
			}
			for _, info := range found {
				label := c.paint(severityStyle(info.Severity), strings.ToUpper(string(info.Severity)))
				cmd.Printf("  %s %s\n", label, info.Description)
				if info.Suggestion != "" {
					cmd.Println("    " + c.paint(dimStyle, info.Suggestion))
				}
			}
			if engine.HasBlocking(s) {
				return fmt.Errorf("%w: %s", errBlockingConflict, s.String())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "hold", "activation mode: hold or toggle")
	cmd.Flags().StringVar(&platform, "platform", "", "platform to check against (darwin, windows, linux); defaults to this one")
	return cmd
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"echomic/internal/domain"
	"echomic/internal/hotkey"
)

// newKeySource is swapped in tests.
var newKeySource = func(device string) hotkey.KeySource {
	return hotkey.NewSource(device)
}

func newListenCmd(c *cli) *cobra.Command {
	var (
		shortcut string
		mode     string
		record   bool
	)
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Print hotkey events until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var m domain.ShortcutMode
			if err := m.UnmarshalText([]byte(mode)); err != nil {
				return err
			}
			s, err := domain.ParseShortcut(shortcut, m)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.listen(ctx, cmd, s, record)
		},
	}
	cmd.Flags().StringVar(&shortcut, "shortcut", domain.DefaultShortcut().String(), "shortcut to match")
	cmd.Flags().StringVar(&mode, "mode", "hold", "activation mode: hold or toggle")
	cmd.Flags().BoolVar(&record, "record", false, "capture the next chord instead of matching")
	return cmd
}

func (c *cli) listen(ctx context.Context, cmd *cobra.Command, s domain.Shortcut, record bool) error {
	l := hotkey.NewListener(newKeySource(c.cfg.Hotkey.Device), s)
	if record {
		l.StartRecordingShortcut()
	}
	if err := l.Start(ctx); err != nil {
		return err
	}
	defer l.Stop()
	cmd.Printf("listening for %s (%s), Ctrl-C to stop\n", s.String(), s.Mode.String())

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.Ready():
		}
		for _, ev := range l.Poll() {
			switch ev.Kind {
			case domain.EventListenerError:
				cmd.Printf("%s %s\n", c.paint(errorStyle, string(ev.Kind)), ev.Message)
				return nil
			case domain.EventShortcutRecorded:
				cmd.Printf("%s %s\n", c.paint(okStyle, string(ev.Kind)), ev.Shortcut.String())
				if record {
					return nil
				}
			default:
				cmd.Println(c.paint(infoStyle, string(ev.Kind)))
			}
		}
	}
}

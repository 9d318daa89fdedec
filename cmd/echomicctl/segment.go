package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"echomic/internal/audio"
	"echomic/internal/domain"
	"echomic/internal/pipeline"
)

func newSegmentCmd(c *cli) *cobra.Command {
	var noVAD bool
	cmd := &cobra.Command{
		Use:   "segment <input.wav> <outdir>",
		Short: "Split a WAV file into 16 kHz speech segments",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			samples, rate, err := audio.DecodeWAV(f)
			f.Close()
			if err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}

			res, err := pipeline.Process(domain.Recording{
				Samples:    samples,
				SampleRate: rate,
				StartedAt:  time.Now(),
			}, pipeline.Options{UseVAD: !noVAD})
			if err != nil {
				return err
			}
			paths, err := pipeline.Save(args[1], time.Now(), res)
			if err != nil {
				return err
			}

			cmd.Printf("input: %d samples at %d Hz\n", len(samples), rate)
			cmd.Printf("segments: %s\n", c.paint(okStyle, fmt.Sprint(len(res.Segments))))
			for _, p := range paths {
				cmd.Println("  " + p)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noVAD, "no-vad", false, "only re-encode the raw recording")
	return cmd
}

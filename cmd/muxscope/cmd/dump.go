package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/roffe/muxscope"
)

var errDone = errors.New("done")

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print decoded frames to stdout",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		count, err := cmd.Flags().GetInt("count")
		if err != nil {
			return err
		}
		plain, err := cmd.Flags().GetBool("plain")
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sess, _, err := newSession(ctx, cfg)
		if err != nil {
			return err
		}
		if err := sess.Start(ctx); err != nil {
			return err
		}
		p := &framePrinter{
			w:         color.Output,
			cols:      cfg.Cols,
			fullScale: cfg.FullScale,
			plain:     plain,
			limit:     count,
		}
		go func() {
			// the readers ending means no more frames will arrive
			sess.Wait()
			time.Sleep(cfg.PollInterval() * 2)
			cancel()
		}()
		err = sess.Run(ctx, cfg.PollInterval(), p.handle)
		cancel()
		werr := sess.Stop()
		if err != nil && !errors.Is(err, errDone) {
			return err
		}
		return werr
	},
}

func init() {
	dumpCmd.Flags().IntP("count", "n", 0, "stop after n frames, 0 = run until interrupted")
	dumpCmd.Flags().Bool("plain", false, "print frames on one line without colors")
	rootCmd.AddCommand(dumpCmd)
}

type framePrinter struct {
	w         io.Writer
	cols      int
	fullScale int
	plain     bool
	limit     int
	printed   int
}

func (p *framePrinter) handle(evs []muxscope.Event) error {
	for _, ev := range evs {
		switch ev.Type {
		case muxscope.EventTypePayload:
			p.printed++
			ts := ev.Frame.Received.Format("15:04:05.000")
			if p.plain {
				fmt.Fprintf(p.w, "%s || %s\n", ts, ev.Frame.String())
			} else {
				fmt.Fprintf(p.w, "%s frame %d\n%s\n", ts, p.printed, ev.Frame.ColorString(p.cols, p.fullScale))
			}
			if p.limit > 0 && p.printed >= p.limit {
				return errDone
			}
		case muxscope.EventTypeInfo:
			log.Info().Str("reader", ev.Source).Msg(ev.Details)
		case muxscope.EventTypeError:
			log.Error().Str("reader", ev.Source).Msg(ev.Details)
		}
	}
	return nil
}

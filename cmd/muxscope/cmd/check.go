package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/roffe/muxscope"
	"github.com/roffe/muxscope/pkg/bar"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Collect frames and report how well the stream decodes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		count, err := cmd.Flags().GetInt("count")
		if err != nil {
			return err
		}
		if count <= 0 {
			return fmt.Errorf("count must be > 0")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sess, reader, err := newSession(ctx, cfg)
		if err != nil {
			return err
		}
		if err := sess.Start(ctx); err != nil {
			return err
		}
		go func() {
			sess.Wait()
			cancel()
		}()

		b := bar.New(count, "collecting frames")
		c := &frameCounter{want: count, add: func(n int) { b.Add(n) }}
		err = sess.Run(ctx, cfg.PollInterval(), c.handle)
		cancel()
		werr := sess.Stop()
		b.Finish()
		fmt.Println()

		if perr := c.drain(sess); perr != nil && (err == nil || errors.Is(err, errDone)) {
			err = perr
		}

		st := reader.Stats()
		cs := sess.Events().Stats()
		fmt.Printf("decoder:  %s\n", st)
		fmt.Printf("events:   published: %d dropped: %d\n", cs.Published, cs.Dropped)
		fmt.Printf("grid:     %d/%d cells active\n", sess.Grid().Active(), cfg.Channels)
		if st.Units > 0 {
			fmt.Printf("drop rate: %.2f%%\n", float64(st.Dropped)/float64(st.Units)*100)
		}
		if c.errors > 0 {
			log.Warn().Int("errors", c.errors).Msg("transport errors during check")
		}
		if err != nil && !errors.Is(err, errDone) {
			return err
		}
		if werr != nil {
			return werr
		}
		if c.frames < count {
			return fmt.Errorf("got %d of %d frames", c.frames, count)
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().IntP("count", "n", 100, "frames to collect")
	rootCmd.AddCommand(checkCmd)
}

type frameCounter struct {
	want   int
	frames int
	errors int
	add    func(int)
}

func (c *frameCounter) handle(evs []muxscope.Event) error {
	n := 0
	for _, ev := range evs {
		switch ev.Type {
		case muxscope.EventTypePayload:
			if c.frames < c.want {
				c.frames++
				n++
			}
		case muxscope.EventTypeError:
			c.errors++
			log.Error().Str("reader", ev.Source).Msg(ev.Details)
		case muxscope.EventTypeInfo:
			log.Debug().Str("reader", ev.Source).Msg(ev.Details)
		}
	}
	if n > 0 && c.add != nil {
		c.add(n)
	}
	if c.frames >= c.want {
		return errDone
	}
	return nil
}

// drain handles what arrived after the last poll. A frame the grid rejects is
// returned, reaching the wanted count is not an error here.
func (c *frameCounter) drain(sess *muxscope.Session) error {
	evs, err := sess.Poll()
	c.handle(evs)
	return err
}

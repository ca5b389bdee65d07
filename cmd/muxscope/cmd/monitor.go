package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jroimartin/gocui"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/roffe/muxscope"
	"github.com/roffe/muxscope/pkg/config"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Show the channel grid live",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		info, err := muxscope.LookupDecoder(cfg.Decoder)
		if err != nil {
			return err
		}
		// pick the port before the gui owns the terminal
		if info.Transport == muxscope.TransportLines {
			if cfg.Serial.Port, err = resolvePort(cfg.Serial.Port); err != nil {
				return err
			}
		}

		ctx := cmd.Context()
		g, err := gocui.NewGui(gocui.OutputNormal)
		if err != nil {
			return err
		}
		defer g.Close()

		m := &monitor{cfg: cfg, g: g}
		g.SetManagerFunc(m.layout)
		if err := m.keybindings(ctx); err != nil {
			return err
		}
		go func() {
			if err := m.connect(ctx); err != nil {
				m.logError(err)
			}
		}()
		go func() {
			<-ctx.Done()
			g.Update(quit)
		}()
		defer m.close()

		if err := g.MainLoop(); err != nil && err != gocui.ErrQuit {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

type monitor struct {
	cfg *config.Config
	g   *gocui.Gui

	// held while (re)connecting so only one session is live
	connMu sync.Mutex

	mu      sync.Mutex
	sess    *muxscope.Session
	reader  *muxscope.Reader
	cancel  context.CancelFunc
	running sync.WaitGroup
}

// snapshot is what the poll goroutine hands to the gui goroutine
type snapshot struct {
	values   []uint16
	active   int
	frames   uint64
	decoder  muxscope.DecoderStats
	channel  muxscope.ChannelStats
	messages []string
	errors   []string
}

func (m *monitor) connect(ctx context.Context) error {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	m.disconnect()
	sctx, cancel := context.WithCancel(ctx)
	sess, r, err := newSession(sctx, m.cfg)
	if err != nil {
		cancel()
		return err
	}
	if err := sess.Start(sctx); err != nil {
		cancel()
		return err
	}
	m.mu.Lock()
	m.sess, m.reader, m.cancel = sess, r, cancel
	m.mu.Unlock()

	m.running.Add(1)
	go func() {
		defer m.running.Done()
		err := sess.Run(sctx, m.cfg.PollInterval(), func(evs []muxscope.Event) error {
			m.push(sess, r, evs)
			return nil
		})
		if err != nil {
			m.logError(err)
		}
	}()
	log.Debug().Str("reader", r.Name()).Msg("connected")
	return nil
}

func (m *monitor) close() {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	m.disconnect()
}

func (m *monitor) disconnect() {
	m.mu.Lock()
	sess, cancel := m.sess, m.cancel
	m.sess, m.reader, m.cancel = nil, nil, nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	if err := sess.Stop(); err != nil {
		log.Debug().Err(err).Msg("session ended")
	}
	m.running.Wait()
}

func (m *monitor) push(sess *muxscope.Session, r *muxscope.Reader, evs []muxscope.Event) {
	grid := sess.Grid()
	snap := &snapshot{
		values:  grid.Values(),
		active:  grid.Active(),
		frames:  grid.Frames(),
		decoder: r.Stats(),
		channel: sess.Events().Stats(),
	}
	for _, ev := range evs {
		switch ev.Type {
		case muxscope.EventTypeInfo:
			snap.messages = append(snap.messages, ev.Details)
		case muxscope.EventTypeError:
			snap.errors = append(snap.errors, ev.Details)
		}
	}
	m.g.Update(func(g *gocui.Gui) error {
		return m.render(g, snap)
	})
}

func (m *monitor) render(g *gocui.Gui, snap *snapshot) error {
	gv, err := g.View("grid")
	if err != nil {
		return err
	}
	gv.Clear()
	renderGrid(gv, snap.values, m.cfg.Cols, m.cfg.FullScale)

	iv, err := g.View("info")
	if err != nil {
		return err
	}
	iv.Clear()
	fmt.Fprintf(iv, "decoder: %s\n", m.cfg.Decoder)
	fmt.Fprintf(iv, "frames: %d\n", snap.frames)
	fmt.Fprintf(iv, "active: %d/%d\n", snap.active, len(snap.values))
	fmt.Fprintf(iv, "units: %d\n", snap.decoder.Units)
	fmt.Fprintf(iv, "dropped: %d\n", snap.decoder.Dropped)
	fmt.Fprintf(iv, "events lost: %d\n", snap.channel.Dropped)

	if len(snap.messages) > 0 || len(snap.errors) > 0 {
		ev, err := g.View("errors")
		if err != nil {
			return err
		}
		now := time.Now().Format("15:04:05")
		for _, msg := range snap.messages {
			fmt.Fprintf(ev, "%s %s\n", now, msg)
		}
		for _, msg := range snap.errors {
			fmt.Fprintf(ev, "%s ERROR %s\n", now, msg)
		}
	}
	return nil
}

func (m *monitor) logError(err error) {
	m.g.Update(func(g *gocui.Gui) error {
		v, verr := g.View("errors")
		if verr != nil {
			return nil
		}
		fmt.Fprintf(v, "%s ERROR %v\n", time.Now().Format("15:04:05"), err)
		return nil
	})
}

// renderGrid writes a header with column numbers followed by one banded row
// per mux.
func renderGrid(w io.Writer, values []uint16, cols, fullScale int) {
	if cols <= 0 || len(values) == 0 {
		fmt.Fprintln(w, "waiting for frames")
		return
	}
	var hdr strings.Builder
	hdr.WriteString("         ")
	for c := 1; c <= cols; c++ {
		hdr.WriteString(fmt.Sprintf("%4s", fmt.Sprintf("C%d", c)))
		if c != cols {
			hdr.WriteString(" ")
		}
	}
	fmt.Fprintln(w, hdr.String())
	fmt.Fprintln(w, muxscope.NewFrame(values).ColorString(cols, fullScale))
}

func (m *monitor) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()
	gridW := 10 + m.cfg.Cols*5
	if gridW > maxX-27 {
		gridW = maxX - 27
	}
	if gridW < 20 {
		gridW = 20
	}
	gridH := m.cfg.Rows + 3

	if v, err := g.SetView("grid", 0, 0, gridW, gridH); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Channels"
		renderGrid(v, nil, m.cfg.Cols, m.cfg.FullScale)
	}
	if v, err := g.SetView("info", gridW+1, 0, maxX-1, gridH); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Info"
	}
	if v, err := g.SetView("help", 0, gridH+1, 25, gridH+6); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Help"
		fmt.Fprintln(v, "<Q, Ctrl-C> Quit")
		fmt.Fprintln(v, "<S> Request scan")
		fmt.Fprintln(v, "<R> Reconnect")
	}
	if v, err := g.SetView("errors", 26, gridH+1, maxX-1, maxY-1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Messages"
		v.Autoscroll = true
		v.Wrap = true
	}
	return nil
}

func (m *monitor) keybindings(ctx context.Context) error {
	if err := m.g.SetKeybinding("", 'q', gocui.ModNone, quitKey); err != nil {
		return err
	}
	if err := m.g.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, quitKey); err != nil {
		return err
	}
	if err := m.g.SetKeybinding("", 's', gocui.ModNone,
		func(g *gocui.Gui, v *gocui.View) error {
			m.mu.Lock()
			r := m.reader
			m.mu.Unlock()
			if r == nil {
				m.logError(fmt.Errorf("not connected"))
				return nil
			}
			if err := r.RequestScan(); err != nil {
				m.logError(err)
			}
			return nil
		}); err != nil {
		return err
	}
	if err := m.g.SetKeybinding("", 'r', gocui.ModNone,
		func(g *gocui.Gui, v *gocui.View) error {
			go func() {
				if err := m.connect(ctx); err != nil {
					m.logError(err)
				}
			}()
			return nil
		}); err != nil {
		return err
	}
	return nil
}

func quit(g *gocui.Gui) error {
	return gocui.ErrQuit
}

func quitKey(g *gocui.Gui, v *gocui.View) error {
	return gocui.ErrQuit
}

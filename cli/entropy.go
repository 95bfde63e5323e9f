package cli

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"

	"github.com/safing/pwgen/entropy"
)

func init() {
	entropyCmd := &cobra.Command{
		Use:   "entropy",
		Short: "Add entropy to the random pool",
	}

	entropyCmd.AddCommand(&cobra.Command{
		Use:   "add-file <path>...",
		Short: "Add the contents of files to the random pool",
		Args:  cobra.MinimumNArgs(1),
		Run:   lifecycle(runAddFiles),
	})
	entropyCmd.AddCommand(&cobra.Command{
		Use:   "add-text [text]",
		Short: "Add text to the random pool",
		Long:  "Adds the text given as argument or read from stdin to the random pool, crediting one bit per character.",
		Run:   lifecycle(runAddText),
	})
	entropyCmd.AddCommand(&cobra.Command{
		Use:   "collect",
		Short: "Collect entropy from mouse and keyboard input",
		Long:  "Opens a full screen view that feeds mouse movements, clicks and key strokes into the random pool. Press ESC or q to stop.",
		Args:  cobra.NoArgs,
		Run:   lifecycle(runCollect),
	})

	RootCmd.AddCommand(entropyCmd)
}

func runAddFiles(ctx context.Context, cmd *cobra.Command, args []string) error {
	for _, path := range args {
		bits, err := entropyMgr.AddFile(path)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d bits\n", path, bits)
	}
	return writeSeed()
}

func runAddText(ctx context.Context, cmd *cobra.Command, args []string) error {
	text, err := readInput(args, "", os.Stdin, maxTextEntropyBytes)
	if err != nil {
		return err
	}
	defer clear(text)

	bits := entropyMgr.AddText(string(text))
	fmt.Printf("%d bits\n", bits)
	return writeSeed()
}

// maxTextEntropyBytes bounds text read from stdin.
const maxTextEntropyBytes = 1 << 20

func runCollect(ctx context.Context, cmd *cobra.Command, args []string) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize screen: %w", err)
	}
	defer screen.Fini()
	screen.EnableMouse(tcell.MouseMotionEvents)

	events := make(chan tcell.Event)
	quit := make(chan struct{})
	go screen.ChannelEvents(events, quit)
	defer close(quit)

	c := &collector{mgr: entropyMgr, start: time.Now()}
	c.draw(screen)
	for {
		select {
		case <-ctx.Done():
			return writeSeed()
		case ev, ok := <-events:
			if !ok {
				return writeSeed()
			}
			if !c.handle(ev) {
				screen.Fini()
				fmt.Printf("%d bits collected, pool holds %d bits\n", c.bits, entropyMgr.Bits())
				return writeSeed()
			}
			if _, ok := ev.(*tcell.EventResize); ok {
				screen.Sync()
			}
			c.draw(screen)
		}
	}
}

// collector feeds terminal events into the entropy manager.
type collector struct {
	mgr   *entropy.Manager
	start time.Time

	bits    int
	events  int
	lastX   int
	lastY   int
	buttons tcell.ButtonMask
}

// handle feeds an event and reports whether collection should continue.
func (c *collector) handle(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventMouse:
		x, y := ev.Position()
		buttons := ev.Buttons()
		raw := mouseEvent(ev.When(), x, y, buttons)
		defer clear(raw)

		switch {
		case buttons&(tcell.WheelUp|tcell.WheelDown|tcell.WheelLeft|tcell.WheelRight) != 0:
			c.bits += c.mgr.AddMouseWheel(raw)
		case buttons != tcell.ButtonNone && buttons != c.buttons:
			c.bits += c.mgr.Add(entropy.MouseClick, raw)
		case x != c.lastX || y != c.lastY:
			c.bits += c.mgr.AddMouseMove(raw)
		default:
			return true
		}
		c.lastX, c.lastY, c.buttons = x, y, buttons
		c.events++

	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Rune() == 'q' || ev.Rune() == 'Q' {
			return false
		}
		raw := binary.LittleEndian.AppendUint64(nil, uint64(ev.When().UnixNano()))
		raw = binary.LittleEndian.AppendUint32(raw, uint32(ev.Rune()))
		raw = binary.LittleEndian.AppendUint16(raw, uint16(ev.Key()))
		c.bits += c.mgr.Add(entropy.Keyboard, raw)
		clear(raw)
		c.events++
	}
	return true
}

func mouseEvent(when time.Time, x, y int, buttons tcell.ButtonMask) []byte {
	raw := binary.LittleEndian.AppendUint64(nil, uint64(when.UnixNano()))
	raw = binary.LittleEndian.AppendUint32(raw, uint32(x))
	raw = binary.LittleEndian.AppendUint32(raw, uint32(y))
	return binary.LittleEndian.AppendUint16(raw, uint16(buttons))
}

func (c *collector) draw(s tcell.Screen) {
	s.Clear()
	w, h := s.Size()
	bold := tcell.StyleDefault.Bold(true)

	drawString(s, 0, 0, "ENTROPY COLLECTION", bold)
	drawString(s, 0, 1, strings.Repeat("-", w), tcell.StyleDefault)
	drawString(s, 0, 3, fmt.Sprintf("Events:    %d", c.events), tcell.StyleDefault)
	drawString(s, 0, 4, fmt.Sprintf("Collected: %d bits", c.bits), tcell.StyleDefault)
	drawString(s, 0, 5, fmt.Sprintf("Pool:      %d bits", c.mgr.Bits()), tcell.StyleDefault)
	drawString(s, 0, 6, fmt.Sprintf("Time:      %s", time.Since(c.start).Round(time.Second)), tcell.StyleDefault)
	drawString(s, 0, h-2, "Move the mouse, click and type. Press ESC or q to stop.", tcell.StyleDefault)
	if c.events > 0 {
		s.SetContent(c.lastX, c.lastY, '*', nil, tcell.StyleDefault.Foreground(tcell.ColorGreen))
	}
	s.Show()
}

func drawString(s tcell.Screen, x, y int, str string, style tcell.Style) {
	for _, r := range str {
		s.SetContent(x, y, r, nil, style)
		x++
	}
}

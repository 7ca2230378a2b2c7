// Package window drives a scheduler from the ebiten game loop.
//
// The window has two modes: a title selection list and the running game,
// which ticks the scheduler once per frame and draws a status overlay of the
// live script instances.
package window

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/basicfont"

	"github.com/zurustar/hecore/pkg/engine"
	"github.com/zurustar/hecore/pkg/logger"
	"github.com/zurustar/hecore/pkg/title"
)

// Screen size of the HE games.
const (
	ScreenWidth  = 640
	ScreenHeight = 480
)

const lineHeight = 16

var (
	backgroundColor   = color.RGBA{0x00, 0x87, 0xC8, 0xFF}
	textColor         = color.White
	selectedTextColor = color.RGBA{0xFF, 0xFF, 0x00, 0xFF}
	errorTextColor    = color.RGBA{0xFF, 0x60, 0x60, 0xFF}
	defaultFace       = text.NewGoXFace(basicfont.Face7x13)
)

// Mode はウィンドウの表示モード
type Mode int

const (
	ModeSelection Mode = iota // タイトル選択画面
	ModeDesktop               // 実行中のゲーム
)

// TitleStarter prepares a scheduler for the chosen title.
type TitleStarter func(t *title.Title) (*engine.Scheduler, error)

// Game implements ebiten.Game.
type Game struct {
	mode          Mode
	titles        []*title.Title
	selectedIndex int
	selectedTitle *title.Title
	timeout       time.Duration
	startTime     time.Time

	sched       *engine.Scheduler
	showOverlay bool

	onTitleSelected   TitleStarter
	transitionError   error
	hasTitleSelection bool
	onTitleExit       func() error

	log *slog.Logger
	mu  sync.RWMutex
}

// NewGame Game を作成
func NewGame(mode Mode, titles []*title.Title, timeout time.Duration) *Game {
	return &Game{
		mode:        mode,
		titles:      titles,
		timeout:     timeout,
		startTime:   time.Now(),
		showOverlay: true,
		log:         logger.GetLogger(),
	}
}

// SetScheduler sets the scheduler ticked in desktop mode.
func (g *Game) SetScheduler(s *engine.Scheduler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sched = s
}

// SetOnTitleSelected sets the callback run when a title is chosen.
func (g *Game) SetOnTitleSelected(fn TitleStarter) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onTitleSelected = fn
}

// SetHasTitleSelection makes leaving a game return to the title list
// instead of closing the window.
func (g *Game) SetHasTitleSelection(has bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hasTitleSelection = has
}

// SetOnTitleExit sets the callback run when a game is left.
func (g *Game) SetOnTitleExit(fn func() error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onTitleExit = fn
}

// TransitionError returns the error that ended the window, if any.
func (g *Game) TransitionError() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.transitionError
}

// SelectedTitle returns the chosen title.
func (g *Game) SelectedTitle() *title.Title {
	return g.selectedTitle
}

// Update はフレームごとに呼ばれる
func (g *Game) Update() error {
	if g.timeout > 0 && time.Since(g.startTime) >= g.timeout {
		return ebiten.Termination
	}

	switch g.mode {
	case ModeSelection:
		return g.updateSelection()
	case ModeDesktop:
		return g.updateDesktop()
	}
	return nil
}

func (g *Game) updateSelection() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyUp) && g.selectedIndex > 0 {
		g.selectedIndex--
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyDown) && g.selectedIndex < len(g.titles)-1 {
		g.selectedIndex++
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		return g.selectTitle(g.selectedIndex)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	return nil
}

// selectTitle starts title i and switches to desktop mode.
func (g *Game) selectTitle(i int) error {
	if i < 0 || i >= len(g.titles) {
		return nil
	}
	g.selectedTitle = g.titles[i]

	g.mu.RLock()
	start := g.onTitleSelected
	g.mu.RUnlock()
	if start == nil {
		return ebiten.Termination
	}

	sched, err := start(g.selectedTitle)
	if err != nil {
		g.mu.Lock()
		g.transitionError = err
		g.mu.Unlock()
		return ebiten.Termination
	}

	g.mu.Lock()
	g.sched = sched
	g.mode = ModeDesktop
	g.startTime = time.Now()
	g.mu.Unlock()
	g.log.Info("Title started", "title", g.selectedTitle.DisplayName())
	return nil
}

func (g *Game) updateDesktop() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return g.leaveDesktop()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF1) {
		g.showOverlay = !g.showOverlay
	}

	g.mu.RLock()
	sched := g.sched
	g.mu.RUnlock()
	if sched == nil {
		return nil
	}

	if err := sched.Update(); err != nil {
		if errors.Is(err, engine.ErrTerminated) {
			return g.leaveDesktop()
		}
		return err
	}
	return nil
}

// leaveDesktop ends the running game. With a title list the window goes
// back to it, otherwise the game loop ends.
func (g *Game) leaveDesktop() error {
	g.mu.RLock()
	has := g.hasTitleSelection
	g.mu.RUnlock()

	if !has {
		if g.sched != nil {
			g.sched.Terminate()
		}
		return ebiten.Termination
	}
	return g.returnToSelection()
}

func (g *Game) returnToSelection() error {
	g.mu.Lock()
	exit := g.onTitleExit
	if g.sched != nil {
		g.sched.Terminate()
	}
	g.sched = nil
	g.mode = ModeSelection
	g.selectedTitle = nil
	g.mu.Unlock()

	if exit != nil {
		if err := exit(); err != nil {
			g.log.Error("Title exit callback failed", "error", err)
		}
	}
	return nil
}

// Draw 画面描画
func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(backgroundColor)

	switch g.mode {
	case ModeSelection:
		g.drawSelection(screen)
	case ModeDesktop:
		g.drawDesktop(screen)
	}
}

func drawLine(screen *ebiten.Image, s string, x, y float64, c color.Color) {
	op := &text.DrawOptions{}
	op.GeoM.Translate(x, y)
	op.ColorScale.ScaleWithColor(c)
	text.Draw(screen, s, defaultFace, op)
}

func (g *Game) drawSelection(screen *ebiten.Image) {
	drawLine(screen, "Select a title", 40, 40, textColor)
	for i, t := range g.titles {
		prefix := "  "
		var c color.Color = textColor
		if i == g.selectedIndex {
			prefix, c = "> ", selectedTextColor
		}
		drawLine(screen, prefix+t.DisplayName(), 60, 80+float64(i*24), c)
	}
	drawLine(screen, "UP/DOWN to select, ENTER to start, ESC to exit", 40, ScreenHeight-40, textColor)
}

func (g *Game) drawDesktop(screen *ebiten.Image) {
	if !g.showOverlay {
		return
	}
	for i, line := range g.overlayLines() {
		var c color.Color = textColor
		if strings.HasPrefix(line, "error") {
			c = errorTextColor
		}
		drawLine(screen, line, 8, 8+float64(i*lineHeight), c)
	}
}

// overlayLines はデバッグ表示の各行
func (g *Game) overlayLines() []string {
	g.mu.RLock()
	sched := g.sched
	g.mu.RUnlock()

	var lines []string
	if g.selectedTitle != nil {
		lines = append(lines, g.selectedTitle.DisplayName())
	}
	if sched == nil {
		return append(lines, "no scheduler")
	}

	infos := sched.Instances()
	lines = append(lines, fmt.Sprintf("tick %d  scripts %d", sched.TickCount(), len(infos)))
	for _, in := range infos {
		line := fmt.Sprintf("  #%d %s pc=0x%04X", in.ScriptID, in.Status, in.PC)
		if in.ObjectID != 0 {
			line = fmt.Sprintf("  obj %d %s pc=0x%04X", in.ObjectID, in.Status, in.PC)
		}
		if in.Exclusive {
			line += " excl"
		}
		lines = append(lines, line)
	}
	if n, err := sched.Failures(); n > 0 {
		lines = append(lines, fmt.Sprintf("error (%d): %v", n, err))
	}
	return lines
}

// Layout 画面サイズを返す
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return ScreenWidth, ScreenHeight
}

// SelectHeadless はヘッドレスモードでタイトルを選択する
func SelectHeadless(titles []*title.Title, timeout time.Duration, reader io.Reader, writer io.Writer) (*title.Title, error) {
	switch len(titles) {
	case 0:
		return nil, errors.New("no titles available")
	case 1:
		fmt.Fprintf(writer, "Auto-selecting title: %s\n", titles[0].DisplayName())
		return titles[0], nil
	}

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	fmt.Fprintln(writer, "Available titles:")
	for i, t := range titles {
		fmt.Fprintf(writer, "  %d: %s\n", i+1, t.DisplayName())
	}
	fmt.Fprintln(writer)

	scanner := bufio.NewScanner(reader)
	resultCh := make(chan *title.Title, 1)
	errCh := make(chan error, 1)

	go func() {
		for {
			fmt.Fprintf(writer, "Select a title (1-%d) or 'q' to quit: ", len(titles))
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					errCh <- fmt.Errorf("failed to read input: %w", err)
				} else {
					errCh <- errors.New("input closed")
				}
				return
			}

			input := strings.TrimSpace(scanner.Text())
			if strings.EqualFold(input, "q") {
				errCh <- errors.New("user cancelled")
				return
			}
			num, err := strconv.Atoi(input)
			if err != nil {
				fmt.Fprintln(writer, "Invalid input. Please enter a number.")
				continue
			}
			if num < 1 || num > len(titles) {
				fmt.Fprintf(writer, "Invalid selection. Please enter a number between 1 and %d.\n", len(titles))
				continue
			}
			selected := titles[num-1]
			fmt.Fprintf(writer, "Selected: %s\n", selected.DisplayName())
			resultCh <- selected
			return
		}
	}()

	select {
	case <-ctx.Done():
		return nil, errors.New("timeout")
	case err := <-errCh:
		return nil, err
	case selected := <-resultCh:
		return selected, nil
	}
}

// Run opens the window and runs g at tps frames per second until it ends.
func Run(g *Game, tps int) error {
	if tps <= 0 {
		tps = ebiten.DefaultTPS
	}
	ebiten.SetWindowSize(ScreenWidth*2, ScreenHeight*2)
	ebiten.SetWindowTitle("hecore")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(tps)

	if err := ebiten.RunGame(g); err != nil {
		return fmt.Errorf("failed to run game: %w", err)
	}
	return g.TransitionError()
}

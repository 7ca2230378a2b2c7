package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/zurustar/hecore/pkg/cli"
	"github.com/zurustar/hecore/pkg/disasm"
	"github.com/zurustar/hecore/pkg/engine"
	"github.com/zurustar/hecore/pkg/logger"
	"github.com/zurustar/hecore/pkg/quicktime"
	"github.com/zurustar/hecore/pkg/savestate"
	"github.com/zurustar/hecore/pkg/title"
	"github.com/zurustar/hecore/pkg/vm"
	"github.com/zurustar/hecore/pkg/window"
)

// AutosaveSlot is the slot written on exit when no --slot was given.
const AutosaveSlot = 0

// Application はアプリケーションのメインロジックを管理する
type Application struct {
	config   *cli.Config
	log      *slog.Logger
	titleReg *title.Registry
	titlesFS fs.FS
	runID    string

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// Option configures an Application.
type Option func(*Application)

// WithIO replaces the standard streams.
func WithIO(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(a *Application) {
		a.stdin = stdin
		a.stdout = stdout
		a.stderr = stderr
	}
}

// New Applicationを作成。titlesFS は埋め込みタイトル（"titles/<name>"）を持つ。
func New(titlesFS fs.FS, opts ...Option) *Application {
	a := &Application{
		titlesFS: titlesFS,
		stdin:    os.Stdin,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run アプリケーションを実行
func (app *Application) Run(args []string) error {
	config, err := cli.ParseArgs(args)
	if err != nil {
		return fmt.Errorf("failed to parse args: %w", err)
	}
	app.config = config

	if config.ShowHelp {
		cli.Usage(app.stdout)
		return nil
	}

	// ログは stderr へ。stdout は probe / disasm の出力用
	if err := logger.InitLogger(config.LogLevel, logger.WithFormat(config.LogFormat), logger.WithWriter(app.stderr)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.runID = uuid.NewString()
	app.log = logger.GetLogger().With("run", app.runID)
	app.log.Debug("Application started", "command", config.Command, "target", config.Target)

	switch config.Command {
	case cli.CommandProbe:
		return app.probe(config.Target)
	case cli.CommandDisasm:
		return app.disassemble(config.Target)
	}
	return app.runGame()
}

// probe はムービーのトラック情報を表示する
func (app *Application) probe(path string) error {
	enc, err := title.LookupCharset(app.config.Charset)
	if err != nil {
		return err
	}
	p := quicktime.NewParser(quicktime.WithLogger(app.log), quicktime.WithEncoding(enc))
	defer p.Close()
	if err := p.ParseFile(path); err != nil {
		return err
	}
	return writeMovieInfo(app.stdout, path, p)
}

func writeMovieInfo(w io.Writer, name string, p *quicktime.Parser) error {
	sx, sy := p.ScaleFactor()
	fmt.Fprintf(w, "%s: timescale %d, duration %d, scale %.3gx%.3g\n", name, p.TimeScale(), p.Duration(), sx, sy)
	if q := p.QTVRType(); q != quicktime.QTVRNone {
		nav := p.Navigation()
		fmt.Fprintf(w, "  qtvr %s: %dx%d frames, fov %.1f\n", q, nav.Columns, nav.Rows, nav.FieldOfView)
	}
	for _, t := range p.Tracks() {
		fmt.Fprintf(w, "  track %d: %s, timescale %d, duration %d, %d samples, %d edits\n",
			t.Index, t.CodecType, t.TimeScale, t.Duration, t.SampleCount, len(t.EditList))
		for _, d := range t.SampleDescs {
			switch {
			case d.Video != nil:
				fmt.Fprintf(w, "    %s %dx%d depth %d %q\n", d.CodecTag, d.Video.Width, d.Video.Height, d.Video.Depth, d.Video.CompressorName)
			case d.Audio != nil:
				fmt.Fprintf(w, "    %s %d Hz, %d ch, %d bit\n", d.CodecTag, d.Audio.SampleRate, d.Audio.Channels, d.Audio.BitsPerSample)
			default:
				fmt.Fprintf(w, "    %s\n", d.CodecTag)
			}
		}
		if t.External() {
			fmt.Fprintf(w, "    external media: %s\n", t.Filename)
		}
	}
	return nil
}

// disassemble はスクリプトファイルのリストを出力する
func (app *Application) disassemble(path string) error {
	code, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}
	enc, err := title.LookupCharset(app.config.Charset)
	if err != nil {
		return err
	}
	return disasm.NewPrinter(disasm.WithEncoding(enc)).Fprint(app.stdout, code)
}

// runGame タイトルを選んでスクリプトを実行する
func (app *Application) runGame() error {
	app.titleReg = title.NewRegistry(app.titlesFS)
	if app.config.Target != "" {
		if err := app.titleReg.LoadExternalTitle(app.config.Target); err != nil {
			return fmt.Errorf("failed to load external title: %w", err)
		}
	}

	selected, needsSelection, err := app.titleReg.SelectTitle()
	if err != nil {
		return fmt.Errorf("failed to select title: %w", err)
	}

	if app.config.Headless {
		if needsSelection {
			selected, err = window.SelectHeadless(app.titleReg.AvailableTitles(), app.config.Timeout, app.stdin, app.stdout)
			if err != nil {
				return fmt.Errorf("failed to select title from menu: %w", err)
			}
		}
		return app.runHeadless(selected)
	}
	return app.runWindow(selected, needsSelection)
}

// game は実行中の 1 タイトル
type game struct {
	title *title.Title
	sched *engine.Scheduler
	store *savestate.Store
}

// startTitle はタイトルのセッションとスケジューラを作り、ブートスクリプトを起動する。
func (app *Application) startTitle(t *title.Title) (*game, error) {
	log := app.log.With("title", t.Name)
	log.Info("Title selected", "name", t.DisplayName(), "path", t.Path, "embedded", t.IsEmbedded)

	sessionOpts := []vm.Option{vm.WithLogger(log), vm.WithScriptSource(t)}
	if !t.IsEmbedded {
		sessionOpts = append(sessionOpts, vm.WithFileRoot(t.Path))
	}
	session := vm.NewSession(sessionOpts...)

	g := &game{title: t}
	if app.config.SaveDB != "" {
		store, err := savestate.Open(app.config.SaveDB, t.Name, savestate.WithLogger(log))
		if err != nil {
			session.Close()
			return nil, err
		}
		g.store = store
		if app.config.Slot != cli.NoSlot {
			if err := store.LoadSession(context.Background(), session, app.config.Slot); err != nil {
				g.close(session)
				return nil, fmt.Errorf("failed to load slot %d: %w", app.config.Slot, err)
			}
			log.Info("Save loaded", "slot", app.config.Slot)
		}
	}

	app.probeMovies(log, t)

	g.sched = engine.NewScheduler(session,
		engine.WithLogger(log),
		engine.WithTimeout(app.config.Timeout),
	)
	g.sched.Start()
	if err := g.sched.Boot(t.Manifest.Boot); err != nil {
		g.close(session)
		return nil, fmt.Errorf("failed to start boot script %d: %w", t.Manifest.Boot, err)
	}
	return g, nil
}

// probeMovies はマニフェストのムービーを検査してログに出す。読めなくても続行する。
func (app *Application) probeMovies(log *slog.Logger, t *title.Title) {
	enc, err := t.Charset()
	if err != nil {
		log.Warn("Unknown title charset", "error", err)
	}
	for _, mv := range t.Manifest.Movies {
		rs, err := t.OpenMovie(mv.Name)
		if err != nil {
			log.Warn("Movie not found", "movie", mv.Name, "error", err)
			continue
		}
		p := quicktime.NewParser(quicktime.WithLogger(log), quicktime.WithEncoding(enc))
		if err := p.ParseStream(rs, quicktime.DisposeYes); err != nil {
			log.Warn("Movie could not be parsed", "movie", mv.Name, "error", err)
		} else {
			log.Debug("Movie", "movie", mv.Name, "tracks", len(p.Tracks()), "duration", p.Duration(), "qtvr", p.QTVRType())
		}
		if err := p.Close(); err != nil {
			log.Warn("Failed to close movie", "movie", mv.Name, "error", err)
		}
	}
}

// finish はセーブして後片付けする
func (g *game) finish(log *slog.Logger, slot int) error {
	session := g.sched.Session()
	var saveErr error
	if g.store != nil {
		if slot == cli.NoSlot {
			slot = AutosaveSlot
		}
		saveErr = g.store.SaveSession(context.Background(), session, slot, "autosave")
		if saveErr == nil {
			log.Info("Game saved", "slot", slot)
		}
	}
	if n, err := g.sched.Failures(); n > 0 {
		log.Warn("Scripts failed during the run", "count", n, "last", err)
	}
	return errors.Join(saveErr, g.close(session))
}

func (g *game) close(session *vm.Session) error {
	var errs []error
	if g.store != nil {
		errs = append(errs, g.store.Close())
	}
	errs = append(errs, session.Close())
	return errors.Join(errs...)
}

// runHeadless はウィンドウなしで tick を回す。SIGINT / SIGTERM で終了。
func (app *Application) runHeadless(t *title.Title) error {
	g, err := app.startTitle(t)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := engine.RunHeadless(ctx, g.sched, app.config.TickRate)
	if errors.Is(runErr, context.Canceled) {
		app.log.Info("Interrupted")
		runErr = nil
	}
	app.log.Info("Run finished", "ticks", g.sched.TickCount())
	return errors.Join(runErr, g.finish(app.log, app.config.Slot))
}

// runWindow はウィンドウを開く。複数タイトルがあれば選択画面から始める。
func (app *Application) runWindow(selected *title.Title, needsSelection bool) error {
	var current *game
	finishCurrent := func() error {
		if current == nil {
			return nil
		}
		err := current.finish(app.log, app.config.Slot)
		current = nil
		return err
	}

	var gw *window.Game
	if needsSelection {
		gw = window.NewGame(window.ModeSelection, app.titleReg.AvailableTitles(), app.config.Timeout)
		gw.SetHasTitleSelection(true)
	} else {
		g, err := app.startTitle(selected)
		if err != nil {
			return err
		}
		current = g
		gw = window.NewGame(window.ModeDesktop, nil, app.config.Timeout)
		gw.SetScheduler(g.sched)
	}

	gw.SetOnTitleSelected(func(t *title.Title) (*engine.Scheduler, error) {
		if err := finishCurrent(); err != nil {
			app.log.Error("Failed to close previous title", "error", err)
		}
		g, err := app.startTitle(t)
		if err != nil {
			return nil, err
		}
		current = g
		return g.sched, nil
	})
	gw.SetOnTitleExit(finishCurrent)

	runErr := window.Run(gw, app.config.TickRate)
	return errors.Join(runErr, finishCurrent())
}


package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/neboloop/hitomi/internal/auth"
	"github.com/neboloop/hitomi/internal/browser"
	"github.com/neboloop/hitomi/internal/chat"
	"github.com/neboloop/hitomi/internal/config"
	"github.com/neboloop/hitomi/internal/crashlog"
	"github.com/neboloop/hitomi/internal/geometry"
	"github.com/neboloop/hitomi/internal/logging"
	"github.com/neboloop/hitomi/internal/metrics"
	"github.com/neboloop/hitomi/internal/notify"
	"github.com/neboloop/hitomi/internal/overlay"
	"github.com/neboloop/hitomi/internal/speech"
	"github.com/neboloop/hitomi/internal/uiloop"
	"github.com/neboloop/hitomi/internal/widget"
)

// fallbackScreen is used when no display can be enumerated (headless runs).
var fallbackScreen = geometry.Size{W: 1080, H: 2340}

// RunCmd starts the overlay driven from the console.
func RunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the overlay with the console harness",
		Long: `Start the overlay. Lines typed on stdin are chat messages; lines starting
with ':' drive the widget:

  :tap            tap the widget (toggles the chat bubble)
  :drag X Y       drag the widget by X,Y pixels
  :longpress      long-press the widget (quick actions)
  :hide           hide the widget at the nearer edge
  :restore        restore the widget from the edge tab
  :listen         toggle always-listening
  :focus, :blur   focus or blur the chat input
  :browse URL     open URL in the browser pane
  :close          close the chat bubble
  :state          print the widget state
  :quit           stop`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOverlay(cmd)
		},
	}
	cmd.Flags().StringVar(&engineName, "browser", "", "page engine: chrome, fetch or none (default from config)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics on this address (default from config)")
	cmd.Flags().BoolVar(&osNotify, "notify", false, "also show notices as OS notifications")
	return cmd
}

func runOverlay(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if engineName != "" {
		cfg.Browser.Engine = engineName
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	defer logging.Sync()

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return fmt.Errorf("failed to initialize data directory: %w", err)
	}
	// Enforce single instance with lock file
	lockFile, err := acquireLock(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("%w: hitomi is already running", err)
	}
	defer releaseLock(lockFile)

	if err := crashlog.Init(filepath.Join(cfg.DataDir, crashlog.FileName)); err != nil {
		logging.Warnf("[crashlog] %v", err)
	}
	defer crashlog.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	con := newConsole(out)

	engine, closeEngine := buildEngine(cfg)
	defer closeEngine()

	identity := auth.NewManager(authConfig(cfg), sessionStore())
	var service chat.Service = unconfigured{}
	if cfg.Chat.Endpoint != "" {
		cloud, err := chat.NewCloudClient(cfg.CloudConfig(), identity)
		if err != nil {
			return err
		}
		service = cloud
	}

	var recognizer speech.Recognizer
	if cfg.Speech.RecognizerURL != "" {
		recognizer = speech.NewWSRecognizer(cfg.Speech.RecognizerURL, cfg.Speech.Language)
	}

	var notifier notify.Notifier = notify.Func(con.Notice)
	if osNotify {
		native := notify.OS{}
		notifier = notify.Func(func(msg string) {
			con.Notice(msg)
			native.Notify(msg)
		})
	}

	frame := screenFrame(cfg)
	loop := uiloop.New()
	defer loop.Close()

	var o *overlay.Overlay
	loop.Do(func() {
		o, err = overlay.New(overlay.Options{
			Scheduler:       loop,
			Frame:           frame,
			Surface:         con,
			Timing:          cfg.Timing(),
			Sprite:          widget.DefaultSprite(frame.Box().W),
			Engine:          engine,
			HomeURL:         cfg.Browser.HomeURL,
			SnapshotTimeout: cfg.Browser.SnapshotTimeout,
			Chat:            service,
			Identity:        identity,
			ReadTimeout:     cfg.Chat.ReadTimeout,
			Recognizer:      recognizer,
			Permissions:     permissions{cfg: cfg.Speech, recognizer: recognizer != nil},
			Delays:          cfg.Delays(),
			AlwaysListening: cfg.Speech.AlwaysListening,
			Notifier:        notifier,
			OnSettings: func() {
				path, _ := configPath()
				con.Notice("Settings live in " + path)
			},
		})
	})
	if err != nil {
		return err
	}
	defer loop.Do(o.Close)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Addr != "" {
		g.Go(func() error { return serveMetrics(gctx, cfg.Metrics.Addr) })
	}

	if path, err := configPath(); err == nil {
		g.Go(func() error {
			err := config.Watch(gctx, path, func(next *config.Config) {
				loop.Post(func() {
					if err := o.SetAlwaysListening(next.Speech.AlwaysListening); err != nil {
						logging.Warnf("[config] always_listening: %v", err)
					}
				})
			})
			if err != nil {
				crashlog.LogWarn("config", "not watching "+path+": "+err.Error(), nil)
			}
			return nil
		})
	}

	lines := readLines(cmd.InOrStdin())
	g.Go(func() error {
		h := &harness{o: o, sched: loop, timing: cfg.Timing(), con: con}
		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					return errQuit
				}
				c, err := parseCommand(line)
				if err != nil {
					con.Error(err)
					continue
				}
				if c.name == cmdQuit {
					return errQuit
				}
				loop.Post(func() { h.apply(c) })
			}
		}
	})

	color.New(color.Faint).Fprintln(out, "Type a message, or :help for commands.")
	if err := g.Wait(); err != nil && !errors.Is(err, errQuit) {
		crashlog.LogError("run", err, nil)
		return err
	}
	return nil
}

var errQuit = errors.New("quit")

// readLines feeds stdin lines to a channel. The reader cannot be interrupted
// and exits with the process.
func readLines(in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

func serveMetrics(ctx context.Context, addr string) error {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logging.Infof("[metrics] listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func authConfig(cfg *config.Config) auth.Config {
	return auth.Config{
		BaseURL: cfg.Auth.BaseURL,
		AnonKey: cfg.Auth.AnonKey,
		Timeout: cfg.Auth.Timeout,
	}
}

// buildEngine picks the page engine. Chrome falls back to plain fetching
// when it cannot be launched.
func buildEngine(cfg *config.Config) (browser.Engine, func()) {
	switch cfg.Browser.Engine {
	case "none":
		return nil, func() {}
	case "chrome":
		e, err := browser.NewChromeEngine(browser.ChromeConfig{
			Headless: cfg.Browser.Headless,
			ExecPath: cfg.Browser.ChromePath,
		})
		if err == nil {
			return e, e.Close
		}
		logging.Warnf("[browser] %v; falling back to fetch", err)
	}
	e := browser.NewFetchEngine()
	return e, e.Close
}

// screenFrame uses the configured screen, else the primary display.
func screenFrame(cfg *config.Config) widget.Frame {
	screen := geometry.Size{W: cfg.Widget.ScreenWidth, H: cfg.Widget.ScreenHeight}
	if screen.W <= 0 || screen.H <= 0 {
		if size, ok := geometry.PrimaryDisplay(); ok {
			screen = size
		} else {
			screen = fallbackScreen
		}
	}
	return widget.Frame{Density: geometry.Density(cfg.Widget.Density), Screen: screen}
}

var errNoEndpoint = errors.New("chat.endpoint is not set in the config file")

// unconfigured stands in for the cloud client until an endpoint is set, so
// every turn ends in a readable snag.
type unconfigured struct{}

func (unconfigured) Send(context.Context, []chat.Message, string) (string, error) {
	return "", errNoEndpoint
}

// permissions answers from the config; the console has no permission
// prompt.
type permissions struct {
	cfg        config.SpeechConfig
	recognizer bool
}

func (p permissions) MicGranted() bool          { return p.cfg.MicGranted }
func (p permissions) RecognizerAvailable() bool { return p.recognizer }

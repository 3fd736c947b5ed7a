package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"evcal/internal/capture"
	"evcal/internal/config"
	"evcal/internal/ics"
	appLog "evcal/internal/log"
	"evcal/internal/model"
	"evcal/internal/screen"
	"evcal/internal/sqlite"
	"evcal/internal/store"
	"evcal/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	importOnce bool
	capture    bool
}

func main() {
	if err := config.LoadEnv(); err != nil {
		appLog.Error("failed to load .env", err)
	}

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	conf.ApplyEnv()
	// CLI --listen overrides both the file and the environment.
	if flags.listen != "" {
		conf.SetListen(flags.listen)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"store", conf.Store.Driver,
		"ics_count", len(conf.ICS),
		"import_cron", conf.Import.Cron,
		"import_once", flags.importOnce,
		"capture", flags.capture,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf, flags); err != nil {
		appLog.Error("evcal failed", err)
		os.Exit(1)
	}
	appLog.Info("evcal exiting")
}

func run(ctx context.Context, conf *config.Config, flags flagConfig) error {
	st, closeStore, err := openStore(ctx, conf)
	if err != nil {
		return err
	}
	defer closeStore()

	importer := newImporter(conf, st)

	if flags.importOnce {
		res, err := importer.Run(ctx)
		fmt.Printf("sources=%d parsed=%d occurrences=%d created=%d skipped=%d\n",
			res.Sources, res.Parsed, res.Occurrences, res.Created, res.Skipped)
		return err
	}

	sc := screen.New(st, screen.Options{
		ClearSelectionOnDelete: conf.Screen.ClearSelectionOnDelete,
	})
	if err := sc.Load(ctx); err != nil {
		return err
	}

	if len(importer.Sources) > 0 {
		sched, err := startScheduler(ctx, conf, importer)
		if err != nil {
			return err
		}
		defer func() {
			<-sched.Stop().Done()
		}()
	}

	ln, err := net.Listen("tcp", conf.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", conf.Listen, err)
	}
	srv := web.NewServer(conf, st, sc)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx, ln) }()

	if flags.capture {
		go runCapture(ctx, conf)
	}

	return <-serveErr
}

// openStore returns the configured backend, seeded when it starts empty.
func openStore(ctx context.Context, conf *config.Config) (store.Store, func(), error) {
	switch conf.Store.Driver {
	case config.DriverSQLite:
		s, err := sqlite.Open(ctx, conf.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		empty, err := s.Empty(ctx)
		if err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("sqlite: check empty: %w", err)
		}
		if empty {
			if err := store.Seed(ctx, s, conf.Seed); err != nil {
				s.Close()
				return nil, nil, err
			}
			appLog.Info("seeded sqlite store", "path", conf.Store.Path, "events", len(conf.Seed))
		}
		return s, func() { _ = s.Close() }, nil
	default:
		m := store.NewMemory(seedEvents(conf.Seed)...)
		return m, func() {}, nil
	}
}

func seedEvents(drafts []model.Draft) []model.Event {
	evs := make([]model.Event, len(drafts))
	for i, d := range drafts {
		evs[i] = model.Event{ID: i + 1, Title: d.Title, Date: d.Date}
	}
	return evs
}

func newImporter(conf *config.Config, st store.Store) *ics.Importer {
	sources := make([]ics.Source, 0, len(conf.ICS))
	for _, c := range conf.ICS {
		if c.URL == "" {
			continue
		}
		sources = append(sources, ics.Source{ID: c.ID, URL: c.URL})
	}
	return &ics.Importer{
		Fetcher:      ics.NewFetcher(conf.Import.CacheDir, nil),
		Store:        st,
		Sources:      sources,
		Location:     conf.Location(),
		HorizonDays:  conf.Import.HorizonDays,
		BackfillDays: conf.Import.BackfillDays,
	}
}

// startScheduler runs one import immediately and then on conf.Import.Cron.
func startScheduler(ctx context.Context, conf *config.Config, im *ics.Importer) (*cron.Cron, error) {
	c := cron.New(
		cron.WithLocation(conf.Location()),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	job := func() {
		if _, err := im.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			appLog.Error("scheduled import finished with errors", err)
		}
	}
	if _, err := c.AddFunc(conf.Import.Cron, job); err != nil {
		return nil, fmt.Errorf("import cron %q: %w", conf.Import.Cron, err)
	}
	c.Start()
	go job()
	appLog.Info("import scheduler started", "cron", conf.Import.Cron, "sources", len(im.Sources))
	return c, nil
}

func runCapture(ctx context.Context, conf *config.Config) {
	// The listener is already bound; give the first request a moment anyway.
	select {
	case <-time.After(200 * time.Millisecond):
	case <-ctx.Done():
		return
	}
	err := capture.CapturePNG(ctx, captureOptions(conf))
	if err != nil {
		appLog.Error("capture failed", err, "url", conf.Capture.URL)
		return
	}
	appLog.Info("capture written", "path", conf.Capture.Output)
}

// captureOptions points the capture at the local page, with the server's own
// basic auth credentials when auth is on.
func captureOptions(conf *config.Config) capture.Options {
	opts := capture.Options{
		URL:        conf.Capture.URL,
		OutputPath: conf.Capture.Output,
		Width:      conf.Capture.Width,
		Height:     conf.Capture.Height,
	}
	if conf.BasicAuth != nil {
		opts.Username = conf.BasicAuth.Username
		opts.Password = conf.BasicAuth.Password
	}
	return opts
}

func parseFlags() flagConfig {
	var cfg flagConfig

	defaultPath := os.Getenv(config.EnvConfig)
	if defaultPath == "" {
		defaultPath = "config.yaml"
	}
	flag.StringVar(&cfg.configPath, "config", defaultPath, "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.importOnce, "import-once", false, "Run the ICS import once and exit")
	flag.BoolVar(&cfg.capture, "capture", false, "Write a PNG preview of the screen after startup")

	flag.Parse()

	return cfg
}

package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/axiomhq/axiom-go/axiom"
	"github.com/axiomhq/axiom-go/axiom/ingest"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultService = "neatpdf"
	batchSize      = 200
)

// Options defines logger initialization parameters.
type Options struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Service is stamped on every event forwarded to Axiom.
	Service string

	// Console overrides stdout, mostly for tests.
	Console io.Writer

	SendToAxiom  bool
	AxiomAPIKey  string
	AxiomOrgID   string
	AxiomDataset string
	AxiomFlush   time.Duration
}

var (
	mu     sync.Mutex
	global = zerolog.Nop()
	ax     *axiomShipper
)

// Init wires the global zerolog logger: rotated file, console and optional Axiom shipping.
func Init(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	if opts.Service == "" {
		opts.Service = defaultService
	}

	var writers []io.Writer
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return fmt.Errorf("create logs dir: %w", err)
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		})
	}
	if opts.Pretty {
		writers = append(writers, zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339})
	} else {
		writers = append(writers, console)
	}

	if opts.SendToAxiom && opts.AxiomAPIKey != "" {
		shipper, err := newAxiomShipper(opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Axiom disabled: %v\n", err)
		} else {
			ax = shipper
			writers = append(writers, shipper)
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		lvl = zerolog.InfoLevel
	}

	global = zerolog.New(io.MultiWriter(writers...)).Level(lvl).With().Timestamp().Logger()
	log.Logger = global
	return nil
}

// Close flushes the Axiom shipper, if any.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if ax != nil {
		ax.Close()
		ax = nil
	}
}

// axiomShipper is an io.Writer that turns zerolog JSON lines into Axiom events
// and ingests them in batches. Debug events stay local.
type axiomShipper struct {
	client  *axiom.Client
	dataset string
	service string
	events  chan axiom.Event
	done    chan struct{}
	wg      sync.WaitGroup
}

func newAxiomShipper(opts Options) (*axiomShipper, error) {
	clientOpts := []axiom.Option{axiom.SetToken(opts.AxiomAPIKey)}
	if opts.AxiomOrgID != "" {
		clientOpts = append(clientOpts, axiom.SetOrganizationID(opts.AxiomOrgID))
	}
	c, err := axiom.NewClient(clientOpts...)
	if err != nil {
		return nil, err
	}
	dataset := opts.AxiomDataset
	if dataset == "" {
		dataset = "dev_" + opts.Service
	}
	flush := opts.AxiomFlush
	if flush <= 0 {
		flush = 10 * time.Second
	}
	s := &axiomShipper{
		client:  c,
		dataset: dataset,
		service: opts.Service,
		events:  make(chan axiom.Event, 1000),
		done:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run(flush)
	return s, nil
}

func (s *axiomShipper) Write(p []byte) (int, error) {
	ev := map[string]any{}
	if err := json.Unmarshal(p, &ev); err != nil {
		ev = map[string]any{"message": string(p), "level": "info"}
	}
	if lvl, _ := ev["level"].(string); lvl == "debug" || lvl == "trace" {
		return len(p), nil
	}
	ev["service"] = s.service
	if _, ok := ev[ingest.TimestampField]; !ok {
		ev[ingest.TimestampField] = time.Now()
	}
	select {
	case s.events <- axiom.Event(ev):
	default:
		// buffer full, drop
	}
	return len(p), nil
}

func (s *axiomShipper) run(every time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	batch := make([]axiom.Event, 0, batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		_, _ = s.client.IngestEvents(ctx, s.dataset, batch)
		cancel()
		batch = batch[:0]
	}
	for {
		select {
		case <-s.done:
			for {
				select {
				case ev := <-s.events:
					batch = append(batch, ev)
				default:
					flush()
					return
				}
			}
		case <-ticker.C:
			flush()
		case ev := <-s.events:
			batch = append(batch, ev)
			if len(batch) >= batchSize {
				flush()
			}
		}
	}
}

func (s *axiomShipper) Close() {
	close(s.done)
	s.wg.Wait()
}

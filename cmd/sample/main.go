// Command sample runs a greeting service built on github.com/bjaus/relay.
//
// Run:
//
//	go run ./cmd/sample
//	go run ./cmd/sample -config sample.yaml -addr :9090
//
// Print the route table:
//
//	go run ./cmd/sample -routes                      # YAML to stdout
//	go run ./cmd/sample -routes -o routes.yaml       # write to file
//
// Then explore:
//
//	POST http://localhost:8080/greeting              # body "World" -> "Hello, World!"
//	GET  http://localhost:8080/health                # 200
//	GET  http://localhost:8080/salutation            # the local salutation backend
//	GET  http://localhost:8080/routes                # route table as JSON
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bjaus/relay"
)

// Config is the sample's configuration, read from YAML and overridden by flags.
type Config struct {
	Addr            string        `yaml:"addr"`
	Workers         int64         `yaml:"workers"`
	ResponseTimeout time.Duration `yaml:"response_timeout"`
	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	RateLimit       struct {
		Rate  float64 `yaml:"rate"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
	Salutation    string `yaml:"salutation"`
	SalutationURL string `yaml:"salutation_url"`
	LogLevel      string `yaml:"log_level"`
}

func defaultConfig() Config {
	cfg := Config{
		Addr:            ":8080",
		Workers:         32,
		ResponseTimeout: 10 * time.Second,
		UpstreamTimeout: 5 * time.Second,
		MaxBodyBytes:    1 << 20,
		Salutation:      "Hello",
		SalutationURL:   "http://localhost:8080/salutation",
		LogLevel:        "info",
	}
	cfg.RateLimit.Rate = 50
	cfg.RateLimit.Burst = 100
	return cfg
}

func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // user-provided CLI flag
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	// A stalled upstream must answer 502 before the router gives up with 503.
	if cfg.UpstreamTimeout >= cfg.ResponseTimeout {
		return cfg, fmt.Errorf("upstream_timeout %s must be below response_timeout %s", cfg.UpstreamTimeout, cfg.ResponseTimeout)
	}
	return cfg, nil
}

func main() {
	configFlag := flag.String("config", "", "Path to a YAML config file")
	addrFlag := flag.String("addr", "", "Listen address (overrides config)")
	upstreamFlag := flag.String("salutation-url", "", "Salutation backend URL (overrides config)")
	routesFlag := flag.Bool("routes", false, "Print the route table as YAML and exit")
	outFlag := flag.String("o", "", "Output file for the route table (requires -routes)")
	flag.Parse()

	cfg, err := loadConfig(*configFlag)
	if err != nil {
		slog.Error("config failed", "err", err)
		os.Exit(1)
	}
	if *addrFlag != "" {
		cfg.Addr = *addrFlag
	}
	if *upstreamFlag != "" {
		cfg.SalutationURL = *upstreamFlag
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		slog.Error("invalid log level", "level", cfg.LogLevel, "err", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	pool := relay.NewWorkerPool(cfg.Workers, logger)
	r := newRouter(cfg, logger, pool)

	if *routesFlag {
		if err := writeRoutes(r, *outFlag); err != nil {
			slog.Error("route table failed", "err", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	slog.Info("starting server", "addr", cfg.Addr, "salutation_url", cfg.SalutationURL)

	if err := r.ListenAndServe(ctx, cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "err", err)
	}
	pool.Wait()

	slog.Info("server stopped")
}

func newRouter(cfg Config, logger *slog.Logger, worker relay.Executor) *relay.Router {
	r := relay.New(
		relay.WithTitle("Greeting API"),
		relay.WithVersion("1.0.0"),
		relay.WithLogger(logger),
		relay.WithWorker(worker),
		relay.WithResponseTimeout(cfg.ResponseTimeout),
	)

	r.Use(relay.Recovery(logger))
	r.Use(relay.RequestID())
	r.Use(relay.Logger(logger))
	r.Use(relay.RateLimit(relay.RateLimitConfig{
		Rate:  cfg.RateLimit.Rate,
		Burst: cfg.RateLimit.Burst,
	}))
	r.Use(relay.BodyLimit(cfg.MaxBodyBytes))

	backend := relay.NewBackend(
		relay.WithBackendLogger(logger),
		relay.WithUpstreamTimeout(cfg.UpstreamTimeout),
	)
	g := &greeter{backend: backend, salutationURL: cfg.SalutationURL, salutation: cfg.Salutation}

	relay.Handle(r, relay.Endpoint[relay.ValueSender[string]]{
		Method:   relay.POST,
		Path:     "/greeting",
		Response: relay.JSON[string](),
		Args:     []relay.Slot{relay.Body[string](http.StatusBadRequest)},
		Handler:  g.greet,
		Options:  []relay.RouteOption{relay.WithSummary("Greet someone"), relay.WithTags("greeting")},
	})
	relay.Handle(r, relay.Endpoint[relay.ValueSender[string]]{
		Method:   relay.GET,
		Path:     "/salutation",
		Response: relay.JSON[string](),
		Handler:  g.salute,
		Options:  []relay.RouteOption{relay.WithSummary("Current salutation"), relay.WithTags("greeting")},
	})
	relay.Handle(r, relay.Endpoint[relay.StatusSender]{
		Method:   relay.GET,
		Path:     "/health",
		Response: relay.StatusCode(),
		Handler:  handleHealth,
		Options:  []relay.RouteOption{relay.WithSummary("Health check"), relay.WithTags("ops")},
	})
	r.ServeRoutes("/routes")

	return r
}

func writeRoutes(r *relay.Router, outFile string) error {
	w := os.Stdout
	if outFile != "" {
		f, err := os.Create(outFile) //nolint:gosec // user-provided CLI flag
		if err != nil {
			return err
		}
		defer func() {
			if err := f.Close(); err != nil {
				slog.Error("failed to close output file", "err", err)
			}
		}()
		w = f
	}
	return r.WriteRoutesYAML(w)
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

type greeter struct {
	backend       *relay.Backend
	salutationURL string
	salutation    string
}

// greet fetches the salutation from the backend and answers with
// "<salutation>, <name>!".
func (g *greeter) greet(s relay.ValueSender[string], args relay.Args, d relay.Dispatcher) {
	name := relay.Arg[string](args, 0)
	call := relay.JSONCall[string](g.backend.Get(g.salutationURL))
	call.Dispatch(s, d, func(res relay.Result[string], _ relay.Dispatcher) {
		salutation, ok := res.Value()
		if !ok || salutation == "" {
			s.SendErrorCode(http.StatusInternalServerError)
			return
		}
		s.SendValue(fmt.Sprintf("%s, %s!", salutation, name))
	})
}

// salute answers from a worker to show a dispatched handler.
func (g *greeter) salute(s relay.ValueSender[string], args relay.Args, d relay.Dispatcher) {
	relay.Dispatch(d, s, args, func(s relay.ValueSender[string], _ relay.Args, _ relay.Dispatcher) {
		s.SendValue(g.salutation)
	})
}

func handleHealth(s relay.StatusSender, _ relay.Args, _ relay.Dispatcher) {
	s.SendOK()
}

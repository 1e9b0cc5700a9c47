package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"irma.ai/internal/observerproto"
	persistlog "irma.ai/internal/persistence/log"
	"irma.ai/internal/sim/runner"
	"irma.ai/internal/sim/tuning"
	"irma.ai/internal/sim/vm"
	"irma.ai/internal/sim/world"
	"irma.ai/internal/transport/observer"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml or tuning.toml (empty for defaults)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite tick/write index")
		logCells   = flag.Bool("log_cells", true, "write every cell write to <data>/cells/*.jsonl.zst")
		maxTicks   = flag.Uint64("max_ticks", 0, "stop after this many ticks (0 runs until signalled)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	w, err := world.New(tune.World.Width, tune.World.Height, nil)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	var (
		sinks       []world.Sink
		tickLoggers []runner.TickLogger
	)

	ticksLog := persistlog.NewTickLogger(*dataDir)
	defer ticksLog.Close()
	tickLoggers = append(tickLoggers, ticksLog)

	if *logCells {
		cellsLog := persistlog.NewCellLogger(*dataDir)
		defer cellsLog.Close()
		sinks = append(sinks, cellsLog)
		tickLoggers = append(tickLoggers, cellsLog)
	}

	// Optional read-model index (does not affect the simulation).
	idx, err := openIndex(*dataDir, tune, *disableDB)
	if err != nil {
		logger.Fatalf("open index: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		sinks = append(sinks, idx)
		tickLoggers = append(tickLoggers, idx)
	}

	obsSrv := observer.NewServer(observerproto.WorldParams{
		Width:      tune.World.Width,
		Height:     tune.World.Height,
		TickRateHz: tune.Runner.TickRateHz,
		PoolSize:   tune.VM.PoolSize,
	}, logger)
	sinks = append(sinks, obsSrv)
	tickLoggers = append(tickLoggers, obsSrv)

	stats := &tickStats{}
	tickLoggers = append(tickLoggers, stats)

	w.SetSink(world.MultiSink(sinks...))

	core := vm.NewCore(w, vm.NewPool(tune.VM.PoolSize), tune.Costs())
	if err := runner.Seed(core, tune.Seed, tune.VM.InitialEnergy); err != nil {
		logger.Fatalf("seed: %v", err)
	}
	logger.Printf("world %dx%d atoms=%d vms=%d pool=%d", w.Width(), w.Height(), w.Count(), core.VMs.Len(), core.VMs.Cap())

	r := runner.New(core, runner.ConfigFrom(tune.Runner), logger, tickLoggers...)

	ctx, cancel := signalContext()
	defer cancel()

	if *maxTicks > 0 {
		stats.stopAt(*maxTicks, cancel)
	}

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := r.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("runner stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(stats, obsSrv, idx))
	obsSrv.Register(mux)

	if envBool("IRMA_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (IRMA_ENABLE_PPROF_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (data=%s)", *addr, filepath.Clean(*dataDir))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	// Loggers close on return; the runner must be done writing first.
	<-runDone
	logger.Printf("stopped at tick %d", stats.last().Tick)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

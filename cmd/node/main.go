package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chordmesh/internal/bootstrap"
	"chordmesh/internal/config"
	"chordmesh/internal/engine"
	"chordmesh/internal/identity"
	"chordmesh/internal/jsonrpc"
	"chordmesh/internal/logger"
	zapfactory "chordmesh/internal/logger/zap"
	"chordmesh/internal/store"
	"chordmesh/internal/telemetry"
	"chordmesh/internal/transport"
)

var defaultConfigPath = "config/node/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	rpcAddr := flag.String("rpc", ":8080", "address to bind the client-facing JSON API")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %q: %v", *configPath, err)
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.ValidateConfig(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	var lgr logger.Logger
	if cfg.Logger.Active {
		zapLog, err := zapfactory.New(cfg.Logger)
		if err != nil {
			log.Fatalf("failed to initialize logger: %v", err)
		}
		defer func() { _ = zapLog.Sync() }()
		lgr = zapfactory.NewZapAdapter(zapLog)
	} else {
		lgr = &logger.NopLogger{}
	}
	cfg.LogConfig(lgr)

	// Load or generate this node's identity.
	var id *identity.Identity
	if cfg.Node.IdentityKeyFile != "" {
		if _, statErr := os.Stat(cfg.Node.IdentityKeyFile); statErr == nil {
			id, err = identity.Load(cfg.Node.IdentityKeyFile)
		} else {
			id, err = identity.Generate()
			if err == nil {
				err = id.Save(cfg.Node.IdentityKeyFile)
			}
		}
	} else {
		id, err = identity.Generate()
	}
	if err != nil {
		lgr.Error("failed to initialize identity", logger.F("err", err.Error()))
		os.Exit(1)
	}
	lgr = lgr.Named("node").With(logger.FNode("self", id.ID()))
	lgr.Info("identity ready")

	addr, err := cfg.Node.Address()
	if err != nil {
		lgr.Error("failed to resolve bind address", logger.F("err", err.Error()))
		os.Exit(1)
	}
	sessionDescriptor := "ws://" + addr + "/relay"

	shutdown := telemetry.InitTracer(cfg.Telemetry, "chordmesh-node", id.ID())
	defer func() { _ = shutdown(context.Background()) }()

	tr, err := transport.NewWebSocketTransport(addr, id, lgr.Named("transport"))
	if err != nil {
		lgr.Error("failed to start transport", logger.F("err", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = tr.Close() }()

	var resource store.Store
	if cfg.Storage.Path != "" {
		bolt, err := store.OpenBolt(cfg.Storage.Path, cfg.Storage.MaxSizeBytes)
		if err != nil {
			lgr.Error("failed to open resource store", logger.F("err", err.Error()))
			os.Exit(1)
		}
		defer func() { _ = bolt.Close() }()
		resource = bolt
	} else {
		resource = store.NewMem(cfg.Storage.MaxSizeBytes)
	}

	n := engine.New(id, cfg, lgr, tr, resource)
	n.SetSelfDescriptor(sessionDescriptor)
	lgr.Info("node initialized", logger.F("addr", addr))

	var reg bootstrap.Bootstrap
	switch cfg.Bootstrap.Mode {
	case "static":
		reg = bootstrap.NewStaticBootstrap(cfg.Bootstrap.Peers)
	case "dns":
		reg = staticFromResolver(cfg, lgr)
	case "init":
		reg = bootstrap.NewStaticBootstrap(nil)
	default:
		lgr.Error("unsupported bootstrap mode", logger.F("mode", cfg.Bootstrap.Mode))
		os.Exit(1)
	}

	var register bootstrap.Bootstrap
	if cfg.Bootstrap.Register.Enabled {
		register, err = bootstrap.NewRoute53Bootstrap(cfg.Bootstrap.Register)
		if err != nil {
			lgr.Error("failed to initialize route53 registration", logger.F("err", err.Error()))
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go n.Run(ctx)

	discoverCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	peers, err := reg.Discover(discoverCtx)
	cancel()
	if err != nil {
		lgr.Error("failed to resolve bootstrap peers", logger.F("err", err.Error()))
		os.Exit(1)
	}
	if len(peers) == 0 {
		lgr.Info("no bootstrap peers found, starting a new ring")
	} else {
		for _, p := range peers {
			joinCtx, joinCancel := context.WithTimeout(ctx, 10*time.Second)
			_, joinErr := n.Bootstrap(joinCtx, "ws://"+p+"/relay")
			joinCancel()
			if joinErr != nil {
				lgr.Warn("bootstrap peer unreachable", logger.F("peer", p), logger.F("err", joinErr.Error()))
				continue
			}
			lgr.Info("joined ring via bootstrap peer", logger.F("peer", p))
			break
		}
	}

	if register != nil {
		regCtx, regCancel := context.WithTimeout(ctx, 10*time.Second)
		err := register.Register(regCtx, id.ID(), addr)
		regCancel()
		if err != nil {
			lgr.Warn("failed to register node externally", logger.F("err", err.Error()))
		} else {
			defer func() {
				deregCtx, deregCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer deregCancel()
				if err := register.Deregister(deregCtx, id.ID(), addr); err != nil {
					lgr.Warn("failed to deregister node", logger.F("err", err.Error()))
				}
			}()
		}
	}

	n.StartMaintenance(ctx)

	rpc := jsonrpc.New(*rpcAddr, n, lgr)
	serveErr := make(chan error, 1)
	go func() { serveErr <- rpc.Start() }()
	lgr.Info("json-rpc api listening", logger.F("addr", *rpcAddr))

	select {
	case <-ctx.Done():
		lgr.Info("shutdown signal received, stopping gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rpc.Stop(shutdownCtx); err != nil {
			lgr.Warn("json-rpc shutdown timed out", logger.F("err", err.Error()))
		}
		if err := n.Close(); err != nil {
			lgr.Warn("node close failed", logger.F("err", err.Error()))
		}
	case err := <-serveErr:
		lgr.Error("json-rpc server terminated unexpectedly", logger.F("err", err.Error()))
		_ = n.Close()
		os.Exit(1)
	}
}

// staticFromResolver resolves dns-mode bootstrap peers once at startup
// into a static list (spec.md §6 treats peer discovery as a one-shot
// resolution at join time, not a standing watch).
func staticFromResolver(cfg *config.Config, lgr logger.Logger) bootstrap.Bootstrap {
	peers, err := bootstrap.ResolveBootstrap(cfg.Bootstrap, lgr)
	if err != nil {
		lgr.Error("dns bootstrap resolution failed", logger.F("err", err.Error()))
		os.Exit(1)
	}
	return bootstrap.NewStaticBootstrap(peers)
}

package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"niveshpay.org/internal/audit"
	"niveshpay.org/internal/config"
	"niveshpay.org/internal/httpapi"
	"niveshpay.org/internal/ledger"
	"niveshpay.org/internal/obs"
	"niveshpay.org/internal/store/pg"
	"niveshpay.org/internal/stream"
	"niveshpay.org/internal/wallet"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	// A routing hole must stop the process before it can post anything.
	if err := ledger.ValidateRouting(); err != nil {
		log.Fatalf("routing table: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	var (
		wallets wallet.Service
		books   ledger.Service
		probe   httpapi.ReadyProbe
		store   *pg.Store
	)
	if cfg.PGDSN != "" {
		store, err = pg.Open(cfg.PGDSN, cfg.LockTimeout)
		if err != nil {
			log.Fatalf("open store: %v", err)
		}
		wallets = store
		books = store
		probe = httpapi.ReadyProbe{DB: store.DB()}
	} else {
		led := ledger.NewInMemory()
		wallets = wallet.NewInMemory(led)
		books = led
		log.Println("NIVESH_PG_DSN not set, using in-memory store")
	}

	checker := wallet.Checker{Ledger: books}
	if t, ok := wallets.(wallet.Totaler); ok {
		checker.Wallets = t
	}
	events := stream.New()

	api := httpapi.New(probe, version, wallets, books, checker, events)
	api.SetRateLimit(cfg.RateBurst, int(cfg.RatePerSecond))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting niveshpay-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// Optional gRPC health endpoint for orchestrators that probe gRPC.
	var grpcSrv *grpc.Server
	healthSrv := health.NewServer()
	if cfg.GRPCHealthAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCHealthAddr)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		grpcSrv = grpc.NewServer()
		healthpb.RegisterHealthServer(grpcSrv, healthSrv)
		healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		go func() {
			if err := grpcSrv.Serve(lis); err != nil {
				log.Fatalf("grpc serve: %v", err)
			}
		}()
		log.Printf("gRPC health on %s", cfg.GRPCHealthAddr)
	}
	obs.SetReady(true)

	// Background invariant verification.
	invariantCtx, stopInvariant := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(cfg.InvariantInterval)
		defer ticker.Stop()
		for {
			select {
			case <-invariantCtx.Done():
				return
			case <-ticker.C:
				report, err := checker.Verify(invariantCtx)
				if err != nil {
					log.Printf("invariant check: %v", err)
					continue
				}
				obs.SetInvariant(report.Holds, int64(report.WalletTotal), int64(report.LedgerTotal))
				if !report.Holds {
					_ = audit.LogInvariantBreach(invariantCtx, report.WalletTotal, report.LedgerTotal)
				}
			}
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)
	stopInvariant()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if grpcSrv != nil {
		healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		grpcSrv.GracefulStop()
	}
	if store != nil {
		_ = store.Close()
	}
	log.Println("Stopped")
}

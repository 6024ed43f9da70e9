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

	"krona.org/internal/account"
	"krona.org/internal/httpapi"
	"krona.org/internal/obs"
	"krona.org/internal/store/memory"
	"krona.org/internal/store/pg"
	"krona.org/internal/stream"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

const refreshInterval = 30 * time.Second

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	// Store selection: Postgres when a DSN is configured, in-memory otherwise.
	var (
		store   account.Store
		pgStore *pg.Store
	)
	if dsn := os.Getenv("KRONA_PG_DSN"); dsn != "" {
		var err error
		pgStore, err = pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		store = pgStore
	} else {
		log.Println("KRONA_PG_DSN not set, using in-memory store")
		store = memory.New()
	}

	events := stream.New()
	svc, err := account.NewService(store, account.WithEvents(events))
	if err != nil {
		log.Fatalf("account service: %v", err)
	}
	if err := svc.Refresh(context.Background()); err != nil {
		log.Printf("initial snapshot refresh: %v", err)
	}
	obs.SetSnapshotSize(svc.Graph().Len())

	probe := httpapi.ReadyProbe{}
	if pgStore != nil {
		probe.DB = pgStore.DB()
	}
	api := httpapi.New(probe, version, svc, events)

	handler := httpapi.Logging(
		httpapi.SecurityHeaders(
			httpapi.CORS(
				httpapi.MaxBodyBytes(
					httpapi.RateLimit(api.Handler(), 20, 10),
					1<<20,
				),
			),
		),
	)

	addr := os.Getenv("KRONA_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Keep the snapshot converging even when no mutation goes through this
	// process: other clients write to the same store.
	refreshCtx, stopRefresh := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-refreshCtx.Done():
				return
			case <-ticker.C:
				if err := svc.Refresh(refreshCtx); err != nil {
					log.Printf("snapshot refresh: %v", err)
					continue
				}
				obs.SetSnapshotSize(svc.Graph().Len())
			}
		}
	}()

	var stopHealth func()
	if grpcAddr := os.Getenv("KRONA_GRPC_ADDR"); grpcAddr != "" {
		grpcSrv, stop := httpapi.NewGRPCServer(probe, 10*time.Second)
		stopHealth = stop
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		go func() {
			if err := grpcSrv.Serve(lis); err != nil {
				log.Printf("grpc serve: %v", err)
			}
		}()
		defer grpcSrv.GracefulStop()
	}

	log.Printf("Starting krona-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	stopRefresh()
	if stopHealth != nil {
		stopHealth()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}

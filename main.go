package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MJE43/fruit-merge-go/internal/anticheat"
	"github.com/MJE43/fruit-merge-go/internal/api"
	"github.com/MJE43/fruit-merge-go/internal/oracle"
	"github.com/MJE43/fruit-merge-go/internal/session"
	"github.com/MJE43/fruit-merge-go/internal/sim"
	"github.com/MJE43/fruit-merge-go/internal/store"
)

func main() {
	var (
		addr     = flag.String("addr", envStr("FRUIT_MERGE_ADDR", ":8080"), "HTTP listen address")
		dbPath   = flag.String("db", envStr("FRUIT_MERGE_DB", "fruit_merge.db"), "SQLite database path")
		entryFee = flag.Int64("entry-fee", 100, "session entry fee in smallest currency units")
		secret   = flag.String("ownership-secret", os.Getenv("FRUIT_MERGE_OWNERSHIP_SECRET"), "shared secret for ownership proofs")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[MAIN] ", log.LstdFlags)
	logger.Printf("starting fruit-merge server version=%s addr=%s db=%s", api.EngineVersion, *addr, *dbPath)

	if *secret == "" {
		logger.Fatal("ownership secret is required (flag -ownership-secret or FRUIT_MERGE_OWNERSHIP_SECRET)")
	}

	db, err := store.NewSQLiteDB(*dbPath)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		logger.Fatalf("migrate database: %v", err)
	}

	host := session.NewHost(
		sim.DefaultConfig(),
		anticheat.DefaultConfig(),
		session.NewMemoryRegistry(),
		db,
	)

	server := api.NewServer(
		host,
		db,
		oracle.NewHMACSignatureOracle(*secret),
		oracle.AcceptAllPayments{},
		api.BareLoadout{},
		*entryFee,
	)

	httpServer := &http.Server{
		Addr:         *addr,
		Handler:      server.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // websocket streams outlive any fixed write deadline
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s", *addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	case <-ctx.Done():
		logger.Println("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("graceful shutdown failed: %v", err)
		}
	}

	logger.Println("server stopped")
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

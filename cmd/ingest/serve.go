package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"omnichannel-support/internal/db"
	"omnichannel-support/internal/intake"
	ticketrepo "omnichannel-support/internal/ticket/repository"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP intake (web form, email and chat webhooks)",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, pub, err := newPublisher()
	if err != nil {
		return err
	}
	defer pub.Close()

	var handler *intake.Handler
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer conn.Close()
		handler = intake.NewHandler(pub, cfg.TopicIncoming, ticketrepo.NewPostgresRepository(conn))
	} else {
		log.Println("ingest: DATABASE_URL not set; ticket actions disabled")
		handler = intake.NewHandler(pub, cfg.TopicIncoming, nil)
	}

	srv := &http.Server{
		Addr:              cfg.IntakeAddr,
		Handler:           intake.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("ingest: HTTP intake listening on %s", cfg.IntakeAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Println("ingest: shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/seanmcnab/habitd/internal/database"
	"github.com/seanmcnab/habitd/internal/logging"
	"github.com/seanmcnab/habitd/internal/notify"
	"github.com/seanmcnab/habitd/internal/server"
)

func main() {
	genKeys := flag.Bool("generate-vapid-keys", false, "print a fresh VAPID key pair and exit")
	flag.Parse()

	if *genKeys {
		pub, priv, err := notify.GenerateVAPIDKeys()
		if err != nil {
			log.Fatalf("generate VAPID keys: %v", err)
		}
		fmt.Printf("HABITD_VAPID_PUBLIC_KEY=%s\nHABITD_VAPID_PRIVATE_KEY=%s\n", pub, priv)
		return
	}

	port := os.Getenv("HABITD_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("HABITD_DB_PATH")
	if dbPath == "" {
		dbPath = "habitd.db"
	}

	logger := logging.Setup(os.Getenv("HABITD_LOG_LEVEL"), os.Getenv("HABITD_LOG_FORMAT"))

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	pushCfg := notify.Config{
		VAPIDPublicKey:  os.Getenv("HABITD_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("HABITD_VAPID_PRIVATE_KEY"),
	}

	srv, err := server.New(db, pushCfg, logger)
	if err != nil {
		log.Fatalf("failed to initialize server: %v", err)
	}
	srv.StartScheduler()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("habitd running", "addr", "http://localhost:"+port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	srv.StopScheduler()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}

package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"

	"go.temporal.io/sdk/client"

	"github.com/ansg191/deepdoc-vision/internal/webhook"
	"github.com/ansg191/deepdoc-vision/internal/workflows"
)

func main() {
	temporalAddress := os.Getenv("TEMPORAL_ADDRESS")
	if temporalAddress == "" {
		temporalAddress = client.DefaultHostPort
	}

	tc, err := client.Dial(client.Options{
		HostPort: temporalAddress,
	})
	if err != nil {
		log.Fatalf("failed to create temporal client: %v", err)
	}
	defer tc.Close()

	webhookSecret := os.Getenv("INGEST_WEBHOOK_SECRET")
	if webhookSecret == "" {
		log.Fatal("INGEST_WEBHOOK_SECRET environment variable is required")
	}

	handler := webhook.NewHandler(tc, webhookSecret, workflows.DescribeImagesRequest{
		Model:    os.Getenv("INGEST_MODEL"),
		Prompt:   os.Getenv("INGEST_PROMPT"),
		Language: os.Getenv("INGEST_LANG"),
	})

	mux := http.NewServeMux()
	mux.Handle("/webhook", handler)
	mux.HandleFunc("/health", healthHandler)

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	slog.Info("starting server", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

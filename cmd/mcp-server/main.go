package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ansg191/deepdoc-vision/internal/imagesource"
	"github.com/ansg191/deepdoc-vision/internal/mcpserver"
)

var version = "dev"

func main() {
	httpAddr := flag.String("http", "", "serve streamable HTTP on this address instead of stdio")
	baseDir := flag.String("image-dir", os.Getenv("IMAGE_BASE_DIR"), "only read local images under this directory")
	flag.Parse()

	// stdout carries the stdio protocol
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	server, err := mcpserver.New(version, mcpserver.DefaultModelFactory, imagesource.NewDefaultResolver(*baseDir))
	if err != nil {
		log.Fatalln("Unable to create mcp server", err)
	}

	if *httpAddr == "" {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
			log.Fatalln("mcp server failed", err)
		}
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil))
	mux.HandleFunc("/health", healthHandler)

	slog.Info("starting server", "addr", *httpAddr)
	if err := http.ListenAndServe(*httpAddr, mux); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

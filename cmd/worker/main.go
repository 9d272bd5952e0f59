package main

import (
	"log"
	"log/slog"
	"os"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/ansg191/deepdoc-vision/internal/activities"
	"github.com/ansg191/deepdoc-vision/internal/usage"
	"github.com/ansg191/deepdoc-vision/internal/workflows"
)

func main() {
	acts := &activities.Activities{}
	if os.Getenv("DATABASE_URL") != "" {
		if err := usage.EnsureMigrations(); err != nil {
			log.Fatalln("Unable to ensure database migrations", err)
		}
		rec, err := usage.NewPostgresRecorder()
		if err != nil {
			log.Fatalln("Unable to open usage ledger", err)
		}
		defer rec.Close()
		acts.Usage = rec
	} else {
		slog.Info("DATABASE_URL not set, usage ledger disabled")
	}

	c, err := client.Dial(client.Options{HostPort: temporalAddress()})
	if err != nil {
		log.Fatalln("Unable to create client", err)
	}
	defer c.Close()

	w := worker.New(c, workflows.TaskQueue, worker.Options{})

	w.RegisterWorkflow(workflows.DescribeImagesWorkflow)
	w.RegisterActivity(acts)

	err = w.Run(worker.InterruptCh())
	if err != nil {
		log.Fatalln("Unable to start worker", err)
	}
}

func temporalAddress() string {
	if addr := os.Getenv("TEMPORAL_ADDRESS"); addr != "" {
		return addr
	}
	return client.DefaultHostPort
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"

	"go.temporal.io/sdk/client"

	"github.com/ansg191/deepdoc-vision/internal/workflows"
)

func main() {
	model := flag.String("model", "", "provider, provider/model or config file path (default: worker environment)")
	prompt := flag.String("prompt", "", "custom description prompt")
	lang := flag.String("lang", "", "output language")
	flag.Parse()

	if flag.NArg() == 0 {
		log.Fatalln("usage: start [flags] s3://bucket/key ...")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	addr := os.Getenv("TEMPORAL_ADDRESS")
	if addr == "" {
		addr = client.DefaultHostPort
	}
	c, err := client.Dial(client.Options{HostPort: addr})
	if err != nil {
		log.Fatalln("Unable to create client", err)
	}
	defer c.Close()

	options := client.StartWorkflowOptions{
		TaskQueue: workflows.TaskQueue,
	}

	log.Println("Starting workflow for", flag.NArg(), "images")
	we, err := c.ExecuteWorkflow(
		ctx,
		options,
		workflows.DescribeImagesWorkflow,
		workflows.DescribeImagesRequest{
			Model:    *model,
			Prompt:   *prompt,
			Language: *lang,
			Images:   flag.Args(),
		},
	)
	if err != nil {
		log.Fatalln("Unable to execute workflow", err)
	}
	log.Println("Started workflow", "WorkflowID", we.GetID(), "RunID", we.GetRunID())

	var result workflows.DescribeImagesResult
	err = we.Get(ctx, &result)
	if err != nil {
		log.Fatalln("Unable get workflow result", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		log.Fatalln("Unable to write result", err)
	}
}

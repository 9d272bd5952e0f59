package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ansg191/deepdoc-vision/internal/config"
	"github.com/ansg191/deepdoc-vision/internal/imagesource"
	"github.com/ansg191/deepdoc-vision/internal/llm"
	"github.com/ansg191/deepdoc-vision/internal/resource"
	"github.com/ansg191/deepdoc-vision/internal/usage"
)

type options struct {
	images      *imagesource.Resolver
	prompt      string
	lang        llm.Language
	stream      bool
	concurrency int
}

func main() {
	cfgRef := flag.String("config", "", "provider, provider/model or config file path (default: DEEPDOC_VISION_* environment)")
	prompt := flag.String("prompt", "", "custom description prompt")
	lang := flag.String("lang", "", "output language (overrides the config)")
	stream := flag.Bool("stream", false, "stream the answer as it is generated")
	concurrency := flag.Int("j", 4, "number of images described in parallel")
	resourceDir := flag.String("resources", "", "download tokenizer resources into this directory before describing")
	listUsage := flag.Int("usage", 0, "print the N most recent usage records and exit")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *listUsage > 0 {
		if err := printUsage(ctx, os.Stdout, *listUsage); err != nil {
			log.Fatalln("Unable to list usage records", err)
		}
		return
	}
	if flag.NArg() == 0 {
		log.Fatalln("usage: describe [flags] path|url ...")
	}

	if *resourceDir != "" {
		if err := ensureResources(ctx, *resourceDir); err != nil {
			log.Fatalln(err)
		}
	}

	cfg, err := resolveConfig(*cfgRef, *lang)
	if err != nil {
		log.Fatalln("Unable to resolve config", err)
	}
	model, closeLedger, err := newModel(cfg)
	if err != nil {
		log.Fatalln("Unable to create model", err)
	}
	defer closeLedger()

	opts := options{images: imagesource.NewDefaultResolver(""), prompt: *prompt, lang: cfg.Language, stream: *stream, concurrency: *concurrency}
	if err := run(ctx, os.Stdout, model, flag.Args(), opts); err != nil {
		log.Fatalln(err)
	}
}

func resolveConfig(ref, lang string) (llm.Config, error) {
	var input any
	if ref != "" {
		input = ref
	}
	cfg, err := config.Resolve(input)
	if err != nil {
		return llm.Config{}, err
	}
	if lang != "" {
		cfg.Language = llm.ParseLanguage(lang)
	}
	return cfg, nil
}

func newModel(cfg llm.Config) (llm.Model, func(), error) {
	model, err := llm.New(cfg)
	if err != nil {
		return nil, nil, err
	}

	if os.Getenv("DATABASE_URL") == "" {
		return model, func() {}, nil
	}
	rec, err := usage.NewPostgresRecorder()
	if err != nil {
		slog.Warn("usage ledger unavailable, not recording", "error", err)
		return model, func() {}, nil
	}
	return usage.Wrap(model, rec), func() { _ = rec.Close() }, nil
}

func ensureResources(ctx context.Context, dir string) error {
	var fetcher resource.Fetcher = &resource.HTTPFetcher{}
	if bucket := os.Getenv("RESOURCE_BUCKET"); bucket != "" {
		client, err := resource.NewS3Client(ctx)
		if err != nil {
			return err
		}
		fetcher = &resource.S3Fetcher{Client: client, Bucket: bucket, Prefix: os.Getenv("RESOURCE_PREFIX")}
	}
	return resource.NewEnsurer(dir, fetcher).EnsureAll(ctx, resource.Punkt, resource.Wordnet)
}

// run describes every input and writes the answers to w in input order.
// A failed description is printed like any other answer; run only fails
// when an input cannot be read.
func run(ctx context.Context, w io.Writer, model llm.Model, inputs []string, opts options) error {
	if opts.stream {
		for _, in := range inputs {
			if err := streamOne(ctx, w, model, in, opts, len(inputs)); err != nil {
				return err
			}
		}
		return nil
	}

	results := make([]llm.Result, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.concurrency, 1))
	for i, in := range inputs {
		g.Go(func() error {
			data, err := opts.images.Resolve(gctx, in)
			if err != nil {
				return fmt.Errorf("read %s: %w", in, err)
			}
			results[i] = model.DescribeWithPrompt(gctx, llm.ImageBytes(data), opts.prompt)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, in := range inputs {
		writeHeader(w, in, len(inputs))
		fmt.Fprintln(w, results[i].Text)
		slog.Debug("described image", "input", in, "usage", results[i].Usage)
	}
	return nil
}

func streamOne(ctx context.Context, w io.Writer, model llm.Model, in string, opts options, n int) error {
	data, err := opts.images.Resolve(ctx, in)
	if err != nil {
		return fmt.Errorf("read %s: %w", in, err)
	}
	prompt := opts.prompt
	if prompt == "" {
		prompt = llm.DefaultPrompt(opts.lang)
	}

	writeHeader(w, in, n)
	var printed string
	history := []llm.Turn{llm.UserTurn(prompt)}
	for ev := range model.ChatStream(ctx, "", history, llm.GenerationOptions{}, llm.ImageBytes(data)) {
		switch ev.Kind {
		case llm.EventText:
			fmt.Fprint(w, strings.TrimPrefix(ev.Text, printed))
			printed = ev.Text
		case llm.EventUsage:
			slog.Debug("described image", "input", in, "usage", ev.Tokens)
		case llm.EventEnd:
			fmt.Fprintln(w)
		}
	}
	return nil
}

func writeHeader(w io.Writer, in string, n int) {
	if n > 1 {
		fmt.Fprintf(w, "==> %s <==\n", in)
	}
}

func printUsage(ctx context.Context, w io.Writer, limit int) error {
	rec, err := usage.NewPostgresRecorder()
	if err != nil {
		return err
	}
	defer rec.Close()

	records, err := rec.ListRecords(ctx, limit)
	if err != nil {
		return err
	}
	for _, r := range records {
		status := "ok"
		if r.Failed {
			status = "failed"
		}
		fmt.Fprintf(w, "%s\t%s/%s\t%s\t%d\t%s\n",
			r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), r.Provider, r.Model, r.Operation, r.Tokens, status)
	}
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	logpkg "github.com/Eddie-Kan/research-archive-website-sub001/internal/logger"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/version"
	"github.com/Eddie-Kan/research-archive-website-sub001/pkg/archive"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "archivectl",
		Usage:   "Query the archive search index built from a seed file",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "seed",
				Aliases: []string{"s"},
				Usage:   "Path to the YAML seed file",
				Value:   "config/seed.yaml",
				EnvVars: []string{"ARCHIVE_SEED"},
			},
			&cli.StringFlag{
				Name:  "driver",
				Usage: "Embedding store driver (memory, redis, badger)",
				Value: "memory",
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "Redis address for the redis driver",
				Value:   "localhost:6379",
				EnvVars: []string{"REDIS_ADDR"},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password for the redis driver",
				EnvVars: []string{"REDIS_PASSWORD"},
			},
			&cli.StringFlag{
				Name:  "badger-path",
				Usage: "Database directory for the badger driver",
				Value: "data/embeddings",
			},
			&cli.IntFlag{
				Name:  "dimensions",
				Usage: "Dimensions of the local hash embedder",
				Value: 256,
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "search",
				Usage:  "Run a keyword search",
				Action: searchCommand,
				Flags: append(queryFlags(),
					&cli.StringFlag{Name: "sort", Usage: "Sort order (relevance, date)"},
				),
			},
			{
				Name:   "semantic",
				Usage:  "Run a semantic search",
				Action: semanticCommand,
				Flags: append(queryFlags(),
					&cli.Float64Flag{Name: "threshold", Usage: "Minimum cosine similarity, 0 to 1"},
				),
			},
			{
				Name:   "status",
				Usage:  "Show semantic index status",
				Action: statusCommand,
			},
			{
				Name:   "health",
				Usage:  "Check store, embedding and index health",
				Action: healthCommand,
			},
		},
	}
}

func queryFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "q", Usage: "Query text", Required: true},
		&cli.StringFlag{Name: "type", Usage: "Entity type filter"},
		&cli.StringFlag{Name: "status", Usage: "Entity status filter"},
		&cli.StringSliceFlag{Name: "visibility", Usage: "Visibility filter (public, private)"},
		&cli.StringSliceFlag{Name: "tag", Usage: "Required tag, repeatable"},
		&cli.StringFlag{Name: "from", Usage: "Updated on or after (RFC3339 or YYYY-MM-DD)"},
		&cli.StringFlag{Name: "to", Usage: "Updated on or before (RFC3339 or YYYY-MM-DD)"},
		&cli.IntFlag{Name: "page", Usage: "Page number, from 1"},
		&cli.IntFlag{Name: "limit", Usage: "Results per page or top-K"},
		&cli.BoolFlag{Name: "authorized", Usage: "Search as an authorized caller"},
	}
}

func searchCommand(c *cli.Context) error {
	q, err := queryFromFlags(c)
	if err != nil {
		return err
	}
	q.Sort = c.String("sort")

	return withClient(c, func(ctx context.Context, client *archive.Client) error {
		page, err := client.KeywordSearch(ctx, q, c.Bool("authorized"))
		if err != nil {
			return fmt.Errorf("keyword search: %w", err)
		}
		return writeJSON(c.App.Writer, page)
	})
}

func semanticCommand(c *cli.Context) error {
	q, err := queryFromFlags(c)
	if err != nil {
		return err
	}
	if c.IsSet("threshold") {
		th := c.Float64("threshold")
		q.Threshold = &th
	}

	return withClient(c, func(ctx context.Context, client *archive.Client) error {
		page, err := client.SemanticSearch(ctx, q, c.Bool("authorized"))
		if err != nil {
			return fmt.Errorf("semantic search: %w", err)
		}
		return writeJSON(c.App.Writer, page)
	})
}

func statusCommand(c *cli.Context) error {
	return withClient(c, func(ctx context.Context, client *archive.Client) error {
		return writeJSON(c.App.Writer, client.SemanticStatus(ctx))
	})
}

func healthCommand(c *cli.Context) error {
	return withClient(c, func(ctx context.Context, client *archive.Client) error {
		return writeJSON(c.App.Writer, client.Health(ctx))
	})
}

// withClient opens a client, indexes the seed file and waits for embeddings
// before handing the client to fn.
func withClient(c *cli.Context, fn func(ctx context.Context, client *archive.Client) error) error {
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := logpkg.New("dev", c.String("log-level"))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	opts, err := storeOptions(c)
	if err != nil {
		return err
	}
	opts = append(opts,
		archive.WithHashEmbedder(c.Int("dimensions")),
		archive.WithLogger(logger),
	)

	client, err := archive.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer client.Close()

	entities, err := archive.LoadSeed(c.String("seed"))
	if err != nil {
		return err
	}
	if err := client.Bootstrap(ctx, entities); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if err := client.Drain(ctx); err != nil {
		return fmt.Errorf("wait for embeddings: %w", err)
	}
	logger.Debug("Seed indexed", zap.Int("entities", len(entities)))

	return fn(ctx, client)
}

func storeOptions(c *cli.Context) ([]archive.Option, error) {
	switch d := c.String("driver"); d {
	case "memory":
		return []archive.Option{archive.WithMemory()}, nil
	case "redis":
		return []archive.Option{archive.WithRedis(c.String("redis-addr"), c.String("redis-password"))}, nil
	case "badger":
		return []archive.Option{archive.WithBadger(c.String("badger-path"))}, nil
	default:
		return nil, fmt.Errorf("unknown driver %q", d)
	}
}

func queryFromFlags(c *cli.Context) (archive.Query, error) {
	q := archive.Query{
		Text:       c.String("q"),
		Type:       c.String("type"),
		Status:     c.String("status"),
		Visibility: c.StringSlice("visibility"),
		Tags:       c.StringSlice("tag"),
		Page:       c.Int("page"),
		Limit:      c.Int("limit"),
	}

	var err error
	if q.DateFrom, err = parseDate(c.String("from")); err != nil {
		return q, fmt.Errorf("--from: %w", err)
	}
	if q.DateTo, err = parseDate(c.String("to")); err != nil {
		return q, fmt.Errorf("--to: %w", err)
	}
	return q, nil
}

// parseDate accepts RFC3339 or a bare date. Empty input means no bound.
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q", s)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/example/go-cdse/cdse"
	"github.com/example/go-cdse/cdse/download"
)

func main() {
	logger := newLogger()

	root := &cli.Command{
		Name:    "cdsecli",
		Usage:   "Query the Copernicus Data Space OData catalogue and download Sentinel products",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "base-url",
				Usage:   "Override the catalogue base URL",
				Sources: cli.EnvVars("CDSE_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Provide a bearer token for authenticated requests",
				Sources: cli.EnvVars("CDSE_TOKEN"),
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("verbose") {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			newSearchCommand(&logger),
			newFilterCommand(),
			newProductsCommand(),
			newDownloadCommand(&logger),
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		logger.Fatal().Err(err).Msg("command failed")
	}
}

func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger()
}

func queryFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "product",
			Usage:    "Product configuration key (see the products command)",
			Aliases:  []string{"p"},
			Required: true,
		},
		&cli.FloatFlag{Name: "west", Usage: "Western bound in decimal degrees"},
		&cli.FloatFlag{Name: "south", Usage: "Southern bound in decimal degrees"},
		&cli.FloatFlag{Name: "east", Usage: "Eastern bound in decimal degrees"},
		&cli.FloatFlag{Name: "north", Usage: "Northern bound in decimal degrees"},
		&cli.StringFlag{Name: "start", Usage: "Start date (2006-01-02)", Required: true},
		&cli.StringFlag{Name: "end", Usage: "End date (2006-01-02)", Required: true},
		&cli.StringFlag{Name: "tile", Usage: "MGRS tile identifier (Sentinel-2 only, e.g. T32TPS)"},
	}
}

func newSearchCommand(logger *zerolog.Logger) *cli.Command {
	flags := append(queryFlags(),
		&cli.IntFlag{
			Name:  "max-results",
			Usage: "Limit the number of accumulated products (0 for all)",
		},
		&cli.StringFlag{
			Name:  "format",
			Usage: "Output format (table, json, paths or detailed)",
			Value: "table",
		},
		&cli.StringFlag{
			Name:    "output",
			Usage:   "Write the result to a file instead of stdout",
			Aliases: []string{"o"},
		},
	)
	return &cli.Command{
		Name:  "search",
		Usage: "Execute a catalogue query",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return executeSearch(ctx, cmd, logger)
		},
	}
}

func executeSearch(ctx context.Context, cmd *cli.Command, logger *zerolog.Logger) error {
	req, err := buildRequest(cmd)
	if err != nil {
		return err
	}
	req.MaxResults = cmd.Int("max-results")
	logger.Debug().Str("filter", req.Filter()).Msg("built odata filter")

	client := buildClient(cmd)
	sink := cdse.ProgressFunc(func(message string) {
		logger.Info().Msg(message)
	})

	products, err := client.Search(ctx, req, sink)
	if err != nil {
		if errors.Is(err, cdse.ErrEmptyBoundingBox) {
			return fmt.Errorf("please specify a valid bounding box (west/south/east/north)")
		}
		return fmt.Errorf("search: %w", err)
	}

	summaries := cdse.Summarize(products)
	if len(summaries) == 0 {
		fmt.Fprintln(os.Stdout, "No products found.")
		return nil
	}

	stats := cdse.Stats(summaries)
	event := logger.Info().
		Int("products", stats.Count).
		Int("online", stats.OnlineCount).
		Str("total_size_gb", fmt.Sprintf("%.2f", float64(stats.TotalBytes)/(1024*1024*1024)))
	if !stats.Earliest.IsZero() {
		event = event.
			Str("earliest", stats.Earliest.Format("2006-01-02")).
			Str("latest", stats.Latest.Format("2006-01-02"))
	}
	event.Msg("query complete")

	out := io.Writer(os.Stdout)
	if path := strings.TrimSpace(cmd.String("output")); path != "" {
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer file.Close()
		out = file
	}

	switch format := strings.ToLower(strings.TrimSpace(cmd.String("format"))); format {
	case "table":
		printSummaryTable(out, summaries)
	case "json":
		return writeJSON(out, summaries)
	case "paths":
		fmt.Fprintln(out, cdse.FormatPaths(summaries))
	case "detailed":
		fmt.Fprint(out, cdse.FormatDetailed(summaries))
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
	return nil
}

func newFilterCommand() *cli.Command {
	return &cli.Command{
		Name:  "filter",
		Usage: "Print the OData filter a query would use, without executing it",
		Flags: queryFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			req, err := buildRequest(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, req.Filter())
			return nil
		},
	}
}

func newProductsCommand() *cli.Command {
	return &cli.Command{
		Name:  "products",
		Usage: "List the supported product configurations",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tNAME\tCOLLECTION\tTYPE\tINSTRUMENT\tTILED\tDESCRIPTION")
			for _, cfg := range cdse.ProductConfigs() {
				tiled := "no"
				if cfg.RequiresTile {
					tiled = "yes"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					cfg.Key, cfg.Name, cfg.Collection, cfg.ProductType, cfg.Instrument, tiled, cfg.Description)
			}
			return tw.Flush()
		},
	}
}

func newDownloadCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:      "download",
		Usage:     "Download products from the eodata object store by storage path",
		ArgsUsage: "[paths...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "paths-file",
				Usage: "Read storage paths from a file (one per line, as produced by search --format paths)",
			},
			&cli.StringFlag{
				Name:    "dest",
				Usage:   "Destination directory",
				Aliases: []string{"d"},
				Value:   ".",
			},
			&cli.StringFlag{
				Name:    "access-key",
				Usage:   "eodata S3 access key",
				Sources: cli.EnvVars("CDSE_S3_ACCESS_KEY"),
			},
			&cli.StringFlag{
				Name:    "secret-key",
				Usage:   "eodata S3 secret key",
				Sources: cli.EnvVars("CDSE_S3_SECRET_KEY"),
			},
			&cli.StringFlag{
				Name:    "endpoint",
				Usage:   "eodata S3 endpoint",
				Value:   download.DefaultEndpoint,
				Sources: cli.EnvVars("CDSE_S3_ENDPOINT"),
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Number of objects to fetch in parallel",
				Value: 4,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return executeDownload(ctx, cmd, logger)
		},
	}
}

func executeDownload(ctx context.Context, cmd *cli.Command, logger *zerolog.Logger) error {
	paths := append([]string(nil), cmd.Args().Slice()...)
	if file := strings.TrimSpace(cmd.String("paths-file")); file != "" {
		fromFile, err := readPathsFile(file)
		if err != nil {
			return err
		}
		paths = append(paths, fromFile...)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no storage paths supplied; pass them as arguments or via --paths-file")
	}

	mgr := download.NewManager(download.Config{
		Endpoint: cmd.String("endpoint"),
		Credentials: download.Credentials{
			AccessKeyID:     strings.TrimSpace(cmd.String("access-key")),
			SecretAccessKey: strings.TrimSpace(cmd.String("secret-key")),
		},
		Concurrency: cmd.Int("concurrency"),
		Progress: func(p download.FileProgress) {
			if p.Total > 0 && p.Downloaded >= p.Total {
				logger.Info().Str("file", p.FileName).Int64("bytes", p.Downloaded).Msg("downloaded")
			}
		},
	})

	dest := cmd.String("dest")
	for _, path := range paths {
		logger.Info().Str("path", path).Msg("downloading product")
		if err := mgr.Download(ctx, path, dest); err != nil {
			return fmt.Errorf("download %s: %w", path, err)
		}
	}
	return nil
}

func buildRequest(cmd *cli.Command) (cdse.QueryRequest, error) {
	key := strings.TrimSpace(cmd.String("product"))
	cfg, ok := cdse.LookupProduct(key)
	if !ok {
		return cdse.QueryRequest{}, fmt.Errorf("unknown product %q; run the products command for the supported keys", key)
	}

	start, err := parseDateFlag(cmd, "start")
	if err != nil {
		return cdse.QueryRequest{}, err
	}
	end, err := parseDateFlag(cmd, "end")
	if err != nil {
		return cdse.QueryRequest{}, err
	}

	return cdse.QueryRequest{
		Config: cfg,
		BBox: cdse.BoundingBox{
			West:  cmd.Float("west"),
			South: cmd.Float("south"),
			East:  cmd.Float("east"),
			North: cmd.Float("north"),
		},
		Dates: cdse.DateRange{Start: start, End: end},
		Tile:  strings.TrimSpace(cmd.String("tile")),
	}, nil
}

func buildClient(cmd *cli.Command) *cdse.Client {
	var opts []cdse.Option
	root := cmd.Root()
	if baseURL := strings.TrimSpace(root.String("base-url")); baseURL != "" {
		opts = append(opts, cdse.WithBaseURL(baseURL))
	}
	if token := strings.TrimSpace(root.String("token")); token != "" {
		opts = append(opts, cdse.WithAuthToken(token))
	}
	return cdse.NewClient(opts...)
}

func parseDateFlag(cmd *cli.Command, name string) (time.Time, error) {
	value := strings.TrimSpace(cmd.String(name))
	if value == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", name, err)
	}
	return parsed, nil
}

func writeJSON(w io.Writer, summaries []cdse.ProductSummary) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(summaries)
}

func printSummaryTable(w io.Writer, summaries []cdse.ProductSummary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tDATE\tSIZE (MB)\tONLINE\tPATH")
	for i, summary := range summaries {
		date := "N/A"
		if !summary.Acquisition.IsZero() {
			date = summary.Acquisition.Format("2006-01-02 15:04:05")
		}
		online := "no"
		if summary.Online {
			online = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\t%s\t%s\n",
			i+1, summary.Name, date, summary.SizeMB, online, summary.S3Path)
	}
	tw.Flush()
}

func readPathsFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open paths file: %w", err)
	}
	defer file.Close()

	var paths []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			paths = append(paths, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read paths file: %w", err)
	}
	return paths, nil
}

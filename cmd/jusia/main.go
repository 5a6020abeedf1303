package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hyperifyio/jusia/internal/app"
	"github.com/hyperifyio/jusia/internal/extract"
	"github.com/hyperifyio/jusia/internal/llm"
	"github.com/hyperifyio/jusia/internal/report"
	"github.com/hyperifyio/jusia/internal/repository"
)

var version = "dev"

var (
	cfg      app.Config
	envFiles []string
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("command failed")
		stop()
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	cfg = app.Config{}
	root := &cobra.Command{
		Use:     "jusia",
		Short:   "Extract PJe court documents and analyze them with an LLM",
		Version: version,
		Long: `jusia reads the document open in a PJe page (a Chrome tab, a URL, a saved
HTML file or stdin), extracts its text, lists the document identifiers the
page references, fetches documents from a configured repository and sends
them to an LLM provider for legal analysis.`,
		Example: `  # Extract the document shown in the active Chrome tab
  jusia --browser.control 127.0.0.1:9222 extract

  # Extract saved pages concurrently as Markdown
  jusia extract -f markdown processo1.html processo2.html

  # Analyze a repository document with Anthropic and save a PDF report
  jusia analyze --hash 3f2a9c --provider anthropic -o parecer.pdf`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig()
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&cfg.ConfigPath, "config", "", "Path to a YAML or JSON config file")
	f.StringSliceVar(&envFiles, "env-file", []string{".env"}, "Dotenv files loaded before reading the environment")
	f.StringVar(&cfg.LLMProvider, "provider", "", "LLM provider ("+strings.Join(llm.Names(), ", ")+")")
	f.StringVar(&cfg.LLMModel, "model", "", "Model name (defaults to the provider's model)")
	f.StringVar(&cfg.LLMAPIKey, "key", "", "API key for the LLM provider")
	f.StringVar(&cfg.LLMBaseURL, "llm.base", "", "Provider server root, for proxies and local stubs")
	f.StringVar(&cfg.VertexProject, "vertex.project", "", "Google Cloud project for the vertex provider")
	f.StringVar(&cfg.VertexRegion, "vertex.region", "", "Vertex AI region")
	f.StringVar(&cfg.StoreDir, "store.dir", "", "Directory holding saved configuration")
	f.BoolVar(&cfg.StoreStrictPerms, "store.strictPerms", false, "Also tighten an existing store dir to 0700")
	f.StringVar(&cfg.BrowserControlURL, "browser.control", "", "DevTools address of a running Chrome, e.g. 127.0.0.1:9222")
	f.BoolVar(&cfg.UseBrowser, "browser", false, "Load URLs in Chrome instead of plain HTTP")
	f.BoolVar(&cfg.BrowserShow, "browser.show", false, "Show the browser window when launching Chrome")
	f.StringVar(&cfg.ProxyURL, "proxy", os.Getenv("JUSIA_PROXY"), "Proxy URL for HTTP and the browser")
	f.DurationVar(&cfg.HTTPTimeout, "timeout", 0, "Per-request timeout (default 60s)")
	f.IntVarP(&cfg.Concurrency, "concurrency", "j", 0, "Parallel extractions and page fetches (default 4)")
	f.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Verbose logging")

	root.AddCommand(
		newExtractCmd(out),
		newScanCmd(out),
		newFetchCmd(out),
		newConfigCmd(out),
		newAnalyzeCmd(out),
		newServeCmd(),
	)
	return root
}

// loadConfig layers flags, then the config file, then the environment
// (after dotenv files), then defaults.
func loadConfig() error {
	if err := app.LoadEnvFiles(envFiles...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	if strings.TrimSpace(cfg.ConfigPath) != "" {
		fc, err := app.LoadConfigFile(cfg.ConfigPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	app.ApplyEnvToConfig(&cfg)
	app.ApplyDefaults(&cfg)

	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	return app.ValidateConfig(cfg)
}

func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func newExtractCmd(out io.Writer) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "extract [source...]",
		Short: "Extract the document text from pages",
		Long: `Each source is "active" (the browser's active tab, the default), "-" for
HTML on stdin, an http(s) URL or a saved HTML file. Several sources are
extracted concurrently and printed in the order given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "text", "markdown", "json":
			default:
				return fmt.Errorf("unsupported format %q (want text, markdown or json)", format)
			}
			if len(args) == 0 {
				args = []string{app.ActiveSource}
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				results := make([]extract.Result, len(args))
				g, gctx := errgroup.WithContext(ctx)
				g.SetLimit(a.Config().Concurrency)
				for i, src := range args {
					g.Go(func() error {
						res, err := a.Extract(gctx, src)
						if err != nil {
							return fmt.Errorf("%s: %w", src, err)
						}
						log.Debug().Str("url", src).Str("source", res.Source).Int("chars", len([]rune(res.Text))).Msg("extracted")
						results[i] = res
						return nil
					})
				}
				if err := g.Wait(); err != nil {
					return err
				}
				return printResults(out, format, args, results)
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, markdown, json)")
	return cmd
}

func printResults(out io.Writer, format string, sources []string, results []extract.Result) error {
	if format == "json" {
		type item struct {
			Input    string `json:"input"`
			Text     string `json:"text"`
			Source   string `json:"source"`
			Selector string `json:"selector,omitempty"`
		}
		items := make([]item, len(results))
		for i, r := range results {
			items[i] = item{Input: sources[i], Text: r.Text, Source: r.Source, Selector: r.Selector}
		}
		return writeJSON(out, items)
	}
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(out)
		}
		if len(results) > 1 {
			fmt.Fprintf(out, "==> %s <==\n", sources[i])
		}
		text := r.Text
		if format == "markdown" {
			md, err := extract.Markdown(r)
			if err != nil {
				return fmt.Errorf("%s: %w", sources[i], err)
			}
			text = md
		}
		fmt.Fprintln(out, text)
	}
	return nil
}

func newScanCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "scan [source]",
		Short: "List the document identifiers a page references",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := app.ActiveSource
			if len(args) == 1 {
				src = args[0]
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				refs, err := a.Scan(ctx, src)
				if err != nil {
					return err
				}
				return writeJSON(out, refs)
			})
		},
	}
}

func newFetchCmd(out io.Writer) *cobra.Command {
	var output string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "fetch <hash>",
		Short: "Fetch a document from the configured repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				content, err := a.FetchDocument(ctx, args[0])
				if err != nil {
					return err
				}
				log.Info().Str("type", string(content.Type)).Int("bytes", len(content.Data)).Int("pages", content.Pages).Msg("document fetched")
				if asJSON {
					return writeJSON(out, content)
				}
				if output != "" {
					return os.WriteFile(output, content.Data, 0o644)
				}
				if content.Type == repository.ContentPDF {
					return errors.New("document is a PDF; use --output to save it")
				}
				_, err = io.WriteString(out, content.Text())
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the document to this file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print {type, data} JSON")
	return cmd
}

func newConfigCmd(out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the repository configuration",
	}

	var creds repository.Credentials
	set := &cobra.Command{
		Use:   "set",
		Short: "Save the repository endpoint and credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			if creds.Password == "" {
				creds.Password = os.Getenv("REPOSITORY_PASSWORD")
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.SetRepository(ctx, creds); err != nil {
					return err
				}
				log.Info().Str("url", creds.Endpoint).Msg("repository configuration saved")
				return nil
			})
		},
	}
	set.Flags().StringVar(&creds.Endpoint, "endpoint", "", "Repository endpoint (https://... or gs://bucket/prefix)")
	set.Flags().StringVar(&creds.Username, "username", "", "Repository username")
	set.Flags().StringVar(&creds.Password, "password", "", "Repository password (or set REPOSITORY_PASSWORD)")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the saved repository configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				c, err := a.Repository(ctx)
				if err != nil {
					return err
				}
				return writeJSON(out, c)
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the saved repository configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.ClearRepository(ctx); err != nil {
					return err
				}
				log.Info().Msg("repository configuration removed")
				return nil
			})
		},
	}

	cmd.AddCommand(set, show, clearCmd)
	return cmd
}

func newAnalyzeCmd(out io.Writer) *cobra.Command {
	var (
		in         app.AnalyzeInput
		promptFile string
		output     string
	)
	cmd := &cobra.Command{
		Use:   "analyze [source]",
		Short: "Analyze a document with the configured LLM provider",
		Long: `The document is the repository document named by --hash, or else the text
extracted from source (default: the browser's active tab). The result is
printed, or exported with --output as Markdown, JSON or PDF depending on
the file extension.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				in.Source = args[0]
			}
			if promptFile != "" {
				b, err := os.ReadFile(promptFile)
				if err != nil {
					return fmt.Errorf("read prompt file: %w", err)
				}
				in.Prompt = string(b)
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Analyze(ctx, in)
				if err != nil {
					return err
				}
				if output != "" {
					if err := report.Write(output, res); err != nil {
						return fmt.Errorf("write report: %w", err)
					}
					log.Info().Str("path", output).Msg("report written")
					return nil
				}
				fmt.Fprintln(out, res.Completion)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.DocumentHash, "hash", "", "Analyze this repository document")
	cmd.Flags().StringVar(&in.Prompt, "prompt", "", "Analysis prompt (default: the legal advisor prompt)")
	cmd.Flags().StringVar(&promptFile, "prompt-file", "", "Read the analysis prompt from a file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write a report (.md, .json or .pdf)")
	return cmd
}

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the message endpoint (POST /messages)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				bg := a.Background()
				if err := bg.Preload(ctx); err != nil {
					log.Warn().Err(err).Msg("repository configuration not loaded")
				}
				srv := &http.Server{
					Addr:              addr,
					Handler:           bg.Routes(),
					ReadHeaderTimeout: 10 * time.Second,
				}
				errc := make(chan error, 1)
				go func() {
					log.Info().Str("addr", addr).Msg("listening")
					errc <- srv.ListenAndServe()
				}()
				select {
				case err := <-errc:
					return err
				case <-ctx.Done():
				}
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					return err
				}
				log.Info().Msg("server stopped")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8787", "Listen address")
	return cmd
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/seenimoa/marketbrief/api"
	"github.com/seenimoa/marketbrief/internal/agent"
	"github.com/seenimoa/marketbrief/internal/config"
	"github.com/seenimoa/marketbrief/internal/llm"
	"github.com/seenimoa/marketbrief/internal/logger"
	"github.com/seenimoa/marketbrief/internal/metrics"
	"github.com/seenimoa/marketbrief/internal/report"
	"github.com/seenimoa/marketbrief/pkg/utils"
)

// newProvider builds the LLM router. Without any usable provider the
// analyst runs with a nil provider and every narrative is the fallback.
func newProvider() llm.LLMProvider {
	router, err := llm.NewRouterFromConfig(cfg, logger.Component(log, "llm"))
	if err != nil {
		log.Warn().Err(err).Msg("no llm provider available, narratives will use the fallback text")
		return nil
	}
	return router
}

// newCoordinator wires the pipeline from the global config.
func newCoordinator(m agent.Metrics) (*agent.Coordinator, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return agent.NewFromConfig(cfg, newProvider(), m, log)
}

// applyPipelineFlags copies explicitly set pipeline flags onto the config.
func applyPipelineFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("days") {
		cfg.Pipeline.Days, _ = flags.GetInt("days")
	}
	if flags.Changed("interval") {
		cfg.Pipeline.Interval, _ = flags.GetString("interval")
	}
	if flags.Changed("max-articles") {
		cfg.Pipeline.MaxArticles, _ = flags.GetInt("max-articles")
	}
	if flags.Changed("clean-headlines") {
		cfg.Pipeline.CleanHeadlines, _ = flags.GetBool("clean-headlines")
	}
}

func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().Int("days", 7, "calendar days of price history")
	cmd.Flags().String("interval", "1d", "bar interval (1d, 1wk, 1h, ...)")
	cmd.Flags().Int("max-articles", 5, "headlines per ticker")
	cmd.Flags().Bool("clean-headlines", false, "attach normalized headline text to the news output")
}

// --- Analyze Command ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze [query]",
	Short: "Analyze the tickers mentioned in a query",
	Long: `Extract ticker symbols from the query, fetch their recent prices and
headlines, classify headline sentiment and generate an analyst report.

Examples:
  marketbrief analyze "¿Cómo van AAPL y MSFT esta semana?"
  marketbrief analyze "resumen tecnológico" --tickers NVDA,AMD --days 30
  marketbrief analyze "TSLA" --format html -o tsla.html`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		applyPipelineFlags(cmd)

		formatName, _ := cmd.Flags().GetString("format")
		format, err := report.ParseFormat(formatName)
		if err != nil {
			return err
		}
		tickerList, _ := cmd.Flags().GetString("tickers")
		output, _ := cmd.Flags().GetString("output")

		coord, err := newCoordinator(nil)
		if err != nil {
			return err
		}

		query := strings.Join(args, " ")
		rec, err := coord.RunWithTickers(cmd.Context(), query, utils.SplitTickerList(tickerList))
		if err != nil {
			return err
		}

		var out io.Writer = cmd.OutOrStdout()
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			defer f.Close()
			out = f
		}
		if err := report.Render(out, rec, format); err != nil {
			return err
		}
		if output != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "report written to %s\n", output)
		}
		return nil
	},
}

func init() {
	addPipelineFlags(analyzeCmd)
	analyzeCmd.Flags().String("tickers", "", "comma separated tickers, overrides extraction from the query")
	analyzeCmd.Flags().StringP("format", "f", "text", "output format: text, markdown, html, json, yaml")
	analyzeCmd.Flags().StringP("output", "o", "", "write the report to a file instead of stdout")
}

// --- Chat Command ---

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start interactive chat mode",
	Long: `Read one query per line and print the report of each run.
  :history  list previous runs
  :quit     exit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyPipelineFlags(cmd)
		coord, err := newCoordinator(nil)
		if err != nil {
			return err
		}
		return chatLoop(cmd.Context(), coord, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	addPipelineFlags(chatCmd)
}

// chatLoop runs queries read from in until EOF or :quit.
func chatLoop(ctx context.Context, coord *agent.Coordinator, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "marketbrief chat. Escribe una consulta, :history o :quit.")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case ":quit", ":q", ":exit":
			return nil
		case ":history":
			printHistory(coord.History(), out)
			continue
		}

		rec, err := coord.Run(ctx, line)
		if err != nil {
			return err
		}
		if !rec.HasTickers() {
			fmt.Fprintln(out, "Aviso: no se detectaron tickers en la consulta.")
		}
		if err := report.Render(out, rec, report.FormatText); err != nil {
			return err
		}
		fmt.Fprintln(out)
	}
}

func printHistory(h *agent.History, out io.Writer) {
	summaries := h.Summaries()
	if len(summaries) == 0 {
		fmt.Fprintln(out, "(sin consultas previas)")
		return
	}
	for i, s := range summaries {
		tickers := strings.Join(s.Tickers, ",")
		if tickers == "" {
			tickers = "-"
		}
		fmt.Fprintf(out, "%2d. %s  %-20s %s\n", i+1, s.CreatedAt.Format(time.TimeOnly), tickers, utils.Truncate(s.Query, 60))
	}
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetInt("port"); cmd.Flags().Changed("port") {
			cfg.API.Port = port
		}

		rec := metrics.New()
		coord, err := newCoordinator(rec)
		if err != nil {
			return err
		}

		api.Version = version
		srv := api.NewServer(cfg, coord, rec, logger.Component(log, "api"))

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.ListenAndServe(ctx, cfg.API.Addr())
	},
}

func init() {
	serveCmd.Flags().Int("port", 8080, "listen port (overrides api.port)")
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "═══════════════════════════════════════")
		fmt.Fprintln(out, "  marketbrief: System Status")
		fmt.Fprintln(out, "═══════════════════════════════════════")
		fmt.Fprintf(out, "  Version:       %s (%s)\n", version, commit)
		fmt.Fprintf(out, "  Market Status: %s\n", utils.MarketStatus())
		fmt.Fprintf(out, "  Time (ET):     %s\n", utils.FormatDateTime(utils.NowET()))
		fmt.Fprintln(out)

		fmt.Fprintln(out, "  Configuration:")
		fmt.Fprintf(out, "    Window:        %d days, interval %s\n", cfg.Pipeline.Days, cfg.Pipeline.Interval)
		fmt.Fprintf(out, "    Headlines:     %d per ticker (%s)\n", cfg.Pipeline.MaxArticles, cfg.News.Source)
		fmt.Fprintf(out, "    LLM Provider:  %s (model: %s)\n", cfg.LLM.Primary, cfg.LLM.Model)
		fmt.Fprintf(out, "    API Server:    %s\n", cfg.API.Addr())
		fmt.Fprintln(out)

		fmt.Fprintln(out, "  API Keys:")
		for _, k := range config.CheckAPIKeys(cfg) {
			status := "not set"
			if k.IsSet {
				status = fmt.Sprintf("set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Fprintf(out, "    %-25s %s\n", k.Name+":", status)
		}

		if ping, _ := cmd.Flags().GetBool("ping"); ping {
			fmt.Fprintln(out)
			fmt.Fprintln(out, "  LLM Providers:")
			router, err := llm.NewRouterFromConfig(cfg, log)
			if err != nil {
				fmt.Fprintf(out, "    %v\n", err)
			} else {
				results := router.HealthCheck(cmd.Context())
				names := make([]string, 0, len(results))
				for name := range results {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					status := "ok"
					if err := results[name]; err != nil {
						status = err.Error()
					}
					fmt.Fprintf(out, "    %-25s %s\n", name+":", status)
				}
			}
		}

		fmt.Fprintln(out, "═══════════════════════════════════════")
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("ping", false, "ping every configured LLM provider")
}

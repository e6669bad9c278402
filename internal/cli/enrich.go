package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/poisignal/internal/model"
	"github.com/ppiankov/poisignal/internal/pipeline"
	"github.com/ppiankov/poisignal/internal/provider"
)

var enrichFlags struct {
	poi       model.Poi
	interests string
	retry     bool
	full      bool
	arrival   bool
	out       string
	timeout   time.Duration
}

// enrichCmd represents the enrich command
var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich a single point of interest",
	Long: `Enrich gathers signals for one POI, scores and merges them and, when a
language model backend is configured, writes a short description.

Example:
  poisignal enrich --name "Stadhuis Leuven" --lat 50.8788 --lng 4.7011 --city Leuven --lang nl
  poisignal enrich --name "Het Stadsmus" --city Hasselt --full --out stadsmus.json
  poisignal enrich --name "Kazerne Dossin" --city Mechelen --retry --llm-provider openai`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		v := viper.GetViper()
		_ = v.BindPFlag("city", cmd.Flags().Lookup("city"))
		_ = v.BindPFlag("language", cmd.Flags().Lookup("lang"))
		_ = v.BindPFlag("llm.provider", cmd.Flags().Lookup("llm-provider"))
		_ = v.BindPFlag("llm.model", cmd.Flags().Lookup("llm-model"))
		return nil
	},
	RunE: runEnrich,
}

func init() {
	rootCmd.AddCommand(enrichCmd)

	f := enrichCmd.Flags()
	f.StringVar(&enrichFlags.poi.Name, "name", "", "POI name (required)")
	f.StringVar(&enrichFlags.poi.ID, "id", "", "stable POI id, used as cache identity")
	f.Float64Var(&enrichFlags.poi.Lat, "lat", 0, "latitude")
	f.Float64Var(&enrichFlags.poi.Lng, "lng", 0, "longitude")
	f.StringVar(&enrichFlags.poi.City, "city", "", "city context (default from config)")
	f.StringVar(&enrichFlags.poi.Road, "road", "", "street, used by --retry searches")
	f.StringVar(&enrichFlags.poi.Language, "lang", "", "output language (default from config)")
	f.StringVar(&enrichFlags.interests, "interests", "", "comma-separated traveller interests")
	f.StringVar(&enrichFlags.poi.RouteContext, "route-context", "", "free-form trip context")
	f.BoolVar(&enrichFlags.retry, "retry", false, "use the broader retry search permutations")
	f.BoolVar(&enrichFlags.full, "full", false, "also generate the full details")
	f.BoolVar(&enrichFlags.arrival, "arrival", false, "also generate arrival instructions")
	f.StringVarP(&enrichFlags.out, "out", "o", "", "output JSON path (default stdout)")
	f.DurationVar(&enrichFlags.timeout, "timeout", 3*time.Minute, "overall timeout")
	f.String("llm-provider", "", "LLM provider (gateway, openai, anthropic, ollama)")
	f.String("llm-model", "", "LLM model name")
	_ = enrichCmd.MarkFlagRequired("name")
}

func runEnrich(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return eris.Wrap(err, "build logger")
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), enrichFlags.timeout)
	defer cancel()
	if enrichFlags.retry {
		ctx = provider.WithRetryMode(ctx)
	}

	poi := enrichFlags.poi
	poi.Interests = splitList(enrichFlags.interests)
	if poi.City == "" {
		poi.City = cfg.City
	}

	e, err := newEngine(ctx, cfg, pipeline.Options{Full: enrichFlags.full, Arrival: enrichFlags.arrival}, logger)
	if err != nil {
		return err
	}
	defer e.Close()

	result, err := e.enricher.Enrich(ctx, poi)
	e.logHealth()
	if err != nil {
		return eris.Wrapf(err, "enrich %q", poi.Name)
	}

	logger.Info("enriched",
		zap.String("poi", poi.Name),
		zap.String("run_id", result.RunID),
		zap.Int("signals", len(result.Signals)),
		zap.Bool("from_cache", result.FromCache),
		zap.Duration("duration", result.Duration))

	if err := writeJSON(enrichFlags.out, result); err != nil {
		return err
	}
	if enrichFlags.out != "" {
		fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", enrichFlags.out)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

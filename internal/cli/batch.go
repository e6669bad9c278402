package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/poisignal/internal/model"
	"github.com/ppiankov/poisignal/internal/pipeline"
	"github.com/ppiankov/poisignal/internal/provider"
	"github.com/ppiankov/poisignal/internal/worker"
)

var batchFlags struct {
	out     string
	timeout time.Duration
	full    bool
	retry   bool
	welcome bool
}

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Enrich a list of POIs from a YAML or JSON file",
	Long: `Batch enriches every POI in the file concurrently. The file holds either a
list of POIs or a document with a "pois" key. Duplicate POIs are enriched once.

Example:
  poisignal batch route.yaml
  poisignal batch route.yaml --concurrency 8 --out results.json
  poisignal batch route.yaml --welcome --city Leuven`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		v := viper.GetViper()
		_ = v.BindPFlag("concurrency.workers", cmd.Flags().Lookup("concurrency"))
		_ = v.BindPFlag("city", cmd.Flags().Lookup("city"))
		_ = v.BindPFlag("language", cmd.Flags().Lookup("lang"))
		return nil
	},
	RunE: runBatch,
}

// batchOutput is the document written by batch
type batchOutput struct {
	Welcome string              `json:"welcome,omitempty"`
	Results []*model.Enrichment `json:"results"`
	Failed  []batchFailure      `json:"failed,omitempty"`
}

type batchFailure struct {
	Poi   model.Poi `json:"poi"`
	Error string    `json:"error"`
}

func init() {
	rootCmd.AddCommand(batchCmd)

	f := batchCmd.Flags()
	f.Int("concurrency", 4, "number of concurrent workers")
	f.String("city", "", "default city context")
	f.String("lang", "", "default output language")
	f.StringVarP(&batchFlags.out, "out", "o", "", "output JSON path (default stdout)")
	f.DurationVar(&batchFlags.timeout, "timeout", 15*time.Minute, "total timeout for the batch")
	f.BoolVar(&batchFlags.full, "full", false, "also generate full details")
	f.BoolVar(&batchFlags.retry, "retry", false, "use the broader retry search permutations")
	f.BoolVar(&batchFlags.welcome, "welcome", false, "generate a tour welcome text for the list")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return eris.Wrap(err, "build logger")
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), batchFlags.timeout)
	defer cancel()
	if batchFlags.retry {
		ctx = provider.WithRetryMode(ctx)
	}

	e, err := newEngine(ctx, cfg, pipeline.Options{Full: batchFlags.full}, logger)
	if err != nil {
		return err
	}
	defer e.Close()

	fmt.Fprintf(os.Stderr, "⚙️  Enriching %s with %d workers...\n", file, cfg.Concurrency.Workers)

	processor := worker.NewBatchProcessor(e.enricher, cfg.Concurrency.Workers, cfg.Language)
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return err
	}

	out := batchOutput{Results: []*model.Enrichment{}}
	pois := make([]model.Poi, 0, len(results))
	for _, r := range results {
		pois = append(pois, r.Poi)
		if r.Error != nil {
			out.Failed = append(out.Failed, batchFailure{Poi: r.Poi, Error: r.Error.Error()})
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", r.Poi.Name, r.Error)
			continue
		}
		out.Results = append(out.Results, r.Enrichment)
		fmt.Fprintf(os.Stderr, "✓ %s (%s)\n", r.Poi.Name, r.Enrichment.Resolution.Source)
	}

	if batchFlags.welcome && e.synth.Enabled() && len(pois) > 0 {
		welcome := e.synth.Welcome(ctx, cfg.City, pois)
		if welcome.OK() {
			out.Welcome = welcome.Value
		} else {
			fmt.Fprintf(os.Stderr, "✗ welcome text: %s\n", welcome.Outcome)
		}
	}
	e.logHealth()

	fmt.Fprintf(os.Stderr, "\n  Total: %d  Success: %d  Failures: %d\n\n", len(results), len(out.Results), len(out.Failed))
	return writeJSON(batchFlags.out, out)
}

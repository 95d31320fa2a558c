package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"crev/internal/evaluate"
	"crev/internal/gold"
	"crev/internal/metrics"
	"crev/internal/output"
	"crev/internal/repos"
	"crev/internal/storage"
	"crev/internal/symbols"
	"crev/internal/trajparse"
)

var (
	evalGoldPath  string
	evalPredPath  string
	evalCacheDir  string
	evalOutPath   string
	evalWorkers   int
	evalScipIndex string
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate prediction trajectories against gold contexts",
	Long: `Evaluate agent trajectories against gold context annotations.

Reads predictions (message logs, editor checkpoints, or pre-extracted
contexts), checks out each instance's repository at the annotated commit,
and scores the retrieved context at file, symbol, and span granularity.
Results stream as JSONL, one record per instance; a summary goes to stderr.`,
	RunE: runEval,
}

func init() {
	evalCmd.Flags().StringVar(&evalGoldPath, "gold", "", "Gold annotations path (file or directory)")
	evalCmd.Flags().StringVar(&evalPredPath, "pred", "", "Prediction trajectories path")
	evalCmd.Flags().StringVar(&evalCacheDir, "cache", "", "Repo cache directory (overrides config)")
	evalCmd.Flags().StringVar(&evalOutPath, "out", "", "Output JSONL file (.gz/.zst supported; default stdout)")
	evalCmd.Flags().IntVar(&evalWorkers, "workers", 0, "Parallel instances (overrides config)")
	evalCmd.Flags().StringVar(&evalScipIndex, "scip-index", "", "Prebuilt SCIP index path (overrides config)")
	_ = evalCmd.MarkFlagRequired("gold")
	_ = evalCmd.MarkFlagRequired("pred")
	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if evalCacheDir != "" {
		cfg.Cache.ReposDir = evalCacheDir
	}
	if evalWorkers > 0 {
		cfg.Workers = evalWorkers
	}
	if evalScipIndex != "" {
		cfg.Scip.Enabled = true
		cfg.Scip.IndexPath = evalScipIndex
	}
	logger := newLogger(cfg)

	var scip *symbols.SCIPSource
	if cfg.Scip.Enabled {
		scip, err = symbols.LoadSCIPIndex(cfg.Scip.IndexPath)
		if err != nil {
			return err
		}
	}

	var symCache symbols.Cache
	if cfg.Cache.SymbolsDir != "" {
		db, err := storage.Open(cfg.Cache.SymbolsDir, logger)
		if err != nil {
			logger.Warn("symbol cache unavailable, continuing without", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			defer db.Close()
			symCache = db
		}
	}

	logger.Info("indexing gold contexts", map[string]interface{}{"path": evalGoldPath})
	goldSet, err := gold.NewLoader(evalGoldPath)
	if err != nil {
		return err
	}
	logger.Info("gold contexts indexed", map[string]interface{}{"instances": goldSet.Size()})

	preds, err := trajparse.Load(evalPredPath)
	if err != nil {
		return err
	}
	logger.Info("predictions loaded", map[string]interface{}{"trajectories": len(preds)})

	repoCache := repos.NewCache(cfg.Cache.ReposDir, logger)
	ev := evaluate.NewEvaluator(cfg, goldSet, repoCache, scip, symCache, logger)
	if cfg.Granularities.Symbol && !ev.SymbolSourceAvailable() {
		logger.Warn("no symbol source available, symbol granularity will be null", nil)
	}

	runner := &evaluate.Runner{Eval: ev, Workers: cfg.Workers, Logger: logger}
	batch := runner.Run(cmd.Context(), preds)

	writer, err := output.NewWriter(evalOutPath)
	if err != nil {
		return err
	}
	for _, res := range batch.Results {
		if err := writer.Write(res); err != nil {
			writer.Close()
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}

	printSummary(batch)
	return nil
}

func printSummary(batch *evaluate.BatchResult) {
	s := batch.Summary
	fmt.Fprintf(os.Stderr, "\nrun %s: %d/%d instances evaluated\n",
		batch.RunID, s.NumValid, s.NumTotal)

	for _, gran := range []string{metrics.GranFile, metrics.GranSymbol, metrics.GranSpan} {
		if pair, ok := s.Final[gran]; ok {
			fmt.Fprintf(os.Stderr, "%-8s coverage=%s precision=%s",
				gran, output.FormatFloat(pair.Coverage), output.FormatFloat(pair.Precision))
			if auc, ok := s.TrajAUC[gran]; ok {
				fmt.Fprintf(os.Stderr, " auc=%s redundancy=%s",
					output.FormatFloat(auc), output.FormatFloat(s.TrajRedundancy[gran]))
			}
			fmt.Fprintln(os.Stderr)
		}
	}
	if s.EditLoc != nil {
		fmt.Fprintf(os.Stderr, "editloc  recall=%s precision=%s\n",
			output.FormatFloat(s.EditLoc.Recall), output.FormatFloat(s.EditLoc.Precision))
	}
}

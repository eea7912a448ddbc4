// stormphase — substation load-anomaly detector.
//
// Preprocesses paired measured/bottom-up load series, scores them with
// one anomaly-detection engine at a time, optimizes single or double
// thresholds against labeled events, lists the model store and compares
// two result-row files. Ensembles (internal/ensemble) and result-row
// output are not part of the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rbouman/stormphase/internal/config"
	"github.com/rbouman/stormphase/internal/diff"
	"github.com/rbouman/stormphase/internal/engine"
	"github.com/rbouman/stormphase/internal/engine/arima"
	"github.com/rbouman/stormphase/internal/engine/binseg"
	"github.com/rbouman/stormphase/internal/engine/isoforest"
	"github.com/rbouman/stormphase/internal/eventlen"
	"github.com/rbouman/stormphase/internal/ingest"
	"github.com/rbouman/stormphase/internal/logging"
	"github.com/rbouman/stormphase/internal/mcpserver"
	"github.com/rbouman/stormphase/internal/preprocess"
	"github.com/rbouman/stormphase/internal/stationdata"
	"github.com/rbouman/stormphase/internal/store"
	"github.com/rbouman/stormphase/internal/threshold"
	"github.com/rbouman/stormphase/internal/workerpool"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:     "stormphase",
		Short:   "Substation load-anomaly detection pipeline",
		Version: version,
	}

	var (
		xDir, yDir  string
		configPath  string
		outputPath  string
		engineName  string
		variant     string
		storeDir    string
		verbose     bool
		maxWorkers  int
	)

	addCommonFlags := func(cmd *cobra.Command) {
		cmd.Flags().StringVar(&xDir, "x-dir", "X", "directory of <station_id>.csv measured/bottom-up series")
		cmd.Flags().StringVar(&yDir, "y-dir", "y", "directory of <station_id>.csv labels")
		cmd.Flags().StringVar(&configPath, "config", "", "YAML hyperparameter config")
		cmd.Flags().StringVar(&outputPath, "output", "-", "output path (- for stdout)")
		cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
		cmd.Flags().IntVar(&maxWorkers, "max-workers", workerpool.DefaultMaxWorkers, "bounded worker pool size")
	}

	preprocessCmd := &cobra.Command{
		Use:   "preprocess",
		Short: "Align and clean raw station series",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(verbose)
			batch, err := ingest.LoadBatch(xDir, yDir)
			if err != nil {
				return err
			}
			cfg := preprocess.DefaultConfig()
			pool := workerpool.New(maxWorkers)
			results, errs := pool.Run(cmd.Context(), len(batch.Stations), func(ctx context.Context, i int) (interface{}, error) {
				return preprocess.Preprocess(batch.Stations[i], cfg)
			})
			for i, err := range errs {
				if err != nil {
					log.Warn("station %s: %v", batch.Stations[i].ID, err)
				}
			}
			var out stationdata.PreprocessedBatch
			for _, r := range results {
				if r != nil {
					out.Stations = append(out.Stations, r.(*stationdata.Preprocessed))
				}
			}
			log.Info("preprocessed %d/%d stations", len(out.Stations), len(batch.Stations))
			return writeStationSummary(outputPath, &out)
		},
	}
	addCommonFlags(preprocessCmd)

	scoreCmd := &cobra.Command{
		Use:   "score",
		Short: "Score preprocessed stations with one engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(verbose)
			batch, err := ingest.LoadBatch(xDir, yDir)
			if err != nil {
				return err
			}
			pre := preprocess.DefaultConfig()
			var pb stationdata.PreprocessedBatch
			for _, raw := range batch.Stations {
				p, err := preprocess.Preprocess(raw, pre)
				if err != nil {
					log.Warn("station %s: %v", raw.ID, err)
					continue
				}
				pb.Stations = append(pb.Stations, p)
			}

			reg := buildRegistry()
			producer, ok := reg.Build(engineName)
			if !ok {
				return fmt.Errorf("unknown engine %q (available: %v)", engineName, reg.Names())
			}
			if configPath != "" {
				_, _ = config.Load(configPath) // per-engine overrides would be applied here
			}

			scores, err := producer.FitTransformPredict(cmd.Context(), &pb)
			if err != nil {
				return err
			}

			preHash := store.Hash(pre.ModelString())
			s, err := store.New(storeDir, producer.Name(), preHash)
			if err != nil {
				return err
			}
			rec := &store.Record{ModelString: producer.ModelString()}
			for i, station := range pb.Stations {
				rec.Frames = append(rec.Frames, newFrame(station.ID, scores[i]))
			}
			if segmenting, ok := producer.(interface {
				Breakpoints() [][]int
				SegmentMeans() [][]float64
			}); ok {
				rec.Breakpoints = segmenting.Breakpoints()
				rec.SegmentMeans = segmenting.SegmentMeans()
			}
			if err := s.Save(rec); err != nil {
				return err
			}
			log.Info("scored %d stations with %s, stored under %s/%s/%s", len(pb.Stations), engineName, storeDir, producer.Name(), preHash)
			return nil
		},
	}
	addCommonFlags(scoreCmd)
	scoreCmd.Flags().StringVar(&engineName, "engine", "spc", "scoring engine: spc, isolation_forest, basic_arima, sarimax, iterative_arima, binary_segmentation")
	scoreCmd.Flags().StringVar(&storeDir, "store-dir", "store", "model store directory")

	optimizeCmd := &cobra.Command{
		Use:   "optimize",
		Short: "Optimize a single or double threshold, using each station's preprocessed diff as its score",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(verbose)
			batch, err := ingest.LoadBatch(xDir, yDir)
			if err != nil {
				return err
			}
			pre := preprocess.DefaultConfig()
			var pb stationdata.PreprocessedBatch
			var filters []stationdata.LengthFilterBank
			var rawScores [][]float64
			for _, raw := range batch.Stations {
				p, err := preprocess.Preprocess(raw, pre)
				if err != nil {
					log.Warn("station %s: %v", raw.ID, err)
					continue
				}
				pb.Stations = append(pb.Stations, p)
				lengths := eventlen.EventLengths(p.Label)
				filters = append(filters, eventlen.Filters(lengths, eventlen.DefaultCutoffs(), nil, false, p.Missing, p.Label))
				rawScores = append(rawScores, p.Diff)
			}

			used := defaultBucketKeys()
			if variant == "double" {
				res := threshold.OptimizeDouble(rawScores, &pb, filters, used, threshold.DefaultBeta)
				fmt.Fprintf(cmdWriter(outputPath), "tau_neg=%g tau_pos=%g f_beta=%g\n", res.TauNeg, res.TauPos, res.FBeta)
			} else {
				res := threshold.OptimizeSingle(rawScores, &pb, filters, used, threshold.DefaultBeta)
				fmt.Fprintf(cmdWriter(outputPath), "tau=%g f_beta=%g\n", res.Tau, res.FBeta)
			}
			return nil
		},
	}
	addCommonFlags(optimizeCmd)
	optimizeCmd.Flags().StringVar(&variant, "variant", "single", "threshold variant: single, double")

	var ensembleKind string
	ensembleCmd := &cobra.Command{
		Use:   "ensemble",
		Short: "Report that Stack/NaiveStack/Sequential ensembles run only from Go callers",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(verbose)
			log.Info("ensemble kind=%s is driven by internal/ensemble; invoke it from a Go caller (neither this CLI nor the MCP server runs ensembles)", ensembleKind)
			return nil
		},
	}
	ensembleCmd.Flags().StringVar(&ensembleKind, "kind", "stack", "stack, naive_stack, sequential")

	storeCmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect the content-addressed model store",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Entries live at <store-dir>/<method_name>/<preprocessing_hash>/<hyperparameter_hash>.json
			// (spec.md §4.6/§6), so listing means walking three levels deep.
			w := cmdWriter(outputPath)
			return filepath.WalkDir(storeDir, func(path string, d os.DirEntry, err error) error {
				if err != nil {
					if os.IsNotExist(err) {
						return nil
					}
					return err
				}
				if !d.IsDir() && filepath.Ext(path) == ".json" {
					rel, err := filepath.Rel(storeDir, path)
					if err != nil {
						rel = path
					}
					fmt.Fprintln(w, rel)
				}
				return nil
			})
		},
	}
	storeCmd.Flags().StringVar(&storeDir, "store-dir", "store", "model store directory")
	storeCmd.Flags().StringVar(&outputPath, "output", "-", "output path (- for stdout)")

	diffCmd := &cobra.Command{
		Use:   "diff <baseline.json> <current.json>",
		Short: "Compare F-beta across two result-row runs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			baseline, err := diff.LoadRows(args[0])
			if err != nil {
				return err
			}
			current, err := diff.LoadRows(args[1])
			if err != nil {
				return err
			}
			report := diff.Compare(baseline, current)
			report.Baseline, report.Current = args[0], args[1]
			fmt.Fprint(cmdWriter(outputPath), diff.FormatDiff(report))
			return nil
		},
	}
	diffCmd.Flags().StringVar(&outputPath, "output", "-", "output path (- for stdout)")

	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the pipeline as an MCP stdio server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return mcpserver.NewServer(version).Start(cmd.Context())
		},
	}

	rootCmd.AddCommand(preprocessCmd, scoreCmd, optimizeCmd, ensembleCmd, storeCmd, diffCmd, mcpCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRegistry() engine.Registry {
	reg := engine.NewRegistry()
	reg.Register("spc", engine.NewSPC)
	reg.Register("isolation_forest", func() engine.ScoreProducer { return isoforest.New() })
	reg.Register("basic_arima", func() engine.ScoreProducer { return arima.NewBasic() })
	reg.Register("sarimax", func() engine.ScoreProducer { return arima.NewSARIMAX() })
	reg.Register("iterative_arima", func() engine.ScoreProducer { return arima.NewIterative() })
	reg.Register("binary_segmentation", func() engine.ScoreProducer { return binseg.New() })
	return reg
}

func defaultBucketKeys() []string {
	cutoffs := eventlen.DefaultCutoffs()
	keys := make([]string, len(cutoffs))
	for i, c := range cutoffs {
		keys[i] = c.Key()
	}
	return keys
}

func newFrame(id string, scores []float64) store.Frame {
	return store.Frame{StationID: id, Scores: scores, Predictions: make([]int, len(scores))}
}

func newLogger(verbose bool) *logging.Logger {
	level := logging.LevelInfo
	if verbose {
		level = logging.LevelDebug
	}
	return logging.New(level)
}

func writeStationSummary(path string, batch *stationdata.PreprocessedBatch) error {
	w := cmdWriter(path)
	for _, s := range batch.Stations {
		fmt.Fprintf(w, "%s\t%d samples\n", s.ID, s.Len())
	}
	return nil
}

func cmdWriter(path string) *os.File {
	if path == "-" || path == "" {
		return os.Stdout
	}
	f, err := os.Create(path)
	if err != nil {
		return os.Stdout
	}
	return f
}

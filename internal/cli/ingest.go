package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/simgraph/internal/app"
)

var (
	ingestDataset   string
	ingestThreshold float64
	ingestBatchSize int
	ingestResume    bool
	ingestExport    string
	serveAddr       string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load the dataset and write similarity edges to Neo4j",
	Long: `Waits for Neo4j to answer, skips when the store already holds
similarity nodes, and otherwise writes the edge set in sequential batches.

Examples:
  simgraph ingest
  simgraph ingest --dataset ./jobs.csv --threshold 0.95
  simgraph ingest --dataset gs://bucket/jobs.csv --export ./edges.csv
  simgraph ingest --resume`,
	RunE: runIngest,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		return application.Serve(cmd.Context())
	},
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestDataset, "dataset", "d", "", "dataset path, http(s) URL or gs://bucket/object")
	ingestCmd.Flags().Float64VarP(&ingestThreshold, "threshold", "t", 0, "minimum cosine similarity for an edge")
	ingestCmd.Flags().IntVarP(&ingestBatchSize, "batch-size", "b", 0, "edges per write transaction")
	ingestCmd.Flags().BoolVar(&ingestResume, "resume", false, "continue the last failed run of this dataset")
	ingestCmd.Flags().StringVar(&ingestExport, "export", "", "also write the edge set to this CSV path")

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from HTTP_ADDR)")
}

func applyFlagOverrides(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("dataset") {
		cfg.Dataset.Location = ingestDataset
	}
	if flags.Changed("threshold") {
		cfg.Similarity.Threshold = ingestThreshold
	}
	if flags.Changed("batch-size") {
		cfg.Ingest.BatchSize = ingestBatchSize
	}
	if flags.Changed("addr") {
		cfg.HTTP.Addr = serveAddr
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	res, err := application.Ingest(cmd.Context(), app.IngestOptions{
		Resume:     ingestResume,
		ExportPath: ingestExport,
	})
	out := cmd.OutOrStdout()
	if err != nil {
		if res.RunID != uuid.Nil {
			fmt.Fprintf(out, "run %s failed after %d/%d batches\n", res.RunID, res.StartBatch+res.BatchesCommitted, res.BatchesTotal)
		}
		return err
	}
	if res.Skipped {
		fmt.Fprintf(out, "store already populated (%d nodes); nothing written\n", res.Footprint)
		return nil
	}
	fmt.Fprintf(out, "run %s: %d entities, %d edges in %d batches", res.RunID, res.Entities, res.Pairs, res.BatchesTotal)
	if res.Resumed {
		fmt.Fprintf(out, " (resumed at batch %d)", res.StartBatch)
	}
	fmt.Fprintln(out)
	return nil
}

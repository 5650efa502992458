// Command summarize aggregates the per-pair evaluation outputs into a CSV
// table and a combined ROC document.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/albepe01/NetworkSecurity-Project/internal/evaluation"
	"github.com/albepe01/NetworkSecurity-Project/internal/logger"
)

func main() {
	resultsDir := flag.String("results", "results", "results directory produced by evaluate")
	outDir := flag.String("out", ".", "where to write the summary files")
	flag.Parse()

	log := logger.New(os.Getenv("APP_ENV"), os.Stderr)

	rows, err := evaluation.WriteSummary(*resultsDir, *outDir)
	if err != nil {
		log.Error("summarize", "results", *resultsDir, "error", err)
		os.Exit(1)
	}
	if len(rows) == 0 {
		log.Warn("no evaluated pairs found", "results", *resultsDir)
		return
	}

	fmt.Printf("%-18s %-14s %8s %8s %8s %9s %8s\n", "Dataset", "Model", "AUC", "Accuracy", "F1", "Precision", "Recall")
	for _, r := range rows {
		fmt.Printf("%-18s %-14s %8.4f %8.4f %8.4f %9.4f %8.4f\n",
			r.Dataset, r.Model, r.AUC, r.Accuracy, r.F1, r.Precision, r.Recall)
	}
	log.Info("summary written", "dir", *outDir, "pairs", len(rows))
}

// Command evaluate replays the labeled corpora through the decision pipeline
// for every catalog pair and writes the per-pair reports.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/albepe01/NetworkSecurity-Project/internal/catalog"
	"github.com/albepe01/NetworkSecurity-Project/internal/client"
	"github.com/albepe01/NetworkSecurity-Project/internal/config"
	"github.com/albepe01/NetworkSecurity-Project/internal/core"
	"github.com/albepe01/NetworkSecurity-Project/internal/corpus"
	"github.com/albepe01/NetworkSecurity-Project/internal/evaluation"
	"github.com/albepe01/NetworkSecurity-Project/internal/logger"
	"github.com/albepe01/NetworkSecurity-Project/internal/service"

	"golang.org/x/time/rate"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "evaluate:", err)
		return 2
	}

	var (
		dataset    = flag.String("dataset", "", "only evaluate this dataset")
		model      = flag.String("model", "", "only evaluate this model")
		adv        = flag.Bool("adv", cfg.Evaluation.Adversarial, "include the adversarial subsets")
		resultsDir = flag.String("results", cfg.Evaluation.ResultsDir, "results directory")
		workers    = flag.Int("workers", cfg.Evaluation.Workers, "concurrent decisions per pair")
		ratePerSec = flag.Float64("rate", cfg.Evaluation.RatePerSecond, "max decisions per second (0 = unlimited)")
		seed       = flag.Uint64("seed", cfg.Evaluation.Seed, "corpus shuffle seed")
		serviceURL = flag.String("service", cfg.Evaluation.ServiceURL, "decision service URL (empty = in-process)")
		token      = flag.String("token", os.Getenv("DECISION_SERVICE_TOKEN"), "bearer token for the decision service")
		plot       = flag.Bool("plot", true, "write roc_curve.pdf per pair")
	)
	flag.Parse()

	log := logger.New(cfg.Server.Environment, os.Stderr)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.LoadOrDefault(cfg.CatalogPath)
	if err != nil {
		log.Error("load catalog", "error", err)
		return 2
	}

	var decider core.Decider
	if *serviceURL != "" {
		decider = client.New(*serviceURL, cfg.Evaluation.PayloadTimeout).WithToken(*token)
		log.Info("replaying against decision service", "url", *serviceURL)
	} else {
		svc, err := service.New(ctx, cfg, log, nil, service.WithoutAudit())
		if err != nil {
			log.Error("build pipeline", "error", err)
			return 2
		}
		defer svc.Close()
		cat = svc.Catalog
		decider = svc.Engine
	}

	var limiter *rate.Limiter
	if *ratePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(*ratePerSec), 1)
	}

	h := evaluation.NewHarness(cat, corpus.NewLoader(cat), decider, evaluation.Options{
		ResultsDir:         *resultsDir,
		IncludeAdversarial: *adv,
		Seed:               *seed,
		Workers:            *workers,
		PayloadTimeout:     cfg.Evaluation.PayloadTimeout,
		Limiter:            limiter,
		Plot:               *plot,
	}, log)

	keep := func(sel core.Selector) bool {
		return (*dataset == "" || sel.DatasetID == *dataset) && (*model == "" || sel.ModelID == *model)
	}

	results, err := h.Run(ctx, keep)
	if err != nil {
		log.Error("evaluation interrupted", "error", err)
		return 1
	}
	if len(results) == 0 {
		log.Error("no catalog pair matches the filter", "dataset", *dataset, "model", *model)
		return 2
	}

	for _, r := range results {
		switch {
		case r.Err != nil:
			fmt.Printf("%-10s %-14s FAILED  %v\n", r.Selector.DatasetID, r.Selector.ModelID, r.Err)
		case r.Skipped:
			fmt.Printf("%-10s %-14s skipped (report exists)\n", r.Selector.DatasetID, r.Selector.ModelID)
		default:
			fmt.Printf("%-10s %-14s acc=%.4f f1=%.4f auc=%.4f excluded=%d\n",
				r.Selector.DatasetID, r.Selector.ModelID, r.Scores.Accuracy, r.Scores.F1, r.Scores.AUC, r.Excluded)
		}
	}
	if evaluation.Failed(results) {
		return 1
	}
	return 0
}

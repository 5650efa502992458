// Package service assembles the decision pipeline from configuration: rule
// engines, detectors, the classifier cache, audit sinks and the engine.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/albepe01/NetworkSecurity-Project/internal/audit"
	"github.com/albepe01/NetworkSecurity-Project/internal/catalog"
	"github.com/albepe01/NetworkSecurity-Project/internal/config"
	"github.com/albepe01/NetworkSecurity-Project/internal/core"
	"github.com/albepe01/NetworkSecurity-Project/internal/corpus"
	"github.com/albepe01/NetworkSecurity-Project/internal/detector"
	"github.com/albepe01/NetworkSecurity-Project/internal/engine"
	"github.com/albepe01/NetworkSecurity-Project/internal/features"
	"github.com/albepe01/NetworkSecurity-Project/internal/metrics"
	"github.com/albepe01/NetworkSecurity-Project/internal/model"
	mongorepo "github.com/albepe01/NetworkSecurity-Project/internal/repository/mongo"
	sqlrepo "github.com/albepe01/NetworkSecurity-Project/internal/repository/sql"
	"github.com/albepe01/NetworkSecurity-Project/internal/rules"

	"go.mongodb.org/mongo-driver/mongo"
)

type DecisionService struct {
	Catalog     *catalog.Catalog
	Corpus      *corpus.Loader
	Engine      *engine.Engine
	Classifiers *model.Cache
	Extractor   core.FeatureExtractor

	// RuleSource and WAFRules are set when the WAF runs in-process.
	RuleSource rules.Source
	WAFRules   *rules.Engine

	Recorder *audit.Recorder
	Reader   core.AuditReader
	Stream   *audit.Broadcaster

	mongo  *mongo.Client
	sqlDB  *sql.DB
	logger *slog.Logger
}

type options struct {
	audit bool
}

type Option func(*options)

// WithoutAudit builds the pipeline with no audit sinks, as the offline
// evaluation does.
func WithoutAudit() Option {
	return func(o *options) { o.audit = false }
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics, opts ...Option) (*DecisionService, error) {
	o := options{audit: true}
	for _, opt := range opts {
		opt(&o)
	}

	s := &DecisionService{logger: logger}
	ok := false
	defer func() {
		if !ok {
			s.Close()
		}
	}()

	cat, err := catalog.LoadOrDefault(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	s.Catalog = cat
	s.Corpus = corpus.NewLoader(cat)

	if cfg.Database.MongoURI != "" && (cfg.WAF.RulesSource == config.RulesMongo || (o.audit && cfg.Audit.Mongo)) {
		s.mongo, err = mongorepo.Connect(ctx, cfg.Database.MongoURI)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		logger.Info("connected to mongo", "db", cfg.Database.MongoDB)
	}

	waf, err := s.buildWAF(ctx, cfg)
	if err != nil {
		return nil, err
	}
	ml, err := s.buildML(ctx, cfg)
	if err != nil {
		return nil, err
	}

	engineOpts := []engine.Option{engine.WithMetrics(m)}
	if o.audit {
		sink, err := s.buildAudit(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.Recorder = audit.NewRecorder(sink, cfg.Audit.QueueSize, logger,
			audit.WithMetrics(m),
			audit.WithWriteTimeout(cfg.Audit.WriteTimeout),
		)
		engineOpts = append(engineOpts, engine.WithRecorder(s.Recorder))
		logger.Info("audit enabled", "sinks", sink.Name())
	}

	s.Engine = engine.New(cat, waf, ml, engine.Config{
		Policy:          cfg.Decision.Policy,
		DetectorTimeout: cfg.Decision.DetectorTimeout,
	}, logger, engineOpts...)

	ok = true
	return s, nil
}

func (s *DecisionService) ruleSource(ctx context.Context, cfg *config.Config) (rules.Source, error) {
	switch cfg.WAF.RulesSource {
	case config.RulesFile:
		return rules.FileSource{Path: cfg.WAF.RulesFile}, nil
	case config.RulesMongo:
		if s.mongo == nil {
			return nil, errors.New("mongo rule source needs MONGO_URI")
		}
		repo := mongorepo.NewRuleRepository(s.mongo, cfg.Database.MongoDB)
		seeded, err := repo.Seed(ctx, rules.Builtin())
		if err != nil {
			return nil, fmt.Errorf("seed rules: %w", err)
		}
		if seeded > 0 {
			s.logger.Info("seeded rule collection", "rules", seeded)
		}
		return repo, nil
	}
	return rules.BuiltinSource(), nil
}

func (s *DecisionService) buildWAF(ctx context.Context, cfg *config.Config) (core.Detector, error) {
	src, err := s.ruleSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.RuleSource = src

	if cfg.WAF.URL != "" {
		s.logger.Info("using remote waf", "url", cfg.WAF.URL)
		return detector.NewHTTPWAF(cfg.WAF.URL, cfg.Decision.DetectorTimeout), nil
	}

	eng, err := rules.Build(ctx, src, cfg.WAF.ParanoiaLevel)
	if err != nil {
		return nil, fmt.Errorf("build waf rules: %w", err)
	}
	s.WAFRules = eng
	s.logger.Info("using local waf", "paranoia_level", cfg.WAF.ParanoiaLevel, "rules", len(eng.RuleIDs()))
	return detector.NewRuleWAF(eng, cfg.WAF.AnomalyThreshold), nil
}

func (s *DecisionService) buildML(ctx context.Context, cfg *config.Config) (*detector.ML, error) {
	if cfg.ML.FeatureURL != "" {
		s.Extractor = features.NewRemote(cfg.ML.FeatureURL, cfg.ML.FeatureDim, cfg.Decision.DetectorTimeout)
	} else {
		eng, err := rules.Build(ctx, s.RuleSource, cfg.ML.ExtractorParanoia)
		if err != nil {
			return nil, fmt.Errorf("build feature rules: %w", err)
		}
		s.Extractor = features.NewRuleActivation(eng)
	}

	var loader core.ClassifierLoader
	if cfg.ML.ModelServerURL != "" {
		loader = model.NewRemoteLoader(cfg.ML.ModelServerURL, cfg.Decision.DetectorTimeout)
	} else {
		loader = &model.FileLoader{Resolve: s.Catalog.ArtifactPath, Dim: s.Extractor.Dim()}
	}
	s.Classifiers = model.NewCache(s.Catalog, loader, s.logger)

	if cfg.ML.WarmCache {
		if err := s.Classifiers.Warm(ctx, s.Catalog.Pairs()); err != nil {
			return nil, fmt.Errorf("warm classifiers: %w", err)
		}
	}
	return detector.NewML(s.Extractor, s.Classifiers), nil
}

// buildAudit assembles the sinks. Queryable stores come first so the audit
// endpoint reads from the most durable one.
func (s *DecisionService) buildAudit(ctx context.Context, cfg *config.Config) (sinks audit.Multi, err error) {
	defer func() {
		if err != nil {
			sinks.Close()
		}
	}()

	if s.mongo != nil && cfg.Audit.Mongo {
		sinks = append(sinks, mongorepo.NewDecisionRepository(s.mongo, cfg.Database.MongoDB))
	}

	if cfg.Audit.SQLDSN != "" {
		var db *sql.DB
		db, err = sqlrepo.Open(ctx, cfg.Audit.SQLDialect, cfg.Audit.SQLDSN)
		if err != nil {
			return sinks, fmt.Errorf("connect %s: %w", cfg.Audit.SQLDialect, err)
		}
		s.sqlDB = db
		var repo *sqlrepo.DecisionRepository
		repo, err = sqlrepo.NewDecisionRepository(db, cfg.Audit.SQLDialect, cfg.Audit.SQLTable)
		if err != nil {
			return sinks, err
		}
		if err = repo.EnsureSchema(ctx); err != nil {
			return sinks, fmt.Errorf("audit schema: %w", err)
		}
		sinks = append(sinks, repo)
	}

	if cfg.Audit.Memory {
		sinks = append(sinks, audit.NewMemory(cfg.Audit.MemoryLimit))
	}

	if cfg.Audit.FilePath != "" {
		var file *audit.FileSink
		file, err = audit.NewFileSink(cfg.Audit.FilePath, cfg.Audit.FileFormat)
		if err != nil {
			return sinks, err
		}
		sinks = append(sinks, file)
	}

	if cfg.Audit.KafkaBrokers != "" {
		var producer *audit.KafkaSink
		producer, err = audit.NewKafkaSink(audit.KafkaConfig{
			Brokers: strings.Split(cfg.Audit.KafkaBrokers, ","),
			Topic:   cfg.Audit.KafkaTopic,
		}, s.logger)
		if err != nil {
			return sinks, err
		}
		sinks = append(sinks, producer)
	}

	s.Stream = audit.NewBroadcaster()
	sinks = append(sinks, s.Stream)

	if reader, ok := sinks.Reader(); ok {
		s.Reader = reader
	}
	return sinks, nil
}

// Close drains the audit queue and releases the database clients.
func (s *DecisionService) Close() error {
	var errs []error
	if s.Recorder != nil {
		errs = append(errs, s.Recorder.Close())
	}
	if s.mongo != nil {
		errs = append(errs, s.mongo.Disconnect(context.Background()))
	}
	if s.sqlDB != nil {
		errs = append(errs, s.sqlDB.Close())
	}
	return errors.Join(errs...)
}

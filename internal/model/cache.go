package model

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/albepe01/NetworkSecurity-Project/internal/core"

	"golang.org/x/sync/singleflight"
)

// Validator is the part of the catalog the cache needs.
type Validator interface {
	Validate(sel core.Selector) error
}

// FileLoader reads artifacts from the paths declared in the catalog.
type FileLoader struct {
	Resolve func(sel core.Selector) (string, error)
	// Dim, when positive, must match the artifact input dimension.
	Dim int
}

func (f *FileLoader) Load(ctx context.Context, sel core.Selector) (core.Classifier, error) {
	path, err := f.Resolve(sel)
	if err != nil {
		return nil, err
	}
	clf, err := ReadArtifact(path)
	if err != nil {
		return nil, err
	}
	if f.Dim > 0 {
		if d := inputDim(clf); d > 0 && d != f.Dim {
			return nil, fmt.Errorf("artifact %s expects %d features, extractor produces %d", path, d, f.Dim)
		}
	}
	return clf, nil
}

func inputDim(c core.Classifier) int {
	switch m := c.(type) {
	case *Linear:
		return len(m.Weights)
	case *Forest:
		return m.Dim
	}
	return 0
}

// Cache loads each classifier at most once and serves it read-only afterwards.
// Concurrent first requests for the same key share one load; failed loads are
// not cached.
type Cache struct {
	catalog Validator
	loader  core.ClassifierLoader
	logger  *slog.Logger

	mu     sync.RWMutex
	models map[core.Selector]core.Classifier
	group  singleflight.Group
}

func NewCache(catalog Validator, loader core.ClassifierLoader, logger *slog.Logger) *Cache {
	return &Cache{
		catalog: catalog,
		loader:  loader,
		logger:  logger,
		models:  make(map[core.Selector]core.Classifier),
	}
}

func (c *Cache) Get(ctx context.Context, sel core.Selector) (core.Classifier, error) {
	if err := c.catalog.Validate(sel); err != nil {
		return nil, err
	}

	c.mu.RLock()
	clf, ok := c.models[sel]
	c.mu.RUnlock()
	if ok {
		return clf, nil
	}

	v, err, _ := c.group.Do(sel.String(), func() (interface{}, error) {
		c.mu.RLock()
		clf, ok := c.models[sel]
		c.mu.RUnlock()
		if ok {
			return clf, nil
		}

		// detached from the caller so one cancelled request does not fail the
		// others waiting on the same load
		clf, err := c.loader.Load(context.WithoutCancel(ctx), sel)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.models[sel] = clf
		c.mu.Unlock()
		c.logger.Info("classifier loaded", "dataset", sel.DatasetID, "model", sel.ModelID)
		return clf, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load classifier %s: %w", sel, err)
	}
	return v.(core.Classifier), nil
}

// Warm loads every selection up front; the first error aborts.
func (c *Cache) Warm(ctx context.Context, sels []core.Selector) error {
	for _, sel := range sels {
		if _, err := c.Get(ctx, sel); err != nil {
			return err
		}
	}
	return nil
}

// Len reports how many classifiers are resident.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.models)
}

// Package catalog holds the closed set of (dataset, model) selections the
// decision service and the evaluation harness accept. It is validated once at
// load time so an unknown selector is rejected before any detector call.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/albepe01/NetworkSecurity-Project/internal/core"

	"gopkg.in/yaml.v3"
)

type Model struct {
	ID       string `yaml:"id" json:"id"`
	Artifact string `yaml:"artifact" json:"-"`
}

type Dataset struct {
	ID        string                      `yaml:"id" json:"id"`
	ModelsDir string                      `yaml:"models_dir" json:"-"`
	CorpusDir string                      `yaml:"corpus_dir" json:"-"`
	Corpora   map[core.PayloadType]string `yaml:"corpora" json:"payload_types"`
	Models    []Model                     `yaml:"models" json:"models"`
}

type Catalog struct {
	Datasets []Dataset `yaml:"datasets" json:"datasets"`

	index map[string]map[string]Model
	byID  map[string]*Dataset
}

// Load reads and validates a YAML catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.build(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) build() error {
	if len(c.Datasets) == 0 {
		return errors.New("catalog: no datasets declared")
	}
	c.index = make(map[string]map[string]Model, len(c.Datasets))
	c.byID = make(map[string]*Dataset, len(c.Datasets))

	for i := range c.Datasets {
		ds := &c.Datasets[i]
		if strings.TrimSpace(ds.ID) == "" {
			return fmt.Errorf("catalog: dataset #%d has no id", i)
		}
		if _, dup := c.index[ds.ID]; dup {
			return fmt.Errorf("catalog: duplicate dataset %q", ds.ID)
		}
		if len(ds.Models) == 0 {
			return fmt.Errorf("catalog: dataset %q declares no models", ds.ID)
		}
		for pt := range ds.Corpora {
			canonical, err := core.ParsePayloadType(string(pt))
			if err != nil {
				return fmt.Errorf("catalog: dataset %q: %w", ds.ID, err)
			}
			if canonical != pt {
				return fmt.Errorf("catalog: dataset %q: use %q instead of %q", ds.ID, canonical, pt)
			}
		}
		for _, required := range []core.PayloadType{core.PayloadLegitimate, core.PayloadMalicious} {
			if ds.Corpora[required] == "" {
				return fmt.Errorf("catalog: dataset %q has no %s corpus", ds.ID, required)
			}
		}

		models := make(map[string]Model, len(ds.Models))
		for _, m := range ds.Models {
			if m.ID == "" {
				return fmt.Errorf("catalog: dataset %q has a model without id", ds.ID)
			}
			if m.Artifact == "" {
				return fmt.Errorf("catalog: model %s/%s has no artifact", ds.ID, m.ID)
			}
			if _, dup := models[m.ID]; dup {
				return fmt.Errorf("catalog: duplicate model %s/%s", ds.ID, m.ID)
			}
			models[m.ID] = m
		}
		c.index[ds.ID] = models
		c.byID[ds.ID] = ds
	}
	return nil
}

// Validate rejects selections outside the catalog.
func (c *Catalog) Validate(sel core.Selector) error {
	models, ok := c.index[sel.DatasetID]
	if !ok {
		return fmt.Errorf("%w: %q", core.ErrUnknownDataset, sel.DatasetID)
	}
	if _, ok := models[sel.ModelID]; !ok {
		return fmt.Errorf("%w: model %q is not valid for dataset %q", core.ErrUnknownModel, sel.ModelID, sel.DatasetID)
	}
	return nil
}

// Pairs enumerates every selection in declaration order.
func (c *Catalog) Pairs() []core.Selector {
	var out []core.Selector
	for _, ds := range c.Datasets {
		for _, m := range ds.Models {
			out = append(out, core.Selector{DatasetID: ds.ID, ModelID: m.ID})
		}
	}
	return out
}

// Dataset returns the dataset declaration for id.
func (c *Catalog) Dataset(id string) (*Dataset, bool) {
	ds, ok := c.byID[id]
	return ds, ok
}

// ArtifactPath resolves the classifier artifact of a selection.
func (c *Catalog) ArtifactPath(sel core.Selector) (string, error) {
	if err := c.Validate(sel); err != nil {
		return "", err
	}
	ds := c.byID[sel.DatasetID]
	return resolve(ds.ModelsDir, c.index[sel.DatasetID][sel.ModelID].Artifact), nil
}

// CorpusPath resolves the corpus file of one payload class. Templates may
// reference the model with "{model}" (adversarial-against-ML subsets are per model).
func (c *Catalog) CorpusPath(dataset, model string, pt core.PayloadType) (string, error) {
	ds, ok := c.byID[dataset]
	if !ok {
		return "", fmt.Errorf("%w: %q", core.ErrUnknownDataset, dataset)
	}
	tmpl, ok := ds.Corpora[pt]
	if !ok {
		return "", fmt.Errorf("%w: dataset %q has no %s corpus", core.ErrUnknownPayloadType, dataset, pt)
	}
	return resolve(ds.CorpusDir, strings.ReplaceAll(tmpl, "{model}", model)), nil
}

// HasCorpus reports whether the dataset declares a corpus for pt.
func (c *Catalog) HasCorpus(dataset string, pt core.PayloadType) bool {
	ds, ok := c.byID[dataset]
	if !ok {
		return false
	}
	_, ok = ds.Corpora[pt]
	return ok
}

func resolve(dir, name string) string {
	if dir == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

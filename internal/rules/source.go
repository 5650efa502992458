package rules

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Source supplies rule definitions to the engine.
type Source interface {
	GetAll(ctx context.Context) ([]Rule, error)
}

type builtinSource struct{}

// BuiltinSource serves the compiled-in SQLi rule set.
func BuiltinSource() Source { return builtinSource{} }

func (builtinSource) GetAll(context.Context) ([]Rule, error) { return Builtin(), nil }

// FileSource reads a YAML document of the form `rules: [...]`.
type FileSource struct {
	Path string
}

func (f FileSource) GetAll(context.Context) ([]Rule, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	var doc struct {
		Rules []Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse rules %s: %w", f.Path, err)
	}
	if len(doc.Rules) == 0 {
		return nil, fmt.Errorf("rules file %s declares no rules", f.Path)
	}
	return doc.Rules, nil
}

// Build loads rules from src and compiles an engine at paranoia level pl.
func Build(ctx context.Context, src Source, pl int) (*Engine, error) {
	all, err := src.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return NewEngine(all, pl)
}

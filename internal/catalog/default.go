package catalog

import (
	_ "embed"
)

//go:embed default.yaml
var defaultCatalog []byte

// Default returns the built-in catalog: the wafamole and modsec dataset
// families, each with the same six classifiers.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic("catalog: built-in catalog is invalid: " + err.Error())
	}
	return c
}

// LoadOrDefault loads path, or the built-in catalog when path is empty.
func LoadOrDefault(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

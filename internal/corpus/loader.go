// Package corpus reads the labeled payload subsets and assembles the shuffled
// evaluation set.
package corpus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"sync"

	"github.com/albepe01/NetworkSecurity-Project/internal/core"
)

// DefaultSeed fixes the evaluation order across runs.
const DefaultSeed = 42

// PathResolver maps a payload class to its corpus file.
type PathResolver interface {
	CorpusPath(dataset, model string, pt core.PayloadType) (string, error)
}

// Loader reads corpus files and memoizes them by path.
type Loader struct {
	paths PathResolver

	mu    sync.Mutex
	cache map[string][]string
}

func NewLoader(paths PathResolver) *Loader {
	return &Loader{paths: paths, cache: make(map[string][]string)}
}

// Load returns the payloads of one subset. Unreadable or invalid files wrap
// core.ErrMalformedCorpus.
func (l *Loader) Load(dataset, model string, pt core.PayloadType) ([]string, error) {
	path, err := l.paths.CorpusPath(dataset, model, pt)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if payloads, ok := l.cache[path]; ok {
		return payloads, nil
	}

	payloads, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	l.cache[path] = payloads
	return payloads, nil
}

// At resolves a replay index into the subset, wrapping around its length.
func (l *Loader) At(dataset, model string, pt core.PayloadType, index int) (string, error) {
	payloads, err := l.Load(dataset, model, pt)
	if err != nil {
		return "", err
	}
	if len(payloads) == 0 {
		return "", fmt.Errorf("%w: %s subset of %s is empty", core.ErrMalformedCorpus, pt, dataset)
	}
	i := index % len(payloads)
	if i < 0 {
		i += len(payloads)
	}
	return payloads[i], nil
}

// ReadFile parses a JSON array whose items are either strings or objects with
// a "payload" string field.
func ReadFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedCorpus, err)
	}
	payloads, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrMalformedCorpus, path, err)
	}
	return payloads, nil
}

func Parse(data []byte) ([]string, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	payloads := make([]string, 0, len(items))
	for i, raw := range items {
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '{' {
			var obj struct {
				Payload *string `json:"payload"`
			}
			if err := json.Unmarshal(raw, &obj); err != nil {
				return nil, fmt.Errorf("entry %d: %v", i, err)
			}
			if obj.Payload == nil {
				return nil, fmt.Errorf("entry %d: missing payload field", i)
			}
			payloads = append(payloads, *obj.Payload)
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("entry %d: not a string", i)
		}
		payloads = append(payloads, s)
	}
	return payloads, nil
}

// Subset is one labeled slice of the evaluation set.
type Subset struct {
	Type     core.PayloadType
	Payloads []string
}

// Combine concatenates subsets in order, labels each entry from its payload
// class, and shuffles with a generator seeded by seed. Equal inputs and seed
// always produce the same order.
func Combine(subsets []Subset, seed uint64) []core.CorpusEntry {
	var entries []core.CorpusEntry
	for _, s := range subsets {
		label := s.Type.Label()
		for _, p := range s.Payloads {
			entries = append(entries, core.CorpusEntry{Payload: p, Label: label})
		}
	}
	r := rand.New(rand.NewPCG(seed, seed))
	r.Shuffle(len(entries), func(i, j int) {
		entries[i], entries[j] = entries[j], entries[i]
	})
	return entries
}

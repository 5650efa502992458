package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/albepe01/NetworkSecurity-Project/internal/core"
)

// Multi writes every record to all sinks and joins their errors.
type Multi []core.AuditSink

func (m Multi) Name() string {
	names := make([]string, len(m))
	for i, s := range m {
		names[i] = s.Name()
	}
	return strings.Join(names, "+")
}

func (m Multi) Write(ctx context.Context, rec core.DecisionRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Reader returns the first sink that can be queried back, if any.
func (m Multi) Reader() (core.AuditReader, bool) {
	for _, s := range m {
		if r, ok := s.(core.AuditReader); ok {
			return r, true
		}
	}
	return nil, false
}

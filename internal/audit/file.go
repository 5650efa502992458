package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/albepe01/NetworkSecurity-Project/internal/core"
)

const (
	FormatJSON = "json"
	FormatText = "text"
)

// FileSink appends one line per decision. The json format writes the whole
// record; the text format writes the single-line audit form.
type FileSink struct {
	mu     sync.Mutex
	file   *os.File
	format string
}

func NewFileSink(path, format string) (*FileSink, error) {
	switch format {
	case "":
		format = FormatJSON
	case FormatJSON, FormatText:
	default:
		return nil, fmt.Errorf("unknown audit file format %q", format)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &FileSink{file: f, format: format}, nil
}

func (s *FileSink) Name() string { return "file" }

func (s *FileSink) Write(ctx context.Context, rec core.DecisionRecord) error {
	var line []byte
	if s.format == FormatText {
		line = []byte(rec.AuditLine())
	} else {
		b, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		line = b
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	// one write call per entry keeps lines whole under O_APPEND
	_, err := s.file.Write(line)
	return err
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// LoadError records why a knowledge source could not be used.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("knowledge source %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoadReport describes the outcome of a probe.
type LoadReport struct {
	// Source is the winning source name, or BuiltinSource when degraded.
	Source   string
	Degraded bool
	// Errors holds one entry per probed source that was present but unusable.
	Errors []*LoadError
}

// Parse decodes and validates a knowledge document.
func Parse(data []byte, format Format, source string) (*KnowledgeBase, error) {
	// Some editors on Windows prepend a BOM.
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var doc Document
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse yaml: %w", err)
		}
	case FormatJSON, "":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse json: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	return New(doc, source)
}

// Loader probes an ordered list of sources.
type Loader struct {
	sources []Source
	log     *zap.Logger
}

// NewLoader creates a loader that probes sources in the given order.
func NewLoader(log *zap.Logger, sources ...Source) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{sources: sources, log: log}
}

// Sources returns the probe list.
func (l *Loader) Sources() []Source {
	return l.sources
}

// Load returns the knowledge base of the first source that exists and parses.
// When none does it falls back to the built-in knowledge base; it never fails.
func (l *Loader) Load(ctx context.Context) (*KnowledgeBase, LoadReport) {
	var report LoadReport

	for _, src := range l.sources {
		data, format, err := src.Read(ctx)
		if errors.Is(err, ErrSourceNotFound) {
			l.log.Debug("knowledge_source_missing", zap.String("source", src.Name()))
			continue
		}
		if err != nil {
			l.skip(&report, src, err)
			continue
		}

		kb, err := Parse(data, format, src.Name())
		if err != nil {
			l.skip(&report, src, err)
			continue
		}

		report.Source = src.Name()
		l.log.Info("knowledge_loaded",
			zap.String("source", src.Name()),
			zap.Int("components", len(kb.components)),
			zap.Int("patterns", len(kb.patterns)),
			zap.Int("intents", len(kb.intents)))
		return kb, report
	}

	report.Source = BuiltinSource
	report.Degraded = true
	l.log.Warn("knowledge_degraded_mode",
		zap.String("source", BuiltinSource),
		zap.Int("probed", len(l.sources)),
		zap.Int("errors", len(report.Errors)))
	return Builtin(), report
}

func (l *Loader) skip(report *LoadReport, src Source, err error) {
	loadErr := &LoadError{Source: src.Name(), Err: err}
	report.Errors = append(report.Errors, loadErr)
	l.log.Warn("knowledge_source_unusable", zap.String("source", src.Name()), zap.Error(err))
}

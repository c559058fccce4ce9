// Package mapping turns INSPIRE author records into an identifier to
// name-token mapping.
package mapping

import (
	"github.com/Sternrassler/inspire-names/pkg/logging"
	"github.com/Sternrassler/inspire-names/pkg/marc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// MARC locations of the identifiers.
const (
	IdentifierTag = "035"
	SchemeCode    = "9"
	ValueCode     = "a"
	SchemeInspire = "INSPIRE"
	SchemeBAI     = "BAI"
)

// AbsentKey is the key used for records without an INSPIRE identifier.
// It matches how an absent key is rendered in the JSON output.
const AbsentKey = "null"

const (
	componentName    = "mapper"
	incompleteLogCap = 20
)

var (
	mappingEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inspire_mapping_entries",
		Help: "Number of entries in the last built identity mapping",
	})

	mappingIncompleteTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inspire_mapping_incomplete_total",
		Help: "Records missing an INSPIRE identifier or a BAI name",
	})
)

// IdentityMapping maps an INSPIRE identifier to a BAI name token.
// A record without identifier is keyed by AbsentKey; a missing name is nil.
type IdentityMapping map[string]*string

// Name returns the name token for id and whether it is present and non-nil.
func (m IdentityMapping) Name(id string) (string, bool) {
	v, ok := m[id]
	if !ok || v == nil {
		return "", false
	}
	return *v, true
}

// Complete returns the number of entries with both an identifier and a name.
func (m IdentityMapping) Complete() int {
	n := 0
	for k, v := range m {
		if k != AbsentKey && v != nil {
			n++
		}
	}
	return n
}

// Option configures Build.
type Option func(*options)

type options struct {
	excludeIncomplete bool
	logger            *zerolog.Logger
}

// WithExcludeIncomplete skips records that lack either the identifier or
// the name instead of inserting them with an absent side.
func WithExcludeIncomplete() Option {
	return func(o *options) {
		o.excludeIncomplete = true
	}
}

// WithLogger makes Build log through logger instead of a fresh component
// logger, so the lines carry the caller's fields such as a run ID.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &logger
	}
}

// Extract returns the INSPIRE identifier and BAI name of a single record.
// Later 035 fields override earlier ones of the same scheme. An empty value
// subfield counts as absent and clears what an earlier field set.
func Extract(rec *marc.Record) (id, name *string) {
	for _, df := range rec.Fields(IdentifierTag) {
		scheme, ok := df.Subfield(SchemeCode)
		if !ok {
			continue
		}
		value, ok := df.Subfield(ValueCode)
		if !ok {
			continue
		}

		var v *string
		if value.Value != "" {
			s := value.Value
			v = &s
		}

		switch scheme.Value {
		case SchemeInspire:
			id = v
		case SchemeBAI:
			name = v
		}
	}
	return id, name
}

// Build scans every record and inserts one entry per record.
// Duplicate identifiers overwrite earlier entries.
func Build(records []marc.Record, opts ...Option) IdentityMapping {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := logging.NewLogger(componentName)
	if o.logger != nil {
		logger = *o.logger
	}
	out := make(IdentityMapping, len(records))
	incomplete := 0

	for i := range records {
		id, name := Extract(&records[i])

		if id == nil || name == nil {
			incomplete++
			mappingIncompleteTotal.Inc()
			if incomplete <= incompleteLogCap {
				logger.Debug().
					Str("control_number", records[i].ControlNumber()).
					Bool("has_id", id != nil).
					Bool("has_name", name != nil).
					Msg("Incomplete identity record")
			}
			if o.excludeIncomplete {
				continue
			}
		}

		key := AbsentKey
		if id != nil {
			key = *id
		}
		out[key] = name
	}

	mappingEntries.Set(float64(len(out)))
	logger.Info().
		Int("records", len(records)).
		Int("entries", len(out)).
		Int("incomplete", incomplete).
		Bool("exclude_incomplete", o.excludeIncomplete).
		Msg("Identity mapping built")

	return out
}

package tracker

import (
	"fmt"
	"log/slog"
	"sync"
)

// Store holds the current Record for one job. All methods are safe for
// concurrent use; mutations validate a full replacement before swapping it in.
type Store struct {
	mu      sync.RWMutex
	record  Record
	quality string
	compute string
	cutoff  float64
	strict  bool
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithDefaults sets the quality and compute keys used by Reset.
func WithDefaults(quality, compute string) Option {
	return func(s *Store) {
		s.quality = NormalizeQuality(quality)
		s.compute = NormalizeCompute(compute)
	}
}

// WithLogger routes field-name substitutions to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithFieldCutoff overrides the similarity cutoff for approximate field names.
func WithFieldCutoff(cutoff float64) Option {
	return func(s *Store) {
		if cutoff > 0 && cutoff <= 1 {
			s.cutoff = cutoff
		}
	}
}

// WithStrictFields rejects any key that is not an exact field name.
func WithStrictFields() Option {
	return func(s *Store) { s.strict = true }
}

// NewStore returns a Store holding a fresh NOT_STARTED record.
func NewStore(opts ...Option) *Store {
	s := &Store{
		quality: DefaultQuality,
		compute: DefaultCompute,
		cutoff:  DefaultFieldCutoff,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.record = NewRecord(s.quality, s.compute)
	return s
}

// Update applies loosely typed field values. Keys resolve exactly or, unless
// the store is strict, to the single most similar field name. Nothing is
// applied if any key or value is rejected.
func (s *Store) Update(fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.record
	for key, value := range fields {
		res, err := resolveField(key, s.cutoff, s.strict)
		if err != nil {
			return err
		}
		if res.approximate {
			s.logger.Warn("tracker field name resolved approximately",
				slog.String("requested_field", key),
				slog.String("resolved_field", res.field),
				slog.Float64("similarity", res.score),
			)
		}
		if err := setField(&next, res.field, value); err != nil {
			return fmt.Errorf("update %s: %w", res.field, err)
		}
	}
	if err := next.Validate(); err != nil {
		return err
	}
	s.record = next
	return nil
}

// Get returns one field value, resolving the name like Update.
func (s *Store) Get(field string) (any, error) {
	res, err := resolveField(field, s.cutoff, s.strict)
	if err != nil {
		return nil, err
	}
	if res.approximate {
		s.logger.Debug("tracker field name resolved approximately",
			slog.String("requested_field", field),
			slog.String("resolved_field", res.field),
		)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getField(s.record, res.field)
}

// Mutate runs fn against a copy of the record and stores the result if fn
// succeeds and the result validates.
func (s *Store) Mutate(fn func(*Record) error) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.record
	if err := fn(&next); err != nil {
		return s.record, err
	}
	if err := next.Validate(); err != nil {
		return s.record, err
	}
	s.record = next
	return next, nil
}

// Replace swaps in record after validating it.
func (s *Store) Replace(record Record) error {
	if err := record.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.record = record
	s.mu.Unlock()
	return nil
}

// Reset replaces the record with a fresh NOT_STARTED one.
func (s *Store) Reset() {
	s.mu.Lock()
	s.record = NewRecord(s.quality, s.compute)
	s.mu.Unlock()
}

// Fresh returns the record Reset would install, without installing it.
func (s *Store) Fresh() Record {
	return NewRecord(s.quality, s.compute)
}

// Snapshot returns a copy of the current record.
func (s *Store) Snapshot() Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record
}

// Status returns the current lifecycle position.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record.Status
}

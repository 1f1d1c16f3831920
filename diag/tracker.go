// Package diag collects the recoverable findings a variable-decoder walk
// produces (unknown magics and unknown type tags; out-of-range string
// indices and lossy string decodes are only logged) without aborting the
// walk that found them, and exposes progress counters
// that are safe to poll from a goroutine other than the one driving the
// parse.
package diag

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Tracker accumulates diagnostics for a single parse. The zero value is not
// usable; construct with New.
type Tracker struct {
	logger     *zap.Logger
	checksums  bool
	onProgress func(done, total int)

	mu           sync.Mutex
	issues       error
	unknownTypes map[string]int
	seenPayloads map[uint64]int

	recordsParsed atomic.Int64
	bytesConsumed atomic.Int64
	unknownCount  atomic.Int64
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger attaches structured logging for every recoverable finding.
func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// WithChecksums enables xxhash-based deduplication of unrecognised opaque
// payloads: repeated occurrences of byte-identical unknown blobs collapse
// to a single counted diagnostic instead of one entry per occurrence.
func WithChecksums(enabled bool) Option {
	return func(t *Tracker) { t.checksums = enabled }
}

// WithProgress registers a callback invoked as records are consumed; done
// and total are both counts of variable-table entries. Progress calls it
// synchronously, on the goroutine driving the parse.
func WithProgress(fn func(done, total int)) Option {
	return func(t *Tracker) { t.onProgress = fn }
}

// New creates a Tracker ready to accumulate diagnostics.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		logger:       zap.NewNop(),
		unknownTypes: map[string]int{},
		seenPayloads: map[uint64]int{},
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// UnknownMagic records a top-level dispatch that matched no known record
// tag. Fail-soft per §4.3.2/§4.4: never returns an error.
func (t *Tracker) UnknownMagic(offset int64, tag string, payload []byte) {
	t.unknownCount.Inc()
	t.logger.Warn("unknown magic", zap.Int64("offset", offset), zap.String("tag", tag), zap.Int("size", len(payload)))

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.recordDedup(payload) {
		return
	}
	t.issues = multierr.Append(t.issues, fmt.Errorf("unknown magic %q at offset %d (%d bytes)", tag, offset, len(payload)))
}

// UnknownType records a type name encountered during token parse that is
// not in the builtin set. The typeName is added to the observable
// "unknown types" set regardless of deduplication, per §8's testable
// property that the set equals exactly the encountered unknown names.
func (t *Tracker) UnknownType(offset int64, typeName string, payload []byte) {
	t.unknownCount.Inc()
	t.logger.Warn("unknown type", zap.Int64("offset", offset), zap.String("type", typeName), zap.Int("size", len(payload)))

	t.mu.Lock()
	defer t.mu.Unlock()
	t.unknownTypes[typeName]++
	if !t.recordDedup(payload) {
		return
	}
	t.issues = multierr.Append(t.issues, fmt.Errorf("unknown type %q at offset %d (%d bytes)", typeName, offset, len(payload)))
}

// BadStringIndex records a name/type index that resolved to the "unknown"
// sentinel because it was 0 or out of range.
func (t *Tracker) BadStringIndex(offset int64, idx int, tableLen int) {
	t.logger.Debug("out-of-range string index", zap.Int64("offset", offset), zap.Int("index", idx), zap.Int("table_len", tableLen))
}

// LossyDecode records that a string-table entry required a lossy UTF-8
// decode.
func (t *Tracker) LossyDecode(offset int64, raw []byte) {
	t.logger.Debug("lossy-decoded string table entry", zap.Int64("offset", offset), zap.Int("len", len(raw)))
}

// recordDedup returns true the first time a given payload is seen (or
// always, if checksumming is disabled). Must be called with t.mu held.
func (t *Tracker) recordDedup(payload []byte) bool {
	if !t.checksums {
		return true
	}
	sum := xxhash.Sum64(payload)
	t.seenPayloads[sum]++
	return t.seenPayloads[sum] == 1
}

// Progress reports done out of total variable-table entries processed.
func (t *Tracker) Progress(done, total int) {
	t.recordsParsed.Store(int64(done))
	if t.onProgress != nil {
		t.onProgress(done, total)
	}
}

// AddBytesConsumed is an atomic counter a progress-watching goroutine can
// poll concurrently with the parse itself.
func (t *Tracker) AddBytesConsumed(n int64) {
	t.bytesConsumed.Add(n)
}

// BytesConsumed returns the running total of bytes debited from any size
// bucket so far. Safe to call concurrently with an in-progress parse.
func (t *Tracker) BytesConsumed() int64 {
	return t.bytesConsumed.Load()
}

// RecordsParsed returns the number of variable-table entries processed so
// far. Safe to call concurrently with an in-progress parse.
func (t *Tracker) RecordsParsed() int64 {
	return t.recordsParsed.Load()
}

// UnknownCount returns the number of unknown-magic and unknown-type
// occurrences seen so far (before deduplication).
func (t *Tracker) UnknownCount() int64 {
	return t.unknownCount.Load()
}

// UnknownTypes returns a snapshot of the unknown-type-name set with
// occurrence counts, satisfying §6/§8's "set of unknown type names"
// output.
func (t *Tracker) UnknownTypes() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.unknownTypes))
	for k, v := range t.unknownTypes {
		out[k] = v
	}
	return out
}

// Issues returns the combined recoverable-issue error, or nil if none were
// recorded. Built with multierr so callers can multierr.Errors() it apart
// if they want the individual findings.
func (t *Tracker) Issues() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.issues
}

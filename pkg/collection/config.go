// Package collection implements Collection (spec component C9): one
// logical database binding the record store, HNSW graph, inverted text
// index, filter evaluator, fusion engine, and WAL/snapshot persistence
// behind a single config and a single RWMutex, plus the batch executor,
// TTL sweep, and auto-compaction trigger (component C12). One struct owns
// index + quantizer + config + mutex, with its own Init/Close lifecycle,
// and CRUD/search/query responsibilities split across separate files.
package collection

import (
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/logging"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/quantization"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/text"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/vector"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/wal"
)

// HNSWConfig holds the graph construction/search parameters, per spec §4.3.
type HNSWConfig struct {
	M               int
	EfConstruction  int
	EfSearchDefault int
}

// DefaultHNSWConfig returns M=16, EfConstruction=200, EfSearchDefault=50.
func DefaultHNSWConfig() HNSWConfig {
	return HNSWConfig{M: 16, EfConstruction: 200, EfSearchDefault: 50}
}

// BM25Config holds BM25F scoring parameters, per spec §4.4.
type BM25Config struct {
	K1           float64
	B            float64
	FieldWeights map[string]float64

	// PhraseBoost multiplies a document's score when a "quoted phrase"
	// sub-query matches it as a contiguous run, per spec §4.4.
	PhraseBoost float64
}

// DefaultBM25Config returns k1=1.2, b=0.75, phrase boost 2.0.
func DefaultBM25Config() BM25Config {
	return BM25Config{K1: 1.2, B: 0.75, FieldWeights: map[string]float64{}, PhraseBoost: 2.0}
}

// WALConfig holds the durability policy, per spec §4.2/§4.7.
type WALConfig struct {
	FsyncPolicy wal.FsyncPolicy
}

// DefaultWALConfig fsyncs on every write.
func DefaultWALConfig() WALConfig {
	return WALConfig{FsyncPolicy: wal.DefaultFsyncPolicy()}
}

// CompactionConfig holds auto-compaction trigger thresholds, per spec §4.11.
type CompactionConfig struct {
	Enabled           bool
	MinDeletedRecords int
	MinDeletedRatio   float64
}

// DefaultCompactionConfig triggers compaction at 10k deleted records or a
// 30% deleted ratio, whichever comes first.
func DefaultCompactionConfig() CompactionConfig {
	return CompactionConfig{Enabled: true, MinDeletedRecords: 10_000, MinDeletedRatio: 0.3}
}

// QuantizationConfig is the PQ/SQ/binary extension point from spec §5 and
// §9 ("PQ is orthogonal to this spec and may be treated as an extension
// point"). Disabled by default; when enabled, Codec compresses dense
// vectors for storage but the HNSW graph still searches on the original
// f32 vectors (PQ integration is a storage optimization, not a search-path
// change).
type QuantizationConfig struct {
	Enabled bool
	Codec   quantization.Codec
}

// Config is a Collection's full configuration, per spec §4.8's literal shape.
type Config struct {
	Dimension  int
	Metric     vector.Metric
	HNSW       HNSWConfig
	Tokenizer  text.TokenizerKind
	BM25       BM25Config
	WAL        WALConfig
	Compaction CompactionConfig
	Quantization QuantizationConfig

	// StrictMode makes Upsert fail with DuplicateId for an id that already
	// exists instead of upserting it; default (false) is upsert, per spec §4.3.
	StrictMode bool

	// MaxOverfetch caps k' = k * overfetch_factor for filtered queries,
	// per spec §4.3.
	MaxOverfetch int

	// FilterSelectivityThreshold selects the filtered-search strategy: at
	// or above this estimated selectivity, use the in-graph predicate
	// (cheap, the filter rarely excludes a candidate); below it, use
	// overfetch + post-filter (spec §4.3's two strategies; see DESIGN.md
	// for why this module picks the strategy on an estimated-selectivity
	// threshold rather than the spec prose's literal, and internally
	// inconsistent, wording).
	FilterSelectivityThreshold float64

	Logger logging.Logger
}

// DefaultConfig returns a Config with the spec's default parameters for
// the given dimension and metric.
func DefaultConfig(dimension int, metric vector.Metric) Config {
	return Config{
		Dimension:                  dimension,
		Metric:                     metric,
		HNSW:                       DefaultHNSWConfig(),
		Tokenizer:                  text.Simple,
		BM25:                       DefaultBM25Config(),
		WAL:                        DefaultWALConfig(),
		Compaction:                 DefaultCompactionConfig(),
		MaxOverfetch:               4,
		FilterSelectivityThreshold: 0.5,
		Logger:                     logging.Nop(),
	}
}

func (c *Config) applyDefaults() {
	if c.HNSW.M == 0 {
		c.HNSW = DefaultHNSWConfig()
	}
	if c.BM25.K1 == 0 && c.BM25.B == 0 {
		c.BM25 = DefaultBM25Config()
	}
	if c.BM25.PhraseBoost == 0 {
		c.BM25.PhraseBoost = 2.0
	}
	if c.MaxOverfetch == 0 {
		c.MaxOverfetch = 4
	}
	if c.FilterSelectivityThreshold == 0 {
		c.FilterSelectivityThreshold = 0.5
	}
	if c.Logger == nil {
		c.Logger = logging.Nop()
	}
}

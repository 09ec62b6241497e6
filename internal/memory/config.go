package memory

// Config tunes retrieval scoring, retention, and compaction. The zero value
// is unusable; call DefaultConfig and override fields as needed.
type Config struct {
	// TopK is the default number of memories a search returns.
	TopK int `yaml:"top_k" validate:"gt=0"`
	// TTLDays is the age at which memories stop appearing in searches and
	// become eligible for garbage collection.
	TTLDays int `yaml:"ttl_days" validate:"gt=0"`
	// RecencyLambda is the linear score penalty per day of age.
	RecencyLambda float64 `yaml:"recency_lambda" validate:"gte=0"`
	// SalienceWeight scales the salience contribution to the score.
	SalienceWeight float64 `yaml:"salience_weight" validate:"gte=0"`
	// ScoreCutoff drops candidates scoring below it even when fewer than
	// TopK remain.
	ScoreCutoff float64 `yaml:"score_cutoff"`
	// DupThreshold is the cosine similarity at or above which a new memory
	// is considered a duplicate of an existing one and not inserted.
	DupThreshold float64 `yaml:"dup_threshold" validate:"gt=0,lte=1"`
	// FetchMultiplier sizes the superset fetched from the index before
	// re-scoring: limit = TopK x FetchMultiplier.
	FetchMultiplier int `yaml:"fetch_multiplier" validate:"gt=0"`
	// MinContentLen discards trivially short writes.
	MinContentLen int `yaml:"min_content_len" validate:"gte=0"`
	// SkipStubWrites refuses writes while the embedder is non-semantic, so
	// a corpus shared with real-embedding runs never fills with hash
	// vectors.
	SkipStubWrites bool `yaml:"skip_stub_writes"`
	// RollupEvery triggers a compaction pass after this many oversight
	// writes.
	RollupEvery int `yaml:"rollup_every" validate:"gt=0"`
	// RollupRecent is how many recent oversight memories feed one rollup
	// summary.
	RollupRecent int `yaml:"rollup_recent" validate:"gt=0"`
	// GCBatch caps deletions per garbage collection pass so compaction
	// never stalls a decision round.
	GCBatch int `yaml:"gc_batch" validate:"gt=0"`
}

// DefaultConfig returns the retention defaults.
func DefaultConfig() Config {
	return Config{
		TopK:            5,
		TTLDays:         90,
		RecencyLambda:   0.01,
		SalienceWeight:  0.05,
		ScoreCutoff:     0.2,
		DupThreshold:    0.97,
		FetchMultiplier: 3,
		MinContentLen:   12,
		RollupEvery:     50,
		RollupRecent:    10,
		GCBatch:         100,
	}
}

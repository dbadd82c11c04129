package dynamictm

import "fmt"

// Config holds the tunable parameters of a DynamicTM instance. There is no
// flag or environment-variable binding here — configuration is a plain
// struct, the same way the teacher's qgram package carries a
// SearchConfig/DefaultSearchConfig pair; CLI parsing lives entirely in
// cmd/buildindex.
type Config struct {
	UseSystemVocab  bool
	SampleSize      int
	MaxSourcePhrase int
	MaxTargetPhrase int
	CacheThreshold  int
	FeatureTemplate FeatureTemplateName
}

// FeatureTemplateName is the configuration-facing name for a feature
// template, validated against an allow-list at SetFeatureTemplate time.
type FeatureTemplateName int

const (
	// Dense selects the four core translation features.
	Dense FeatureTemplateName = iota
	// DenseExt additionally includes log-count and singleton indicator.
	DenseExt
)

// DefaultConfig returns the conventional sampling-phrase-table defaults:
// sample 100 occurrences per query, bound phrases to 7 words on either
// side, and cache unigrams with more than 100 raw hits.
func DefaultConfig() Config {
	return Config{
		UseSystemVocab:  false,
		SampleSize:      100,
		MaxSourcePhrase: 7,
		MaxTargetPhrase: 7,
		CacheThreshold:  100,
		FeatureTemplate: Dense,
	}
}

// Validate returns ErrConfig (wrapped with detail) if c describes an
// unusable configuration.
func (c Config) Validate() error {
	if c.FeatureTemplate != Dense && c.FeatureTemplate != DenseExt {
		return fmt.Errorf("%w: unknown feature template %d", ErrConfig, c.FeatureTemplate)
	}
	if c.SampleSize <= 0 {
		return fmt.Errorf("%w: sample size must be positive, got %d", ErrConfig, c.SampleSize)
	}
	if c.MaxSourcePhrase <= 0 {
		return fmt.Errorf("%w: max source phrase must be positive, got %d", ErrConfig, c.MaxSourcePhrase)
	}
	if c.MaxTargetPhrase <= 0 {
		return fmt.Errorf("%w: max target phrase must be positive, got %d", ErrConfig, c.MaxTargetPhrase)
	}
	return nil
}

package scorer

// FeatureTemplate selects which feature set Scorer produces.
type FeatureTemplate int

const (
	// DENSE produces the four core translation features.
	DENSE FeatureTemplate = iota
	// DENSEExt additionally includes the log-count and singleton
	// indicator features.
	DENSEExt
)

// MinLexProb substitutes for any lexical probability factor that would
// otherwise be exactly zero, so the downstream log never sees a zero.
const MinLexProb = 1e-5

// FeatureVector is the scored feature set for one extracted rule.
type FeatureVector struct {
	PhiFE     float32
	PhiEF     float32
	LexFE     float32
	LexEF     float32
	LogCount  float32 // DENSEExt only; zero value otherwise
	Singleton float32 // DENSEExt only; 0 or 1
}

package provider

import "github.com/example/lingoflow/internal/config"

// Quality modes. Unrecognised values normalise to QualityStandard.
const (
	QualityFast     = "fast"
	QualityStandard = "standard"
	QualityHigh     = "high"
)

// NormalizeQuality maps any string onto a known quality mode.
func NormalizeQuality(q string) string {
	switch q {
	case QualityFast, QualityStandard, QualityHigh:
		return q
	default:
		return QualityStandard
	}
}

// GenParams are the generation options recognised by every provider.
// Providers translate them to their engine's vocabulary.
type GenParams struct {
	Temperature       float64
	TopP              float64
	NumBeams          int
	DoSample          bool
	MinNewTokens      int
	MaxNewTokens      int
	RepetitionPenalty float64
	NoRepeatNgramSize int
	EarlyStopping     bool
}

// quality → built-in defaults.
var qualityDefaults = map[string]GenParams{
	QualityFast: {
		Temperature: 0.7, TopP: 0.9, NumBeams: 1, DoSample: true,
		MinNewTokens: 1, MaxNewTokens: 128,
		RepetitionPenalty: 1.5, NoRepeatNgramSize: 3,
	},
	QualityStandard: {
		Temperature: 0.5, TopP: 0.85, NumBeams: 1, DoSample: true,
		MinNewTokens: 1, MaxNewTokens: 256,
		RepetitionPenalty: 1.5, NoRepeatNgramSize: 3,
	},
	QualityHigh: {
		Temperature: 0.3, TopP: 0.8, NumBeams: 4, DoSample: false,
		MinNewTokens: 1, MaxNewTokens: 512,
		RepetitionPenalty: 1.5, NoRepeatNgramSize: 3,
	},
}

// ForQuality resolves the generation parameters for a quality mode,
// layering any configured overrides on top of the built-in defaults. Beam
// search (num_beams > 1) always forces greedy decoding with early stopping.
func ForQuality(quality string, overrides map[string]config.GenerationOverrides) GenParams {
	q := NormalizeQuality(quality)
	params := qualityDefaults[q]
	if o, ok := overrides[q]; ok {
		params = params.Apply(o)
	}
	if params.NumBeams > 1 {
		params.DoSample = false
		params.EarlyStopping = true
	}
	return params
}

// Apply overlays non-nil override fields onto p.
func (p GenParams) Apply(o config.GenerationOverrides) GenParams {
	if o.Temperature != nil {
		p.Temperature = *o.Temperature
	}
	if o.TopP != nil {
		p.TopP = *o.TopP
	}
	if o.NumBeams != nil {
		p.NumBeams = *o.NumBeams
	}
	if o.DoSample != nil {
		p.DoSample = *o.DoSample
	}
	if o.MinNewTokens != nil {
		p.MinNewTokens = *o.MinNewTokens
	}
	if o.MaxNewTokens != nil {
		p.MaxNewTokens = *o.MaxNewTokens
	}
	if o.RepetitionPenalty != nil {
		p.RepetitionPenalty = *o.RepetitionPenalty
	}
	if o.NoRepeatNgramSize != nil {
		p.NoRepeatNgramSize = *o.NoRepeatNgramSize
	}
	return p
}

// ForceOutputOnly returns the parameter set for the single wrong-language
// retry: short, single-beam, mildly sampled output.
func (p GenParams) ForceOutputOnly() GenParams {
	p.MinNewTokens = 5
	p.MaxNewTokens = 64
	p.NumBeams = 1
	p.DoSample = true
	p.Temperature = 0.5
	p.TopP = 0.9
	p.RepetitionPenalty = 1.1
	p.EarlyStopping = false
	return p
}

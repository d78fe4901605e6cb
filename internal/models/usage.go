package models

// UsageMetrics accumulates raw resource counters for one job. The pipeline
// owns one instance per run; it is never shared across jobs.
type UsageMetrics struct {
	LLMInputTokens  int    `json:"llm_input_tokens"`
	LLMOutputTokens int    `json:"llm_output_tokens"`
	LLMModel        string `json:"llm_model,omitempty"`

	TTSCharacters int    `json:"tts_characters"`
	TTSProvider   string `json:"tts_provider,omitempty"`

	// ImagesByTier counts acquired visuals by the tier that produced them.
	ImagesByTier map[string]int `json:"images_by_tier,omitempty"`
}

// Add folds other's counters into m.
func (m *UsageMetrics) Add(other UsageMetrics) {
	m.LLMInputTokens += other.LLMInputTokens
	m.LLMOutputTokens += other.LLMOutputTokens
	m.TTSCharacters += other.TTSCharacters
	for tier, n := range other.ImagesByTier {
		m.CountImage(tier, n)
	}
}

// CountImage records n images produced by the named tier.
func (m *UsageMetrics) CountImage(tier string, n int) {
	if m.ImagesByTier == nil {
		m.ImagesByTier = make(map[string]int)
	}
	m.ImagesByTier[tier] += n
}

// CostReport is the estimated spend derived from UsageMetrics, attached to
// the completed job's metadata.
type CostReport struct {
	LLMCost   float64 `json:"llm_cost"`
	TTSCost   float64 `json:"tts_cost"`
	ImageCost float64 `json:"image_cost"`
	TotalUSD  float64 `json:"total_usd"`
}

// Per-unit prices in USD. LLM prices are per token, TTS per character,
// image prices per generated image.
var (
	llmPricing = map[string]struct{ input, output float64 }{
		"gemini-2.0-flash": {0.10 / 1_000_000, 0.40 / 1_000_000},
		"gemini-1.5-flash": {0.075 / 1_000_000, 0.30 / 1_000_000},
	}

	ttsPricing = map[string]float64{
		"elevenlabs": 0.30 / 1_000,
		"edge_tts":   0,
	}

	imagePricing = map[string]float64{
		"pollinations": 0,
		"replicate":    0.003,
		"dalle":        0.040,
	}
)

// EstimateCost prices the accumulated usage. Unknown providers and tiers
// price at zero rather than failing the report.
func EstimateCost(m UsageMetrics) CostReport {
	var r CostReport

	if p, ok := llmPricing[m.LLMModel]; ok {
		r.LLMCost = float64(m.LLMInputTokens)*p.input + float64(m.LLMOutputTokens)*p.output
	}
	r.TTSCost = float64(m.TTSCharacters) * ttsPricing[m.TTSProvider]
	for tier, n := range m.ImagesByTier {
		r.ImageCost += float64(n) * imagePricing[tier]
	}

	r.TotalUSD = r.LLMCost + r.TTSCost + r.ImageCost
	return r
}

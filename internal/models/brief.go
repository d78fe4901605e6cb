package models

// StyleArchetype selects the aesthetic and narrative register of the output.
type StyleArchetype string

const (
	StyleTechnical    StyleArchetype = "technical"
	StyleStorytelling StyleArchetype = "storytelling"
	StyleDocumentary  StyleArchetype = "documentary"
	StyleMinimalist   StyleArchetype = "minimalist"
)

// Valid reports whether s is a known archetype.
func (s StyleArchetype) Valid() bool {
	switch s {
	case StyleTechnical, StyleStorytelling, StyleDocumentary, StyleMinimalist:
		return true
	}
	return false
}

// AudienceLevel tunes how much background the narration assumes.
type AudienceLevel string

const (
	AudienceBeginner     AudienceLevel = "beginner"
	AudienceIntermediate AudienceLevel = "intermediate"
	AudienceAdvanced     AudienceLevel = "advanced"
)

// ContentBrief is the structured content request handed to script generation.
// It is immutable once the pipeline starts.
type ContentBrief struct {
	Topic            string         `json:"topic"`
	KeyPoints        []string       `json:"key_points,omitempty"`
	TargetDuration   int            `json:"target_duration"`
	StyleArchetype   StyleArchetype `json:"style_archetype"`
	AudienceLevel    AudienceLevel  `json:"audience_level"`
	CallToAction     string         `json:"call_to_action,omitempty"`
	VisualReferences []string       `json:"visual_references,omitempty"`
	VoiceID          string         `json:"voice_id,omitempty"`
	// PinTier forces visual acquisition through one named tier.
	PinTier string `json:"pin_tier,omitempty"`
}

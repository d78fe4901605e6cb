package models

import "fmt"

// VisualType tags the kind of visual a scene renders.
type VisualType string

const (
	VisualTitle   VisualType = "title"
	VisualList    VisualType = "list"
	VisualGraph   VisualType = "graph"
	VisualImage   VisualType = "image"
	VisualCode    VisualType = "code"
	VisualConcept VisualType = "concept"
	VisualBRoll   VisualType = "broll"
)

// TitleConfig drives big-typography intro/hook scenes.
type TitleConfig struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
}

// ListConfig drives bullet-list scenes.
type ListConfig struct {
	Title string   `json:"title,omitempty"`
	Items []string `json:"items"`
}

// GraphConfig drives performance-data scenes.
type GraphConfig struct {
	XLabel string `json:"x_label,omitempty"`
	YLabel string `json:"y_label,omitempty"`
}

// ImageConfig references a still image with an optional caption.
type ImageConfig struct {
	ImagePath string `json:"image_path"`
	Caption   string `json:"caption,omitempty"`
}

// CodeConfig drives code-snippet scenes.
type CodeConfig struct {
	Language string `json:"language,omitempty"`
	Snippet  string `json:"snippet,omitempty"`
}

// ConceptConfig drives abstract narration scenes. The prompt, when set,
// seeds AI image acquisition for the scene background.
type ConceptConfig struct {
	Prompt string `json:"prompt,omitempty"`
}

// BRollConfig drives stock-footage scenes fetched by free-text query.
type BRollConfig struct {
	Query string `json:"query"`
}

// VisualConfig is a tagged union keyed by the scene's VisualType.
// Exactly the variant matching the type is set; the rest are nil.
type VisualConfig struct {
	Title   *TitleConfig   `json:"title,omitempty"`
	List    *ListConfig    `json:"list,omitempty"`
	Graph   *GraphConfig   `json:"graph,omitempty"`
	Image   *ImageConfig   `json:"image,omitempty"`
	Code    *CodeConfig    `json:"code,omitempty"`
	Concept *ConceptConfig `json:"concept,omitempty"`
	BRoll   *BRollConfig   `json:"broll,omitempty"`
}

// Validate checks that the variant set in the config matches vt.
func (vc VisualConfig) Validate(vt VisualType) error {
	ok := false
	switch vt {
	case VisualTitle:
		ok = vc.Title != nil
	case VisualList:
		ok = vc.List != nil
	case VisualGraph:
		ok = vc.Graph != nil
	case VisualImage:
		ok = vc.Image != nil
	case VisualCode:
		ok = vc.Code != nil
	case VisualConcept:
		ok = vc.Concept != nil
	case VisualBRoll:
		ok = vc.BRoll != nil
	default:
		return fmt.Errorf("unknown visual type %q", vt)
	}
	if !ok {
		return fmt.Errorf("visual config missing %s variant", vt)
	}
	return nil
}

// Scene is one timed, typed segment of a generated script.
// Immutable after creation; scene numbers are 1-based and contiguous,
// and StartTime of scene i+1 equals StartTime+Duration of scene i.
type Scene struct {
	SceneNumber int          `json:"scene_number"`
	Narration   string       `json:"narration"`
	StartTime   float64      `json:"start_time"`
	Duration    float64      `json:"duration"`
	VisualType  VisualType   `json:"visual_type"`
	Visual      VisualConfig `json:"visual_config"`
}

// VideoScript is the parsed, timed script for one job.
type VideoScript struct {
	Brief         ContentBrief `json:"brief"`
	Scenes        []Scene      `json:"scenes"`
	TotalDuration float64      `json:"total_duration"`
	// ScriptText is the concatenated narration with directive tags removed.
	ScriptText string `json:"script_text"`
}


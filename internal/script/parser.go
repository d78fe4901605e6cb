// Package script converts directive-tagged narration text into a timed
// scene timeline. Markers look like:
//
//	[VISUAL: title | title: "El Gran Error" | subtitle: "Texto"]
//	Narration prose for the scene. [PAUSE] More prose.
//
// Narration may carry prosody markers ([PAUSE], [SHORT_PAUSE]) that the
// speech synthesizer turns into timed silences; they never count toward
// word-based scene duration.
package script

import (
	"encoding/json"
	"regexp"
	"strings"

	"rya/internal/models"
	"rya/internal/pkg/errors"
)

// Pacing defaults: 150 words per minute, with a floor so that very short
// narrations still get a readable scene.
const (
	DefaultWordsPerSecond = 2.5
	DefaultFloorSeconds   = 2.0
)

var (
	markerStartRe = regexp.MustCompile(`\[VISUAL:`)
	prosodyRe     = regexp.MustCompile(`\[(?:PAUSE|SHORT_PAUSE)\]`)
)

// marker is one located [VISUAL: ...] directive.
type marker struct {
	start, end int // byte offsets of the directive in the raw text
	vtype      string
	params     string
}

// findMarkers locates directives with a bracket-depth scan rather than a
// single regexp: parameter values may themselves contain bracketed list
// literals (items: ["a", "b"]), so the directive ends at the matching
// close bracket, not the first one.
func findMarkers(raw string) []marker {
	var markers []marker
	for _, loc := range markerStartRe.FindAllStringIndex(raw, -1) {
		depth := 1
		end := -1
		for i := loc[1]; i < len(raw); i++ {
			switch raw[i] {
			case '[':
				depth++
			case ']':
				depth--
				if depth == 0 {
					end = i + 1
				}
			}
			if end >= 0 {
				break
			}
		}
		if end < 0 {
			continue // unterminated directive, ignore
		}

		inner := raw[loc[1] : end-1]
		vtype, params, _ := strings.Cut(inner, "|")
		markers = append(markers, marker{
			start:  loc[0],
			end:    end,
			vtype:  strings.ToLower(strings.TrimSpace(vtype)),
			params: params,
		})
	}
	return markers
}

// Parser turns generated script text into a models.VideoScript.
type Parser struct {
	wordsPerSecond float64
	floorSeconds   float64
}

// Option tweaks parser pacing.
type Option func(*Parser)

func WithPace(wordsPerSecond float64) Option {
	return func(p *Parser) { p.wordsPerSecond = wordsPerSecond }
}

func WithFloor(seconds float64) Option {
	return func(p *Parser) { p.floorSeconds = seconds }
}

func NewParser(opts ...Option) *Parser {
	p := &Parser{
		wordsPerSecond: DefaultWordsPerSecond,
		floorSeconds:   DefaultFloorSeconds,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse scans directive markers in order, assigns each retained block its
// narration (everything up to the next marker), and computes start times as
// the running sum of prior durations. Blocks with empty narration are
// dropped, not emitted as zero-content scenes.
func (p *Parser) Parse(raw string, brief models.ContentBrief) (*models.VideoScript, error) {
	markers := findMarkers(raw)
	if len(markers) == 0 {
		return nil, errors.New(errors.CodeInvalidResponse, "script contains no visual directives")
	}

	var (
		scenes      []models.Scene
		narrations  []string
		currentTime float64
	)

	for i, m := range markers {
		end := len(raw)
		if i+1 < len(markers) {
			end = markers[i+1].start
		}
		narration := strings.TrimSpace(raw[m.end:end])
		if narration == "" {
			continue
		}

		visualType, visual := buildVisual(m.vtype, parseParams(m.params), narration)
		if err := visual.Validate(visualType); err != nil {
			return nil, errors.WrapWithCode(err, errors.CodeInvalidResponse, "script.parse", "malformed visual directive")
		}

		words := wordCount(stripProsody(narration))
		duration := float64(words) / p.wordsPerSecond
		if duration < p.floorSeconds {
			duration = p.floorSeconds
		}

		scenes = append(scenes, models.Scene{
			SceneNumber: len(scenes) + 1,
			Narration:   narration,
			StartTime:   currentTime,
			Duration:    duration,
			VisualType:  visualType,
			Visual:      visual,
		})
		narrations = append(narrations, narration)
		currentTime += duration
	}

	if len(scenes) == 0 {
		return nil, errors.New(errors.CodeInvalidResponse, "script has no scenes with narration")
	}

	return &models.VideoScript{
		Brief:         brief,
		Scenes:        scenes,
		TotalDuration: currentTime,
		ScriptText:    strings.Join(narrations, " "),
	}, nil
}

// parseParams splits the pipe-delimited key: value block after the type.
func parseParams(raw string) map[string]string {
	params := make(map[string]string)
	for _, part := range strings.Split(raw, "|") {
		k, v, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		key := strings.TrimSpace(k)
		val := strings.TrimSpace(v)
		val = strings.Trim(val, `"'`)
		if key != "" {
			params[key] = val
		}
	}
	return params
}

// parseList parses a bracketed-list literal like ["a", "b"]. Values the
// model emits are close enough to JSON that we try that first and fall back
// to a comma split.
func parseList(val string) []string {
	val = strings.TrimSpace(val)
	if !strings.HasPrefix(val, "[") || !strings.HasSuffix(val, "]") {
		if val == "" {
			return nil
		}
		return []string{val}
	}

	var items []string
	if err := json.Unmarshal([]byte(val), &items); err == nil {
		return items
	}

	inner := strings.TrimSuffix(strings.TrimPrefix(val, "["), "]")
	for _, item := range strings.Split(inner, ",") {
		item = strings.Trim(strings.TrimSpace(item), `"'`)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// buildVisual maps a directive type and its parameters onto the typed
// variant. Unknown types degrade to concept scenes.
func buildVisual(vtype string, params map[string]string, narration string) (models.VisualType, models.VisualConfig) {
	switch models.VisualType(vtype) {
	case models.VisualTitle:
		return models.VisualTitle, models.VisualConfig{Title: &models.TitleConfig{
			Title:    params["title"],
			Subtitle: params["subtitle"],
		}}
	case models.VisualList:
		return models.VisualList, models.VisualConfig{List: &models.ListConfig{
			Title: params["title"],
			Items: parseList(params["items"]),
		}}
	case models.VisualGraph:
		return models.VisualGraph, models.VisualConfig{Graph: &models.GraphConfig{
			XLabel: params["x_label"],
			YLabel: params["y_label"],
		}}
	case models.VisualImage:
		return models.VisualImage, models.VisualConfig{Image: &models.ImageConfig{
			ImagePath: params["image_path"],
			Caption:   params["caption"],
		}}
	case models.VisualCode:
		return models.VisualCode, models.VisualConfig{Code: &models.CodeConfig{
			Language: params["language"],
			Snippet:  params["snippet"],
		}}
	case models.VisualBRoll:
		query := params["query"]
		if query == "" {
			query = firstWords(stripProsody(narration), 8)
		}
		return models.VisualBRoll, models.VisualConfig{BRoll: &models.BRollConfig{Query: query}}
	default:
		return models.VisualConcept, models.VisualConfig{Concept: &models.ConceptConfig{
			Prompt: params["prompt"],
		}}
	}
}

func stripProsody(text string) string {
	return prosodyRe.ReplaceAllString(text, " ")
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

func firstWords(text string, n int) string {
	fields := strings.Fields(text)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}

package script

import (
	"fmt"

	"rya/internal/models"
)

// Natural speaking range and pacing tolerances.
const (
	minWPM            = 120.0
	maxWPM            = 180.0
	durationTolerance = 0.20
	minScenes         = 3
)

// Validate checks a parsed script against pacing quality gates and returns
// the violations as warnings. Callers decide whether to treat them as soft
// (the default pipeline behavior: log and proceed) or as a hard gate.
func Validate(s *models.VideoScript) []string {
	var warnings []string

	target := float64(s.Brief.TargetDuration)
	if target > 0 {
		diff := s.TotalDuration - target
		if diff < 0 {
			diff = -diff
		}
		if diff > target*durationTolerance {
			warnings = append(warnings, fmt.Sprintf(
				"total duration %.1fs is outside ±%.0f%% of the %.0fs target",
				s.TotalDuration, durationTolerance*100, target))
		}
	}

	if wpm := wordsPerMinute(s); wpm > 0 && (wpm < minWPM || wpm > maxWPM) {
		warnings = append(warnings, fmt.Sprintf(
			"speaking pace %.0f WPM is outside the natural range (%.0f-%.0f)",
			wpm, minWPM, maxWPM))
	}

	if len(s.Scenes) < minScenes {
		warnings = append(warnings, fmt.Sprintf(
			"script has %d scenes, minimum is %d (intro, body, outro)",
			len(s.Scenes), minScenes))
	}

	return warnings
}

// wordsPerMinute derives the implied pace from prosody-stripped narration
// and the computed total duration.
func wordsPerMinute(s *models.VideoScript) float64 {
	if s.TotalDuration <= 0 {
		return 0
	}
	words := 0
	for _, sc := range s.Scenes {
		words += wordCount(stripProsody(sc.Narration))
	}
	return float64(words) / (s.TotalDuration / 60.0)
}

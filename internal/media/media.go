// Package media mixes narration audio and assembles scene visuals into the
// final video. The heavy lifting is delegated to ffmpeg; the package shells
// out rather than binding a codec library.
package media

import (
	"context"

	"rya/internal/models"
)

// SceneAsset pairs a scene with the local path of its rendered visual.
type SceneAsset struct {
	Scene models.Scene
	// VisualPath is a local image or clip file for the scene background.
	VisualPath string
	// AudioPath is the scene's narration audio, empty when narration
	// synthesis was skipped.
	AudioPath string
}

// AudioMixer concatenates per-scene narration into one continuous track,
// optionally ducking a background music bed under it.
type AudioMixer interface {
	Mix(ctx context.Context, assets []SceneAsset, music MusicTrack, outPath string) error
}

// VideoAssembler renders the timed scene visuals over the mixed audio track
// and writes the final container.
type VideoAssembler interface {
	Assemble(ctx context.Context, assets []SceneAsset, audioPath, outPath string) error
}

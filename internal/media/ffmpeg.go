package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"rya/internal/pkg/errors"
	"rya/internal/pkg/logger"
)

// FFmpeg implements AudioMixer and VideoAssembler by shelling out to an
// ffmpeg binary. Output is always H.264/AAC in an mp4 container at 1080p.
type FFmpeg struct {
	binary string
	log    *logger.Logger
}

func NewFFmpeg(binary string, log *logger.Logger) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &FFmpeg{binary: binary, log: log.WithComponent("ffmpeg")}
}

// Mix concatenates the per-scene narration tracks in scene order into a
// single mp3. Scenes without audio are skipped; at least one track is
// required. When a music bed is given it is looped for the narration's
// length and ducked by the track's gain; narration always leads.
func (f *FFmpeg) Mix(ctx context.Context, assets []SceneAsset, music MusicTrack, outPath string) error {
	var tracks []string
	for _, a := range assets {
		if a.AudioPath != "" {
			tracks = append(tracks, a.AudioPath)
		}
	}
	if len(tracks) == 0 {
		return errors.New(errors.CodeFailedPrecond, "no narration tracks to mix")
	}

	listPath, err := writeConcatList(outPath, tracks)
	if err != nil {
		return err
	}
	defer os.Remove(listPath)

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
	}
	if music.Path != "" {
		args = append(args,
			"-stream_loop", "-1",
			"-i", music.Path,
			"-filter_complex",
			fmt.Sprintf("[1:a]volume=%ddB[bg];[0:a][bg]amix=inputs=2:duration=first:dropout_transition=2[outa]", music.GainDB),
			"-map", "[outa]",
		)
	}
	args = append(args,
		"-c:a", "libmp3lame",
		"-q:a", "2",
		outPath,
	)
	return f.run(ctx, "media.mix", args)
}

// Assemble lays each scene's visual over the timeline for the scene's
// duration, then muxes the mixed narration track on top. Still images are
// looped; clips are trimmed to the scene duration.
func (f *FFmpeg) Assemble(ctx context.Context, assets []SceneAsset, audioPath, outPath string) error {
	if len(assets) == 0 {
		return errors.New(errors.CodeFailedPrecond, "no scenes to assemble")
	}

	var args []string
	args = append(args, "-y")

	for _, a := range assets {
		if isStill(a.VisualPath) {
			args = append(args, "-loop", "1", "-t", formatSeconds(a.Scene.Duration), "-i", a.VisualPath)
		} else {
			args = append(args, "-t", formatSeconds(a.Scene.Duration), "-i", a.VisualPath)
		}
	}
	if audioPath != "" {
		args = append(args, "-i", audioPath)
	}

	// Scale every input to a uniform 1080p canvas, then concat.
	var filter strings.Builder
	for i := range assets {
		fmt.Fprintf(&filter, "[%d:v]scale=1920:1080:force_original_aspect_ratio=decrease,pad=1920:1080:(ow-iw)/2:(oh-ih)/2,setsar=1,fps=30[v%d];", i, i)
	}
	for i := range assets {
		fmt.Fprintf(&filter, "[v%d]", i)
	}
	fmt.Fprintf(&filter, "concat=n=%d:v=1:a=0[outv]", len(assets))

	args = append(args, "-filter_complex", filter.String(), "-map", "[outv]")
	if audioPath != "" {
		args = append(args,
			"-map", fmt.Sprintf("%d:a", len(assets)),
			"-c:a", "aac",
			"-b:a", "192k",
			"-shortest",
		)
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", "medium",
		"-pix_fmt", "yuv420p",
		outPath,
	)

	return f.run(ctx, "media.assemble", args)
}

func (f *FFmpeg) run(ctx context.Context, op string, args []string) error {
	cmd := exec.CommandContext(ctx, f.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	f.log.FromContext(ctx).Debug("running ffmpeg", "args", strings.Join(args, " "))

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return errors.Timeout(op)
		}
		return errors.Wrap(err, op, "ffmpeg failed").
			WithField("stderr", tail(stderr.String(), 2000))
	}
	return nil
}

// writeConcatList writes an ffmpeg concat demuxer file next to the output.
func writeConcatList(outPath string, tracks []string) (string, error) {
	var b strings.Builder
	for _, t := range tracks {
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(t, "'", `'\''`))
	}

	listPath := filepath.Join(filepath.Dir(outPath), "concat.txt")
	if err := os.WriteFile(listPath, []byte(b.String()), 0o644); err != nil {
		return "", errors.Wrap(err, "media.mix", "write concat list")
	}
	return listPath, nil
}

func isStill(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".webp":
		return true
	}
	return false
}

func formatSeconds(s float64) string {
	return fmt.Sprintf("%.3f", s)
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

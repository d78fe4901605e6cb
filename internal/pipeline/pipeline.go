// Package pipeline orchestrates one generation run end to end: script,
// narration, per-scene visuals, audio mix, assembly, publish. The pipeline
// is the sole writer of its job record while running; progress only moves
// forward.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"rya/internal/acquire"
	"rya/internal/jobstore"
	"rya/internal/media"
	"rya/internal/models"
	"rya/internal/pkg/errors"
	"rya/internal/pkg/logger"
	"rya/internal/ports"
	"rya/internal/provider"
	"rya/internal/script"
)

// Stage progress percents. Visual acquisition fills the span between
// ProgressVisualsStart and ProgressVisualsEnd proportionally to completed
// scenes.
const (
	ProgressScript       = 5
	ProgressNarration    = 15
	ProgressVisualsStart = 30
	ProgressVisualsEnd   = 70
	ProgressAudioMix     = 75
	ProgressAssembly     = 85
	ProgressPublish      = 95
	ProgressDone         = 100
)

const maxStoredErrorLen = 500

// Acquirer is the slice of the acquisition engine the pipeline needs.
type Acquirer interface {
	Acquire(ctx context.Context, req acquire.Request) (*acquire.Acquisition, error)
}

// Deps wires the pipeline's collaborators. BRoll may be nil; broll scenes
// then degrade to placeholders.
type Deps struct {
	Store   jobstore.Store
	Scripts provider.ScriptProvider
	Parser  *script.Parser
	Speech  provider.SpeechProvider
	Visuals Acquirer
	BRoll   Acquirer
	Storage ports.StorageProvider
	Mixer   media.AudioMixer
	Asm     media.VideoAssembler
	// Music may be nil; the mix then runs narration-only.
	Music *media.MusicLibrary

	// WorkDir is the scratch root; each job gets its own subdirectory.
	WorkDir string
	// MaxParallelVisuals bounds concurrent per-scene acquisition.
	MaxParallelVisuals int
	// TTSProvider names the speech backend for cost accounting.
	TTSProvider string

	Log *logger.Logger
}

type Pipeline struct {
	d   Deps
	log *logger.Logger
}

func New(d Deps) *Pipeline {
	if d.Log == nil {
		d.Log = logger.NewDefault()
	}
	if d.MaxParallelVisuals <= 0 {
		d.MaxParallelVisuals = 3
	}
	if d.WorkDir == "" {
		d.WorkDir = os.TempDir()
	}
	if d.Parser == nil {
		d.Parser = script.NewParser()
	}
	return &Pipeline{d: d, log: d.Log.WithComponent("pipeline")}
}

// Run executes the full pipeline for one job. Fatal errors mark the job
// failed with progress frozen at the last completed stage; exhausted visual
// tiers degrade the affected scenes to placeholders instead.
func (p *Pipeline) Run(ctx context.Context, jobID string, brief models.ContentBrief) error {
	ctx = logger.ContextWithJobID(ctx, jobID)
	log := p.log.WithJobID(jobID)

	workDir := filepath.Join(p.d.WorkDir, jobID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return p.fail(ctx, jobID, errors.Wrap(err, "pipeline.run", "create work dir"))
	}
	defer os.RemoveAll(workDir)

	tracker := newProgressTracker(p.d.Store, jobID)
	var usage models.UsageMetrics
	usage.TTSProvider = p.d.TTSProvider

	// Stage 1: script generation.
	tracker.update(ctx, ProgressScript, "generating script", nil)
	raw, llmUsage, err := p.d.Scripts.GenerateScript(ctx, brief)
	if err != nil {
		return p.fail(ctx, jobID, err)
	}
	usage.Add(llmUsage)
	usage.LLMModel = llmUsage.LLMModel

	vs, err := p.d.Parser.Parse(raw, brief)
	if err != nil {
		return p.fail(ctx, jobID, err)
	}
	warnings := script.Validate(vs)
	for _, w := range warnings {
		log.Warn("script validation warning", "warning", w)
	}

	// Stage 2: narration synthesis, one track per scene.
	tracker.update(ctx, ProgressNarration, "synthesizing narration", nil)
	assets, err := p.synthesizeNarration(ctx, workDir, vs, &usage)
	if err != nil {
		return p.fail(ctx, jobID, err)
	}

	// Stage 3: per-scene visuals, bounded parallelism.
	degraded, err := p.acquireVisuals(ctx, workDir, vs, assets, &usage, tracker)
	if err != nil {
		return p.fail(ctx, jobID, err)
	}

	// Stage 4: audio mix, with the style's music bed ducked under the
	// narration when the library has one.
	tracker.update(ctx, ProgressAudioMix, "mixing audio", nil)
	audioPath := filepath.Join(workDir, "narration.mp3")
	if err := p.d.Mixer.Mix(ctx, assets, p.d.Music.TrackFor(brief.StyleArchetype), audioPath); err != nil {
		return p.fail(ctx, jobID, err)
	}

	// Stage 5: assembly.
	tracker.update(ctx, ProgressAssembly, "assembling video", nil)
	videoPath := filepath.Join(workDir, "final.mp4")
	if err := p.d.Asm.Assemble(ctx, assets, audioPath, videoPath); err != nil {
		return p.fail(ctx, jobID, err)
	}

	// Stage 6: publish.
	tracker.update(ctx, ProgressPublish, "publishing", nil)
	location, err := p.publish(ctx, jobID, videoPath)
	if err != nil {
		return p.fail(ctx, jobID, err)
	}

	metadata := map[string]any{
		"usage": usage,
		"cost":  models.EstimateCost(usage),
	}
	if len(warnings) > 0 {
		metadata["validation_warnings"] = warnings
	}
	if len(degraded) > 0 {
		metadata["degraded_scenes"] = degraded
	}

	fields := jobstore.Fields{
		jobstore.FieldStatus:         string(models.StatusCompleted),
		jobstore.FieldProgress:       ProgressDone,
		jobstore.FieldStatusMessage:  "done",
		jobstore.FieldOutputLocation: location,
		jobstore.FieldMetadata:       metadata,
	}
	if err := p.d.Store.Merge(ctx, jobID, fields); err != nil {
		return errors.Wrap(err, "pipeline.run", "final record write failed")
	}

	log.Info("pipeline complete",
		"scenes", len(vs.Scenes),
		"duration_s", vs.TotalDuration,
		"output", location,
	)
	return nil
}

func (p *Pipeline) synthesizeNarration(ctx context.Context, workDir string, vs *models.VideoScript, usage *models.UsageMetrics) ([]media.SceneAsset, error) {
	assets := make([]media.SceneAsset, len(vs.Scenes))
	for i, scene := range vs.Scenes {
		assets[i].Scene = scene

		audio, err := p.d.Speech.Synthesize(ctx, scene.Narration, vs.Brief.VoiceID)
		if err != nil {
			return nil, errors.Wrapf(err, "pipeline.narration", "scene %d synthesis failed", scene.SceneNumber)
		}
		usage.TTSCharacters += len(scene.Narration)

		path := filepath.Join(workDir, fmt.Sprintf("scene_%02d.mp3", scene.SceneNumber))
		if err := os.WriteFile(path, audio, 0o644); err != nil {
			return nil, errors.Wrap(err, "pipeline.narration", "write audio track")
		}
		assets[i].AudioPath = path
	}
	return assets, nil
}

// acquireVisuals fills in each asset's VisualPath. AI-backed scene types go
// through the acquisition engine; exhausted tiers degrade that scene to a
// placeholder and the job continues. Returns the degraded scene numbers.
func (p *Pipeline) acquireVisuals(ctx context.Context, workDir string, vs *models.VideoScript, assets []media.SceneAsset, usage *models.UsageMetrics, tracker *progressTracker) ([]int, error) {
	type outcome struct {
		idx      int
		path     string
		tier     string
		cacheHit bool
		degraded bool
		err      error
	}

	sem := make(chan struct{}, p.d.MaxParallelVisuals)
	results := make(chan outcome, len(assets))
	var wg sync.WaitGroup

	for i := range assets {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			o := outcome{idx: i}
			o.path, o.tier, o.cacheHit, o.degraded, o.err = p.sceneVisual(ctx, workDir, vs.Brief, assets[i].Scene)
			results <- o
		}(i)
	}
	wg.Wait()
	close(results)

	var degraded []int
	done := 0
	span := ProgressVisualsEnd - ProgressVisualsStart
	for o := range results {
		if o.err != nil {
			return nil, o.err
		}
		assets[o.idx].VisualPath = o.path
		if o.tier != "" && !o.cacheHit {
			usage.CountImage(o.tier, 1)
		}
		if o.degraded {
			degraded = append(degraded, assets[o.idx].Scene.SceneNumber)
		}
		done++
		pct := ProgressVisualsStart + span*done/len(assets)
		tracker.update(ctx, pct, fmt.Sprintf("visuals %d/%d", done, len(assets)), nil)
	}
	return degraded, nil
}

// sceneVisual produces one scene's background file. Synthetic types render
// locally; concept/image types cascade through the image tiers; broll
// queries the stock engine.
func (p *Pipeline) sceneVisual(ctx context.Context, workDir string, brief models.ContentBrief, scene models.Scene) (path, tier string, cacheHit, degraded bool, err error) {
	writeLocal := func(data []byte, ext string) (string, error) {
		path := filepath.Join(workDir, fmt.Sprintf("visual_%02d%s", scene.SceneNumber, ext))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return "", errors.Wrap(err, "pipeline.visuals", "write visual")
		}
		return path, nil
	}

	placeholder := func() (string, string, bool, bool, error) {
		data, perr := media.Placeholder(brief.StyleArchetype)
		if perr != nil {
			return "", "", false, false, perr
		}
		path, werr := writeLocal(data, ".png")
		return path, "", false, true, werr
	}

	var engine Acquirer
	req := acquire.Request{Style: brief.StyleArchetype}

	switch scene.VisualType {
	case models.VisualConcept:
		engine = p.d.Visuals
		req.Topic = conceptTopic(scene, brief)
		req.Kind = "image"
		req.PinTier = brief.PinTier
	case models.VisualImage:
		engine = p.d.Visuals
		req.Topic = imageTopic(scene, brief)
		req.Kind = "image"
		req.PinTier = brief.PinTier
	case models.VisualBRoll:
		engine = p.d.BRoll
		if scene.Visual.BRoll != nil {
			req.Topic = scene.Visual.BRoll.Query
		}
		req.Kind = "clip"
	default:
		// title/list/graph/code render synthetically.
		data, rerr := media.Placeholder(brief.StyleArchetype)
		if rerr != nil {
			return "", "", false, false, rerr
		}
		path, werr := writeLocal(data, ".png")
		return path, "", false, false, werr
	}

	if engine == nil || req.Topic == "" {
		return placeholder()
	}

	got, err := engine.Acquire(ctx, req)
	if err != nil {
		var exhausted *acquire.ExhaustedError
		if errors.As(err, &exhausted) {
			p.log.FromContext(ctx).Warn("all tiers exhausted, degrading scene",
				"scene", scene.SceneNumber,
				"error", err.Error(),
			)
			return placeholder()
		}
		return "", "", false, false, err
	}

	data, err := p.fetchObject(ctx, got.Artifact.ObjectKey)
	if err != nil {
		return "", "", false, false, err
	}
	path, err = writeLocal(data, extFromKey(got.Artifact.ObjectKey))
	return path, got.Artifact.Provenance, got.CacheHit, false, err
}

func (p *Pipeline) fetchObject(ctx context.Context, objectKey string) ([]byte, error) {
	rc, _, _, err := p.d.Storage.GetObject(ctx, objectKey)
	if err != nil {
		return nil, errors.Wrap(err, "pipeline.visuals", "fetch artifact payload")
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (p *Pipeline) publish(ctx context.Context, jobID, videoPath string) (string, error) {
	f, err := os.Open(videoPath)
	if err != nil {
		return "", errors.Wrap(err, "pipeline.publish", "open final video")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", errors.Wrap(err, "pipeline.publish", "stat final video")
	}

	out, err := p.d.Storage.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   fmt.Sprintf("videos/%s/final.mp4", jobID),
		ContentType: "video/mp4",
		Reader:      f,
		Size:        info.Size(),
	})
	if err != nil {
		return "", errors.Wrap(err, "pipeline.publish", "upload final video")
	}
	return out.ObjectKey, nil
}

// fail marks the job failed with the error truncated for storage. Progress
// is left where it was; the record shows how far the run got.
func (p *Pipeline) fail(ctx context.Context, jobID string, cause error) error {
	msg := cause.Error()
	if len(msg) > maxStoredErrorLen {
		msg = msg[:maxStoredErrorLen]
	}

	fields := jobstore.Fields{
		jobstore.FieldStatus:        string(models.StatusFailed),
		jobstore.FieldStatusMessage: "failed",
		jobstore.FieldError:         msg,
	}
	if err := p.d.Store.Merge(ctx, jobID, fields); err != nil {
		p.log.FromContext(ctx).Error("failed to record job failure",
			"job_id", jobID,
			"error", err.Error(),
		)
	}
	return cause
}

// progressTracker serializes progress writes and enforces monotonicity.
type progressTracker struct {
	store jobstore.Store
	jobID string

	mu   sync.Mutex
	last int
}

func newProgressTracker(store jobstore.Store, jobID string) *progressTracker {
	return &progressTracker{store: store, jobID: jobID}
}

func (t *progressTracker) update(ctx context.Context, pct int, message string, extra jobstore.Fields) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pct <= t.last {
		return
	}
	t.last = pct

	fields := jobstore.Fields{
		jobstore.FieldStatus:        string(models.StatusProcessing),
		jobstore.FieldProgress:      pct,
		jobstore.FieldStatusMessage: message,
	}
	for k, v := range extra {
		fields[k] = v
	}
	// Progress writes are advisory; a transient store error must not abort
	// the run.
	_ = t.store.Merge(ctx, t.jobID, fields)
}

func conceptTopic(scene models.Scene, brief models.ContentBrief) string {
	if scene.Visual.Concept != nil && scene.Visual.Concept.Prompt != "" {
		return scene.Visual.Concept.Prompt
	}
	return brief.Topic
}

func imageTopic(scene models.Scene, brief models.ContentBrief) string {
	if scene.Visual.Image != nil && scene.Visual.Image.Caption != "" {
		return scene.Visual.Image.Caption
	}
	return brief.Topic
}

func extFromKey(objectKey string) string {
	if ext := filepath.Ext(objectKey); ext != "" {
		return ext
	}
	return ".png"
}

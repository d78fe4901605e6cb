package media

import (
	"os"
	"path/filepath"

	"rya/internal/models"
)

// MusicTrack is a background bed selected for a style. GainDB is the
// attenuation applied when ducking the bed under narration. A zero value
// (empty Path) means the mix runs narration-only.
type MusicTrack struct {
	Path   string
	GainDB int
}

type styleMusic struct {
	file   string
	gainDB int
}

// styleMusicMap pairs each archetype with its bundled track and per-style
// ducking level. Calmer styles sit lower under the voice.
var styleMusicMap = map[models.StyleArchetype]styleMusic{
	models.StyleTechnical:    {file: "technical_bg.mp3", gainDB: -15},
	models.StyleStorytelling: {file: "storytelling_bg.mp3", gainDB: -12},
	models.StyleDocumentary:  {file: "documentary_bg.mp3", gainDB: -18},
	models.StyleMinimalist:   {file: "minimalist_bg.mp3", gainDB: -20},
}

// MusicLibrary resolves background tracks from a local directory of
// royalty-free beds, one file per style. A nil library or a missing file is
// not an error: the job simply mixes without music.
type MusicLibrary struct {
	dir string
}

func NewMusicLibrary(dir string) *MusicLibrary {
	return &MusicLibrary{dir: dir}
}

// TrackFor returns the style's bed, or a zero MusicTrack when the library
// has no usable file for it.
func (l *MusicLibrary) TrackFor(style models.StyleArchetype) MusicTrack {
	if l == nil || l.dir == "" {
		return MusicTrack{}
	}
	cfg, ok := styleMusicMap[style]
	if !ok {
		cfg = styleMusicMap[models.StyleTechnical]
	}
	path := filepath.Join(l.dir, cfg.file)
	if _, err := os.Stat(path); err != nil {
		return MusicTrack{}
	}
	return MusicTrack{Path: path, GainDB: cfg.gainDB}
}

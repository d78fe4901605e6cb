// Package config loads pipeline configuration from a YAML file with
// environment overrides for connection strings and API keys. Secrets never
// live in the file.
package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"rya/internal/pkg/errors"
)

type Config struct {
	Server    Server    `yaml:"server"`
	Redis     Redis     `yaml:"redis"`
	Postgres  Postgres  `yaml:"postgres"`
	Queue     Queue     `yaml:"queue"`
	Jobs      Jobs      `yaml:"jobs"`
	Pipeline  Pipeline  `yaml:"pipeline"`
	Script    Script    `yaml:"script"`
	Providers Providers `yaml:"providers"`
	Storage   Storage   `yaml:"storage"`
}

type Server struct {
	Port string `yaml:"port"`
}

type Redis struct {
	Addr string `yaml:"addr"`
}

type Postgres struct {
	URL string `yaml:"url"`
}

type Queue struct {
	Name string `yaml:"name"`
}

type Jobs struct {
	TTLHours int `yaml:"ttl_hours"`
}

func (j Jobs) TTL() time.Duration { return time.Duration(j.TTLHours) * time.Hour }

type Pipeline struct {
	WorkDir            string `yaml:"work_dir"`
	MaxParallelVisuals int    `yaml:"max_parallel_visuals"`
	FFmpegBinary       string `yaml:"ffmpeg_binary"`
	// MusicDir holds one background bed per style; empty disables music.
	MusicDir string `yaml:"music_dir"`
}

type Script struct {
	WordsPerSecond float64 `yaml:"words_per_second"`
	FloorSeconds   float64 `yaml:"floor_seconds"`
}

type Providers struct {
	LLM   LLM    `yaml:"llm"`
	TTS   TTS    `yaml:"tts"`
	Tiers []Tier `yaml:"tiers"`
	BRoll BRoll  `yaml:"broll"`
}

type LLM struct {
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	APIKey         string `yaml:"-"`
}

type TTS struct {
	BaseURL        string `yaml:"base_url"`
	VoiceID        string `yaml:"voice_id"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Provider       string `yaml:"provider"`
	APIKey         string `yaml:"-"`
}

// Tier is one acquisition backend in cascade order. Known names:
// pollinations, replicate, dalle.
type Tier struct {
	Name           string `yaml:"name"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	APIKey         string `yaml:"-"`
}

func (t Tier) Timeout() time.Duration {
	if t.TimeoutSeconds <= 0 {
		return 90 * time.Second
	}
	return time.Duration(t.TimeoutSeconds) * time.Second
}

type BRoll struct {
	Enabled        bool   `yaml:"enabled"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	APIKey         string `yaml:"-"`
}

type Storage struct {
	Provider  string `yaml:"provider"`
	LocalRoot string `yaml:"local_root"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Server:   Server{Port: "8080"},
		Queue:    Queue{Name: "rya:jobs"},
		Jobs:     Jobs{TTLHours: 24},
		Pipeline: Pipeline{MaxParallelVisuals: 3, FFmpegBinary: "ffmpeg"},
		Script:   Script{WordsPerSecond: 2.5, FloorSeconds: 2.0},
		Providers: Providers{
			LLM: LLM{Model: "gemini-2.0-flash", TimeoutSeconds: 120},
			TTS: TTS{Provider: "elevenlabs", TimeoutSeconds: 300},
			Tiers: []Tier{
				{Name: "pollinations", TimeoutSeconds: 60},
				{Name: "replicate", TimeoutSeconds: 120},
				{Name: "dalle", TimeoutSeconds: 120},
			},
			BRoll: BRoll{Enabled: true, TimeoutSeconds: 90},
		},
		Storage: Storage{Provider: "localfs", LocalRoot: "/data"},
	}
}

// Load reads the YAML file at path, merged over defaults, then applies
// environment overrides. An empty path loads defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrap(err, "config.load", "read config file")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrap(err, "config.load", "parse config file")
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setIfEnv(&c.Server.Port, "HTTP_PORT")
	setIfEnv(&c.Redis.Addr, "REDIS_ADDR")
	setIfEnv(&c.Postgres.URL, "DATABASE_URL")
	setIfEnv(&c.Queue.Name, "JOB_QUEUE_NAME")
	setIfEnv(&c.Storage.Provider, "STORAGE_PROVIDER")
	setIfEnv(&c.Storage.LocalRoot, "STORAGE_LOCAL_ROOT")
	setIfEnv(&c.Pipeline.WorkDir, "PIPELINE_WORK_DIR")
	setIfEnv(&c.Pipeline.MusicDir, "PIPELINE_MUSIC_DIR")

	c.Providers.LLM.APIKey = os.Getenv("LLM_API_KEY")
	c.Providers.TTS.APIKey = os.Getenv("ELEVENLABS_API_KEY")
	c.Providers.BRoll.APIKey = os.Getenv("PEXELS_API_KEY")
	for i := range c.Providers.Tiers {
		switch c.Providers.Tiers[i].Name {
		case "replicate":
			c.Providers.Tiers[i].APIKey = os.Getenv("REPLICATE_API_TOKEN")
		case "dalle":
			c.Providers.Tiers[i].APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
}

func setIfEnv(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

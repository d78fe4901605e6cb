package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"rya/internal/pkg/errors"
)

const defaultVoiceID = "21m00Tcm4TlvDq8ikWAM"

// pause markers become SSML-style breaks before synthesis.
var (
	pauseRe      = regexp.MustCompile(`\[PAUSE\]`)
	shortPauseRe = regexp.MustCompile(`\[SHORT_PAUSE\]`)
)

// TTSClient synthesizes narration through an ElevenLabs-compatible
// text-to-speech endpoint.
type TTSClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewTTSClient(baseURL, apiKey string, timeout time.Duration) *TTSClient {
	if baseURL == "" {
		baseURL = "https://api.elevenlabs.io"
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &TTSClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (t *TTSClient) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if t.apiKey == "" {
		return nil, errors.Unavailable("tts").WithField("reason", "no api key configured")
	}
	if voiceID == "" {
		voiceID = defaultVoiceID
	}

	body, err := json.Marshal(map[string]any{
		"text":     renderProsody(text),
		"model_id": "eleven_multilingual_v2",
		"voice_settings": map[string]any{
			"stability":        0.5,
			"similarity_boost": 0.75,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "tts.synthesize", "encode request")
	}

	u := fmt.Sprintf("%s/v1/text-to-speech/%s", t.baseURL, voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "tts.synthesize", "build request")
	}
	req.Header.Set("xi-api-key", t.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, classifyTransportError("tts", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus("tts", resp.StatusCode); err != nil {
		return nil, err
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeInvalidResponse, "tts.synthesize", "read audio")
	}
	if len(audio) == 0 {
		return nil, errors.InvalidResponse("tts", "empty audio payload")
	}
	return audio, nil
}

// renderProsody converts pause markers into break tags the synthesizer
// honors: [PAUSE] is an 800ms dramatic silence, [SHORT_PAUSE] a 400ms
// natural break.
func renderProsody(text string) string {
	text = pauseRe.ReplaceAllString(text, `<break time="0.8s" />`)
	return shortPauseRe.ReplaceAllString(text, `<break time="0.4s" />`)
}

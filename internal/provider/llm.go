package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"rya/internal/models"
	"rya/internal/pkg/errors"
)

// LLMClient generates scripts through an OpenAI-compatible chat-completions
// endpoint. The concrete model behind it is configuration.
type LLMClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewLLMClient(baseURL, apiKey, model string, timeout time.Duration) *LLMClient {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &LLMClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (c *LLMClient) GenerateScript(ctx context.Context, brief models.ContentBrief) (string, models.UsageMetrics, error) {
	usage := models.UsageMetrics{LLMModel: c.model}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(brief)},
			{Role: "user", Content: userPrompt(brief)},
		},
		Temperature: 0.7,
		MaxTokens:   2000,
	})
	if err != nil {
		return "", usage, errors.Wrap(err, "llm.generate", "encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", usage, errors.Wrap(err, "llm.generate", "build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", usage, classifyTransportError("llm", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus("llm", resp.StatusCode); err != nil {
		return "", usage, err
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", usage, errors.WrapWithCode(err, errors.CodeInvalidResponse, "llm.generate", "decode response")
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", usage, errors.InvalidResponse("llm", "empty completion")
	}

	usage.LLMInputTokens = out.Usage.PromptTokens
	usage.LLMOutputTokens = out.Usage.CompletionTokens
	return out.Choices[0].Message.Content, usage, nil
}

// styleVoices maps archetypes to the register the writer should adopt.
var styleVoices = map[models.StyleArchetype]string{
	models.StyleTechnical:    "a senior engineer briefing a colleague: precise, substantive, no hype",
	models.StyleStorytelling: "a high-energy narrator: hooks, tension, emotional connection",
	models.StyleDocumentary:  "a documentary scriptwriter: pedagogical, clear, fascinated by the why",
	models.StyleMinimalist:   "a minimalist writer: zen, focused, every word counts",
}

func systemPrompt(brief models.ContentBrief) string {
	voice := styleVoices[brief.StyleArchetype]
	if voice == "" {
		voice = styleVoices[models.StyleTechnical]
	}

	return fmt.Sprintf(`You write video narration scripts. Your voice: %s.

Format the output as blocks. Each block MUST start with a visual directive,
followed by the narration prose for that scene.

Supported directives:
[VISUAL: title | title: "Text" | subtitle: "Text"]
[VISUAL: list | title: "Header" | items: ["Item1", "Item2"]]
[VISUAL: graph | x_label: "Label" | y_label: "Label"]
[VISUAL: image | image_path: "filename.jpg" | caption: "Text"]
[VISUAL: code | language: "go"]
[VISUAL: broll | query: "search terms"]
[VISUAL: concept]

Prosody control inside narration:
[PAUSE] - an 800ms dramatic silence, use sparingly
[SHORT_PAUSE] - a 400ms natural break, use like a comma

Start with a strong 3-second hook and put [PAUSE] after it.`, voice)
}

func userPrompt(brief models.ContentBrief) string {
	var b strings.Builder

	// 150 WPM pacing bound.
	maxWords := int(float64(brief.TargetDuration) * 2.5)
	fmt.Fprintf(&b, "Write a %d-second video script about: %s\n", brief.TargetDuration, brief.Topic)

	if len(brief.KeyPoints) > 0 {
		b.WriteString("\nKey points to cover:\n")
		for _, point := range brief.KeyPoints {
			fmt.Fprintf(&b, "- %s\n", point)
		}
	}
	if len(brief.VisualReferences) > 0 {
		b.WriteString("\nVisual references to incorporate:\n")
		for _, ref := range brief.VisualReferences {
			fmt.Fprintf(&b, "- %s\n", ref)
		}
	}
	if brief.CallToAction != "" {
		fmt.Fprintf(&b, "\nEnd with this call to action: %s\n", brief.CallToAction)
	}

	fmt.Fprintf(&b, "\nTarget audience: %s\n", brief.AudienceLevel)
	fmt.Fprintf(&b, "Stay under %d words total. Use 3-5 scene blocks.\n", maxWords)
	return b.String()
}

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"rya/internal/pkg/errors"
)

// DallE is the premium image tier, kept last in the cascade because of
// per-image cost.
type DallE struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewDallE(apiKey string, timeout time.Duration) *DallE {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &DallE{
		baseURL: "https://api.openai.com",
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (d *DallE) Name() string { return "dalle" }

func (d *DallE) Attempt(ctx context.Context, req Request) (*Result, error) {
	if d.apiKey == "" {
		return nil, errors.Unavailable(d.Name()).WithField("reason", "no api key configured")
	}

	body, err := json.Marshal(map[string]any{
		"model":   "dall-e-3",
		"prompt":  req.Prompt,
		"size":    "1792x1024",
		"quality": "standard",
		"n":       1,
	})
	if err != nil {
		return nil, errors.Wrap(err, "dalle.attempt", "encode request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/v1/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "dalle.attempt", "build request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(d.Name(), err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(d.Name(), resp.StatusCode); err != nil {
		return nil, err
	}

	var out struct {
		Data []struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeInvalidResponse, "dalle.attempt", "decode response")
	}
	if len(out.Data) == 0 || out.Data[0].URL == "" {
		return nil, errors.InvalidResponse(d.Name(), "no image url in response")
	}

	return download(ctx, d.client, d.Name(), out.Data[0].URL)
}

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"rya/internal/pkg/errors"
)

// Replicate is the cheap image tier (Flux Schnell). It uses the blocking
// predictions endpoint so a single call returns the finished output URL.
type Replicate struct {
	baseURL string
	token   string
	model   string
	client  *http.Client
}

func NewReplicate(token string, timeout time.Duration) *Replicate {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Replicate{
		baseURL: "https://api.replicate.com",
		token:   token,
		model:   "black-forest-labs/flux-schnell",
		client:  &http.Client{Timeout: timeout},
	}
}

func (r *Replicate) Name() string { return "replicate" }

type replicatePrediction struct {
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
}

func (r *Replicate) Attempt(ctx context.Context, req Request) (*Result, error) {
	if r.token == "" {
		return nil, errors.Unavailable(r.Name()).WithField("reason", "no api token configured")
	}

	body, err := json.Marshal(map[string]any{
		"input": map[string]any{
			"prompt":       req.Prompt,
			"aspect_ratio": "16:9",
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "replicate.attempt", "encode request")
	}

	u := fmt.Sprintf("%s/v1/models/%s/predictions", r.baseURL, r.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "replicate.attempt", "build request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+r.token)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Prefer", "wait")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(r.Name(), err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(r.Name(), resp.StatusCode); err != nil {
		return nil, err
	}

	var pred replicatePrediction
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeInvalidResponse, "replicate.attempt", "decode prediction")
	}
	if pred.Status != "succeeded" {
		return nil, errors.InvalidResponse(r.Name(), fmt.Sprintf("prediction %s: %s", pred.Status, pred.Error))
	}

	imageURL, err := firstOutputURL(pred.Output)
	if err != nil {
		return nil, errors.InvalidResponse(r.Name(), err.Error())
	}
	return download(ctx, r.client, r.Name(), imageURL)
}

// firstOutputURL handles both output shapes the model emits: a bare URL
// string or a list of URLs.
func firstOutputURL(raw json.RawMessage) (string, error) {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return single, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0], nil
	}
	return "", fmt.Errorf("prediction output has no url")
}

// download fetches a produced asset URL and validates the payload.
func download(ctx context.Context, client *http.Client, provider, assetURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, provider+".download", "build request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, classifyTransportError(provider, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(provider, resp.StatusCode); err != nil {
		return nil, err
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeInvalidResponse, provider+".download", "read payload")
	}
	if len(payload) < minImageBytes {
		return nil, errors.InvalidResponse(provider, fmt.Sprintf("payload too small (%d bytes)", len(payload)))
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &Result{Payload: payload, ContentType: contentType}, nil
}

package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"rya/internal/pkg/errors"
)

// minImageBytes guards against error pages served with a 200: anything
// smaller than this is not a real image.
const minImageBytes = 100

// Pollinations is the free image tier. Images are generated by encoding the
// prompt straight into the URL path.
type Pollinations struct {
	baseURL string
	client  *http.Client
}

func NewPollinations(baseURL string, timeout time.Duration) *Pollinations {
	if baseURL == "" {
		baseURL = "https://image.pollinations.ai"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Pollinations{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *Pollinations) Name() string { return "pollinations" }

func (p *Pollinations) Attempt(ctx context.Context, req Request) (*Result, error) {
	width, height := req.Width, req.Height
	if width == 0 {
		width = 1920
	}
	if height == 0 {
		height = 1080
	}

	u := fmt.Sprintf("%s/prompt/%s?width=%d&height=%d&nologo=true&model=flux",
		p.baseURL, url.PathEscape(req.Prompt), width, height)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "pollinations.attempt", "build request")
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(p.Name(), err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(p.Name(), resp.StatusCode); err != nil {
		return nil, err
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeInvalidResponse, "pollinations.attempt", "read payload")
	}
	if len(payload) < minImageBytes {
		return nil, errors.InvalidResponse(p.Name(), fmt.Sprintf("payload too small (%d bytes)", len(payload)))
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return &Result{Payload: payload, ContentType: contentType}, nil
}

package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"rya/internal/pkg/errors"
)

// Pexels fetches stock b-roll clips by free-text query. The prompt of the
// request is used as the search query; style is ignored because stock
// footage is not style-aware.
type Pexels struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewPexels(apiKey string, timeout time.Duration) *Pexels {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Pexels{
		baseURL: "https://api.pexels.com",
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *Pexels) Name() string { return "pexels" }

type pexelsVideoFile struct {
	Link    string `json:"link"`
	Width   int    `json:"width"`
	Quality string `json:"quality"`
}

type pexelsSearchResult struct {
	Videos []struct {
		VideoFiles []pexelsVideoFile `json:"video_files"`
	} `json:"videos"`
}

func (p *Pexels) Attempt(ctx context.Context, req Request) (*Result, error) {
	if p.apiKey == "" {
		return nil, errors.Unavailable(p.Name()).WithField("reason", "no api key configured")
	}

	q := url.Values{}
	q.Set("query", req.Prompt)
	q.Set("orientation", "landscape")
	q.Set("size", "medium")
	q.Set("per_page", strconv.Itoa(5))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/videos/search?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "pexels.attempt", "build request")
	}
	httpReq.Header.Set("Authorization", p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(p.Name(), err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(p.Name(), resp.StatusCode); err != nil {
		return nil, err
	}

	var result pexelsSearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeInvalidResponse, "pexels.attempt", "decode search result")
	}

	link := bestClip(result)
	if link == "" {
		return nil, errors.InvalidResponse(p.Name(), "no hd clip found for query")
	}

	out, err := download(ctx, p.client, p.Name(), link)
	if err != nil {
		return nil, err
	}
	if out.ContentType == "application/octet-stream" {
		out.ContentType = "video/mp4"
	}
	return out, nil
}

// bestClip picks the first HD file at least 1280px wide.
func bestClip(result pexelsSearchResult) string {
	for _, video := range result.Videos {
		for _, file := range video.VideoFiles {
			if file.Width >= 1280 && file.Quality == "hd" {
				return file.Link
			}
		}
	}
	return ""
}

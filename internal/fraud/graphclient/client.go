// Package graphclient talks to the external graph-analysis service that runs
// community detection over the contractor graph. The service is a black box;
// any transport failure, timeout, or malformed response is surfaced as an
// error for the caller to treat as best-effort.
package graphclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Node is one graph vertex in the analysis request.
type Node struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Label string `json:"label"`
}

// Edge is one relation in the analysis request.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// Request is the graph payload sent for analysis.
type Request struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// SuspiciousNode is a high-centrality vertex reported by the service.
type SuspiciousNode struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Response is the analysis result. Communities are lists of contractor ids.
type Response struct {
	Communities     [][]string       `json:"communities"`
	SuspiciousNodes []SuspiciousNode `json:"suspicious_nodes"`
}

// Client calls the graph-analysis endpoint with a bounded timeout.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New constructs a client for the given base URL. The timeout bounds the whole
// call including body read.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// AnalyzeGraph submits the contractor graph and returns detected communities.
// Non-2xx statuses and undecodable bodies are errors, indistinguishable from
// network failures by design.
func (c *Client) AnalyzeGraph(ctx context.Context, req Request) (*Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal graph request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/fraud/graph", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build graph request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call graph service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("graph service returned status %d", resp.StatusCode)
	}

	var result Response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode graph response: %w", err)
	}
	return &result, nil
}

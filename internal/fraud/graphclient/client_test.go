package graphclient

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "http://graph.test"

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c := New(testBaseURL, 5*time.Second)
	httpmock.ActivateNonDefault(c.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func TestAnalyzeGraph_Success(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/fraud/graph",
		httpmock.NewStringResponder(http.StatusOK, `{
			"communities": [["A","B","C"],["D"]],
			"suspicious_nodes": [{"id":"B","score":0.42}]
		}`))

	resp, err := c.AnalyzeGraph(context.Background(), Request{
		Nodes: []Node{{ID: "A", Type: "contractor", Label: "Alpha"}},
		Edges: []Edge{{Source: "A", Target: "B", Type: "shared_phone"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Communities, 2)
	assert.Equal(t, []string{"A", "B", "C"}, resp.Communities[0])
	require.Len(t, resp.SuspiciousNodes, 1)
	assert.Equal(t, "B", resp.SuspiciousNodes[0].ID)
	assert.InDelta(t, 0.42, resp.SuspiciousNodes[0].Score, 1e-9)
}

func TestAnalyzeGraph_NonSuccessStatus(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/fraud/graph",
		httpmock.NewStringResponder(http.StatusInternalServerError, `{"error":"boom"}`))

	_, err := c.AnalyzeGraph(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestAnalyzeGraph_MalformedBody(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/fraud/graph",
		httpmock.NewStringResponder(http.StatusOK, `{"communities": [`))

	_, err := c.AnalyzeGraph(context.Background(), Request{})
	require.Error(t, err)
}

func TestAnalyzeGraph_ConnectionFailure(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/fraud/graph",
		httpmock.NewErrorResponder(context.DeadlineExceeded))

	_, err := c.AnalyzeGraph(context.Background(), Request{})
	require.Error(t, err)
}

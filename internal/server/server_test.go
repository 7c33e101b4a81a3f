// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-fetcher/internal/agent"
	"github.com/pdiddy/paper-fetcher/internal/fetcher"
	"github.com/pdiddy/paper-fetcher/pkg/types"
)

type fakeSearcher struct {
	gotQuery string
	gotOpts  fetcher.Options
	result   fetcher.Result
	err      error
}

func (f *fakeSearcher) Search(_ context.Context, query string, opts fetcher.Options) (fetcher.Result, error) {
	f.gotQuery = query
	f.gotOpts = opts
	if f.err != nil {
		return fetcher.Result{SessionID: "s1"}, f.err
	}
	return f.result, nil
}

func serve(t *testing.T, s fetcher.Searcher, target string) *httptest.ResponseRecorder {
	t.Helper()
	e := New(s, zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := serve(t, &fakeSearcher{}, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestSearch_Success(t *testing.T) {
	s := &fakeSearcher{result: fetcher.Result{
		Query:     "graph nets",
		SessionID: "123",
		Policy:    "thorough",
		Papers:    []types.Paper{{ID: "2301.00001", Title: "A"}, {ID: "2301.00002", Title: "B"}},
	}}

	rec := serve(t, s, "/v1/search?q=graph+nets&max=2&mode=thorough&sort=true")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "graph nets", s.gotQuery)
	assert.Equal(t, 2, s.gotOpts.MaxResults)
	assert.Equal(t, agent.PolicyThorough, s.gotOpts.Policy)
	assert.True(t, s.gotOpts.SortByRelevance)

	var body SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, "2301.00002", body.Papers[1].ID)
	assert.Equal(t, "123", body.SessionID)
}

func TestSearch_EmptyResultIsAnArray(t *testing.T) {
	rec := serve(t, &fakeSearcher{result: fetcher.Result{Query: "q"}}, "/v1/search?q=q")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"papers":[]`)
	assert.Contains(t, rec.Body.String(), `"count":0`)
}

func TestSearch_BadParameters(t *testing.T) {
	tests := []string{
		"/v1/search?q=x&max=abc",
		"/v1/search?q=x&max=-1",
		"/v1/search?q=x&mode=exhaustive",
		"/v1/search?q=x&sort=maybe",
	}
	for _, target := range tests {
		t.Run(target, func(t *testing.T) {
			s := &fakeSearcher{}
			rec := serve(t, s, target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, s.gotQuery, "searcher must not be called")
		})
	}
}

func TestSearch_ErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"empty query", fetcher.ErrEmptyQuery, http.StatusBadRequest},
		{"initiation", &agent.InitiationError{SessionID: "s1", Err: errors.New("HTTP 502")}, http.StatusBadGateway},
		{"timeout", fmt.Errorf("polling session s1: %w", agent.ErrPollTimeout), http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, &fakeSearcher{err: tt.err}, "/v1/search?q=x")
			assert.Equal(t, tt.want, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestMetrics(t *testing.T) {
	rec := serve(t, &fakeSearcher{}, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

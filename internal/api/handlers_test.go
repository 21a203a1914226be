package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apt-archive/internal/core"
	"apt-archive/internal/types"
)

type fakeBackend struct {
	cfg       types.Configuration
	mode      types.ValidationMode
	requested []types.RepositoryDefinition
	outcomes  []types.PublishOutcome
	err       error
}

func (f *fakeBackend) Configuration() types.Configuration {
	return f.cfg
}

func (f *fakeBackend) Repositories() []types.RepositoryDefinition {
	return f.cfg.Repositories
}

func (f *fakeBackend) Repository(name string) (types.RepositoryDefinition, error) {
	for _, repo := range f.cfg.Repositories {
		if repo.Name == name {
			return repo, nil
		}
	}
	return types.RepositoryDefinition{}, errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(fmt.Sprintf("repository %q is not configured", name))
}

func (f *fakeBackend) PublishBatch(_ context.Context, requested []types.RepositoryDefinition, mode types.ValidationMode) ([]types.PublishOutcome, error) {
	f.requested = requested
	f.mode = mode
	return f.outcomes, f.err
}

func newTestBackend(t *testing.T) *fakeBackend {
	t.Helper()
	cfg, err := types.DefaultConfiguration()
	require.NoError(t, err)
	return &fakeBackend{cfg: cfg}
}

func serve(t *testing.T, backend Backend, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	NewServer(backend, zerolog.Nop()).Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestGetConfigRoundTrips(t *testing.T) {
	backend := newTestBackend(t)

	rec := serve(t, backend, http.MethodGet, "/v1/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	got := decodeBody[types.Configuration](t, rec)
	if diff := cmp.Diff(backend.cfg, got); diff != "" {
		t.Fatalf("unexpected configuration (-want +got):\n%s", diff)
	}

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Contains(t, raw, "archiveRootPath")
	assert.Contains(t, raw, "listenAddress")
	assert.Contains(t, raw, "repositories")
}

func TestGetRepositories(t *testing.T) {
	backend := newTestBackend(t)

	rec := serve(t, backend, http.MethodGet, "/v1/repositories", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[[]types.RepositoryDefinition](t, rec)
	if diff := cmp.Diff([]types.RepositoryDefinition{types.DefaultRepository()}, got); diff != "" {
		t.Fatalf("unexpected repositories (-want +got):\n%s", diff)
	}
}

func TestGetRepositoryByName(t *testing.T) {
	backend := newTestBackend(t)

	rec := serve(t, backend, http.MethodGet, "/v1/repositories/stable", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "buster", decodeBody[types.RepositoryDefinition](t, rec).Codename)

	rec = serve(t, backend, http.MethodGet, "/v1/repositories/ghost", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, types.ErrorKindNotFound, decodeBody[ErrorBody](t, rec).Kind)
}

func TestPublishRepositories(t *testing.T) {
	backend := newTestBackend(t)
	backend.outcomes = []types.PublishOutcome{{
		Repository:       "stable",
		DistributionPath: "archive/dists/stable",
		State:            types.PublishStateSucceeded,
	}}

	body := `[{"name":"stable","architectures":["amd64"],"components":["main"],"suite":"stable","codename":"buster"}]`
	rec := serve(t, backend, http.MethodPost, "/v1/repositories", body)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeBody[[]types.PublishOutcome](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, types.PublishStateSucceeded, got[0].State)
	assert.Equal(t, "stable", backend.requested[0].Name)
	assert.Equal(t, types.ValidationMode(""), backend.mode)
	assert.NotContains(t, rec.Body.String(), `"error"`)
}

func TestPublishRepositoriesEmptyBatch(t *testing.T) {
	backend := newTestBackend(t)

	rec := serve(t, backend, http.MethodPost, "/v1/repositories", `[]`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestPublishRepositoriesValidationMode(t *testing.T) {
	tests := []struct {
		query string
		want  types.ValidationMode
	}{
		{query: "", want: ""},
		{query: "?validation=complete", want: types.ValidationModeFailComplete},
		{query: "?validation=fast", want: types.ValidationModeFailFast},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			backend := newTestBackend(t)
			rec := serve(t, backend, http.MethodPost, "/v1/repositories"+tt.query, `[]`)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, backend.mode)
		})
	}

	rec := serve(t, newTestBackend(t), http.MethodPost, "/v1/repositories?validation=maybe", `[]`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, types.ErrorKindMalformedRequest, decodeBody[ErrorBody](t, rec).Kind)
}

func TestPublishRepositoriesErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantKind   types.ErrorKind
		wantRepo   string
	}{
		{
			name:       "malformed json",
			body:       `{not json`,
			wantStatus: http.StatusBadRequest,
			wantKind:   types.ErrorKindMalformedRequest,
		},
		{
			name:       "object instead of array",
			body:       `{"name":"stable"}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   types.ErrorKindMalformedRequest,
		},
		{
			name: "validation",
			body: `[{"name":"ghost","architectures":["amd64"],"components":["main"]}]`,
			err: &core.ValidationError{
				Kind:       types.ErrorKindUnknownRepository,
				Repository: "ghost",
				Violations: []core.ValidationViolation{{Kind: types.ErrorKindUnknownRepository, Repository: "ghost"}},
			},
			wantStatus: http.StatusBadRequest,
			wantKind:   types.ErrorKindUnknownRepository,
			wantRepo:   "ghost",
		},
		{
			name:       "internal",
			body:       `[]`,
			err:        &core.InternalError{Cause: core.ErrPoolClosed},
			wantStatus: http.StatusInternalServerError,
			wantKind:   types.ErrorKindInternal,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newTestBackend(t)
			backend.err = tt.err

			rec := serve(t, backend, http.MethodPost, "/v1/repositories", tt.body)
			require.Equal(t, tt.wantStatus, rec.Code)
			got := decodeBody[ErrorBody](t, rec)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.wantRepo, got.Repository)
			assert.NotEmpty(t, got.Message)
		})
	}
}

func TestUnknownRouteAndMethod(t *testing.T) {
	backend := newTestBackend(t)
	assert.Equal(t, http.StatusNotFound, serve(t, backend, http.MethodGet, "/v2/config", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(t, backend, http.MethodDelete, "/v1/repositories", "").Code)
}

func TestRequestIDHeader(t *testing.T) {
	rec := serve(t, newTestBackend(t), http.MethodGet, "/v1/config", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

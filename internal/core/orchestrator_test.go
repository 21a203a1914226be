package core

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apt-archive/internal/ports"
	"apt-archive/internal/types"
)

type memoryArchive struct {
	mu     sync.Mutex
	files  map[string]string
	scopes []string
}

func newMemoryArchive() *memoryArchive {
	return &memoryArchive{files: map[string]string{}}
}

func (a *memoryArchive) List(_ context.Context, dir string) ([]string, error) {
	return []string{}, nil
}

func (a *memoryArchive) Open(_ context.Context, name string) (io.ReadCloser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	content, ok := a.files[name]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

func (a *memoryArchive) WriterFor(scope string) ports.ArchiveWriterPort {
	a.mu.Lock()
	a.scopes = append(a.scopes, scope)
	a.mu.Unlock()
	return memoryWriter{archive: a, scope: scope}
}

type memoryWriter struct {
	archive *memoryArchive
	scope   string
}

func (w memoryWriter) Write(_ context.Context, name string, content io.Reader) error {
	if !strings.HasPrefix(name, w.scope+"/") {
		return errors.New("outside scope")
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	w.archive.mu.Lock()
	defer w.archive.mu.Unlock()
	w.archive.files[name] = string(data)
	return nil
}

type builderCall struct {
	name  string
	start time.Time
	end   time.Time
}

// recordingBuilder records the start and end of every call and fails or
// panics for configured repositories.
type recordingBuilder struct {
	mu      sync.Mutex
	calls   []builderCall
	delay   time.Duration
	failFor map[string]error
	panicOn map[string]bool
}

func (b *recordingBuilder) Publish(ctx context.Context, definition types.RepositoryDefinition, distributionDir string, writer ports.ArchiveWriterPort, _ ports.ArchiveReaderPort, _ ports.PublishOptions) error {
	call := builderCall{name: definition.Name, start: time.Now()}
	time.Sleep(b.delay)
	defer func() {
		call.end = time.Now()
		b.mu.Lock()
		b.calls = append(b.calls, call)
		b.mu.Unlock()
	}()
	if b.panicOn[definition.Name] {
		panic("builder exploded")
	}
	if err := b.failFor[definition.Name]; err != nil {
		return err
	}
	return writer.Write(ctx, distributionDir+"/Release", strings.NewReader("Suite: "+definition.Suite+"\n"))
}

func (b *recordingBuilder) callsFor(name string) []builderCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []builderCall
	for _, call := range b.calls {
		if call.name == name {
			out = append(out, call)
		}
	}
	return out
}

func newTestOrchestrator(t *testing.T, builder ports.ArchiveBuilderPort, names ...string) (*Orchestrator, *memoryArchive) {
	t.Helper()
	archive := newMemoryArchive()
	orchestrator := NewOrchestrator(testRegistry(t, names...), builder, archive, "/srv/archive", NewRepositoryLocks(), NewBlockingPool(4), ports.PublishOptions{CompressionLevel: 1})
	return orchestrator, archive
}

func TestPublishBatchSucceeds(t *testing.T) {
	builder := &recordingBuilder{}
	orchestrator, archive := newTestOrchestrator(t, builder, "stable", "testing")

	outcomes, err := orchestrator.PublishBatch(t.Context(), []types.RepositoryDefinition{testRepository("testing"), testRepository("stable")})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	assert.Equal(t, "testing", outcomes[0].Repository)
	assert.Equal(t, "stable", outcomes[1].Repository)
	for _, outcome := range outcomes {
		assert.True(t, outcome.Succeeded())
		assert.Nil(t, outcome.Error)
		assert.Equal(t, filepath.Join("/srv/archive", "dists", outcome.Repository), outcome.DistributionPath)
		assert.False(t, outcome.FinishedAt.Before(outcome.StartedAt))
	}
	assert.Equal(t, "Suite: stable\n", archive.files["dists/stable/Release"])
	assert.ElementsMatch(t, []string{"dists/stable", "dists/testing"}, archive.scopes)
}

func TestPublishBatchUsesRegisteredDefinition(t *testing.T) {
	builder := &recordingBuilder{}
	orchestrator, archive := newTestOrchestrator(t, builder, "stable")

	requested := testRepository("stable")
	requested.Suite = "from-request"
	_, err := orchestrator.PublishBatch(t.Context(), []types.RepositoryDefinition{requested})
	require.NoError(t, err)
	assert.Equal(t, "Suite: stable\n", archive.files["dists/stable/Release"])
}

func TestPublishBatchEmpty(t *testing.T) {
	orchestrator, _ := newTestOrchestrator(t, &recordingBuilder{}, "stable")

	outcomes, err := orchestrator.PublishBatch(t.Context(), nil)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}

func TestPublishBatchRejectsWholeBatch(t *testing.T) {
	builder := &recordingBuilder{}
	orchestrator, _ := newTestOrchestrator(t, builder, "stable")

	outcomes, err := orchestrator.PublishBatch(t.Context(), []types.RepositoryDefinition{testRepository("stable"), testRepository("ghost")})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, types.ErrorKindUnknownRepository, validationErr.Kind)
	assert.Equal(t, "ghost", validationErr.Repository)
	assert.Nil(t, outcomes)
	assert.Empty(t, builder.callsFor("stable"))
}

func TestPublishBatchWithModeCollectsViolations(t *testing.T) {
	orchestrator, _ := newTestOrchestrator(t, &recordingBuilder{}, "stable")

	_, err := orchestrator.PublishBatchWithMode(t.Context(), []types.RepositoryDefinition{testRepository("ghost"), testRepository("phantom")}, types.ValidationModeFailComplete)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Len(t, validationErr.Violations, 2)

	_, err = orchestrator.PublishBatch(t.Context(), []types.RepositoryDefinition{testRepository("ghost"), testRepository("phantom")})
	require.ErrorAs(t, err, &validationErr)
	assert.Len(t, validationErr.Violations, 1)
}

func TestPublishBatchPartialFailure(t *testing.T) {
	builder := &recordingBuilder{failFor: map[string]error{"alpha": errors.New("disk full")}}
	orchestrator, _ := newTestOrchestrator(t, builder, "alpha", "beta")

	outcomes, err := orchestrator.PublishBatch(t.Context(), []types.RepositoryDefinition{testRepository("alpha"), testRepository("beta")})
	require.NoError(t, err)

	got := []types.PublishState{outcomes[0].State, outcomes[1].State}
	if diff := cmp.Diff([]types.PublishState{types.PublishStateFailed, types.PublishStateSucceeded}, got); diff != "" {
		t.Fatalf("unexpected states (-want +got):\n%s", diff)
	}
	require.NotNil(t, outcomes[0].Error)
	assert.Equal(t, types.ErrorKindBuild, outcomes[0].Error.Kind)
	assert.Contains(t, outcomes[0].Error.Message, "alpha")
	assert.Contains(t, outcomes[0].Error.Message, "disk full")
}

func TestPublishBatchRecordsBuilderPanic(t *testing.T) {
	builder := &recordingBuilder{panicOn: map[string]bool{"alpha": true}}
	orchestrator, _ := newTestOrchestrator(t, builder, "alpha", "beta")

	outcomes, err := orchestrator.PublishBatch(t.Context(), []types.RepositoryDefinition{testRepository("alpha"), testRepository("beta")})
	require.NoError(t, err)
	require.NotNil(t, outcomes[0].Error)
	assert.Equal(t, types.ErrorKindInternal, outcomes[0].Error.Kind)
	assert.True(t, outcomes[1].Succeeded())

	// The lock for alpha was released despite the panic.
	outcomes, err = orchestrator.PublishBatch(t.Context(), []types.RepositoryDefinition{testRepository("beta")})
	require.NoError(t, err)
	assert.True(t, outcomes[0].Succeeded())
}

func TestPublishBatchSerializesSameName(t *testing.T) {
	builder := &recordingBuilder{delay: 30 * time.Millisecond}
	orchestrator, _ := newTestOrchestrator(t, builder, "stable")

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := orchestrator.PublishBatch(context.Background(), []types.RepositoryDefinition{testRepository("stable")})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	calls := builder.callsFor("stable")
	require.Len(t, calls, 3)
	for i := range calls {
		for j := range calls {
			if i == j {
				continue
			}
			overlap := calls[i].start.Before(calls[j].end) && calls[j].start.Before(calls[i].end)
			assert.False(t, overlap, "publishes of the same repository overlapped")
		}
	}
}

func TestPublishBatchRunsDifferentNamesConcurrently(t *testing.T) {
	builder := &recordingBuilder{delay: 100 * time.Millisecond}
	orchestrator, _ := newTestOrchestrator(t, builder, "alpha", "beta")

	outcomes, err := orchestrator.PublishBatch(t.Context(), []types.RepositoryDefinition{testRepository("alpha"), testRepository("beta")})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	alpha := builder.callsFor("alpha")[0]
	beta := builder.callsFor("beta")[0]
	assert.True(t, alpha.start.Before(beta.end) && beta.start.Before(alpha.end), "publishes of different repositories did not overlap")
}

func TestConcurrentBatchesWithDisjointNamesOverlap(t *testing.T) {
	builder := &recordingBuilder{delay: 100 * time.Millisecond}
	orchestrator, _ := newTestOrchestrator(t, builder, "alpha", "beta")

	var wg sync.WaitGroup
	for _, name := range []string{"alpha", "beta"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes, err := orchestrator.PublishBatch(t.Context(), []types.RepositoryDefinition{testRepository(name)})
			if assert.NoError(t, err) && assert.Len(t, outcomes, 1) {
				assert.True(t, outcomes[0].Succeeded(), name)
			}
		}()
	}
	wg.Wait()

	require.Len(t, builder.callsFor("alpha"), 1)
	require.Len(t, builder.callsFor("beta"), 1)
	alpha := builder.callsFor("alpha")[0]
	beta := builder.callsFor("beta")[0]
	assert.True(t, alpha.start.Before(beta.end) && beta.start.Before(alpha.end), "concurrent batches for different repositories did not overlap")
}

func TestPublishBatchCancelledWhileWaitingForLock(t *testing.T) {
	orchestrator, _ := newTestOrchestrator(t, &recordingBuilder{}, "stable")

	release, err := orchestrator.Locks.Acquire(t.Context(), "stable")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	outcomes, err := orchestrator.PublishBatch(ctx, []types.RepositoryDefinition{testRepository("stable")})
	require.NoError(t, err)
	require.NotNil(t, outcomes[0].Error)
	assert.Equal(t, types.PublishStateFailed, outcomes[0].State)
	assert.Equal(t, types.ErrorKindCancelled, outcomes[0].Error.Kind)
}

func TestPublishBatchAfterShutdown(t *testing.T) {
	orchestrator, _ := newTestOrchestrator(t, &recordingBuilder{}, "stable")
	require.NoError(t, orchestrator.Pool.Close(t.Context()))

	_, err := orchestrator.PublishBatch(t.Context(), []types.RepositoryDefinition{testRepository("stable")})
	var internalErr *InternalError
	require.ErrorAs(t, err, &internalErr)
	require.ErrorIs(t, err, ErrPoolClosed)
}

func TestErrorKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want types.ErrorKind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "build", err: &BuildError{Repository: "a", Cause: errors.New("x")}, want: types.ErrorKindBuild},
		{name: "panic", err: &PanicError{Value: "x"}, want: types.ErrorKindInternal},
		{name: "pool closed", err: ErrPoolClosed, want: types.ErrorKindInternal},
		{name: "cancelled", err: context.Canceled, want: types.ErrorKindCancelled},
		{name: "deadline", err: context.DeadlineExceeded, want: types.ErrorKindCancelled},
		{name: "validation", err: &ValidationError{Kind: types.ErrorKindEmptyComponents}, want: types.ErrorKindEmptyComponents},
		{name: "other", err: errors.New("x"), want: types.ErrorKindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorKindOf(tt.err))
		})
	}
}

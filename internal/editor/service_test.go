package editor

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"collab-sync/pkg/ot"
)

// fakeStore records persistence calls in memory.
type fakeStore struct {
	mu       sync.Mutex
	content  string
	revision uint64
	found    bool
	ops      map[uint64]*ot.TextOperation
	saves    int
}

func (f *fakeStore) LoadSnapshot(ctx context.Context, docID string) (string, uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.found {
		return "", 0, context.Canceled // any error means "start empty"
	}
	return f.content, f.revision, nil
}

func (f *fakeStore) SaveSnapshot(ctx context.Context, docID string, content string, revision uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.content, f.revision, f.found = content, revision, true
	f.saves++
	return nil
}

func (f *fakeStore) AppendOperation(ctx context.Context, docID string, revision uint64, op *ot.TextOperation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ops == nil {
		f.ops = make(map[uint64]*ot.TextOperation)
	}
	f.ops[revision] = op
	return nil
}

func newTestService() *Service {
	return NewService(nil, zerolog.Nop())
}

func TestServiceConcurrentOperationsConverge(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	// Two clients edit the empty document at revision 0.
	fromA, err := svc.ReceiveOperation(ctx, "doc", "a", 0, ot.New().Insert("hi"), nil)
	require.NoError(t, err)
	require.True(t, fromA.Equals(ot.New().Insert("hi")))

	fromB, err := svc.ReceiveOperation(ctx, "doc", "b", 0, ot.New().Insert("yo"), nil)
	require.NoError(t, err)
	require.True(t, fromB.Equals(ot.New().Insert("yo").Retain(2)))

	session := svc.session(ctx, "doc")
	require.Equal(t, "yohi", session.server.Document())
	require.Equal(t, uint64(2), session.server.Revision())
}

func TestServiceRejectsBadRevision(t *testing.T) {
	svc := newTestService()

	_, err := svc.ReceiveOperation(context.Background(), "doc", "a", 5, ot.New().Insert("x"), nil)
	require.ErrorIs(t, err, ot.ErrRevisionOutOfRange)
	require.Equal(t, int64(1), svc.opsRejected.Load())
}

func TestServiceTransformsStoredSelections(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.ReceiveOperation(ctx, "doc", "a", 0, ot.New().Insert("abcd"), nil)
	require.NoError(t, err)

	// Client b parks a cursor at position 2.
	svc.ReceiveSelection(ctx, "doc", "b", ot.Cursor(2))

	// Client a inserts two characters at the front; b's cursor must move.
	_, err = svc.ReceiveOperation(ctx, "doc", "a", 1, ot.New().Insert("XY").Retain(4), nil)
	require.NoError(t, err)

	session := svc.session(ctx, "doc")
	all := session.selections.All("a")
	require.Len(t, all, 1)
	require.Equal(t, "b", all[0].ClientID)
	require.True(t, all[0].Selection.Equals(ot.Cursor(4)))
}

func TestServiceSenderSelectionNotDoubleTransformed(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	// The selection accompanying an operation is already relative to the
	// document after that operation.
	sel := ot.Cursor(2)
	_, err := svc.ReceiveOperation(ctx, "doc", "a", 0, ot.New().Insert("ab"), &sel)
	require.NoError(t, err)

	session := svc.session(ctx, "doc")
	all := session.selections.All("")
	require.Len(t, all, 1)
	require.True(t, all[0].Selection.Equals(ot.Cursor(2)))
}

func TestServiceWarmStartsFromStore(t *testing.T) {
	svc := newTestService()
	st := &fakeStore{content: "hello", revision: 7, found: true}
	svc.SetStore(st)
	ctx := context.Background()

	// The session resumes from the snapshot; clients speak revisions local
	// to the new history.
	accepted, err := svc.ReceiveOperation(ctx, "doc", "a", 0, ot.New().Retain(5).Insert("!"), nil)
	require.NoError(t, err)
	require.True(t, accepted.Equals(ot.New().Retain(5).Insert("!")))

	session := svc.session(ctx, "doc")
	require.Equal(t, "hello!", session.server.Document())

	// Persistence continues at the absolute revision.
	st.mu.Lock()
	defer st.mu.Unlock()
	require.Equal(t, uint64(8), st.revision)
	require.Equal(t, "hello!", st.content)
	require.Contains(t, st.ops, uint64(8))
}

func TestServiceStats(t *testing.T) {
	svc := newTestService()
	svc.Start()
	ctx := context.Background()

	_, err := svc.ReceiveOperation(ctx, "doc", "a", 0, ot.New().Insert("x"), nil)
	require.NoError(t, err)

	stats := svc.Stats()
	require.Equal(t, int64(1), stats["ops_accepted"])
	require.Equal(t, 1, stats["open_sessions"])
}

package services

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"careflow-backend/domain/core/aggregates"
	"careflow-backend/domain/core/entities"
	"careflow-backend/domain/core/validators"
	"careflow-backend/domain/core/valueobjects"
	"careflow-backend/pkg/metrics"
)

type reconcilerFixture struct {
	reconciler *CanvasReconciler
	sessions   *SessionManager
	repo       *fakePipelineRepo
	promptID   string
	evidenceID string
}

func newReconcilerFixture(t *testing.T) *reconcilerFixture {
	t.Helper()
	repo := newFakePipelineRepo()
	sessions := NewSessionManager(repo, &fakePublisher{}, nil, zap.NewNop())
	m := metrics.New(prometheus.NewRegistry())
	r := NewCanvasReconciler(sessions, m, zap.NewNop())
	r.SetCommitDelay(10 * time.Millisecond)

	f := &reconcilerFixture{reconciler: r, sessions: sessions, repo: repo, evidenceID: "evidence-input-1"}

	ctx := context.Background()
	err := sessions.Mutate(ctx, "user123", func(p *aggregates.Pipeline) error {
		prompt, _ := p.PromptNode()
		f.promptID = prompt.ID().String()

		id, err := valueobjects.NewNodeIDFromString(f.evidenceID)
		if err != nil {
			return err
		}
		node, err := entities.NewNode(id, valueobjects.NodeTypeEvidenceInput, valueobjects.NewPosition(100, 100), "", "")
		if err != nil {
			return err
		}
		return p.AddNode(node)
	})
	require.NoError(t, err)
	return f
}

func (f *reconcilerFixture) nodePosition(t *testing.T, nodeID string) (float64, float64) {
	t.Helper()
	var x, y float64
	id, err := valueobjects.NewNodeIDFromString(nodeID)
	require.NoError(t, err)
	err = f.sessions.Read(context.Background(), "user123", func(p *aggregates.Pipeline) error {
		node, ok := p.Node(id)
		require.True(t, ok)
		x, y = node.Position().X(), node.Position().Y()
		return nil
	})
	require.NoError(t, err)
	return x, y
}

func (f *reconcilerFixture) nodeCount(t *testing.T) int {
	t.Helper()
	count := 0
	err := f.sessions.Read(context.Background(), "user123", func(p *aggregates.Pipeline) error {
		count = len(p.Nodes())
		return nil
	})
	require.NoError(t, err)
	return count
}

func TestCanvasReconciler_DragMove_NeverCommits(t *testing.T) {
	f := newReconcilerFixture(t)

	f.reconciler.HandleDragStart("user123", f.evidenceID)
	f.reconciler.HandleDragMove("user123", f.evidenceID, 250, 260)
	f.reconciler.HandleDragMove("user123", f.evidenceID, 300, 310)

	x, y := f.nodePosition(t, f.evidenceID)
	assert.Equal(t, 100.0, x)
	assert.Equal(t, 100.0, y)
}

func TestCanvasReconciler_DragEnd_CommitsAfterDelay(t *testing.T) {
	f := newReconcilerFixture(t)

	f.reconciler.HandleDragStart("user123", f.evidenceID)
	f.reconciler.HandleDragMove("user123", f.evidenceID, 250, 260)
	f.reconciler.HandleDragEnd("user123", f.evidenceID, 300, 310)

	assert.Eventually(t, func() bool {
		x, y := f.nodePosition(t, f.evidenceID)
		return x == 300 && y == 310
	}, time.Second, 5*time.Millisecond)
}

func TestCanvasReconciler_NewDragCancelsPendingCommit(t *testing.T) {
	f := newReconcilerFixture(t)
	f.reconciler.SetCommitDelay(50 * time.Millisecond)

	f.reconciler.HandleDragStart("user123", f.evidenceID)
	f.reconciler.HandleDragEnd("user123", f.evidenceID, 300, 310)

	// Grab the node again inside the deferral window
	f.reconciler.HandleDragStart("user123", f.evidenceID)
	f.reconciler.HandleDragEnd("user123", f.evidenceID, 500, 510)

	assert.Eventually(t, func() bool {
		x, y := f.nodePosition(t, f.evidenceID)
		return x == 500 && y == 510
	}, time.Second, 5*time.Millisecond)

	// The cancelled first commit must never land afterwards
	time.Sleep(100 * time.Millisecond)
	x, y := f.nodePosition(t, f.evidenceID)
	assert.Equal(t, 500.0, x)
	assert.Equal(t, 510.0, y)
}

func TestCanvasReconciler_SuppressesEchoOfOwnCommit(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()

	f.reconciler.HandleDragStart("user123", f.evidenceID)
	f.reconciler.HandleDragEnd("user123", f.evidenceID, 300, 310)

	assert.Eventually(t, func() bool {
		x, _ := f.nodePosition(t, f.evidenceID)
		return x == 300
	}, time.Second, 5*time.Millisecond)

	savesBefore := f.repo.saves()

	// The widget echoes the committed change back; it must be dropped
	require.NoError(t, f.reconciler.HandlePositionChange(ctx, "user123", f.evidenceID, 300, 310))
	assert.Equal(t, savesBefore, f.repo.saves())

	// Suppression is one-shot: the next change is authoritative
	require.NoError(t, f.reconciler.HandlePositionChange(ctx, "user123", f.evidenceID, 123, 456))
	x, y := f.nodePosition(t, f.evidenceID)
	assert.Equal(t, 123.0, x)
	assert.Equal(t, 456.0, y)
}

func TestCanvasReconciler_PositionChangeDuringDragIsIgnored(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()

	f.reconciler.HandleDragStart("user123", f.evidenceID)
	require.NoError(t, f.reconciler.HandlePositionChange(ctx, "user123", f.evidenceID, 999, 999))

	x, y := f.nodePosition(t, f.evidenceID)
	assert.Equal(t, 100.0, x)
	assert.Equal(t, 100.0, y)
}

func TestCanvasReconciler_DeleteCancelsPendingCommit(t *testing.T) {
	f := newReconcilerFixture(t)
	f.reconciler.SetCommitDelay(50 * time.Millisecond)
	ctx := context.Background()

	f.reconciler.HandleDragStart("user123", f.evidenceID)
	f.reconciler.HandleDragEnd("user123", f.evidenceID, 300, 310)

	require.NoError(t, f.reconciler.HandleNodesDelete(ctx, "user123", []string{f.evidenceID}))
	assert.Equal(t, 1, f.nodeCount(t))

	// The stale commit timer must not error or resurrect anything
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, f.nodeCount(t))
}

func TestCanvasReconciler_DeleteUnknownNodeIsTolerated(t *testing.T) {
	f := newReconcilerFixture(t)
	err := f.reconciler.HandleNodesDelete(context.Background(), "user123", []string{"never-existed"})
	assert.NoError(t, err)
}

func TestCanvasReconciler_ConnectRejectionIsSilent(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()

	evidence, _ := valueobjects.NewNodeIDFromString(f.evidenceID)
	prompt, _ := valueobjects.NewNodeIDFromString(f.promptID)

	good := validators.Candidate{SourceID: evidence, TargetID: prompt}
	require.NoError(t, f.reconciler.HandleConnect(ctx, "user123", good))

	// Duplicate gesture: rejected by the aggregate, swallowed here
	require.NoError(t, f.reconciler.HandleConnect(ctx, "user123", good))

	connCount := 0
	require.NoError(t, f.sessions.Read(ctx, "user123", func(p *aggregates.Pipeline) error {
		connCount = len(p.Connections())
		return nil
	}))
	assert.Equal(t, 1, connCount)
}

func TestCanvasReconciler_IsValidConnection(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()

	evidence, _ := valueobjects.NewNodeIDFromString(f.evidenceID)
	prompt, _ := valueobjects.NewNodeIDFromString(f.promptID)

	assert.True(t, f.reconciler.IsValidConnection(ctx, "user123", validators.Candidate{
		SourceID: evidence, TargetID: prompt,
	}))
	assert.False(t, f.reconciler.IsValidConnection(ctx, "user123", validators.Candidate{
		SourceID: prompt, TargetID: evidence,
	}))
}

func TestCanvasReconciler_ForgetKeepsCommittingNodes(t *testing.T) {
	f := newReconcilerFixture(t)
	f.reconciler.SetCommitDelay(50 * time.Millisecond)

	f.reconciler.HandleDragStart("user123", f.evidenceID)
	f.reconciler.HandleDragEnd("user123", f.evidenceID, 300, 310)

	// Socket closes before the commit window elapses; the commit must
	// still land
	f.reconciler.Forget("user123")

	assert.Eventually(t, func() bool {
		x, _ := f.nodePosition(t, f.evidenceID)
		return x == 300
	}, time.Second, 5*time.Millisecond)
}

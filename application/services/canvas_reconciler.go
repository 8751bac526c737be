package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"careflow-backend/domain/core/aggregates"
	"careflow-backend/domain/core/validators"
	"careflow-backend/domain/core/valueobjects"
	pkgerrors "careflow-backend/pkg/errors"
	"careflow-backend/pkg/metrics"
)

// dragState is where one node sits in its drag lifecycle
type dragState int

const (
	dragIdle dragState = iota
	dragActive
	dragCommitting
)

// nodeTracker is the reconciler's view of one node: drag lifecycle, last
// reported position, the deferred commit timer, and the echo-suppression
// flag armed after a server-side commit.
type nodeTracker struct {
	state        dragState
	lastX, lastY float64
	commitTimer  *time.Timer
	suppressNext bool
}

// CanvasReconciler sits between the untrusted canvas widget and the
// pipeline aggregate. The widget streams gesture events; the reconciler
// decides which of them become aggregate mutations and when.
//
// Position changes during a drag are tracked but never committed. When the
// drag ends the commit is deferred by a short window so a fast successive
// drag on the same node cancels the stale commit instead of racing it. A
// committed position arms one-shot suppression for the widget's echo of
// that same change, so the server never reprocesses its own write.
type CanvasReconciler struct {
	sessions    *SessionManager
	metrics     *metrics.Metrics
	logger      *zap.Logger
	commitDelay time.Duration

	mu    sync.Mutex
	users map[string]map[string]*nodeTracker
}

// DefaultCommitDelay is the window between drag-end and position commit
const DefaultCommitDelay = 150 * time.Millisecond

// NewCanvasReconciler creates a reconciler over the session manager
func NewCanvasReconciler(sessions *SessionManager, m *metrics.Metrics, logger *zap.Logger) *CanvasReconciler {
	return &CanvasReconciler{
		sessions:    sessions,
		metrics:     m,
		logger:      logger,
		commitDelay: DefaultCommitDelay,
		users:       make(map[string]map[string]*nodeTracker),
	}
}

// SetCommitDelay overrides the drag-end deferral window
func (r *CanvasReconciler) SetCommitDelay(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commitDelay = d
}

func (r *CanvasReconciler) tracker(userID, nodeID string) *nodeTracker {
	nodes, ok := r.users[userID]
	if !ok {
		nodes = make(map[string]*nodeTracker)
		r.users[userID] = nodes
	}
	t, ok := nodes[nodeID]
	if !ok {
		t = &nodeTracker{}
		nodes[nodeID] = t
	}
	return t
}

// HandleDragStart begins a drag. Any deferred commit for the node is
// cancelled: the user grabbed it again before the previous drag settled.
func (r *CanvasReconciler) HandleDragStart(userID, nodeID string) {
	r.metrics.CanvasEventsProcessed.WithLabelValues("drag_start").Inc()

	r.mu.Lock()
	defer r.mu.Unlock()

	t := r.tracker(userID, nodeID)
	if t.commitTimer != nil {
		t.commitTimer.Stop()
		t.commitTimer = nil
	}
	t.state = dragActive
	t.suppressNext = false
}

// HandleDragMove records a transient position. Nothing is committed; the
// widget renders the motion locally and the aggregate stays at the last
// settled position.
func (r *CanvasReconciler) HandleDragMove(userID, nodeID string, x, y float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := r.tracker(userID, nodeID)
	if t.state != dragActive {
		return
	}
	t.lastX, t.lastY = x, y
}

// HandleDragEnd schedules the position commit after the deferral window.
// A new drag-start on the same node before the timer fires cancels it.
func (r *CanvasReconciler) HandleDragEnd(userID, nodeID string, x, y float64) {
	r.metrics.CanvasEventsProcessed.WithLabelValues("drag_end").Inc()

	r.mu.Lock()
	defer r.mu.Unlock()

	t := r.tracker(userID, nodeID)
	if t.state != dragActive {
		return
	}
	t.state = dragCommitting
	t.lastX, t.lastY = x, y

	t.commitTimer = time.AfterFunc(r.commitDelay, func() {
		r.commitPosition(userID, nodeID)
	})
}

// commitPosition fires when the deferral window elapses without the node
// being grabbed again
func (r *CanvasReconciler) commitPosition(userID, nodeID string) {
	r.mu.Lock()
	t := r.tracker(userID, nodeID)
	if t.state != dragCommitting {
		r.mu.Unlock()
		return
	}
	x, y := t.lastX, t.lastY
	t.state = dragIdle
	t.commitTimer = nil
	t.suppressNext = true
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.moveNode(ctx, userID, nodeID, x, y); err != nil {
		r.logger.Error("failed to commit node position",
			zap.String("user_id", userID),
			zap.String("node_id", nodeID),
			zap.Error(err))
	}
}

// HandlePositionChange processes a position-change event the widget reports
// outside an active drag. The first such event after a server commit is the
// widget echoing that commit back and is dropped; anything else is treated
// as an authoritative move.
func (r *CanvasReconciler) HandlePositionChange(ctx context.Context, userID, nodeID string, x, y float64) error {
	r.metrics.CanvasEventsProcessed.WithLabelValues("position_change").Inc()

	r.mu.Lock()
	t := r.tracker(userID, nodeID)
	if t.state != dragIdle {
		r.mu.Unlock()
		return nil
	}
	if t.suppressNext {
		t.suppressNext = false
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	return r.moveNode(ctx, userID, nodeID, x, y)
}

// HandleNodesDelete processes a delete gesture for one or more nodes. Any
// pending position commits for the deleted nodes are cancelled first so a
// commit timer cannot resurrect state for a node that no longer exists.
func (r *CanvasReconciler) HandleNodesDelete(ctx context.Context, userID string, nodeIDs []string) error {
	r.metrics.CanvasEventsProcessed.WithLabelValues("nodes_delete").Inc()

	r.mu.Lock()
	if nodes, ok := r.users[userID]; ok {
		for _, nodeID := range nodeIDs {
			if t, ok := nodes[nodeID]; ok {
				if t.commitTimer != nil {
					t.commitTimer.Stop()
				}
				delete(nodes, nodeID)
			}
		}
	}
	r.mu.Unlock()

	for _, nodeID := range nodeIDs {
		id, err := valueobjects.NewNodeIDFromString(nodeID)
		if err != nil {
			continue
		}
		err = r.sessions.Mutate(ctx, userID, func(p *aggregates.Pipeline) error {
			return p.RemoveNode(id)
		})
		if err != nil && !pkgerrors.IsType(err, pkgerrors.ErrorTypeNotFound) {
			return err
		}
	}
	return nil
}

// HandleConnect processes a connect gesture. Rejections are silent no-ops
// at the widget; only the rejection counter records them.
func (r *CanvasReconciler) HandleConnect(ctx context.Context, userID string, candidate validators.Candidate) error {
	r.metrics.CanvasEventsProcessed.WithLabelValues("connect").Inc()

	err := r.sessions.Mutate(ctx, userID, func(p *aggregates.Pipeline) error {
		_, err := p.AddConnection(candidate)
		return err
	})
	if validators.IsRejection(err) {
		r.metrics.ConnectionGesturesRejected.Inc()
		r.logger.Debug("connect gesture rejected",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil
	}
	return err
}

// HandleEdgesDelete removes connections the widget reports deleted
func (r *CanvasReconciler) HandleEdgesDelete(ctx context.Context, userID string, connectionIDs []string) error {
	r.metrics.CanvasEventsProcessed.WithLabelValues("edges_delete").Inc()

	for _, connID := range connectionIDs {
		err := r.sessions.Mutate(ctx, userID, func(p *aggregates.Pipeline) error {
			return p.RemoveConnection(connID)
		})
		if err != nil && !pkgerrors.IsType(err, pkgerrors.ErrorTypeNotFound) {
			return err
		}
	}
	return nil
}

// IsValidConnection answers the widget's advisory pre-check without
// mutating anything
func (r *CanvasReconciler) IsValidConnection(ctx context.Context, userID string, candidate validators.Candidate) bool {
	valid := false
	_ = r.sessions.Read(ctx, userID, func(p *aggregates.Pipeline) error {
		valid = p.IsValidConnection(candidate)
		return nil
	})
	return valid
}

// Forget drops all drag state for a user, typically when their last socket
// closes. Pending commit timers still fire; commits outlive the connection
// that initiated them.
func (r *CanvasReconciler) Forget(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	nodes, ok := r.users[userID]
	if !ok {
		return
	}
	for nodeID, t := range nodes {
		if t.state == dragCommitting {
			continue
		}
		delete(nodes, nodeID)
	}
	if len(nodes) == 0 {
		delete(r.users, userID)
	}
}

func (r *CanvasReconciler) moveNode(ctx context.Context, userID, nodeID string, x, y float64) error {
	id, err := valueobjects.NewNodeIDFromString(nodeID)
	if err != nil {
		return nil
	}
	err = r.sessions.Mutate(ctx, userID, func(p *aggregates.Pipeline) error {
		return p.MoveNode(id, valueobjects.NewPosition(x, y))
	})
	if pkgerrors.IsType(err, pkgerrors.ErrorTypeNotFound) {
		return nil
	}
	return err
}

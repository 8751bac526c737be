package aggregates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careflow-backend/domain/config"
	"careflow-backend/domain/core/entities"
	"careflow-backend/domain/core/validators"
	"careflow-backend/domain/core/valueobjects"
	pkgerrors "careflow-backend/pkg/errors"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := NewPipeline("user123")
	require.NoError(t, err)
	p.MarkEventsAsCommitted()
	return p
}

func addComponent(t *testing.T, p *Pipeline, kind valueobjects.NodeType, id string) *entities.Node {
	t.Helper()
	nodeID, err := valueobjects.NewNodeIDFromString(id)
	require.NoError(t, err)
	node, err := entities.NewNode(nodeID, kind, valueobjects.NewPosition(100, 100), "", "")
	require.NoError(t, err)
	require.NoError(t, p.AddNode(node))
	return node
}

func connect(t *testing.T, p *Pipeline, sourceID string) *entities.Connection {
	t.Helper()
	source, err := valueobjects.NewNodeIDFromString(sourceID)
	require.NoError(t, err)
	prompt, ok := p.PromptNode()
	require.True(t, ok)
	conn, err := p.AddConnection(validators.Candidate{SourceID: source, TargetID: prompt.ID()})
	require.NoError(t, err)
	return conn
}

func TestNewPipeline_SeedsPromptNode(t *testing.T) {
	p, err := NewPipeline("user123")
	require.NoError(t, err)

	prompt, ok := p.PromptNode()
	require.True(t, ok)
	assert.Equal(t, valueobjects.NodeTypePrompt, prompt.Type())
	assert.Len(t, p.Nodes(), 1)
	assert.Empty(t, p.Connections())
	assert.NoError(t, p.Validate())
}

func TestNewPipeline_EmptyUserID(t *testing.T) {
	_, err := NewPipeline("")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeValidation))
}

func TestPipeline_AddNode_RejectsSecondPrompt(t *testing.T) {
	p := newTestPipeline(t)

	second, err := entities.NewNode(
		valueobjects.NewNodeID(),
		valueobjects.NodeTypePrompt,
		valueobjects.NewPosition(0, 0),
		"Prompt", "",
	)
	require.NoError(t, err)

	err = p.AddNode(second)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeConflict))
	assert.Len(t, p.Nodes(), 1)
}

func TestPipeline_AddNode_RejectsDuplicateID(t *testing.T) {
	p := newTestPipeline(t)
	addComponent(t, p, valueobjects.NodeTypeEvidenceInput, "evidence-input-1")

	dup, err := valueobjects.NewNodeIDFromString("evidence-input-1")
	require.NoError(t, err)
	node, err := entities.NewNode(dup, valueobjects.NodeTypeStylePersonalization, valueobjects.NewPosition(0, 0), "", "")
	require.NoError(t, err)

	err = p.AddNode(node)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeConflict))
}

func TestPipeline_AddNode_AllowsDuplicateComponentTypesByDefault(t *testing.T) {
	p := newTestPipeline(t)
	addComponent(t, p, valueobjects.NodeTypeEvidenceInput, "evidence-input-1")
	addComponent(t, p, valueobjects.NodeTypeEvidenceInput, "evidence-input-2")
	assert.Len(t, p.Nodes(), 3)
}

func TestPipeline_AddNode_DuplicateTypeRejectedWhenDisallowed(t *testing.T) {
	cfg := config.DefaultDomainConfig()
	cfg.AllowDuplicateComponentTypes = false
	p, err := NewPipelineWithConfig("user123", cfg)
	require.NoError(t, err)

	addComponent(t, p, valueobjects.NodeTypeEvidenceInput, "evidence-input-1")

	id, _ := valueobjects.NewNodeIDFromString("evidence-input-2")
	node, err := entities.NewNode(id, valueobjects.NodeTypeEvidenceInput, valueobjects.NewPosition(0, 0), "", "")
	require.NoError(t, err)

	err = p.AddNode(node)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeConflict))
}

func TestPipeline_AddNode_MaxNodesReached(t *testing.T) {
	cfg := config.DefaultDomainConfig()
	cfg.MaxNodes = 2
	p, err := NewPipelineWithConfig("user123", cfg)
	require.NoError(t, err)

	addComponent(t, p, valueobjects.NodeTypeEvidenceInput, "evidence-input-1")

	id, _ := valueobjects.NewNodeIDFromString("style-personalization-1")
	node, err := entities.NewNode(id, valueobjects.NodeTypeStylePersonalization, valueobjects.NewPosition(0, 0), "", "")
	require.NoError(t, err)

	err = p.AddNode(node)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeValidation))
}

func TestPipeline_AddNode_DerivesConfiguredFromPayload(t *testing.T) {
	p := newTestPipeline(t)

	// Payload stored before the node exists: the node must pick it up on add
	require.NoError(t, p.UpdatePayload(valueobjects.EvidencePayload{Content: "study text"}))

	node := addComponent(t, p, valueobjects.NodeTypeEvidenceInput, "evidence-input-1")
	assert.True(t, node.Configured())
}

func TestPipeline_AddConnection_AppearsInDerivedList(t *testing.T) {
	p := newTestPipeline(t)
	addComponent(t, p, valueobjects.NodeTypeEvidenceInput, "evidence-input-1")
	connect(t, p, "evidence-input-1")

	refs := p.ConnectedComponents()
	require.Len(t, refs, 1)
	assert.Equal(t, "evidence-input-1", refs[0].ID.String())
	assert.Equal(t, valueobjects.NodeTypeEvidenceInput, refs[0].Type)
	assert.NoError(t, p.Validate())
}

func TestPipeline_AddConnection_RejectsDuplicate(t *testing.T) {
	p := newTestPipeline(t)
	addComponent(t, p, valueobjects.NodeTypeEvidenceInput, "evidence-input-1")
	connect(t, p, "evidence-input-1")

	source, _ := valueobjects.NewNodeIDFromString("evidence-input-1")
	prompt, _ := p.PromptNode()
	_, err := p.AddConnection(validators.Candidate{SourceID: source, TargetID: prompt.ID()})
	require.Error(t, err)
	assert.True(t, validators.IsRejection(err))
	assert.Len(t, p.Connections(), 1)
}

func TestPipeline_AddConnection_RejectsComponentToComponent(t *testing.T) {
	p := newTestPipeline(t)
	addComponent(t, p, valueobjects.NodeTypeEvidenceInput, "evidence-input-1")
	addComponent(t, p, valueobjects.NodeTypeStylePersonalization, "style-personalization-1")

	source, _ := valueobjects.NewNodeIDFromString("evidence-input-1")
	target, _ := valueobjects.NewNodeIDFromString("style-personalization-1")
	_, err := p.AddConnection(validators.Candidate{SourceID: source, TargetID: target})
	require.Error(t, err)
	assert.True(t, validators.IsRejection(err))
	assert.Empty(t, p.Connections())
}

func TestPipeline_RemoveNode_CascadesConnections(t *testing.T) {
	p := newTestPipeline(t)
	addComponent(t, p, valueobjects.NodeTypeEvidenceInput, "evidence-input-1")
	addComponent(t, p, valueobjects.NodeTypeStylePersonalization, "style-personalization-1")
	connect(t, p, "evidence-input-1")
	connect(t, p, "style-personalization-1")

	prompt, _ := p.PromptNode()
	keyBefore := prompt.RenderKey()

	id, _ := valueobjects.NewNodeIDFromString("evidence-input-1")
	require.NoError(t, p.RemoveNode(id))

	assert.Len(t, p.Nodes(), 2)
	require.Len(t, p.Connections(), 1)
	assert.Equal(t, "style-personalization-1", p.Connections()[0].SourceID.String())

	refs := p.ConnectedComponents()
	require.Len(t, refs, 1)
	assert.Equal(t, "style-personalization-1", refs[0].ID.String())

	// Deletion must bump the prompt node's render key so the canvas rebuilds
	assert.Greater(t, prompt.RenderKey(), keyBefore)
	assert.NoError(t, p.Validate())
}

func TestPipeline_RemoveNode_NotFound(t *testing.T) {
	p := newTestPipeline(t)
	id, _ := valueobjects.NewNodeIDFromString("missing")
	err := p.RemoveNode(id)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeNotFound))
}

func TestPipeline_RemoveConnection_LeavesNodes(t *testing.T) {
	p := newTestPipeline(t)
	addComponent(t, p, valueobjects.NodeTypeEvidenceInput, "evidence-input-1")
	conn := connect(t, p, "evidence-input-1")

	require.NoError(t, p.RemoveConnection(conn.ID))
	assert.Len(t, p.Nodes(), 2)
	assert.Empty(t, p.Connections())
	assert.Empty(t, p.ConnectedComponents())
}

func TestPipeline_UpdatePayload_RecomputesConfigured(t *testing.T) {
	p := newTestPipeline(t)
	node := addComponent(t, p, valueobjects.NodeTypeEvidenceInput, "evidence-input-1")
	assert.False(t, node.Configured())

	require.NoError(t, p.UpdatePayload(valueobjects.EvidencePayload{Content: "study text"}))
	assert.True(t, node.Configured())

	require.NoError(t, p.ClearPayload(valueobjects.NodeTypeEvidenceInput))
	assert.False(t, node.Configured())
}

func TestPipeline_UpdatePayload_RejectsPromptKind(t *testing.T) {
	p := newTestPipeline(t)
	err := p.ClearPayload(valueobjects.NodeTypePrompt)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeValidation))
}

func TestPipeline_Prompt_IncludesConnectedConfiguredSections(t *testing.T) {
	p := newTestPipeline(t)
	addComponent(t, p, valueobjects.NodeTypeEvidenceInput, "evidence-input-1")
	addComponent(t, p, valueobjects.NodeTypeStylePersonalization, "style-personalization-1")
	require.NoError(t, p.UpdatePayload(valueobjects.EvidencePayload{Content: "study text"}))
	require.NoError(t, p.UpdatePayload(valueobjects.StylePayload{Tone: "friendly"}))

	// Only evidence is connected; style stays configured-but-disconnected
	connect(t, p, "evidence-input-1")

	prompt := p.Prompt()
	assert.Contains(t, prompt, "Evidence Base:")
	assert.Contains(t, prompt, "study text")
	assert.NotContains(t, prompt, "Style Preferences:")
}

func TestReconstructPipeline_RoundTrip(t *testing.T) {
	p := newTestPipeline(t)
	addComponent(t, p, valueobjects.NodeTypeEvidenceInput, "evidence-input-1")
	connect(t, p, "evidence-input-1")
	require.NoError(t, p.UpdatePayload(valueobjects.EvidencePayload{Content: "study text"}))
	p.SetCustomText("keep it short")

	restored, err := ReconstructPipeline(
		p.UserID(),
		p.NodeSnapshots(),
		p.Connections(),
		p.Payloads(),
		p.CustomText(),
	)
	require.NoError(t, err)

	assert.Len(t, restored.Nodes(), 2)
	assert.Len(t, restored.Connections(), 1)
	assert.Equal(t, "keep it short", restored.CustomText())
	assert.Equal(t, p.Prompt(), restored.Prompt())
	assert.NoError(t, restored.Validate())
}

func TestReconstructPipeline_DropsOrphanConnections(t *testing.T) {
	p := newTestPipeline(t)
	addComponent(t, p, valueobjects.NodeTypeEvidenceInput, "evidence-input-1")
	connect(t, p, "evidence-input-1")

	snapshots := p.NodeSnapshots()
	conns := p.Connections()

	// Drop the evidence node from the stored snapshots, keep its connection
	kept := snapshots[:0]
	for _, s := range snapshots {
		if s.Type == valueobjects.NodeTypePrompt {
			kept = append(kept, s)
		}
	}

	restored, err := ReconstructPipeline("user123", kept, conns, valueobjects.PayloadSet{}, "")
	require.NoError(t, err)
	assert.Empty(t, restored.Connections())
	assert.Empty(t, restored.ConnectedComponents())
	assert.NoError(t, restored.Validate())
}

func TestPipeline_IsValidConnection_MatchesAddConnection(t *testing.T) {
	p := newTestPipeline(t)
	addComponent(t, p, valueobjects.NodeTypeEvidenceInput, "evidence-input-1")

	source, _ := valueobjects.NewNodeIDFromString("evidence-input-1")
	prompt, _ := p.PromptNode()

	good := validators.Candidate{SourceID: source, TargetID: prompt.ID()}
	assert.True(t, p.IsValidConnection(good))

	// Advisory check must not mutate state
	assert.Empty(t, p.Connections())

	connect(t, p, "evidence-input-1")
	assert.False(t, p.IsValidConnection(good))
}

func TestPipeline_Events_RaisedAndCommitted(t *testing.T) {
	p := newTestPipeline(t)
	addComponent(t, p, valueobjects.NodeTypeEvidenceInput, "evidence-input-1")
	connect(t, p, "evidence-input-1")

	events := p.GetUncommittedEvents()
	assert.NotEmpty(t, events)

	p.MarkEventsAsCommitted()
	assert.Empty(t, p.GetUncommittedEvents())
}

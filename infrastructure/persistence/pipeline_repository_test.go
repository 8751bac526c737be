package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"careflow-backend/domain/core/aggregates"
	"careflow-backend/domain/core/entities"
	"careflow-backend/domain/core/validators"
	"careflow-backend/domain/core/valueobjects"
	"careflow-backend/infrastructure/persistence/memory"
)

func buildStoredPipeline(t *testing.T) *aggregates.Pipeline {
	t.Helper()
	p, err := aggregates.NewPipeline("user123")
	require.NoError(t, err)

	id, err := valueobjects.NewNodeIDFromString("evidence-input-1")
	require.NoError(t, err)
	node, err := entities.NewNode(id, valueobjects.NodeTypeEvidenceInput, valueobjects.NewPosition(120, 80), "Evidence", "")
	require.NoError(t, err)
	require.NoError(t, p.AddNode(node))
	require.NoError(t, p.UpdatePayload(valueobjects.EvidencePayload{Content: "study text"}))

	prompt, _ := p.PromptNode()
	_, err = p.AddConnection(validators.Candidate{SourceID: id, TargetID: prompt.ID()})
	require.NoError(t, err)

	p.SetCustomText("keep it short")
	return p
}

func TestPipelineRepository_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memory.NewKVStore()
	repo := NewPipelineRepository(store, zap.NewNop())

	original := buildStoredPipeline(t)
	require.NoError(t, repo.Save(ctx, original))

	loaded, err := repo.Load(ctx, "user123")
	require.NoError(t, err)

	assert.Len(t, loaded.Nodes(), 2)
	assert.Len(t, loaded.Connections(), 1)
	assert.Equal(t, "keep it short", loaded.CustomText())
	assert.Equal(t, original.Prompt(), loaded.Prompt())

	id, _ := valueobjects.NewNodeIDFromString("evidence-input-1")
	node, ok := loaded.Node(id)
	require.True(t, ok)
	assert.True(t, node.Configured())
	assert.Equal(t, 120.0, node.Position().X())
	assert.NoError(t, loaded.Validate())
}

func TestPipelineRepository_Load_FirstVisitGetsDefaultCanvas(t *testing.T) {
	repo := NewPipelineRepository(memory.NewKVStore(), zap.NewNop())

	p, err := repo.Load(context.Background(), "newcomer")
	require.NoError(t, err)
	assert.Len(t, p.Nodes(), 1)
	_, ok := p.PromptNode()
	assert.True(t, ok)
}

func TestPipelineRepository_Load_CorruptKeyFallsBackAlone(t *testing.T) {
	ctx := context.Background()
	store := memory.NewKVStore()
	repo := NewPipelineRepository(store, zap.NewNop())

	require.NoError(t, repo.Save(ctx, buildStoredPipeline(t)))

	// Only the evidence payload is corrupt; nodes and connections survive
	require.NoError(t, store.Set(ctx, userKey("user123", keyEvidence), []byte("{not json")))

	loaded, err := repo.Load(ctx, "user123")
	require.NoError(t, err)
	assert.Len(t, loaded.Nodes(), 2)
	assert.Len(t, loaded.Connections(), 1)
	assert.Nil(t, loaded.Payloads().Evidence)

	// The configured flag re-derives from the recovered (empty) payload
	id, _ := valueobjects.NewNodeIDFromString("evidence-input-1")
	node, ok := loaded.Node(id)
	require.True(t, ok)
	assert.False(t, node.Configured())
}

func TestPipelineRepository_Load_CorruptNodeListGetsDefaultCanvas(t *testing.T) {
	ctx := context.Background()
	store := memory.NewKVStore()
	repo := NewPipelineRepository(store, zap.NewNop())

	require.NoError(t, repo.Save(ctx, buildStoredPipeline(t)))
	require.NoError(t, store.Set(ctx, userKey("user123", keyNodes), []byte("garbage")))

	loaded, err := repo.Load(ctx, "user123")
	require.NoError(t, err)
	assert.Len(t, loaded.Nodes(), 1)
	assert.Empty(t, loaded.Connections())
}

func TestPipelineRepository_Save_ClearedPayloadRemovesKey(t *testing.T) {
	ctx := context.Background()
	store := memory.NewKVStore()
	repo := NewPipelineRepository(store, zap.NewNop())

	p := buildStoredPipeline(t)
	require.NoError(t, repo.Save(ctx, p))

	_, found, err := store.Get(ctx, userKey("user123", keyEvidence))
	require.NoError(t, err)
	require.True(t, found)

	require.NoError(t, p.ClearPayload(valueobjects.NodeTypeEvidenceInput))
	require.NoError(t, repo.Save(ctx, p))

	_, found, err = store.Get(ctx, userKey("user123", keyEvidence))
	require.NoError(t, err)
	assert.False(t, found)

	loaded, err := repo.Load(ctx, "user123")
	require.NoError(t, err)
	assert.Nil(t, loaded.Payloads().Evidence)
}

func TestPipelineRepository_Save_EmptyCustomTextRemovesKey(t *testing.T) {
	ctx := context.Background()
	store := memory.NewKVStore()
	repo := NewPipelineRepository(store, zap.NewNop())

	p := buildStoredPipeline(t)
	require.NoError(t, repo.Save(ctx, p))

	p.SetCustomText("")
	require.NoError(t, repo.Save(ctx, p))

	_, found, err := store.Get(ctx, userKey("user123", keyCustomPrompt))
	require.NoError(t, err)
	assert.False(t, found)
}

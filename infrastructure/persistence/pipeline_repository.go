package persistence

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"careflow-backend/application/ports"
	"careflow-backend/domain/config"
	"careflow-backend/domain/core/aggregates"
	"careflow-backend/domain/core/entities"
	"careflow-backend/domain/core/valueobjects"
	pkgerrors "careflow-backend/pkg/errors"
)

// PipelineRepository persists the pipeline as a handful of independent
// keys. Loading never fails on bad data: each key decodes on its own and
// falls back to its empty default, so a corrupt payload degrades that one
// component instead of blocking startup with a broken canvas.
type PipelineRepository struct {
	store     ports.KeyValueStore
	logger    *zap.Logger
	domainCfg func() *config.DomainConfig
}

// NewPipelineRepository creates the repository over a key-value store
func NewPipelineRepository(store ports.KeyValueStore, logger *zap.Logger) *PipelineRepository {
	return &PipelineRepository{store: store, logger: logger}
}

// SetDomainConfigSource makes loaded pipelines pick up live domain rules.
// The function is called on every load; nil keeps the defaults.
func (r *PipelineRepository) SetDomainConfigSource(fn func() *config.DomainConfig) {
	r.domainCfg = fn
}

func (r *PipelineRepository) currentDomainConfig() *config.DomainConfig {
	if r.domainCfg == nil {
		return nil
	}
	return r.domainCfg()
}

// Load implements ports.PipelineRepository
func (r *PipelineRepository) Load(ctx context.Context, userID string) (*aggregates.Pipeline, error) {
	var nodeSnapshots []entities.NodeSnapshot
	r.loadKey(ctx, userID, keyNodes, &nodeSnapshots)

	var connections []*entities.Connection
	r.loadKey(ctx, userID, keyConnections, &connections)

	var payloads valueobjects.PayloadSet
	r.loadKey(ctx, userID, keyEvidence, &payloads.Evidence)
	r.loadKey(ctx, userID, keyStyle, &payloads.Style)
	r.loadKey(ctx, userID, keyVisualStyling, &payloads.VisualStyling)
	r.loadKey(ctx, userID, keyPersonalData, &payloads.PersonalData)
	r.loadKey(ctx, userID, keyOutputSelector, &payloads.OutputSelector)

	var customText string
	r.loadKey(ctx, userID, keyCustomPrompt, &customText)

	cfg := r.currentDomainConfig()

	if len(nodeSnapshots) == 0 {
		// first visit or unreadable node list: fresh default canvas
		return aggregates.NewPipelineWithConfig(userID, cfg)
	}

	pipeline, err := aggregates.ReconstructPipelineWithConfig(userID, nodeSnapshots, connections, payloads, customText, cfg)
	if err != nil {
		r.logger.Warn("stored pipeline failed reconstruction, starting fresh",
			zap.String("user_id", userID),
			zap.Error(err))
		return aggregates.NewPipelineWithConfig(userID, cfg)
	}
	return pipeline, nil
}

// Save implements ports.PipelineRepository
func (r *PipelineRepository) Save(ctx context.Context, pipeline *aggregates.Pipeline) error {
	userID := pipeline.UserID()

	if err := r.saveKey(ctx, userID, keyNodes, pipeline.NodeSnapshots()); err != nil {
		return err
	}
	if err := r.saveKey(ctx, userID, keyConnections, pipeline.Connections()); err != nil {
		return err
	}

	payloads := pipeline.Payloads()
	if err := r.savePayloadKey(ctx, userID, keyEvidence, payloads.Evidence != nil, payloads.Evidence); err != nil {
		return err
	}
	if err := r.savePayloadKey(ctx, userID, keyStyle, payloads.Style != nil, payloads.Style); err != nil {
		return err
	}
	if err := r.savePayloadKey(ctx, userID, keyVisualStyling, payloads.VisualStyling != nil, payloads.VisualStyling); err != nil {
		return err
	}
	if err := r.savePayloadKey(ctx, userID, keyPersonalData, payloads.PersonalData != nil, payloads.PersonalData); err != nil {
		return err
	}
	if err := r.savePayloadKey(ctx, userID, keyOutputSelector, payloads.OutputSelector != nil, payloads.OutputSelector); err != nil {
		return err
	}

	if pipeline.CustomText() == "" {
		return r.store.Remove(ctx, userKey(userID, keyCustomPrompt))
	}
	return r.saveKey(ctx, userID, keyCustomPrompt, pipeline.CustomText())
}

// loadKey reads and decodes one key into out. Absent keys and decode
// failures both leave out at its zero value; failures are logged.
func (r *PipelineRepository) loadKey(ctx context.Context, userID, key string, out interface{}) {
	data, found, err := r.store.Get(ctx, userKey(userID, key))
	if err != nil {
		r.logger.Warn("failed to read stored key, using default",
			zap.String("user_id", userID),
			zap.String("key", key),
			zap.Error(err))
		return
	}
	if !found {
		return
	}
	if err := json.Unmarshal(data, out); err != nil {
		r.logger.Warn("stored value is corrupt, using default",
			zap.String("user_id", userID),
			zap.String("key", key),
			zap.Error(err))
	}
}

func (r *PipelineRepository) saveKey(ctx context.Context, userID, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return pkgerrors.NewStorageError("failed to encode "+key, err)
	}
	return r.store.Set(ctx, userKey(userID, key), data)
}

// savePayloadKey writes a payload key or removes it when the payload was
// cleared, so a cleared component does not resurrect on reload
func (r *PipelineRepository) savePayloadKey(ctx context.Context, userID, key string, present bool, value interface{}) error {
	if !present {
		return r.store.Remove(ctx, userKey(userID, key))
	}
	return r.saveKey(ctx, userID, key, value)
}

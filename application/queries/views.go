package queries

import (
	"time"

	"careflow-backend/domain/core/aggregates"
	"careflow-backend/domain/core/entities"
	"careflow-backend/domain/gallery"
)

// NodeView is the wire shape of one canvas node
type NodeView struct {
	ID          string                  `json:"id"`
	Type        string                  `json:"type"`
	X           float64                 `json:"x"`
	Y           float64                 `json:"y"`
	Title       string                  `json:"title,omitempty"`
	Description string                  `json:"description,omitempty"`
	Configured  bool                    `json:"configured"`
	Connected   []entities.ComponentRef `json:"connectedComponentsWithIds,omitempty"`
	RenderKey   int                     `json:"renderKey"`
}

// ConnectionView is the wire shape of one connection
type ConnectionView struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// PipelineView is the full read model of one user's pipeline: the canonical
// sets plus every derived value, so a client render needs no further calls.
type PipelineView struct {
	Nodes               []NodeView              `json:"nodes"`
	Connections         []ConnectionView        `json:"connections"`
	ConnectedComponents []entities.ComponentRef `json:"connectedComponents"`
	Prompt              string                  `json:"prompt"`
	CustomText          string                  `json:"customText,omitempty"`
	UpdatedAt           time.Time               `json:"updatedAt"`
}

// NewPipelineView projects an aggregate into its read model
func NewPipelineView(p *aggregates.Pipeline) *PipelineView {
	nodes := p.Nodes()
	nodeViews := make([]NodeView, 0, len(nodes))
	for _, node := range nodes {
		nodeViews = append(nodeViews, NodeView{
			ID:          node.ID().String(),
			Type:        node.Type().String(),
			X:           node.Position().X(),
			Y:           node.Position().Y(),
			Title:       node.Title(),
			Description: node.Description(),
			Configured:  node.Configured(),
			Connected:   node.ConnectedComponents(),
			RenderKey:   node.RenderKey(),
		})
	}

	conns := p.Connections()
	connViews := make([]ConnectionView, 0, len(conns))
	for _, conn := range conns {
		connViews = append(connViews, ConnectionView{
			ID:           conn.ID,
			Source:       conn.SourceID.String(),
			Target:       conn.TargetID.String(),
			SourceHandle: conn.SourceHandle,
			TargetHandle: conn.TargetHandle,
		})
	}

	return &PipelineView{
		Nodes:               nodeViews,
		Connections:         connViews,
		ConnectedComponents: p.ConnectedComponents(),
		Prompt:              p.Prompt(),
		CustomText:          p.CustomText(),
		UpdatedAt:           p.UpdatedAt(),
	}
}

// GalleryView is the read model of the job history, newest first
type GalleryView struct {
	Jobs []*gallery.Job `json:"jobs"`
}

package valueobjects

// NodeType identifies the kind of unit a canvas node represents.
// Five component types carry configuration payloads; the prompt type is the
// single sink every connection terminates at.
type NodeType string

const (
	NodeTypeEvidenceInput        NodeType = "evidence-input"
	NodeTypeStylePersonalization NodeType = "style-personalization"
	NodeTypeVisualStyling        NodeType = "visual-styling"
	NodeTypePersonalData         NodeType = "personal-data"
	NodeTypeOutputSelector       NodeType = "output-selector"
	NodeTypePrompt               NodeType = "prompt"
)

// ComponentTypes lists the configurable node types in prompt-section
// priority order: evidence first, output format last.
func ComponentTypes() []NodeType {
	return []NodeType{
		NodeTypeEvidenceInput,
		NodeTypeStylePersonalization,
		NodeTypeVisualStyling,
		NodeTypePersonalData,
		NodeTypeOutputSelector,
	}
}

// IsValid reports whether the type is one of the known node types
func (t NodeType) IsValid() bool {
	switch t {
	case NodeTypeEvidenceInput, NodeTypeStylePersonalization, NodeTypeVisualStyling,
		NodeTypePersonalData, NodeTypeOutputSelector, NodeTypePrompt:
		return true
	default:
		return false
	}
}

// IsComponent reports whether the type carries a configuration payload
func (t NodeType) IsComponent() bool {
	return t.IsValid() && t != NodeTypePrompt
}

// String returns the wire representation
func (t NodeType) String() string {
	return string(t)
}

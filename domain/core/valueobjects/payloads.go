package valueobjects

import "strings"

// Payload is the tagged union of component configuration payloads.
// Each component node type owns at most one payload value; the union tag is
// the node type itself, so derivation code can match exhaustively on Kind.
type Payload interface {
	// Kind returns the node type this payload configures
	Kind() NodeType

	// Configured reports whether the payload satisfies its type-specific
	// non-emptiness rule. Evidence requires actual text content; the other
	// kinds count as configured as soon as a value exists.
	Configured() bool
}

// EvidencePayload holds the source material a generation is grounded on:
// extracted document text, pasted notes, or a fetched transcript.
type EvidencePayload struct {
	Title      string `json:"title,omitempty"`
	Content    string `json:"content"`
	SourceName string `json:"sourceName,omitempty"`
	SourceURL  string `json:"sourceUrl,omitempty"`
}

// Kind implements Payload
func (p EvidencePayload) Kind() NodeType { return NodeTypeEvidenceInput }

// Configured implements Payload. Evidence is the one payload with a
// finer-grained rule: whitespace-only content does not count.
func (p EvidencePayload) Configured() bool {
	return strings.TrimSpace(p.Content) != ""
}

// StylePayload is the presenter-style descriptor, either hand-entered or
// returned by the style-analysis backend.
type StylePayload struct {
	Tone           string   `json:"tone,omitempty"`
	Pace           string   `json:"pace,omitempty"`
	Vocabulary     string   `json:"vocabulary,omitempty"`
	KeyPhrases     []string `json:"keyPhrases,omitempty"`
	TargetAudience string   `json:"targetAudience,omitempty"`
	Description    string   `json:"description,omitempty"`
}

// Kind implements Payload
func (p StylePayload) Kind() NodeType { return NodeTypeStylePersonalization }

// Configured implements Payload
func (p StylePayload) Configured() bool { return true }

// VisualStylingPayload describes the desired look of generated video output.
type VisualStylingPayload struct {
	VisualStyle  string `json:"visualStyle,omitempty"`
	ColorPalette string `json:"colorPalette,omitempty"`
	Typography   string `json:"typography,omitempty"`
	Description  string `json:"description,omitempty"`
}

// Kind implements Payload
func (p VisualStylingPayload) Kind() NodeType { return NodeTypeVisualStyling }

// Configured implements Payload
func (p VisualStylingPayload) Configured() bool { return true }

// PersonalDataPayload carries the viewer's health context used to tailor
// the generated content.
type PersonalDataPayload struct {
	Age         int               `json:"age,omitempty"`
	Conditions  []string          `json:"conditions,omitempty"`
	Medications []string          `json:"medications,omitempty"`
	HealthGoals []string          `json:"healthGoals,omitempty"`
	Metrics     map[string]string `json:"metrics,omitempty"`
}

// Kind implements Payload
func (p PersonalDataPayload) Kind() NodeType { return NodeTypePersonalData }

// Configured implements Payload
func (p PersonalDataPayload) Configured() bool { return true }

// OutputFormat is the deliverable kind a generation job produces
type OutputFormat string

const (
	OutputFormatVideo OutputFormat = "video"
	OutputFormatAudio OutputFormat = "audio"
)

// IsValid reports whether the format is a known output format
func (f OutputFormat) IsValid() bool {
	return f == OutputFormatVideo || f == OutputFormatAudio
}

// OutputSelectorPayload selects the deliverable format and its parameters.
type OutputSelectorPayload struct {
	Format          OutputFormat `json:"format"`
	DurationSeconds int          `json:"durationSeconds,omitempty"`
	Resolution      string       `json:"resolution,omitempty"`
	Voice           string       `json:"voice,omitempty"`
}

// Kind implements Payload
func (p OutputSelectorPayload) Kind() NodeType { return NodeTypeOutputSelector }

// Configured implements Payload
func (p OutputSelectorPayload) Configured() bool { return true }

// PayloadSet holds the optional payload value for every component kind.
// Nil means the component has never been configured. The set has no
// cross-references; its only tie to the graph is via node types.
type PayloadSet struct {
	Evidence       *EvidencePayload       `json:"evidence,omitempty"`
	Style          *StylePayload          `json:"style,omitempty"`
	VisualStyling  *VisualStylingPayload  `json:"visualStyling,omitempty"`
	PersonalData   *PersonalDataPayload   `json:"personalData,omitempty"`
	OutputSelector *OutputSelectorPayload `json:"outputSelector,omitempty"`
}

// Get returns the payload for a component kind, or nil if unset.
// The nil-pointer to nil-interface conversion is deliberate so callers can
// test `Get(kind) == nil` uniformly.
func (s *PayloadSet) Get(kind NodeType) Payload {
	switch kind {
	case NodeTypeEvidenceInput:
		if s.Evidence != nil {
			return *s.Evidence
		}
	case NodeTypeStylePersonalization:
		if s.Style != nil {
			return *s.Style
		}
	case NodeTypeVisualStyling:
		if s.VisualStyling != nil {
			return *s.VisualStyling
		}
	case NodeTypePersonalData:
		if s.PersonalData != nil {
			return *s.PersonalData
		}
	case NodeTypeOutputSelector:
		if s.OutputSelector != nil {
			return *s.OutputSelector
		}
	}
	return nil
}

// Set stores a payload under its own kind, replacing any previous value
func (s *PayloadSet) Set(p Payload) {
	switch v := p.(type) {
	case EvidencePayload:
		s.Evidence = &v
	case StylePayload:
		s.Style = &v
	case VisualStylingPayload:
		s.VisualStyling = &v
	case PersonalDataPayload:
		s.PersonalData = &v
	case OutputSelectorPayload:
		s.OutputSelector = &v
	}
}

// Clear removes the payload for a component kind
func (s *PayloadSet) Clear(kind NodeType) {
	switch kind {
	case NodeTypeEvidenceInput:
		s.Evidence = nil
	case NodeTypeStylePersonalization:
		s.Style = nil
	case NodeTypeVisualStyling:
		s.VisualStyling = nil
	case NodeTypePersonalData:
		s.PersonalData = nil
	case NodeTypeOutputSelector:
		s.OutputSelector = nil
	}
}

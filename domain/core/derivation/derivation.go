// Package derivation computes view-derived pipeline state as pure functions.
// Everything here is a full recompute over current nodes and connections;
// incremental patching is exactly the stale-reference trap this design
// exists to rule out.
package derivation

import (
	"fmt"
	"sort"
	"strings"

	"careflow-backend/domain/core/entities"
	"careflow-backend/domain/core/valueobjects"
)

// ComputeConfigured applies the per-kind non-emptiness rule to a payload.
// A nil payload is never configured.
func ComputeConfigured(payload valueobjects.Payload) bool {
	return payload != nil && payload.Configured()
}

// ComputeConnectedComponents returns the ordered upstream component list for
// the prompt node: one entry per connection targeting it whose source node
// still exists. Order follows connection insertion order, not canvas layout.
func ComputeConnectedComponents(
	nodes map[valueobjects.NodeID]*entities.Node,
	connections []*entities.Connection,
	promptID valueobjects.NodeID,
) []entities.ComponentRef {
	refs := []entities.ComponentRef{}
	for _, conn := range connections {
		if !conn.TargetID.Equals(promptID) {
			continue
		}
		source, exists := nodes[conn.SourceID]
		if !exists {
			continue // connection outlived its source; skip, never dangle
		}
		refs = append(refs, entities.ComponentRef{
			ID:   source.ID(),
			Type: source.Type(),
		})
	}
	return refs
}

const (
	promptPreamble = "You are a health content creation assistant. " +
		"Create a clear, engaging, and medically accurate script from the configuration below."

	promptClosing = "Ground every claim in the provided evidence and keep the " +
		"language appropriate for the target audience."
)

// sectionLabels maps each component kind to its prompt section heading
var sectionLabels = map[valueobjects.NodeType]string{
	valueobjects.NodeTypeEvidenceInput:        "Evidence Base",
	valueobjects.NodeTypeStylePersonalization: "Style Preferences",
	valueobjects.NodeTypeVisualStyling:        "Visual Styling",
	valueobjects.NodeTypePersonalData:         "Personal Health Data",
	valueobjects.NodeTypeOutputSelector:       "Output Format",
}

// BuildPrompt assembles the generation prompt from current state: a fixed
// preamble, one labeled section per connected-and-configured component in
// fixed priority order, the user's custom instructions, and a fixed closing
// sentence. Deterministic for identical inputs.
func BuildPrompt(
	connected []entities.ComponentRef,
	payloads *valueobjects.PayloadSet,
	customText string,
) string {
	var b strings.Builder
	b.WriteString(promptPreamble)

	connectedKinds := make(map[valueobjects.NodeType]bool, len(connected))
	for _, ref := range connected {
		connectedKinds[ref.Type] = true
	}

	// Priority order is fixed regardless of connection order
	for _, kind := range valueobjects.ComponentTypes() {
		if !connectedKinds[kind] {
			continue
		}
		payload := payloads.Get(kind)
		if !ComputeConfigured(payload) {
			continue
		}
		b.WriteString("\n\n")
		b.WriteString(sectionLabels[kind])
		b.WriteString(":")
		writeSection(&b, payload)
	}

	if text := strings.TrimSpace(customText); text != "" {
		b.WriteString("\n\nCustom Instructions:\n")
		b.WriteString(text)
	}

	b.WriteString("\n\n")
	b.WriteString(promptClosing)
	return b.String()
}

func writeSection(b *strings.Builder, payload valueobjects.Payload) {
	switch p := payload.(type) {
	case valueobjects.EvidencePayload:
		writeLine(b, "Title", p.Title)
		writeLine(b, "Content", p.Content)
		writeLine(b, "Source", p.SourceName)
		writeLine(b, "URL", p.SourceURL)
	case valueobjects.StylePayload:
		writeLine(b, "Tone", p.Tone)
		writeLine(b, "Pace", p.Pace)
		writeLine(b, "Vocabulary", p.Vocabulary)
		writeLine(b, "Key phrases", strings.Join(p.KeyPhrases, ", "))
		writeLine(b, "Target audience", p.TargetAudience)
		writeLine(b, "Description", p.Description)
	case valueobjects.VisualStylingPayload:
		writeLine(b, "Visual style", p.VisualStyle)
		writeLine(b, "Color palette", p.ColorPalette)
		writeLine(b, "Typography", p.Typography)
		writeLine(b, "Description", p.Description)
	case valueobjects.PersonalDataPayload:
		if p.Age > 0 {
			writeLine(b, "Age", fmt.Sprintf("%d", p.Age))
		}
		writeLine(b, "Conditions", strings.Join(p.Conditions, ", "))
		writeLine(b, "Medications", strings.Join(p.Medications, ", "))
		writeLine(b, "Health goals", strings.Join(p.HealthGoals, ", "))
		// Map iteration order is randomized; sort keys for determinism
		keys := make([]string, 0, len(p.Metrics))
		for k := range p.Metrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			writeLine(b, k, p.Metrics[k])
		}
	case valueobjects.OutputSelectorPayload:
		writeLine(b, "Format", string(p.Format))
		if p.DurationSeconds > 0 {
			writeLine(b, "Duration", fmt.Sprintf("%d seconds", p.DurationSeconds))
		}
		writeLine(b, "Resolution", p.Resolution)
		writeLine(b, "Voice", p.Voice)
	}
}

func writeLine(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	b.WriteString("\n")
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(value)
}

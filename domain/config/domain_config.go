package config

// DomainConfig carries the tunable business rules for pipeline editing.
// Defaults mirror what the canvas UI enforces; the model itself stays
// slightly more permissive where observed behavior is permissive.
type DomainConfig struct {
	// MaxNodes bounds the canvas size. The palette only offers six node
	// kinds, so this is a safety valve rather than a product limit.
	MaxNodes int

	// MaxConnections bounds the number of edges. Star topology makes the
	// natural maximum MaxNodes-1.
	MaxConnections int

	// AllowDuplicateComponentTypes controls whether two nodes of the same
	// non-prompt type may coexist. The drag palette hides used types, but
	// the model historically tolerated duplicates, so this defaults true.
	AllowDuplicateComponentTypes bool

	// RequireSinglePrompt rejects adding a second prompt node when true.
	// Behavior with two prompt nodes is undefined upstream; the default
	// builder creates exactly one, and we enforce it at the model level.
	RequireSinglePrompt bool
}

// DefaultDomainConfig returns the standard rule set
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxNodes:                     64,
		MaxConnections:               63,
		AllowDuplicateComponentTypes: true,
		RequireSinglePrompt:          true,
	}
}

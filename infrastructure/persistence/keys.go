// Package persistence implements the storage ports over a flat key-value
// store: the repositories, the key scheme, and the write-behind layer.
package persistence

// Storage keys. Each persisted entity owns a fixed key under the user's
// namespace; entities load and fall back independently, so one corrupt
// value never takes the others down with it.
const (
	keyNodes          = "pipeline-nodes"
	keyConnections    = "pipeline-connections"
	keyEvidence       = "payload-evidence"
	keyStyle          = "payload-style"
	keyVisualStyling  = "payload-visual-styling"
	keyPersonalData   = "payload-personal-data"
	keyOutputSelector = "payload-output-selector"
	keyCustomPrompt   = "custom-prompt"
	keyGallery        = "generation-gallery"
)

// userKey namespaces a storage key by user
func userKey(userID, key string) string {
	return "user#" + userID + "#" + key
}

package models

import "time"

// ChangeType classifies a detected vault change.
type ChangeType string

const (
	ChangeCreated  ChangeType = "created"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
)

// FileChange is produced by a scan and consumed by an applier.
type FileChange struct {
	Path          string     `json:"path"`
	Type          ChangeType `json:"change_type"`
	DetectedAt    time.Time  `json:"detected_at"`
	ContentHash   string     `json:"content_hash,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
	NeedsApproval bool       `json:"needs_approval"`
}

// Direction of a sync record.
type Direction string

const (
	VaultToKnowledge Direction = "vault_to_knowledge"
	KnowledgeToVault Direction = "knowledge_to_vault"
)

// SyncRecord is an immutable audit entry.
type SyncRecord struct {
	ID         string     `json:"id"`
	Timestamp  time.Time  `json:"timestamp"`
	Direction  Direction  `json:"direction"`
	Path       string     `json:"file_path"`
	ChangeType ChangeType `json:"change_type"`
	AgentID    string     `json:"agent_id,omitempty"`
	Success    bool       `json:"success"`
	Error      string     `json:"error,omitempty"`
}

// PermissionDecision is the outcome of a write permission check.
type PermissionDecision struct {
	Allowed       bool   `json:"allowed"`
	Reason        string `json:"reason"`
	NeedsApproval bool   `json:"needs_approval"`
}

// IndexChunk is one slice of a note stored in the chunk collection.
type IndexChunk struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

// ChunkMetadata travels with every chunk. Source is the vault-relative note
// path and is the key used to replace a note's chunk generation.
type ChunkMetadata struct {
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	Tags        []string  `json:"tags"`
	Links       []string  `json:"links"`
	ModTime     time.Time `json:"modified_at"`
	Ordinal     int       `json:"chunk_index"`
	Start       int       `json:"start"`
	End         int       `json:"end"`
	Frontmatter string    `json:"frontmatter"`
}

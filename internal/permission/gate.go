package permission

import (
	"context"
	"path"
	"strings"

	"github.com/osmen/vaultsync/internal/models"
)

// DefaultExportFolder is the vault folder agents may always write to.
const DefaultExportFolder = "OsMEN-Exports"

// Reasons returned in decisions.
const (
	ReasonExportFolder  = "export folder"
	ReasonUnrestricted  = "unrestricted policy"
	ReasonNeedsApproval = "requires human approval"
	ReasonExportOnly    = "export_only policy: writes restricted to export folder"
	ReasonInvalidPath   = "invalid path: must be relative and inside the vault"
	ReasonDisabled      = "vault integration disabled"
	ReasonUnknownPolicy = "unknown write policy"
)

// Gate evaluates write requests against a policy. It has no side effects.
type Gate struct {
	policy       Policy
	exportFolder string
}

// NewGate creates a Gate. An empty exportFolder uses DefaultExportFolder.
func NewGate(policy Policy, exportFolder string) *Gate {
	exportFolder = strings.Trim(strings.ReplaceAll(exportFolder, "\\", "/"), "/")
	if exportFolder == "" {
		exportFolder = DefaultExportFolder
	}
	return &Gate{policy: policy, exportFolder: exportFolder}
}

// Policy returns the configured policy.
func (g *Gate) Policy() Policy { return g.policy }

// ExportFolder returns the export folder name.
func (g *Gate) ExportFolder() string { return g.exportFolder }

// CleanTarget normalizes a vault-relative target. ok is false for absolute
// paths and paths that climb out of the vault.
func CleanTarget(target string) (string, bool) {
	t := strings.ReplaceAll(strings.TrimSpace(target), "\\", "/")
	if t == "" || strings.HasPrefix(t, "/") || (len(t) > 1 && t[1] == ':') {
		return "", false
	}
	c := path.Clean(t)
	if c == "." || c == ".." || strings.HasPrefix(c, "../") {
		return "", false
	}
	return c, true
}

// InExportFolder reports whether the first component of target is the
// export folder.
func (g *Gate) InExportFolder(target string) bool {
	c, ok := CleanTarget(target)
	if !ok {
		return false
	}
	first, _, _ := strings.Cut(c, "/")
	return first == g.exportFolder
}

// CanWrite decides whether agentID may write target. The agent id does not
// influence the decision; callers carry it into audit records.
func (g *Gate) CanWrite(target, agentID string) models.PermissionDecision {
	if _, ok := CleanTarget(target); !ok {
		return models.PermissionDecision{Allowed: false, Reason: ReasonInvalidPath}
	}
	if g.InExportFolder(target) {
		return models.PermissionDecision{Allowed: true, Reason: ReasonExportFolder}
	}
	switch g.policy {
	case Unrestricted:
		return models.PermissionDecision{Allowed: true, Reason: ReasonUnrestricted}
	case WithApproval:
		return models.PermissionDecision{Allowed: false, Reason: ReasonNeedsApproval, NeedsApproval: true}
	case ExportOnly:
		return models.PermissionDecision{Allowed: false, Reason: ReasonExportOnly}
	default:
		return models.PermissionDecision{Allowed: false, Reason: ReasonUnknownPolicy}
	}
}

// ApprovalRequest describes a write waiting for a human decision.
type ApprovalRequest struct {
	Target   string                    `json:"target"`
	AgentID  string                    `json:"agent_id"`
	Content  string                    `json:"content"`
	Decision models.PermissionDecision `json:"decision"`
}

// ApprovalSink receives writes that need approval. Delivery is best effort.
type ApprovalSink interface {
	RequestApproval(ctx context.Context, req ApprovalRequest) error
}

// NopSink discards approval requests.
type NopSink struct{}

// RequestApproval implements ApprovalSink.
func (NopSink) RequestApproval(context.Context, ApprovalRequest) error { return nil }

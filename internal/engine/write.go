package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/osmen/vaultsync/internal/apperr"
	"github.com/osmen/vaultsync/internal/checksum"
	"github.com/osmen/vaultsync/internal/models"
	"github.com/osmen/vaultsync/internal/parser"
	"github.com/osmen/vaultsync/internal/permission"
	"github.com/osmen/vaultsync/internal/syncstate"
)

// Provenance keys added to every exported note.
const (
	KeyCreatedBy = "created_by"
	KeyCreatedAt = "created_at"
)

// WriteRequest is an agent's request to put a note into the vault.
type WriteRequest struct {
	Filename    string             `json:"filename"`
	Content     string             `json:"content"`
	AgentID     string             `json:"agent_id"`
	Subfolder   string             `json:"subfolder,omitempty"`
	Frontmatter models.Frontmatter `json:"-"`
}

// WriteResult reports the outcome of WriteToVault. Checksum is the
// SHA-256 of the bytes written.
type WriteResult struct {
	models.PermissionDecision
	Path     string `json:"path"`
	Written  bool   `json:"written"`
	Checksum string `json:"checksum,omitempty"`
}

// TargetPath returns the vault-relative path a request writes to.
func (e *Engine) TargetPath(req WriteRequest) string {
	name := strings.TrimSpace(req.Filename)
	if name == "" {
		return ""
	}
	if !strings.HasSuffix(name, ".md") {
		name += ".md"
	}
	return path.Join(e.gate.ExportFolder(), strings.ReplaceAll(req.Subfolder, "\\", "/"), strings.ReplaceAll(name, "\\", "/"))
}

// WriteToVault writes an agent note under the export folder when the gate
// allows it. A denied request returns the decision without touching the
// file system; requests needing approval are forwarded to the approval
// sink. An error is returned only when an allowed write fails.
func (e *Engine) WriteToVault(ctx context.Context, req WriteRequest) (WriteResult, error) {
	target := e.TargetPath(req)
	res := WriteResult{Path: target}

	if !e.opts.enabled {
		res.PermissionDecision = models.PermissionDecision{Allowed: false, Reason: permission.ReasonDisabled}
		return res, nil
	}
	if target == "" {
		res.PermissionDecision = models.PermissionDecision{Allowed: false, Reason: permission.ReasonInvalidPath}
		return res, nil
	}

	res.PermissionDecision = e.gate.CanWrite(target, req.AgentID)
	if !res.Allowed {
		e.log.Info("write: denied",
			slog.String("path", target),
			slog.String("agent_id", req.AgentID),
			slog.String("reason", res.Reason),
		)
		e.record(target, models.ChangeCreated, req.AgentID, errors.New(res.Reason))
		if res.NeedsApproval {
			err := e.opts.approvals.RequestApproval(ctx, permission.ApprovalRequest{
				Target:   target,
				AgentID:  req.AgentID,
				Content:  req.Content,
				Decision: res.PermissionDecision,
			})
			if err != nil {
				e.log.Warn("write: approval request failed",
					slog.String("path", target),
					slog.String("error", err.Error()),
				)
			}
		}
		return res, nil
	}

	if !e.vault.Exists() {
		err := fmt.Errorf("engine: %s: %w", e.vault.Root(), apperr.ErrVaultNotFound)
		e.record(target, models.ChangeCreated, req.AgentID, err)
		return res, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	kind := models.ChangeCreated
	if _, err := e.vault.Stat(target); err == nil {
		kind = models.ChangeModified
	}

	fm := make(models.Frontmatter, 0, len(req.Frontmatter)+2)
	for _, f := range req.Frontmatter {
		if f.Key == KeyCreatedBy || f.Key == KeyCreatedAt {
			continue
		}
		fm = append(fm, f)
	}
	fm = fm.Set(KeyCreatedBy, req.AgentID)
	fm = fm.Set(KeyCreatedAt, e.opts.now().Format(time.RFC3339))
	data := []byte(parser.Render(fm, req.Content))

	if err := e.vault.Write(target, data); err != nil {
		e.record(target, kind, req.AgentID, err)
		return res, fmt.Errorf("engine: write %s: %w", target, err)
	}
	res.Written = true
	res.Checksum = checksum.Sum(data)

	// Mirror right away so the state entry always has a knowledge copy.
	if err := e.knowledge.Write(target, data); err != nil {
		e.log.Warn("write: mirror failed, next scan retries",
			slog.String("path", target),
			slog.String("error", err.Error()),
		)
	} else if info, err := e.vault.Stat(target); err == nil {
		e.mirror.state.Set(target, syncstate.FormatMtime(info.ModTime()))
		if err := e.mirror.state.Save(); err != nil {
			e.log.Error("write: save state failed", slog.String("error", err.Error()))
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		e.log.Warn("write: stat failed", slog.String("path", target), slog.String("error", err.Error()))
	}

	e.log.Info("write: note exported",
		slog.String("path", target),
		slog.String("agent_id", req.AgentID),
	)
	e.record(target, kind, req.AgentID, nil)
	return res, nil
}

func (e *Engine) record(target string, kind models.ChangeType, agentID string, err error) {
	rec := models.SyncRecord{
		ID:         uuid.NewString(),
		Timestamp:  e.opts.now(),
		Direction:  models.KnowledgeToVault,
		Path:       target,
		ChangeType: kind,
		AgentID:    agentID,
		Success:    err == nil,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	e.history.add(rec)
}

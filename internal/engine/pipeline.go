package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/osmen/vaultsync/internal/detect"
	"github.com/osmen/vaultsync/internal/models"
	"github.com/osmen/vaultsync/internal/storage"
	"github.com/osmen/vaultsync/internal/syncstate"
)

// Pipeline pairs a detector and its sync state with an apply strategy.
type Pipeline struct {
	name     string
	detector *detect.Detector
	state    *syncstate.Store
	applier  Applier
	vault    storage.Provider
	// record is nil for pipelines that do not write audit history.
	record func(models.SyncRecord)
	now    func() time.Time
	log    *slog.Logger
}

// Detect runs the pipeline's change detector.
func (p *Pipeline) Detect(ctx context.Context, force bool) (*detect.Scan, error) {
	return p.detector.Detect(ctx, force)
}

// Apply makes scan effective. Sync state advances per path only after its
// change was applied, and is saved once at the end.
func (p *Pipeline) Apply(ctx context.Context, scan *detect.Scan) Summary {
	start := p.now()
	sum := Summary{Pipeline: p.name, Skipped: len(scan.Skipped)}

	for _, ch := range scan.Changes {
		if err := ctx.Err(); err != nil {
			sum.fail("", err)
			sum.Status = StatusError
			break
		}

		var mtime string
		if ch.Type != models.ChangeDeleted {
			// Stat before applying so a concurrent edit is re-detected.
			mtime = scan.Mtimes[ch.Path]
			if mtime == "" {
				info, err := p.vault.Stat(ch.Path)
				if err != nil {
					p.failed(&sum, ch, err)
					continue
				}
				mtime = syncstate.FormatMtime(info.ModTime())
			}
		}

		if err := p.applier.Apply(ctx, ch); err != nil {
			p.failed(&sum, ch, err)
			continue
		}

		if ch.Type == models.ChangeDeleted {
			p.state.Delete(ch.Path)
			sum.Deleted++
		} else {
			p.state.Set(ch.Path, mtime)
			sum.Synced++
		}
		p.log.Debug(p.name+": applied",
			slog.String("path", ch.Path),
			slog.String("change", string(ch.Type)),
		)
		p.emit(ch, nil)
	}

	if err := p.state.Save(); err != nil {
		p.log.Error(p.name+": save state failed", slog.String("error", err.Error()))
		sum.fail("", fmt.Errorf("save state: %w", err))
		sum.Status = StatusError
	}
	sum.finish(start, p.now())
	return sum
}

func (p *Pipeline) failed(sum *Summary, ch models.FileChange, err error) {
	p.log.Warn(p.name+": apply failed",
		slog.String("path", ch.Path),
		slog.String("change", string(ch.Type)),
		slog.String("error", err.Error()),
	)
	sum.fail(ch.Path, err)
	p.emit(ch, err)
}

func (p *Pipeline) emit(ch models.FileChange, err error) {
	if p.record == nil {
		return
	}
	rec := models.SyncRecord{
		ID:         uuid.NewString(),
		Timestamp:  p.now(),
		Direction:  models.VaultToKnowledge,
		Path:       ch.Path,
		ChangeType: ch.Type,
		Success:    err == nil,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	p.record(rec)
}

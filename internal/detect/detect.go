// Package detect compares the readable vault against a sync state and
// reports what changed since the last successful sync.
package detect

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/osmen/vaultsync/internal/checksum"
	"github.com/osmen/vaultsync/internal/models"
	"github.com/osmen/vaultsync/internal/parser"
	"github.com/osmen/vaultsync/internal/syncstate"
	"github.com/osmen/vaultsync/internal/vault"
)

// Scan is the outcome of one detection pass.
type Scan struct {
	Changes []models.FileChange
	// Mtimes holds the observed mtime string for every non-deleted change.
	// Appliers record it in the state once the change is applied.
	Mtimes map[string]string
	// Skipped lists paths that could not be read during this pass, including
	// tracked notes under unreadable directories.
	Skipped []string
}

// Detector finds created, modified, and deleted notes.
type Detector struct {
	index *vault.Index
	state *syncstate.Store
	now   func() time.Time
	log   *slog.Logger
}

// New creates a Detector. now may be nil.
func New(index *vault.Index, state *syncstate.Store, now func() time.Time, log *slog.Logger) *Detector {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	return &Detector{index: index, state: state, now: now, log: log}
}

// State returns the sync state the detector compares against.
func (d *Detector) State() *syncstate.Store { return d.state }

// Detect scans the vault. With force set every readable note is reported
// (created when untracked, modified otherwise) regardless of its mtime.
// Tracked paths that are no longer readable are reported as deleted,
// except those whose filters could not be evaluated or that sit in a
// directory the walk could not list; those are skipped.
func (d *Detector) Detect(ctx context.Context, force bool) (*Scan, error) {
	listing, err := d.index.Candidates(ctx)
	if err != nil {
		return nil, err
	}
	now := d.now()
	scan := &Scan{Mtimes: make(map[string]string)}
	seen := make(map[string]struct{}, len(listing.Candidates))

	for _, c := range listing.Candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seen[c.Path] = struct{}{}

		mtime := syncstate.FormatMtime(c.ModTime)
		prev, tracked := d.state.Get(c.Path)
		var kind models.ChangeType
		switch {
		case !tracked:
			kind = models.ChangeCreated
		case force || prev != mtime:
			kind = models.ChangeModified
		default:
			continue
		}

		data := c.Data
		if data == nil {
			data, err = d.index.Store().Read(c.Path)
			if err != nil {
				d.log.Warn("detect: read failed",
					slog.String("path", c.Path),
					slog.String("error", err.Error()),
				)
				scan.Skipped = append(scan.Skipped, c.Path)
				continue
			}
		}
		scan.Changes = append(scan.Changes, models.FileChange{
			Path:        c.Path,
			Type:        kind,
			DetectedAt:  now,
			ContentHash: checksum.MD5(data),
			Tags:        parser.Parse(data).Tags,
		})
		scan.Mtimes[c.Path] = mtime
	}

	for _, p := range d.state.Paths() {
		if _, ok := seen[p]; ok {
			continue
		}
		if _, ok := listing.Unreadable[p]; ok {
			continue
		}
		if listing.InUnreadableDir(p) {
			scan.Skipped = append(scan.Skipped, p)
			continue
		}
		scan.Changes = append(scan.Changes, models.FileChange{
			Path:       p,
			Type:       models.ChangeDeleted,
			DetectedAt: now,
		})
	}
	for p := range listing.Unreadable {
		scan.Skipped = append(scan.Skipped, p)
	}
	sort.Strings(scan.Skipped)
	return scan, nil
}

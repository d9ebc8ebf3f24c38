// file: internals/features/presence/roster/provider.go
package roster

import (
	"context"
	"sort"
	"strings"

	"crecheku_backend/internals/features/presence/model"

	"gorm.io/gorm"
)

// Provider returns the ids of the currently enrolled children.
// Order is not meaningful; duplicates are tolerated by callers.
type Provider interface {
	ListChildIDs(ctx context.Context) ([]string, error)
}

// Func adapts a plain function to Provider.
type Func func(ctx context.Context) ([]string, error)

func (f Func) ListChildIDs(ctx context.Context) ([]string, error) { return f(ctx) }

// Static is a fixed roster (dry runs, tests).
type Static []string

func (s Static) ListChildIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.Upstream(model.ReasonRosterUnavailable, "roster lookup cancelled", err)
	}
	out := make([]string, len(s))
	copy(out, s)
	return out, nil
}

/* =========================
   Postgres (children table)
========================= */

type GormProvider struct {
	DB *gorm.DB
}

func NewGormProvider(db *gorm.DB) *GormProvider { return &GormProvider{DB: db} }

// ListChildIDs: active, not soft-deleted children ordered by id.
func (p *GormProvider) ListChildIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := p.DB.WithContext(ctx).
		Model(&ChildModel{}).
		Where("child_is_active = ?", true).
		Order("child_id ASC").
		Pluck("child_id", &ids).Error
	if err != nil {
		return nil, model.Upstream(model.ReasonRosterUnavailable, "cannot read children", err)
	}
	return ids, nil
}

// Snapshot reads p once and normalises the result: trimmed, de-duplicated, sorted.
// An empty roster is refused so a sheet is never created without records.
func Snapshot(ctx context.Context, p Provider) ([]string, error) {
	ids, err := p.ListChildIDs(ctx)
	if err != nil {
		if model.AsError(err) != nil {
			return nil, err
		}
		return nil, model.Upstream(model.ReasonRosterUnavailable, "roster provider failed", err)
	}

	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, model.Upstream(model.ReasonRosterUnavailable, "roster is empty", nil)
	}
	sort.Strings(out)
	return out, nil
}

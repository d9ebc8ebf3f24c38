package helper

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// OrphanReaperConfig: uploads under Prefix older than Retention that no
// justification references are leftovers of rejected or abandoned justify calls.
type OrphanReaperConfig struct {
	Prefix       string
	Retention    time.Duration
	CronSchedule string
	DryRun       bool
}

func OrphanReaperConfigFromEnv(prefix string) OrphanReaperConfig {
	return OrphanReaperConfig{
		Prefix:       prefix,
		Retention:    time.Duration(envInt("PRESENCE_ORPHAN_RETENTION_DAYS", 7)) * 24 * time.Hour,
		CronSchedule: getEnvOr("PRESENCE_ORPHAN_CRON", "15 2 * * *"),
		DryRun:       getEnv("DRY_RUN") == "true",
	}
}

func getEnvOr(key, def string) string {
	if v := getEnv(key); v != "" {
		return v
	}
	return def
}

/* =======================================================================
   Collaborators
======================================================================= */

type ObjectInfo struct {
	Key          string
	LastModified time.Time
}

type ObjectPage struct {
	Objects    []ObjectInfo
	NextMarker string
	Truncated  bool
}

// ReaperObjects is the part of OSSService the reaper needs.
type ReaperObjects interface {
	ListPage(ctx context.Context, prefix, marker string, max int) (ObjectPage, error)
	DeleteObjects(ctx context.Context, keys []string) error
	PublicURL(key string) string
}

// RefLookup returns the subset of refs some justification still points at.
type RefLookup func(ctx context.Context, refs []string) ([]string, error)

// GormRefLookup checks refs against presence_justifications.
func GormRefLookup(db *gorm.DB) RefLookup {
	return func(ctx context.Context, refs []string) ([]string, error) {
		var hits []string
		err := db.WithContext(ctx).
			Table("presence_justifications").
			Where("presence_justification_attachment_ref IN ?", refs).
			Pluck("presence_justification_attachment_ref", &hits).Error
		return hits, err
	}
}

/* =======================================================================
   Reaper
======================================================================= */

type OrphanReaper struct {
	Objects   ReaperObjects
	Refs      RefLookup
	Cfg       OrphanReaperConfig
	PageSize  int // list page, default 1000
	BatchSize int // delete + lookup batch, default 500
}

type ReapResult struct {
	Scanned    int
	Candidates int
	Orphans    int
	Deleted    int
}

func NewOrphanReaper(svc *OSSService, db *gorm.DB, cfg OrphanReaperConfig) *OrphanReaper {
	return &OrphanReaper{Objects: svc, Refs: GormRefLookup(db), Cfg: cfg}
}

// ── ENTRYPOINT: called from main.go; returns the cron so shutdown can stop it
func StartOrphanReaperCron(svc *OSSService, db *gorm.DB, cfg OrphanReaperConfig) (*cron.Cron, error) {
	r := NewOrphanReaper(svc, db, cfg)
	logger := cron.PrintfLogger(log.Default())
	c := cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))

	_, err := c.AddFunc(cfg.CronSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
		defer cancel()
		if _, err := r.Run(ctx, time.Now()); err != nil {
			log.Printf("[OSS-REAPER] error: %v", err)
		}
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[OSS-REAPER] started schedule=%q prefix=%q retention=%s dryRun=%v",
		cfg.CronSchedule, cfg.Prefix, cfg.Retention, cfg.DryRun)
	c.Start()
	return c, nil
}

func (r *OrphanReaper) pageSize() int {
	if r.PageSize <= 0 {
		return 1000
	}
	return r.PageSize
}

func (r *OrphanReaper) batchSize() int {
	if r.BatchSize <= 0 {
		return 500
	}
	return r.BatchSize
}

// Run deletes objects older than now-Retention that no justification references.
// Objects exactly at the threshold are kept.
func (r *OrphanReaper) Run(ctx context.Context, now time.Time) (ReapResult, error) {
	var res ReapResult
	threshold := now.Add(-r.Cfg.Retention)
	log.Printf("[OSS-REAPER] scanning prefix=%q threshold=%s dry=%v", r.Cfg.Prefix, threshold.Format(time.RFC3339), r.Cfg.DryRun)

	var candidates []string
	marker := ""
	for {
		page, err := r.Objects.ListPage(ctx, r.Cfg.Prefix, marker, r.pageSize())
		if err != nil {
			return res, err
		}
		for _, obj := range page.Objects {
			res.Scanned++
			if obj.Key != "" && obj.LastModified.Before(threshold) {
				candidates = append(candidates, obj.Key)
			}
		}
		if !page.Truncated || page.NextMarker == "" {
			break
		}
		marker = page.NextMarker
	}
	res.Candidates = len(candidates)

	orphans, err := r.unreferenced(ctx, candidates)
	if err != nil {
		return res, err
	}
	res.Orphans = len(orphans)
	if len(orphans) == 0 {
		log.Printf("[OSS-REAPER] nothing to delete; scanned=%d under %q", res.Scanned, r.Cfg.Prefix)
		return res, nil
	}
	if r.Cfg.DryRun {
		log.Printf("[OSS-REAPER] DRY-RUN would delete %d/%d objects under %q", len(orphans), res.Scanned, r.Cfg.Prefix)
		return res, nil
	}

	n := r.batchSize()
	for i := 0; i < len(orphans); i += n {
		end := min(i+n, len(orphans))
		if err := r.Objects.DeleteObjects(ctx, orphans[i:end]); err != nil {
			log.Printf("[OSS-REAPER] delete batch %d-%d failed: %v", i, end, err)
			continue
		}
		res.Deleted += end - i
	}
	log.Printf("[OSS-REAPER] deleted %d orphan objects (scanned=%d) under %q", res.Deleted, res.Scanned, r.Cfg.Prefix)
	return res, nil
}

// unreferenced drops keys whose public URL is stored on a justification.
// A failed lookup aborts the run before anything is deleted.
func (r *OrphanReaper) unreferenced(ctx context.Context, keys []string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	byURL := make(map[string]string, len(keys))
	urls := make([]string, 0, len(keys))
	for _, k := range keys {
		u := r.Objects.PublicURL(k)
		byURL[u] = k
		urls = append(urls, u)
	}

	referenced := map[string]bool{}
	n := r.batchSize()
	for i := 0; i < len(urls); i += n {
		end := min(i+n, len(urls))
		hits, err := r.Refs(ctx, urls[i:end])
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			referenced[h] = true
		}
	}

	var out []string
	for _, u := range urls {
		if !referenced[u] {
			out = append(out, byURL[u])
		}
	}
	return out, nil
}

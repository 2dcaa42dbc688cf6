package service

import (
	"bitwise74/model-vault/internal/model"
	"bitwise74/model-vault/internal/registry"
	"bitwise74/model-vault/internal/storage"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultBatchSize = 500

var ErrCheckRunning = errors.New("an integrity check is already running")

type IntegrityOptions struct {
	// Concurrency is the number of existence checks in flight at once
	Concurrency int
	BatchSize   int
}

// IntegrityReport sums up a single check. Missing counts every asset whose
// bytes weren't found, NewlyMissing only those flagged by this run.
type IntegrityReport struct {
	Total        int           `json:"total"`
	Found        int           `json:"found"`
	Missing      int           `json:"missing"`
	Unknown      int           `json:"unknown"`
	Recovered    int           `json:"recovered"`
	NewlyMissing int           `json:"newlyMissing"`
	Errors       []error       `json:"-"`
	Duration     time.Duration `json:"duration"`
}

// IntegrityChecker reconciles the registry with what the storage provider
// actually holds
type IntegrityChecker struct {
	reg     *registry.Registry
	store   storage.Provider
	opts    IntegrityOptions
	running atomic.Bool
}

func NewIntegrityChecker(reg *registry.Registry, store storage.Provider, opts IntegrityOptions) *IntegrityChecker {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}

	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}

	return &IntegrityChecker{
		reg:   reg,
		store: store,
		opts:  opts,
	}
}

type outcome int

const (
	outcomeFound outcome = iota
	outcomeMissing
	outcomeUnknown
)

// Check walks every asset and updates its missing flag. A failure on one
// asset is recorded in the report and never stops the sweep. Only a
// cancelled ctx or a failing registry read returns an error.
func (c *IntegrityChecker) Check(ctx context.Context) (IntegrityReport, error) {
	if !c.running.CompareAndSwap(false, true) {
		return IntegrityReport{}, ErrCheckRunning
	}
	defer c.running.Store(false)

	start := time.Now()

	var (
		report IntegrityReport
		mu     sync.Mutex
		lastID uint
	)

	for {
		batch, err := c.reg.Batch(ctx, lastID, c.opts.BatchSize)
		if err != nil {
			report.Duration = time.Since(start)
			return report, err
		}

		if len(batch) == 0 {
			break
		}

		var g errgroup.Group
		g.SetLimit(c.opts.Concurrency)

		for i := range batch {
			a := &batch[i]

			g.Go(func() error {
				res, recovered, newlyMissing, err := c.checkOne(ctx, a)

				mu.Lock()
				defer mu.Unlock()

				report.Total++

				switch res {
				case outcomeFound:
					report.Found++
				case outcomeMissing:
					report.Missing++
				case outcomeUnknown:
					report.Unknown++
				}

				if recovered {
					report.Recovered++
				}

				if newlyMissing {
					report.NewlyMissing++
				}

				if err != nil {
					report.Errors = append(report.Errors, fmt.Errorf("asset %d: %w", a.ID, err))
				}

				return nil
			})
		}

		g.Wait()

		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(start)
			return report, err
		}

		lastID = batch[len(batch)-1].ID

		if len(batch) < c.opts.BatchSize {
			break
		}
	}

	report.Duration = time.Since(start)

	zap.L().Info("Integrity check finished",
		zap.Int("total", report.Total),
		zap.Int("found", report.Found),
		zap.Int("missing", report.Missing),
		zap.Int("unknown", report.Unknown),
		zap.Int("recovered", report.Recovered),
		zap.Int("newlyMissing", report.NewlyMissing),
		zap.Int("errors", len(report.Errors)),
		zap.Duration("took", report.Duration),
	)

	return report, nil
}

func (c *IntegrityChecker) checkOne(ctx context.Context, a *model.Asset) (res outcome, recovered, newlyMissing bool, err error) {
	if a.StorageBackend != c.store.Backend() {
		return outcomeUnknown, false, false, fmt.Errorf("stored on %q but the active backend is %q", a.StorageBackend, c.store.Backend())
	}

	loc := registry.LocationOf(a)

	exists, err := c.store.Exists(ctx, loc)
	if err != nil {
		if errors.Is(err, storage.ErrIntegrityUnknown) {
			zap.L().Warn("Couldn't determine if asset exists, leaving it as is",
				zap.Uint("assetID", a.ID),
				zap.Error(err),
			)

			return outcomeUnknown, false, false, nil
		}

		return outcomeUnknown, false, false, err
	}

	if exists {
		if !a.Missing {
			return outcomeFound, false, false, nil
		}

		if err := c.reg.SetMissing(ctx, a.ID, false); err != nil {
			return outcomeFound, false, false, err
		}

		zap.L().Info("Asset recovered",
			zap.Uint("assetID", a.ID),
			zap.String("ownerID", a.OwnerID),
		)

		return outcomeFound, true, false, nil
	}

	if a.Missing {
		return outcomeMissing, false, false, nil
	}

	if err := c.reg.SetMissing(ctx, a.ID, true); err != nil {
		return outcomeMissing, false, false, err
	}

	zap.L().Warn("Asset is missing from storage",
		zap.Uint("assetID", a.ID),
		zap.String("ownerID", a.OwnerID),
		zap.String("backend", a.StorageBackend),
		zap.String("storedName", loc.StoredName),
		zap.String("externalRef", loc.ExternalRef),
	)

	return outcomeMissing, false, true, nil
}

// List returns the assets currently flagged as missing
func (c *IntegrityChecker) List(ctx context.Context, f registry.MissingFilter) ([]registry.MissingAsset, error) {
	return c.reg.ListMissing(ctx, f)
}

// Reset clears the missing flag of every asset matching f. Without apply
// nothing is changed and only the number of matching assets is returned.
func (c *IntegrityChecker) Reset(ctx context.Context, f registry.MissingFilter, apply bool) (int64, error) {
	if !apply {
		return c.reg.CountMissing(ctx, f)
	}

	n, err := c.reg.ResetMissing(ctx, f)
	if err != nil {
		return 0, err
	}

	zap.L().Info("Reset missing flags", zap.Int64("count", n), zap.String("ownerID", f.OwnerID), zap.String("extension", f.Extension))
	return n, nil
}

// Prune removes the registry rows of every flagged asset matching f. Like
// Reset it only counts unless apply is set.
func (c *IntegrityChecker) Prune(ctx context.Context, f registry.MissingFilter, apply bool) (int64, error) {
	if !apply {
		return c.reg.CountMissing(ctx, f)
	}

	n, err := c.reg.PruneMissing(ctx, f)
	if err != nil {
		return 0, err
	}

	zap.L().Info("Pruned missing assets", zap.Int64("count", n), zap.String("ownerID", f.OwnerID), zap.String("extension", f.Extension))
	return n, nil
}

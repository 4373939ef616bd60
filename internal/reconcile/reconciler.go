// Package reconcile retries refunds that failed after an order was
// cancelled. Each pending refund record is replayed with its original
// receipt until the provider accepts it.
package reconcile

import (
	"context"
	"time"

	"github.com/example/ec-checkout/internal/domain/refund"
	"github.com/example/ec-checkout/internal/infrastructure/store"
	"github.com/example/ec-checkout/internal/logging"
	"github.com/sirupsen/logrus"
)

// Settler issues the provider refund for one pending record.
type Settler interface {
	SettleRefund(ctx context.Context, rec *refund.Record) error
}

type Config struct {
	Interval time.Duration
	// Grace skips records younger than this, leaving them to the request
	// that created them.
	Grace time.Duration
	Batch int
}

type Reconciler struct {
	refunds store.RefundRepository
	settler Settler
	cfg     Config
	logger  *logrus.Entry
	now     func() time.Time
}

func New(refunds store.RefundRepository, settler Settler, cfg Config, logger logrus.FieldLogger) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 50
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Reconciler{
		refunds: refunds,
		settler: settler,
		cfg:     cfg,
		logger:  logging.Component(logger, "reconciler"),
		now:     time.Now,
	}
}

// Result counts the outcome of one pass.
type Result struct {
	Settled int
	Failed  int
}

// RunOnce settles one batch of pending refunds. A record that fails again
// stays pending for the next pass.
func (r *Reconciler) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	pending, err := r.refunds.ListPending(ctx, r.now().Add(-r.cfg.Grace), r.cfg.Batch)
	if err != nil {
		return res, err
	}

	for _, rec := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := r.settler.SettleRefund(ctx, rec); err != nil {
			res.Failed++
			r.logger.WithError(err).WithFields(logrus.Fields{
				"refund":   rec.ID,
				"order":    rec.OrderID,
				"attempts": rec.Attempts,
			}).Warn("refund still pending")
			continue
		}
		res.Settled++
	}

	if len(pending) > 0 {
		r.logger.WithFields(logrus.Fields{
			"settled": res.Settled,
			"failed":  res.Failed,
		}).Info("reconcile pass finished")
	}
	return res, nil
}

// Run calls RunOnce every interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.logger.WithField("interval", r.cfg.Interval.String()).Info("reconciler started")
	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.WithError(err).Error("reconcile pass failed")
		}
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

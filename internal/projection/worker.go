package projection

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"CoverLedger/internal/engine"
	"CoverLedger/internal/event"
	"CoverLedger/internal/insurance"
	"CoverLedger/internal/observability"
	"CoverLedger/internal/persistence"

	"github.com/rs/zerolog"
)

// Worker updates the read-optimized projection tables from the transition
// stream. The projection channel is non-blocking with drop: a projection
// falling behind never stalls the engine, and the tables can always be
// rebuilt from the event log.
type Worker struct {
	db        *sql.DB
	inputChan <-chan engine.Output
	metrics   *observability.Metrics
	log       zerolog.Logger
	lastSeq   int64
}

func NewWorker(db *sql.DB, inputChan <-chan engine.Output, metrics *observability.Metrics, log zerolog.Logger) *Worker {
	return &Worker{
		db:        db,
		inputChan: inputChan,
		metrics:   metrics,
		log:       log,
	}
}

// Run starts the projection worker loop.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case output, ok := <-w.inputChan:
			if !ok {
				return nil
			}

			start := time.Now()
			if err := w.processOutput(ctx, output); err != nil {
				// Projections are eventually consistent; a failed update is
				// recovered by Rebuild, not by stalling the stream
				w.log.Warn().Err(err).Int64("sequence", output.Envelope.Sequence).Msg("projection update failed")
			}
			if w.metrics != nil {
				w.metrics.ProjectionUpdateDur.WithLabelValues("policies").Observe(time.Since(start).Seconds())
			}

			w.lastSeq = output.Envelope.Sequence
		}
	}
}

// LastSequence returns the highest sequence applied to projections
func (w *Worker) LastSequence() int64 {
	return w.lastSeq
}

func (w *Worker) processOutput(ctx context.Context, output engine.Output) error {
	env := output.Envelope

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	switch p := env.Payload.(type) {
	case *event.LiquidityAdded:
		err = w.adjustPool(ctx, tx, p.Asset.Hex(), p.Amount, 0, 0, env.Sequence)

	case *event.LiquidityRemoved:
		err = w.adjustPool(ctx, tx, p.Asset.Hex(), -p.Amount, 0, 0, env.Sequence)

	case *event.InsuranceRequested:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO projections.policies
				(owner_addr, protocol_name, protocol_website, contact_information,
				 asset_addr, amount, status, last_sequence, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
			ON CONFLICT (owner_addr) DO UPDATE SET
				protocol_name = EXCLUDED.protocol_name,
				protocol_website = EXCLUDED.protocol_website,
				contact_information = EXCLUDED.contact_information,
				asset_addr = EXCLUDED.asset_addr,
				amount = EXCLUDED.amount,
				status = EXCLUDED.status,
				last_sequence = EXCLUDED.last_sequence,
				updated_at = NOW()`,
			p.Owner.Hex(), p.ProtocolName, p.ProtocolWebsite, p.ContactInformation,
			p.Asset.Hex(), p.Amount, insurance.StatusRequested.String(), env.Sequence,
		)
		if err == nil {
			err = w.adjustPool(ctx, tx, p.Asset.Hex(), -p.Amount, p.Amount, 0, env.Sequence)
		}

	case *event.InsuranceApproved:
		_, err = tx.ExecContext(ctx, `
			UPDATE projections.policies
			SET yearly_price = $2, deadline = $3, status = $4, last_sequence = $5, updated_at = NOW()
			WHERE owner_addr = $1`,
			p.Owner.Hex(), p.YearlyPrice, p.Deadline, insurance.StatusApproved.String(), env.Sequence,
		)

	case *event.InsuranceRejected:
		_, err = tx.ExecContext(ctx,
			`DELETE FROM projections.policies WHERE owner_addr = $1`, p.Owner.Hex())
		if err == nil {
			err = w.adjustPool(ctx, tx, p.Asset.Hex(), p.Amount, -p.Amount, 0, env.Sequence)
		}

	case *event.CoverRequested:
		err = w.setStatus(ctx, tx, p.Owner.Hex(), insurance.StatusCoverRequested, env.Sequence)

	case *event.CoverApproved:
		err = w.setStatus(ctx, tx, p.Owner.Hex(), insurance.StatusCoverApproved, env.Sequence)

	case *event.CoverRejected:
		err = w.setStatus(ctx, tx, p.Owner.Hex(), insurance.StatusCoverRejected, env.Sequence)

	case *event.CoverRejectionAccepted:
		err = w.setStatus(ctx, tx, p.Owner.Hex(), insurance.StatusApproved, env.Sequence)

	case *event.FundsUnlocked:
		_, err = tx.ExecContext(ctx,
			`DELETE FROM projections.policies WHERE owner_addr = $1`, p.Owner.Hex())
		if err == nil {
			err = w.adjustPool(ctx, tx, p.Asset.Hex(), 0, -p.Amount, 0, env.Sequence)
		}

	case *event.InsuranceDeleted:
		_, err = tx.ExecContext(ctx,
			`DELETE FROM projections.policies WHERE owner_addr = $1`, p.Owner.Hex())
		if err == nil {
			err = w.adjustPool(ctx, tx, p.Asset.Hex(), p.Released, -p.Released, 0, env.Sequence)
		}

	case *event.InsuranceFeePaid:
		_, err = tx.ExecContext(ctx, `
			UPDATE projections.policies
			SET deadline = $2, last_sequence = $3, updated_at = NOW()
			WHERE owner_addr = $1`,
			p.Owner.Hex(), p.NewDeadline, env.Sequence,
		)
		if err == nil && p.Price > 0 {
			err = w.adjustPool(ctx, tx, p.Asset.Hex(), 0, 0, p.Price, env.Sequence)
		}

	case *event.InsuranceAdminChanged:
		_, err = tx.ExecContext(ctx, `
			UPDATE projections.policies
			SET owner_addr = $2, last_sequence = $3, updated_at = NOW()
			WHERE owner_addr = $1`,
			p.Owner.Hex(), p.NewAdmin.Hex(), env.Sequence,
		)

	case *event.InsuranceAmountChanged:
		_, err = tx.ExecContext(ctx, `
			UPDATE projections.policies
			SET amount = $2, yearly_price = $3, last_sequence = $4, updated_at = NOW()
			WHERE owner_addr = $1`,
			p.Owner.Hex(), p.NewAmount, p.YearlyPrice, env.Sequence,
		)
		if err == nil {
			delta := p.NewAmount - p.OldAmount
			err = w.adjustPool(ctx, tx, p.Asset.Hex(), -delta, delta, 0, env.Sequence)
		}

	default:
		return fmt.Errorf("unknown payload type %T", env.Payload)
	}

	if err != nil {
		return err
	}
	return tx.Commit()
}

func (w *Worker) setStatus(ctx context.Context, tx *sql.Tx, owner string, status insurance.Status, seq int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE projections.policies
		SET status = $2, last_sequence = $3, updated_at = NOW()
		WHERE owner_addr = $1`,
		owner, status.String(), seq,
	)
	return err
}

func (w *Worker) adjustPool(ctx context.Context, tx *sql.Tx, asset string, dAvailable, dReserved, dFees int64, seq int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.pool_liquidity (asset_addr, available, reserved, collected_fees, last_sequence)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (asset_addr) DO UPDATE SET
			available = projections.pool_liquidity.available + EXCLUDED.available,
			reserved = projections.pool_liquidity.reserved + EXCLUDED.reserved,
			collected_fees = projections.pool_liquidity.collected_fees + EXCLUDED.collected_fees,
			last_sequence = GREATEST(projections.pool_liquidity.last_sequence, EXCLUDED.last_sequence),
			updated_at = NOW()`,
		asset, dAvailable, dReserved, dFees, seq,
	)
	return err
}

// Rebuild truncates the projection tables and folds the whole event log
// back into them. Used when the worker has dropped transitions.
func Rebuild(ctx context.Context, db *sql.DB, metrics *observability.Metrics, log zerolog.Logger) error {
	for _, stmt := range []string{
		`TRUNCATE projections.policies`,
		`TRUNCATE projections.pool_liquidity`,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}

	entries, err := persistence.NewEventLogReader(db).LoadReplayEntries(ctx)
	if err != nil {
		return fmt.Errorf("load event log: %w", err)
	}

	w := NewWorker(db, nil, metrics, log)
	for _, entry := range entries {
		out := engine.Output{Envelope: entry.Envelope}
		if err := w.processOutput(ctx, out); err != nil {
			return fmt.Errorf("rebuild at seq=%d: %w", entry.Envelope.Sequence, err)
		}
	}

	log.Info().Int("transitions", len(entries)).Msg("projection rebuild complete")
	return nil
}

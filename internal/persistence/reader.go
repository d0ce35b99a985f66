package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"CoverLedger/internal/engine"
	"CoverLedger/internal/event"
	"CoverLedger/internal/ledger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// EventLogReader reads the event log back for startup replay
type EventLogReader struct {
	db *sql.DB
}

func NewEventLogReader(db *sql.DB) *EventLogReader {
	return &EventLogReader{db: db}
}

// LoadReplayEntries reads every logged transition in sequence order and
// reconstructs the envelopes and journal rows the engine replays on restart.
func (r *EventLogReader) LoadReplayEntries(ctx context.Context) ([]engine.ReplayEntry, error) {
	envelopes, err := r.loadEnvelopes(ctx)
	if err != nil {
		return nil, err
	}
	if len(envelopes) == 0 {
		return nil, nil
	}

	journalsBySeq, err := r.loadJournals(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]engine.ReplayEntry, 0, len(envelopes))
	for _, env := range envelopes {
		entries = append(entries, engine.ReplayEntry{
			Envelope: env,
			Journals: journalsBySeq[env.Sequence],
		})
	}
	return entries, nil
}

func (r *EventLogReader) loadEnvelopes(ctx context.Context) ([]*event.Envelope, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sequence, event_type, owner_addr, asset_addr, payload, state_hash, prev_hash, timestamp
		FROM event_log.events
		ORDER BY sequence ASC`)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var envelopes []*event.Envelope
	for rows.Next() {
		var (
			seq                  int64
			eventType            string
			ownerHex, assetHex   sql.NullString
			payload              []byte
			stateHash, prevHash  []byte
			ts                   time.Time
		)
		if err := rows.Scan(&seq, &eventType, &ownerHex, &assetHex, &payload, &stateHash, &prevHash, &ts); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}

		et := event.ParseEventType(eventType)
		p, ok := event.NewPayload(et)
		if !ok {
			return nil, fmt.Errorf("seq=%d: unknown event type %q", seq, eventType)
		}
		if err := json.Unmarshal(payload, p); err != nil {
			return nil, fmt.Errorf("seq=%d: decode payload: %w", seq, err)
		}

		env := &event.Envelope{
			Sequence:  seq,
			EventType: et,
			Timestamp: ts,
			Payload:   p,
		}
		if ownerHex.Valid {
			addr := common.HexToAddress(ownerHex.String)
			env.Owner = &addr
		}
		if assetHex.Valid {
			addr := common.HexToAddress(assetHex.String)
			env.Asset = &addr
		}
		copy(env.StateHash[:], stateHash)
		copy(env.PrevHash[:], prevHash)

		envelopes = append(envelopes, env)
	}
	return envelopes, rows.Err()
}

func (r *EventLogReader) loadJournals(ctx context.Context) (map[int64][]ledger.Journal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT journal_id, batch_id, event_ref, sequence, debit_account, credit_account, asset_addr, amount, journal_type, timestamp
		FROM event_log.journal
		ORDER BY sequence ASC, journal_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	bySeq := make(map[int64][]ledger.Journal)
	for rows.Next() {
		var (
			journalID, batchID, eventRef string
			seq                          int64
			debitPath, creditPath        string
			assetHex                     string
			amount                       int64
			journalType                  int32
			ts                           int64
		)
		if err := rows.Scan(&journalID, &batchID, &eventRef, &seq, &debitPath, &creditPath, &assetHex, &amount, &journalType, &ts); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}

		debit, err := ledger.ParseAccountPath(debitPath)
		if err != nil {
			return nil, fmt.Errorf("seq=%d: %w", seq, err)
		}
		credit, err := ledger.ParseAccountPath(creditPath)
		if err != nil {
			return nil, fmt.Errorf("seq=%d: %w", seq, err)
		}

		jid, err := uuid.Parse(journalID)
		if err != nil {
			return nil, fmt.Errorf("seq=%d: journal id: %w", seq, err)
		}
		bid, err := uuid.Parse(batchID)
		if err != nil {
			return nil, fmt.Errorf("seq=%d: batch id: %w", seq, err)
		}

		bySeq[seq] = append(bySeq[seq], ledger.Journal{
			JournalID:     jid,
			BatchID:       bid,
			EventRef:      eventRef,
			Sequence:      seq,
			DebitAccount:  debit,
			CreditAccount: credit,
			Asset:         common.HexToAddress(assetHex),
			Amount:        amount,
			JournalType:   ledger.JournalType(journalType),
			Timestamp:     ts,
		})
	}
	return bySeq, rows.Err()
}

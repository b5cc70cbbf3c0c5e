package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/battlegrid/internal/game/battle"
	"github.com/cory-johannsen/battlegrid/internal/game/grid"
)

// ReportRepository stores the append-only event log of simulated battles.
type ReportRepository struct {
	db *pgxpool.Pool
}

// NewReportRepository creates a ReportRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewReportRepository(db *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{db: db}
}

// SaveEvents appends events to the log of battleID in one transaction.
// Sequence numbers continue after any events already stored for the battle.
//
// Precondition: battleID must not be uuid.Nil.
// Postcondition: Either every event is stored or none is.
func (r *ReportRepository) SaveEvents(ctx context.Context, battleID uuid.UUID, events []battle.Event) error {
	if battleID == uuid.Nil {
		return fmt.Errorf("saving battle events: battle id must not be nil")
	}
	if len(events) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var last int
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM battle_events WHERE battle_id = $1`, battleID,
	).Scan(&last); err != nil {
		return fmt.Errorf("reading last sequence for battle %s: %w", battleID, err)
	}

	batch := &pgx.Batch{}
	for i, ev := range events {
		batch.Queue(`
			INSERT INTO battle_events
				(battle_id, seq, round, side, actor_id, outcome,
				 from_row, from_col, to_row, to_col,
				 target_id, shield_absorbed, health_lost, target_health)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
			battleID, last+i+1, ev.Round, ev.Side.String(), ev.ActorID, ev.Outcome.String(),
			ev.From.Row, ev.From.Col, ev.To.Row, ev.To.Col,
			ev.TargetID, ev.ShieldAbsorbed, ev.HealthLost, ev.TargetHealth,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("battle %s was written concurrently: %w", battleID, err)
		}
		return fmt.Errorf("inserting battle events: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing battle events: %w", err)
	}
	return nil
}

// ListEvents returns the stored events of battleID in the order they were saved.
//
// Postcondition: Returns a slice (empty for unknown battles) or a non-nil error.
func (r *ReportRepository) ListEvents(ctx context.Context, battleID uuid.UUID) ([]battle.Event, error) {
	rows, err := r.db.Query(ctx, `
		SELECT round, side, actor_id, outcome,
		       from_row, from_col, to_row, to_col,
		       target_id, shield_absorbed, health_lost, target_health
		FROM battle_events
		WHERE battle_id = $1
		ORDER BY seq`, battleID)
	if err != nil {
		return nil, fmt.Errorf("querying battle events: %w", err)
	}
	defer rows.Close()

	events := []battle.Event{}
	for rows.Next() {
		var (
			ev            battle.Event
			side, outcome string
		)
		if err := rows.Scan(
			&ev.Round, &side, &ev.ActorID, &outcome,
			&ev.From.Row, &ev.From.Col, &ev.To.Row, &ev.To.Col,
			&ev.TargetID, &ev.ShieldAbsorbed, &ev.HealthLost, &ev.TargetHealth,
		); err != nil {
			return nil, fmt.Errorf("scanning battle event: %w", err)
		}
		s, ok := grid.ParseSide(side)
		if !ok {
			return nil, fmt.Errorf("battle event has unknown side %q", side)
		}
		ev.Side = s
		if ev.Outcome, err = battle.ParseOutcome(outcome); err != nil {
			return nil, fmt.Errorf("battle event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating battle events: %w", err)
	}
	return events, nil
}

// ListBattles returns the ids of every battle with stored events, most recent first.
func (r *ReportRepository) ListBattles(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		SELECT battle_id FROM battle_events
		GROUP BY battle_id
		ORDER BY MAX(created_at) DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying battles: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("collecting battle ids: %w", err)
	}
	return ids, nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	// pgx wraps PostgreSQL errors; check for SQLSTATE 23505 (unique_violation)
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}

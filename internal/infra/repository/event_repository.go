// Package repository implements the event repository (component D) against
// Postgres via pgx, following the error-wrapping and kind-classification
// idiom of the teacher's repo_impl layer without its generated sqlc
// queries — the raw-SQL calls here take over that role directly.
package repository

import (
	"context"
	"errors"
	"time"

	"webhook-forwarder/internal/domain/webhook"
	"webhook-forwarder/internal/infra"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolationCode = "23505"

type EventRepository struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

// Store persists one row and returns its id. On a uniqueness violation of
// (provider, event_hash) — a concurrent-insert race the deduplicator's
// negative cache could not prevent — it returns a KindDuplicateKey error
// instead of anything the retry policy would treat as transient.
func (r *EventRepository) Store(ctx context.Context, event webhook.StoredEvent) (uuid.UUID, error) {
	const query = `
		INSERT INTO forwarder.raw_webhook_events
			(id, provider, event_type, event_data, event_hash, received_at, source_ip, headers)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	id := event.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	headers, err := encodeHeaders(event.Headers)
	if err != nil {
		return uuid.Nil, infra.WrapRepoErr(infra.KindDBFailure, "failed to encode webhook headers", err)
	}

	_, err = r.pool.Exec(ctx, query,
		id, event.Provider, event.EventType, event.Body, event.Hash, event.ReceivedAt, event.SourceAddress, headers)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return uuid.Nil, infra.WrapRepoErr(infra.KindDuplicateKey, "event already stored", err)
		}
		return uuid.Nil, classifyStoreErr(err)
	}

	return id, nil
}

// HashExists probes for any row with this hash, independent of provider —
// acceptable because the uniqueness index and every insert both scope by
// (provider, hash), so a hash-only probe stays cheap and index-covered.
func (r *EventRepository) HashExists(ctx context.Context, hash string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM forwarder.raw_webhook_events WHERE event_hash = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, hash).Scan(&exists); err != nil {
		return false, infra.WrapRepoErr(infra.KindDBFailure, "failed to probe event hash", err)
	}
	return exists, nil
}

// CheckHealth runs a trivial probe equivalent to SELECT 1.
func (r *EventRepository) CheckHealth(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var one int
	err := r.pool.QueryRow(ctx, "SELECT 1").Scan(&one)
	return err == nil && one == 1
}

// RecentCount returns the number of rows received at or after since.
func (r *EventRepository) RecentCount(ctx context.Context, since time.Time) (int64, error) {
	const query = `SELECT count(*) FROM forwarder.raw_webhook_events WHERE received_at >= $1`

	var count int64
	if err := r.pool.QueryRow(ctx, query, since).Scan(&count); err != nil {
		return 0, infra.WrapRepoErr(infra.KindDBFailure, "failed to count recent events", err)
	}
	return count, nil
}

// RecentByProvider returns up to limit most-recent rows for provider,
// newest first, backing the debug listing endpoint.
func (r *EventRepository) RecentByProvider(ctx context.Context, provider string, limit int) ([]webhook.StoredEvent, error) {
	const query = `
		SELECT id, provider, event_type, event_data, event_hash, received_at, source_ip, headers
		FROM forwarder.raw_webhook_events
		WHERE provider = $1
		ORDER BY received_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, provider, limit)
	if err != nil {
		return nil, infra.WrapRepoErr(infra.KindDBFailure, "failed to list recent events", err)
	}
	defer rows.Close()

	var events []webhook.StoredEvent
	for rows.Next() {
		var (
			ev      webhook.StoredEvent
			headers []byte
		)

		if err := rows.Scan(&ev.ID, &ev.Provider, &ev.EventType, &ev.Body, &ev.Hash, &ev.ReceivedAt, &ev.SourceAddress, &headers); err != nil {
			return nil, infra.WrapRepoErr(infra.KindDBFailure, "failed to scan event row", err)
		}
		if decoded, err := decodeHeaders(headers); err == nil {
			ev.Headers = decoded
		}

		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr(infra.KindDBFailure, "failed while iterating event rows", err)
	}

	return events, nil
}

// classifyStoreErr sorts a failed insert into a timeout, a connectivity
// failure, or a general store failure. IsTransient treats all three kinds
// as retryable; only the uniqueness violation handled in Store is permanent.
func classifyStoreErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, pgx.ErrTxClosed) {
		return infra.WrapRepoErr(infra.KindTimeout, "event store timed out", err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "57P03", "08006", "08003", "08001": // cannot_connect_now / connection failures
			return infra.WrapRepoErr(infra.KindConnectivity, "event store connectivity failure", err)
		}
	}

	return infra.WrapRepoErr(infra.KindDBFailure, "failed to store event", err)
}

// IsTransient is the Classifier the retry policy applies to store errors.
func IsTransient(err error) bool {
	return infra.IsKind(err, infra.KindTimeout) || infra.IsKind(err, infra.KindConnectivity) || infra.IsKind(err, infra.KindDBFailure)
}

// IsDuplicateKey reports whether err is the uniqueness-violation kind the
// handler must translate into the duplicate response path.
func IsDuplicateKey(err error) bool {
	return infra.IsKind(err, infra.KindDuplicateKey)
}

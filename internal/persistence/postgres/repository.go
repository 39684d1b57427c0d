// Package postgres provides the pgx-backed Repository for realm state.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dhiryansd999-cell/runrealm/internal/domain"
	"github.com/dhiryansd999-cell/runrealm/internal/events"
)

const uniqueViolation = "23505"

// Repository provides Postgres-backed persistence for profiles, territories,
// moments, the reward ledger and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetProfile loads the user's profile document.
func (r *Repository) GetProfile(ctx context.Context, realmID, uid string) (*domain.Profile, error) {
	const query = `SELECT uid, display_name, handle, bio, level, xp, created_at
        FROM profiles WHERE realm_id=$1 AND uid=$2`

	row := r.pool.QueryRow(ctx, query, realmID, uid)
	var prof domain.Profile
	if err := row.Scan(&prof.UID, &prof.DisplayName, &prof.Handle, &prof.Bio, &prof.Level, &prof.XP, &prof.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, storeErr(err)
	}
	return &prof, nil
}

// CreateProfile inserts a new profile document. The unique handle index is
// the authority on handle conflicts.
func (r *Repository) CreateProfile(ctx context.Context, realmID string, profile domain.Profile) error {
	const stmt = `INSERT INTO profiles (realm_id, uid, display_name, handle, bio, level, xp, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())`

	_, err := r.pool.Exec(ctx, stmt,
		realmID,
		profile.UID,
		profile.DisplayName,
		profile.Handle,
		profile.Bio,
		profile.Level,
		profile.XP,
		profile.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrHandleConflict
		}
		return storeErr(err)
	}
	return nil
}

// PutProfile replaces the whole profile document.
func (r *Repository) PutProfile(ctx context.Context, realmID string, profile domain.Profile) error {
	const stmt = `INSERT INTO profiles (realm_id, uid, display_name, handle, bio, level, xp, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())
        ON CONFLICT (realm_id, uid) DO UPDATE
        SET display_name=EXCLUDED.display_name, handle=EXCLUDED.handle, bio=EXCLUDED.bio,
            level=EXCLUDED.level, xp=EXCLUDED.xp, updated_at=NOW()`

	_, err := r.pool.Exec(ctx, stmt,
		realmID,
		profile.UID,
		profile.DisplayName,
		profile.Handle,
		profile.Bio,
		profile.Level,
		profile.XP,
		profile.CreatedAt,
	)
	if err != nil {
		return storeErr(err)
	}
	return nil
}

// SaveClaim persists the territory and moment pair plus their outbox events
// inside a single transaction.
func (r *Repository) SaveClaim(ctx context.Context, territory domain.Territory, moment domain.Moment) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return storeErr(err)
	}
	defer tx.Rollback(ctx)

	vertices, err := json.Marshal(territory.Vertices)
	if err != nil {
		return err
	}

	const insertTerritory = `INSERT INTO territories (territory_id, realm_id, owner_uid, vertices, area_sq_m, claimed_at)
        VALUES ($1,$2,$3,$4,$5,$6)`
	if _, err := tx.Exec(ctx, insertTerritory,
		territory.ID, territory.RealmID, territory.OwnerUID, vertices, territory.AreaSqM, territory.ClaimedAt,
	); err != nil {
		return storeErr(err)
	}

	const insertMoment = `INSERT INTO moments (moment_id, realm_id, owner_uid, territory_id, distance_m, duration_sec, xp_awarded, recorded_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	if _, err := tx.Exec(ctx, insertMoment,
		moment.ID, moment.RealmID, moment.OwnerUID, moment.TerritoryID,
		moment.DistanceMeters, moment.Duration.Seconds(), moment.XPAwarded, moment.RecordedAt,
	); err != nil {
		return storeErr(err)
	}

	if err := insertOutbox(ctx, tx, territory.RealmID, "territory", territory.ID, "territory.claimed",
		territory.ID+":territory.claimed",
		territory.RealmID+":"+territory.OwnerUID,
		events.TerritoryClaimed{
			TerritoryID: territory.ID,
			RealmID:     territory.RealmID,
			OwnerUID:    territory.OwnerUID,
			AreaSqM:     territory.AreaSqM,
			ClaimedAt:   territory.ClaimedAt,
		}); err != nil {
		return err
	}

	if err := insertOutbox(ctx, tx, moment.RealmID, "moment", moment.ID, "moment.recorded",
		moment.ID+":moment.recorded",
		moment.RealmID+":"+moment.OwnerUID,
		events.MomentRecorded{
			MomentID:       moment.ID,
			RealmID:        moment.RealmID,
			OwnerUID:       moment.OwnerUID,
			TerritoryID:    moment.TerritoryID,
			DistanceMeters: moment.DistanceMeters,
			DurationSec:    moment.Duration.Seconds(),
			XPAwarded:      moment.XPAwarded,
			RecordedAt:     moment.RecordedAt,
		}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr(err)
	}
	return nil
}

// ApplyReward credits the moment's XP exactly once. The rewards ledger row is
// the source of truth for "already rewarded": its insert and the profile
// update commit atomically, so retries replay cleanly.
func (r *Repository) ApplyReward(ctx context.Context, realmID, uid string, moment domain.Moment) (*domain.Profile, bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, storeErr(err)
	}
	defer tx.Rollback(ctx)

	const insertReward = `INSERT INTO rewards (moment_id, realm_id, uid, xp_delta, applied_at)
        VALUES ($1,$2,$3,$4,NOW()) ON CONFLICT (moment_id) DO NOTHING`
	tag, err := tx.Exec(ctx, insertReward, moment.ID, realmID, uid, moment.XPAwarded)
	if err != nil {
		return nil, false, storeErr(err)
	}

	const selectProfile = `SELECT uid, display_name, handle, bio, level, xp, created_at
        FROM profiles WHERE realm_id=$1 AND uid=$2 FOR UPDATE`
	row := tx.QueryRow(ctx, selectProfile, realmID, uid)
	var prof domain.Profile
	if err := row.Scan(&prof.UID, &prof.DisplayName, &prof.Handle, &prof.Bio, &prof.Level, &prof.XP, &prof.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, domain.ErrProfileNotFound
		}
		return nil, false, storeErr(err)
	}

	if tag.RowsAffected() == 0 {
		// Replay: the ledger already holds this moment.
		if err := tx.Commit(ctx); err != nil {
			return nil, false, storeErr(err)
		}
		return &prof, false, nil
	}

	previousLevel := prof.Level
	prof.XP += moment.XPAwarded
	prof.Level = domain.LevelForXP(prof.XP)

	const updateProfile = `UPDATE profiles SET xp=$3, level=$4, updated_at=NOW() WHERE realm_id=$1 AND uid=$2`
	if _, err := tx.Exec(ctx, updateProfile, realmID, uid, prof.XP, prof.Level); err != nil {
		return nil, false, storeErr(err)
	}

	if prof.Level != previousLevel {
		dedupeKey := fmt.Sprintf("%s:profile.level_changed:%d", uid, prof.Level)
		if err := insertOutbox(ctx, tx, realmID, "profile", uid, "profile.level_changed", dedupeKey, uid,
			events.ProfileLevelChanged{
				RealmID:    realmID,
				UID:        uid,
				Level:      prof.Level,
				XP:         prof.XP,
				OccurredAt: moment.RecordedAt,
			}); err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, storeErr(err)
	}
	return &prof, true, nil
}

// ListTerritories returns the user's territories ordered newest first.
func (r *Repository) ListTerritories(ctx context.Context, realmID, uid string, cursor *domain.Cursor, limit int) ([]domain.Territory, *domain.Cursor, error) {
	args := []interface{}{realmID, uid, limit}
	query := `SELECT territory_id, realm_id, owner_uid, vertices, area_sq_m, claimed_at
        FROM territories WHERE realm_id=$1 AND owner_uid=$2`
	if cursor != nil {
		query += ` AND (claimed_at, territory_id) < ($4, $5)`
		args = append(args, cursor.At, cursor.ID)
	}
	query += ` ORDER BY claimed_at DESC, territory_id DESC LIMIT $3`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, storeErr(err)
	}
	defer rows.Close()

	results := make([]domain.Territory, 0, limit)
	for rows.Next() {
		var t domain.Territory
		var vertices []byte
		if err := rows.Scan(&t.ID, &t.RealmID, &t.OwnerUID, &vertices, &t.AreaSqM, &t.ClaimedAt); err != nil {
			return nil, nil, storeErr(err)
		}
		if err := json.Unmarshal(vertices, &t.Vertices); err != nil {
			return nil, nil, err
		}
		results = append(results, t)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, storeErr(err)
	}

	var next *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{At: last.ClaimedAt, ID: last.ID}
	}
	return results, next, nil
}

// ListMoments returns the user's moments ordered newest first.
func (r *Repository) ListMoments(ctx context.Context, realmID, uid string, cursor *domain.Cursor, limit int) ([]domain.Moment, *domain.Cursor, error) {
	args := []interface{}{realmID, uid, limit}
	query := `SELECT moment_id, realm_id, owner_uid, territory_id, distance_m, duration_sec, xp_awarded, recorded_at
        FROM moments WHERE realm_id=$1 AND owner_uid=$2`
	if cursor != nil {
		query += ` AND (recorded_at, moment_id) < ($4, $5)`
		args = append(args, cursor.At, cursor.ID)
	}
	query += ` ORDER BY recorded_at DESC, moment_id DESC LIMIT $3`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, storeErr(err)
	}
	defer rows.Close()

	results := make([]domain.Moment, 0, limit)
	for rows.Next() {
		var m domain.Moment
		var durationSec float64
		if err := rows.Scan(&m.ID, &m.RealmID, &m.OwnerUID, &m.TerritoryID, &m.DistanceMeters, &durationSec, &m.XPAwarded, &m.RecordedAt); err != nil {
			return nil, nil, storeErr(err)
		}
		m.Duration = time.Duration(durationSec * float64(time.Second))
		results = append(results, m)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, storeErr(err)
	}

	var next *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{At: last.RecordedAt, ID: last.ID}
	}
	return results, next, nil
}

// insertOutbox stages one event row. The dedupe key must be unique per logical
// event occurrence, not per aggregate: recurring events on the same aggregate
// (a profile leveling up again) need distinct keys or the insert would collide
// and roll back the enclosing transaction. Retried transactions re-insert the
// same key, which the conflict clause absorbs.
func insertOutbox(ctx context.Context, tx pgx.Tx, realmID, aggregateType, aggregateID, eventType, dedupeKey, partitionKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	const stmt = `INSERT INTO outbox (realm_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (dedupe_key) DO NOTHING`
	if _, err := tx.Exec(ctx, stmt,
		realmID, aggregateType, aggregateID, eventType, meta.Topic, meta.SchemaSubject, partitionKey, body, dedupeKey,
	); err != nil {
		return storeErr(err)
	}
	return nil
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[string]EventMetadata{
	"territory.claimed": {
		Topic:         "territory_events",
		SchemaSubject: "territory_events-value",
	},
	"moment.recorded": {
		Topic:         "moment_events",
		SchemaSubject: "moment_events-value",
	},
	"profile.level_changed": {
		Topic:         "profile_events",
		SchemaSubject: "profile_events-value",
	},
}

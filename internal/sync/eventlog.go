package syncx

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Event struct {
	Seq       int64     `json:"seq"`
	SiteID    string    `json:"site_id"`
	Type      string    `json:"type"`
	Key       string    `json:"key"`
	DataJSON  string    `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}

type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.SiteID, e.Type, e.Key, e.DataJSON, e.CreatedAt.UnixMilli())
	return err
}

// ByKey returns the events for one natural key in append order.
func (r *EventRepo) ByKey(ctx context.Context, key string) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, site_id, typ, key, data, created_at FROM event_log WHERE key=$1 ORDER BY seq`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Event{}
	for rows.Next() {
		var (
			e  Event
			ms int64
		)
		if err := rows.Scan(&e.Seq, &e.SiteID, &e.Type, &e.Key, &e.DataJSON, &ms); err != nil {
			return nil, err
		}
		e.CreatedAt = time.UnixMilli(ms).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Recorder appends attempt lifecycle events. Failures are logged and swallowed so the
// event log can never change the outcome of the operation that produced the event.
type Recorder struct {
	repo   *EventRepo
	siteID string
	log    zerolog.Logger
}

func NewRecorder(repo *EventRepo, siteID string) *Recorder {
	if siteID == "" {
		siteID = "local"
	}
	return &Recorder{repo: repo, siteID: siteID, log: log.Logger.With().Str("component", "eventlog").Logger()}
}

func (r *Recorder) Record(ctx context.Context, typ, key string, data interface{}) {
	b, err := json.Marshal(data)
	if err != nil {
		r.log.Error().Err(err).Str("type", typ).Str("key", key).Msg("encode event")
		return
	}
	// a canceled request still gets its event written
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := r.repo.Append(ctx, Event{SiteID: r.siteID, Type: typ, Key: key, DataJSON: string(b)}); err != nil {
		r.log.Error().Err(err).Str("type", typ).Str("key", key).Msg("append event")
	}
}

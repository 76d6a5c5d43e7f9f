package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Settings are the admin-tunable exam display values. The enforced attempt
// duration is fixed when an attempt starts and does not read these.
type Settings struct {
	DefaultTime int       `json:"default_time"` // minutes
	WarningTime int       `json:"warning_time"` // minutes
	AutoSubmit  bool      `json:"auto_submit"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func DefaultSettings() Settings {
	return Settings{DefaultTime: 60, WarningTime: 5}
}

var ErrInvalidSettings = errors.New("invalid settings")

func (s Settings) Validate() error {
	if s.DefaultTime <= 0 {
		return fmt.Errorf("%w: default_time must be positive", ErrInvalidSettings)
	}
	if s.WarningTime < 0 || s.WarningTime >= s.DefaultTime {
		return fmt.Errorf("%w: warning_time must be between 0 and default_time", ErrInvalidSettings)
	}
	return nil
}

// Settings returns the stored row, or the defaults when none was saved yet.
func (r *Repo) Settings(ctx context.Context) (Settings, error) {
	var (
		s       Settings
		updated int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT default_time, warning_time, auto_submit, updated_at FROM exam_settings WHERE id=1`).
		Scan(&s.DefaultTime, &s.WarningTime, &s.AutoSubmit, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, err
	}
	s.UpdatedAt = time.UnixMilli(updated).UTC()
	return s, nil
}

func (r *Repo) SaveSettings(ctx context.Context, s Settings) (Settings, error) {
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	now := time.Now()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO exam_settings (id, default_time, warning_time, auto_submit, updated_at)
		 VALUES (1,$1,$2,$3,$4)
		 ON CONFLICT (id) DO UPDATE SET default_time=EXCLUDED.default_time, warning_time=EXCLUDED.warning_time,
		   auto_submit=EXCLUDED.auto_submit, updated_at=EXCLUDED.updated_at`,
		s.DefaultTime, s.WarningTime, s.AutoSubmit, now.UnixMilli())
	if err != nil {
		return Settings{}, err
	}
	s.UpdatedAt = time.UnixMilli(now.UnixMilli()).UTC()
	return s, nil
}

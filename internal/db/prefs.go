package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/joeblew999/plat-map/internal/mapstate"
)

const (
	keyMapState     = "map-state"
	keyExportFormat = "export-format"
)

// Prefs stores the last map state and export format of each profile.
type Prefs struct {
	db *sql.DB
}

// NewPrefs creates the prefs table if needed.
func NewPrefs(ctx context.Context, db *sql.DB) (*Prefs, error) {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS prefs (
		profile VARCHAR NOT NULL,
		key     VARCHAR NOT NULL,
		value   VARCHAR NOT NULL,
		PRIMARY KEY (profile, key)
	)`)
	if err != nil {
		return nil, fmt.Errorf("create prefs table: %w", err)
	}
	return &Prefs{db: db}, nil
}

func (p *Prefs) get(ctx context.Context, profile, key string) (string, bool, error) {
	var value string
	err := p.db.QueryRowContext(ctx,
		`SELECT value FROM prefs WHERE profile = ? AND key = ?`, profile, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read pref %s: %w", key, err)
	}
	return value, true, nil
}

func (p *Prefs) set(ctx context.Context, profile, key, value string) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO prefs (profile, key, value) VALUES (?, ?, ?)
		 ON CONFLICT (profile, key) DO UPDATE SET value = excluded.value`,
		profile, key, value,
	)
	if err != nil {
		return fmt.Errorf("write pref %s: %w", key, err)
	}
	return nil
}

// LoadState returns the stored map state, or nil when none was saved.
func (p *Prefs) LoadState(ctx context.Context, profile string) (*mapstate.State, error) {
	raw, ok, err := p.get(ctx, profile, keyMapState)
	if err != nil || !ok {
		return nil, err
	}
	var s mapstate.State
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("decode stored map state: %w", err)
	}
	return &s, nil
}

// SaveState stores s for profile.
func (p *Prefs) SaveState(ctx context.Context, profile string, s mapstate.State) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return p.set(ctx, profile, keyMapState, string(raw))
}

// LoadExportFormat returns the last export format, or "" when none was saved.
func (p *Prefs) LoadExportFormat(ctx context.Context, profile string) (string, error) {
	v, _, err := p.get(ctx, profile, keyExportFormat)
	return v, err
}

// SaveExportFormat stores the export format for profile.
func (p *Prefs) SaveExportFormat(ctx context.Context, profile, format string) error {
	return p.set(ctx, profile, keyExportFormat, format)
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const upsertActiveQuery = `
INSERT INTO active_presets (context_id, preset_id, activated_at)
VALUES (?, ?, ?)
ON CONFLICT (context_id) DO UPDATE SET preset_id = excluded.preset_id, activated_at = excluded.activated_at;
`

// UpsertActive points the context at the given preset, replacing any
// previous pointer. At most one preset is active per context.
func (r *Repository) UpsertActive(ctx context.Context, contextID, presetID string) error {
	_, err := r.db.ExecContext(ctx, upsertActiveQuery, contextID, presetID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		r.logger.Error("failed to upsert active preset", "error", err, "context_id", contextID, "preset_id", presetID)
		return err
	}
	return nil
}

const selectActiveQuery = `SELECT preset_id FROM active_presets WHERE context_id = ?;`

// GetActivePresetID returns the preset active in the context, or "" when
// the context has no active preset.
func (r *Repository) GetActivePresetID(ctx context.Context, contextID string) (string, error) {
	var presetID string
	err := r.db.GetContext(ctx, &presetID, selectActiveQuery, contextID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		r.logger.Error("failed to select active preset", "error", err, "context_id", contextID)
		return "", err
	}
	return presetID, nil
}

const deleteActiveQuery = `DELETE FROM active_presets WHERE context_id = ?;`

func (r *Repository) ClearActive(ctx context.Context, contextID string) error {
	_, err := r.db.ExecContext(ctx, deleteActiveQuery, contextID)
	if err != nil {
		r.logger.Error("failed to clear active preset", "error", err, "context_id", contextID)
		return err
	}
	return nil
}

const selectActiveContextsQuery = `SELECT context_id FROM active_presets ORDER BY context_id ASC;`

func (r *Repository) ActiveContexts(ctx context.Context) ([]string, error) {
	var contexts []string
	if err := r.db.SelectContext(ctx, &contexts, selectActiveContextsQuery); err != nil {
		r.logger.Error("failed to select active contexts", "error", err)
		return nil, err
	}
	return contexts, nil
}

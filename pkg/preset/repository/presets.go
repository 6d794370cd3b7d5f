package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nekroforge/preset-switch/pkg/preset"
)

const insertPresetQuery = `
INSERT INTO presets (id, name, prompt_text, description, isolation_mode, allow_list, deny_list, trigger_rules, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`

func (r *Repository) InsertPreset(ctx context.Context, p *preset.Preset) (*preset.Preset, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.IsolationMode == "" {
		p.IsolationMode = preset.IsolationNone
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	allowJSON, denyJSON, rulesJSON, err := marshalLists(p)
	if err != nil {
		r.logger.Error("failed to marshal preset lists", "error", err, "name", p.Name)
		return nil, err
	}

	_, err = r.db.ExecContext(ctx, insertPresetQuery,
		p.ID, p.Name, p.PromptText, p.Description, string(p.IsolationMode),
		allowJSON, denyJSON, rulesJSON,
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, preset.ErrDuplicateName
		}
		r.logger.Error("failed to insert preset", "error", err, "name", p.Name)
		return nil, err
	}

	return p, nil
}

const selectPresetByNameQuery = `
SELECT id, name, prompt_text, description, isolation_mode, allow_list, deny_list, trigger_rules, created_at, updated_at
FROM presets WHERE name = ?;
`

func (r *Repository) GetPresetByName(ctx context.Context, name string) (*preset.Preset, error) {
	var row dbPreset
	err := r.db.GetContext(ctx, &row, selectPresetByNameQuery, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, preset.ErrNotFound
		}
		r.logger.Error("failed to select preset", "error", err, "name", name)
		return nil, err
	}
	return r.toModel(row)
}

const selectPresetByIDQuery = `
SELECT id, name, prompt_text, description, isolation_mode, allow_list, deny_list, trigger_rules, created_at, updated_at
FROM presets WHERE id = ?;
`

func (r *Repository) GetPresetByID(ctx context.Context, id string) (*preset.Preset, error) {
	var row dbPreset
	err := r.db.GetContext(ctx, &row, selectPresetByIDQuery, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, preset.ErrNotFound
		}
		r.logger.Error("failed to select preset", "error", err, "id", id)
		return nil, err
	}
	return r.toModel(row)
}

const selectPresetsQuery = `
SELECT id, name, prompt_text, description, isolation_mode, allow_list, deny_list, trigger_rules, created_at, updated_at
FROM presets ORDER BY seq ASC;
`

// ListPresets returns all presets in insertion order (the autoincrement
// seq column), which is also the order trigger evaluation walks them.
// created_at alone cannot carry that ordering: it is stored at second
// granularity, and bulk imports create many presets within one second.
func (r *Repository) ListPresets(ctx context.Context) ([]*preset.Preset, error) {
	var rows []dbPreset
	err := r.db.SelectContext(ctx, &rows, selectPresetsQuery)
	if err != nil {
		r.logger.Error("failed to select presets", "error", err)
		return nil, err
	}

	presets := make([]*preset.Preset, 0, len(rows))
	for _, row := range rows {
		p, err := r.toModel(row)
		if err != nil {
			return nil, err
		}
		presets = append(presets, p)
	}
	return presets, nil
}

const updatePresetQuery = `
UPDATE presets
SET name = ?, prompt_text = ?, description = ?, isolation_mode = ?, allow_list = ?, deny_list = ?, trigger_rules = ?, updated_at = ?
WHERE id = ?;
`

func (r *Repository) UpdatePreset(ctx context.Context, p *preset.Preset) (*preset.Preset, error) {
	p.UpdatedAt = time.Now().UTC()

	allowJSON, denyJSON, rulesJSON, err := marshalLists(p)
	if err != nil {
		r.logger.Error("failed to marshal preset lists", "error", err, "name", p.Name)
		return nil, err
	}

	result, err := r.db.ExecContext(ctx, updatePresetQuery,
		p.Name, p.PromptText, p.Description, string(p.IsolationMode),
		allowJSON, denyJSON, rulesJSON,
		p.UpdatedAt.Format(time.RFC3339), p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, preset.ErrDuplicateName
		}
		r.logger.Error("failed to update preset", "error", err, "id", p.ID)
		return nil, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, preset.ErrNotFound
	}
	return p, nil
}

const deletePresetQuery = `DELETE FROM presets WHERE name = ?;`

// DeletePreset removes a preset by name. The active_presets foreign key
// cascades, so any context the preset was active in loses its pointer.
func (r *Repository) DeletePreset(ctx context.Context, name string) error {
	result, err := r.db.ExecContext(ctx, deletePresetQuery, name)
	if err != nil {
		r.logger.Error("failed to delete preset", "error", err, "name", name)
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return preset.ErrNotFound
	}
	return nil
}

const countPresetsQuery = `SELECT COUNT(*) FROM presets;`

func (r *Repository) CountPresets(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, countPresetsQuery); err != nil {
		return 0, err
	}
	return count, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

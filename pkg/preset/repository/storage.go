package repository

import (
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"

	"github.com/nekroforge/preset-switch/pkg/preset"
)

type Repository struct {
	logger *log.Logger
	db     *sqlx.DB
}

func NewRepository(logger *log.Logger, db *sqlx.DB) *Repository {
	return &Repository{
		logger: logger,
		db:     db,
	}
}

type dbPreset struct {
	ID            string `db:"id"`
	Name          string `db:"name"`
	PromptText    string `db:"prompt_text"`
	Description   string `db:"description"`
	IsolationMode string `db:"isolation_mode"`
	AllowList     string `db:"allow_list"`    // JSON string from DB
	DenyList      string `db:"deny_list"`     // JSON string from DB
	TriggerRules  string `db:"trigger_rules"` // JSON string from DB
	CreatedAt     string `db:"created_at"`
	UpdatedAt     string `db:"updated_at"`
}

func (r *Repository) toModel(row dbPreset) (*preset.Preset, error) {
	p := &preset.Preset{
		ID:            row.ID,
		Name:          row.Name,
		PromptText:    row.PromptText,
		Description:   row.Description,
		IsolationMode: preset.IsolationMode(row.IsolationMode),
	}

	if row.AllowList != "" {
		if err := json.Unmarshal([]byte(row.AllowList), &p.AllowList); err != nil {
			r.logger.Error("failed to unmarshal allow list for preset", "error", err, "id", row.ID)
			return nil, err
		}
	}
	if row.DenyList != "" {
		if err := json.Unmarshal([]byte(row.DenyList), &p.DenyList); err != nil {
			r.logger.Error("failed to unmarshal deny list for preset", "error", err, "id", row.ID)
			return nil, err
		}
	}
	if row.TriggerRules != "" {
		if err := json.Unmarshal([]byte(row.TriggerRules), &p.TriggerRules); err != nil {
			r.logger.Error("failed to unmarshal trigger rules for preset", "error", err, "id", row.ID)
			return nil, err
		}
	}

	createdAt, err := time.Parse(time.RFC3339, row.CreatedAt)
	if err == nil {
		p.CreatedAt = createdAt
	}
	updatedAt, err := time.Parse(time.RFC3339, row.UpdatedAt)
	if err == nil {
		p.UpdatedAt = updatedAt
	}

	return p, nil
}

func marshalLists(p *preset.Preset) (allowJSON, denyJSON, rulesJSON string, err error) {
	allow := p.AllowList
	if allow == nil {
		allow = []string{}
	}
	deny := p.DenyList
	if deny == nil {
		deny = []string{}
	}
	rules := p.TriggerRules
	if rules == nil {
		rules = []preset.TriggerRule{}
	}

	allowBytes, err := json.Marshal(allow)
	if err != nil {
		return "", "", "", err
	}
	denyBytes, err := json.Marshal(deny)
	if err != nil {
		return "", "", "", err
	}
	rulesBytes, err := json.Marshal(rules)
	if err != nil {
		return "", "", "", err
	}
	return string(allowBytes), string(denyBytes), string(rulesBytes), nil
}

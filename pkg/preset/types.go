package preset

import (
	"errors"
	"fmt"
	"time"
)

// IsolationMode restricts which chat contexts may activate a preset.
type IsolationMode string

const (
	IsolationNone      IsolationMode = "none"
	IsolationWhitelist IsolationMode = "whitelist"
	IsolationBlacklist IsolationMode = "blacklist"
)

// MatchMode selects the trigger-word comparison semantics.
type MatchMode string

const (
	MatchContains MatchMode = "contains"
	MatchExact    MatchMode = "exact"
)

var (
	ErrDuplicateName      = errors.New("preset name already exists")
	ErrNotFound           = errors.New("preset not found")
	ErrIsolationViolation = errors.New("preset isolation rules forbid activation in this context")
)

// TriggerRule is a single trigger word with its side-effect flags.
// Rules are evaluated in stored order; the first match wins.
type TriggerRule struct {
	Pattern      string    `json:"pattern"`
	MatchMode    MatchMode `json:"match_mode"`
	LogToHistory bool      `json:"log_to_history"`
	InvokeLLM    bool      `json:"invoke_llm"`
}

// Preset is a named persona configuration: identity prompt, isolation
// policy and trigger rules.
type Preset struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	PromptText    string        `json:"prompt_text"`
	Description   string        `json:"description"`
	IsolationMode IsolationMode `json:"isolation_mode"`
	AllowList     []string      `json:"allow_list"`
	DenyList      []string      `json:"deny_list"`
	TriggerRules  []TriggerRule `json:"trigger_rules"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Patch carries partial updates for a preset. Nil fields are left unchanged.
type Patch struct {
	Name          *string        `json:"name,omitempty"`
	PromptText    *string        `json:"prompt_text,omitempty"`
	Description   *string        `json:"description,omitempty"`
	IsolationMode *IsolationMode `json:"isolation_mode,omitempty"`
	AllowList     *[]string      `json:"allow_list,omitempty"`
	DenyList      *[]string      `json:"deny_list,omitempty"`
	TriggerRules  *[]TriggerRule `json:"trigger_rules,omitempty"`
}

// Decision is the outcome of a successful trigger match. The caller decides
// what to do with the LogToHistory/InvokeLLM flags; the matcher itself never
// writes history or calls the LLM.
type Decision struct {
	ContextID    string    `json:"context_id"`
	PresetID     string    `json:"preset_id"`
	PresetName   string    `json:"preset_name"`
	Pattern      string    `json:"pattern"`
	MatchMode    MatchMode `json:"match_mode"`
	LogToHistory bool      `json:"log_to_history"`
	InvokeLLM    bool      `json:"invoke_llm"`
	MatchedAt    time.Time `json:"matched_at"`
}

// CanActivate reports whether the preset's isolation rules allow activation
// in the given context.
func (p *Preset) CanActivate(contextID string) bool {
	switch p.IsolationMode {
	case IsolationWhitelist:
		for _, id := range p.AllowList {
			if id == contextID {
				return true
			}
		}
		return false
	case IsolationBlacklist:
		for _, id := range p.DenyList {
			if id == contextID {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Validate checks the fields that cannot be enforced by the schema.
func (p *Preset) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("preset name must not be empty")
	}
	switch p.IsolationMode {
	case IsolationNone, IsolationWhitelist, IsolationBlacklist, "":
	default:
		return fmt.Errorf("unknown isolation mode %q", p.IsolationMode)
	}
	for i, rule := range p.TriggerRules {
		if rule.Pattern == "" {
			return fmt.Errorf("trigger rule %d has empty pattern", i)
		}
		switch rule.MatchMode {
		case MatchContains, MatchExact:
		default:
			return fmt.Errorf("trigger rule %d has unknown match mode %q", i, rule.MatchMode)
		}
	}
	return nil
}

package preset

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Matcher evaluates inbound messages against trigger rules and switches the
// active preset on a match. Matching is case-insensitive: both the pattern
// and the message are lowercased before comparison.
type Matcher struct {
	logger  *log.Logger
	presets *Service
}

func NewMatcher(logger *log.Logger, presets *Service) *Matcher {
	return &Matcher{
		logger:  logger,
		presets: presets,
	}
}

// Evaluate walks the presets eligible for the context in creation order and
// each preset's trigger rules in stored order. The first rule that matches
// wins: the preset becomes active in the context and the returned Decision
// carries the rule's side-effect flags. A nil Decision with a nil error
// means no rule matched.
func (m *Matcher) Evaluate(ctx context.Context, contextID, messageText string) (*Decision, error) {
	eligible, err := m.presets.EligiblePresets(ctx, contextID)
	if err != nil {
		return nil, err
	}

	messageLower := strings.ToLower(messageText)

	for _, p := range eligible {
		for _, rule := range p.TriggerRules {
			if !matches(rule, messageLower) {
				continue
			}

			m.logger.Info("Trigger word matched",
				"pattern", rule.Pattern, "preset", p.Name, "context_id", contextID)

			if _, err := m.presets.SetActive(ctx, contextID, p.Name); err != nil {
				// Eligibility was already checked, so this is a real
				// storage failure rather than an isolation violation.
				return nil, err
			}

			return &Decision{
				ContextID:    contextID,
				PresetID:     p.ID,
				PresetName:   p.Name,
				Pattern:      rule.Pattern,
				MatchMode:    rule.MatchMode,
				LogToHistory: rule.LogToHistory,
				InvokeLLM:    rule.InvokeLLM,
				MatchedAt:    time.Now().UTC(),
			}, nil
		}
	}

	return nil, nil
}

func matches(rule TriggerRule, messageLower string) bool {
	patternLower := strings.ToLower(rule.Pattern)
	switch rule.MatchMode {
	case MatchContains:
		return strings.Contains(messageLower, patternLower)
	case MatchExact:
		return messageLower == patternLower
	default:
		return false
	}
}

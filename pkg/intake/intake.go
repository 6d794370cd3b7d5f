// Package intake wires the trigger matcher to the message bus. Chat
// adapters publish inbound messages on the bus; the service evaluates each
// one and publishes the resulting switch decision for the host to act on.
// History logging and LLM invocation stay on the host side.
package intake

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"

	"github.com/nekroforge/preset-switch/pkg/helpers"
	"github.com/nekroforge/preset-switch/pkg/preset"
	"github.com/nekroforge/preset-switch/pkg/tasks"
)

const (
	ChatMessageSubject   = "chat.message.inbound"
	ContextResetSubject  = "chat.context.reset"
	HistoryAppendSubject = "chat.history.append"
	AgentInvokeSubject   = "agent.invoke"
	PresetSwitchSubject  = "preset.switched"
)

// ChatMessageEvent is what adapters (e.g. OneBot v11 bridges) publish for
// every inbound chat message.
type ChatMessageEvent struct {
	ContextID   string `json:"context_id"`
	MessageText string `json:"message_text"`
	Adapter     string `json:"adapter,omitempty"`
}

// ContextResetEvent asks the service to forget per-context state.
type ContextResetEvent struct {
	ContextID string `json:"context_id"`
}

// HistoryAppendEvent records a matched trigger in the chat history.
type HistoryAppendEvent struct {
	ContextID string `json:"context_id"`
	PresetID  string `json:"preset_id"`
	Text      string `json:"text"`
}

// AgentInvokeEvent asks the host to run an LLM turn under the new preset.
type AgentInvokeEvent struct {
	ContextID  string `json:"context_id"`
	PresetID   string `json:"preset_id"`
	PromptText string `json:"prompt_text"`
}

type Service struct {
	logger  *log.Logger
	nc      *nats.Conn
	matcher *preset.Matcher
	presets *preset.Service
	tasks   *tasks.Service

	subs []*nats.Subscription
}

func NewService(
	logger *log.Logger,
	nc *nats.Conn,
	matcher *preset.Matcher,
	presets *preset.Service,
	taskService *tasks.Service,
) *Service {
	return &Service{
		logger:  logger,
		nc:      nc,
		matcher: matcher,
		presets: presets,
		tasks:   taskService,
	}
}

// Start subscribes to the inbound subjects. Subscriptions stay live until
// Stop is called; the passed context bounds the work done per message.
func (s *Service) Start(ctx context.Context) error {
	msgSub, err := helpers.NatsSubscribeJSON(s.nc, ChatMessageSubject, func(event ChatMessageEvent, decodeErr error) {
		if decodeErr != nil {
			s.logger.Error("Failed to decode chat message event", "error", decodeErr)
			return
		}
		s.handleChatMessage(ctx, event)
	})
	if err != nil {
		return err
	}
	s.subs = append(s.subs, msgSub)

	resetSub, err := helpers.NatsSubscribeJSON(s.nc, ContextResetSubject, func(event ContextResetEvent, decodeErr error) {
		if decodeErr != nil {
			s.logger.Error("Failed to decode context reset event", "error", decodeErr)
			return
		}
		s.handleContextReset(ctx, event)
	})
	if err != nil {
		return err
	}
	s.subs = append(s.subs, resetSub)

	s.logger.Info("Intake subscriptions started",
		"subjects", []string{ChatMessageSubject, ContextResetSubject})
	return nil
}

func (s *Service) Stop() {
	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil {
			s.logger.Error("Failed to unsubscribe", "subject", sub.Subject, "error", err)
		}
	}
	s.subs = nil
}

func (s *Service) handleChatMessage(ctx context.Context, event ChatMessageEvent) {
	decision, err := s.matcher.Evaluate(ctx, event.ContextID, event.MessageText)
	if err != nil {
		s.logger.Error("Trigger evaluation failed", "error", err, "context_id", event.ContextID)
		return
	}
	if decision == nil {
		return
	}

	if decision.LogToHistory {
		if err := helpers.NatsPublish(s.nc, HistoryAppendSubject, HistoryAppendEvent{
			ContextID: decision.ContextID,
			PresetID:  decision.PresetID,
			Text:      event.MessageText,
		}); err != nil {
			s.logger.Error("Failed to publish history append", "error", err, "context_id", decision.ContextID)
		}
	}

	if decision.InvokeLLM {
		promptText := ""
		if p, err := s.presets.Get(ctx, decision.PresetName); err != nil {
			s.logger.Error("Failed to load preset prompt for invoke, publishing without it",
				"error", err, "preset", decision.PresetName, "context_id", decision.ContextID)
		} else {
			promptText = p.PromptText
		}
		if err := helpers.NatsPublish(s.nc, AgentInvokeSubject, AgentInvokeEvent{
			ContextID:  decision.ContextID,
			PresetID:   decision.PresetID,
			PromptText: promptText,
		}); err != nil {
			s.logger.Error("Failed to publish agent invoke", "error", err, "context_id", decision.ContextID)
		}
	}

	if err := helpers.NatsPublish(s.nc, PresetSwitchSubject, decision); err != nil {
		s.logger.Error("Failed to publish switch decision", "error", err, "context_id", decision.ContextID)
	}
}

func (s *Service) handleContextReset(ctx context.Context, event ContextResetEvent) {
	if err := s.tasks.Clear(ctx, event.ContextID); err != nil {
		s.logger.Error("Failed to clear task on context reset", "error", err, "context_id", event.ContextID)
	}
	if err := s.presets.ClearActive(ctx, event.ContextID); err != nil {
		s.logger.Error("Failed to clear active preset on context reset", "error", err, "context_id", event.ContextID)
	}
	s.logger.Info("Context reset", "context_id", event.ContextID)
}

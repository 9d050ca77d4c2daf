package services

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxChatMessage = 2000

	chatFallback    = "I'm experiencing some technical difficulties right now. Please try again in a moment, or feel free to browse our product catalog directly."
	chatEmptyAnswer = "I'm here to help! Could you please rephrase your question?"
)

// Responder produces an assistant reply for one shopper message.
type Responder interface {
	Respond(ctx context.Context, message string) (string, error)
}

// ChatService fronts the shopping assistant. Upstream failures degrade to a
// canned reply instead of an error.
type ChatService struct {
	responder Responder
	timeout   time.Duration
}

func NewChatService(responder Responder, timeout time.Duration) *ChatService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ChatService{responder: responder, timeout: timeout}
}

func (s *ChatService) Reply(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", validationf("message is required")
	}
	if utf8.RuneCountInString(message) > maxChatMessage {
		return "", validationf("message must be at most %d characters", maxChatMessage)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reply, err := s.responder.Respond(ctx, message)
	if err != nil {
		slog.Error("Assistant request failed", "err", err)
		return chatFallback, nil
	}
	if strings.TrimSpace(reply) == "" {
		return chatEmptyAnswer, nil
	}
	return reply, nil
}

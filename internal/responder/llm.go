package responder

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"agency-chat/internal/domain"
	"agency-chat/internal/llm"
)

// TranscriptLoader lee el transcript ordenado de una sesion.
type TranscriptLoader interface {
	Load(ctx context.Context, sessionID string) ([]domain.ChatMessage, error)
}

const maxContextMessages = 10

// replyBudget deja margen bajo MaxDelay para persistir la respuesta.
const replyBudget = MaxDelay - 250*time.Millisecond

const systemPrompt = `You are the website assistant of a digital services agency (web design, development, marketing).
Answer the visitor briefly and politely in the visitor's language. Do not invent prices or deadlines;
offer to connect the visitor with a specialist for quotes.`

// LLMResponder respeta el mismo contrato que CannedResponder pero genera la respuesta con un modelo
// a partir de los ultimos mensajes. Ante cualquier error usa una respuesta fija.
type LLMResponder struct {
	scheduler
	logger     *zap.Logger
	appender   Appender
	transcript TranscriptLoader
	client     llm.Client
	policy     ResponsePolicy
}

func NewLLMResponder(logger *zap.Logger, appender Appender, transcript TranscriptLoader, client llm.Client, policy ResponsePolicy) *LLMResponder {
	if policy == nil {
		policy = NewRandomPolicy()
	}
	return &LLMResponder{
		scheduler:  newScheduler(),
		logger:     logger,
		appender:   appender,
		transcript: transcript,
		client:     client,
		policy:     policy,
	}
}

// Schedule consulta el modelo de inmediato y publica al cumplirse el retraso elegido. Si el modelo
// no responde dentro de replyBudget se publica una respuesta fija: nunca despues de MaxDelay.
func (r *LLMResponder) Schedule(sessionID string) {
	delay := r.policy.PickDelay()
	r.run(0, func(ctx context.Context) {
		start := r.now()
		body, source := r.replyWithin(ctx, sessionID, max(delay, replyBudget))
		if wait := delay - r.now().Sub(start); wait > 0 {
			r.sleep(wait)
		}
		if _, err := r.appender.Append(ctx, sessionID, body, domain.SenderAI, map[string]any{"source": source}); err != nil {
			r.logger.Warn("llm reply append failed", zap.Error(err), zap.String("session_id", sessionID))
		}
	})
}

func (r *LLMResponder) replyWithin(ctx context.Context, sessionID string, budget time.Duration) (string, string) {
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	return r.reply(ctx, sessionID)
}

func (r *LLMResponder) reply(ctx context.Context, sessionID string) (string, string) {
	msgs, err := r.transcript.Load(ctx, sessionID)
	if err != nil {
		r.logger.Warn("load transcript for llm failed", zap.Error(err), zap.String("session_id", sessionID))
		return r.policy.PickReply(), "canned"
	}
	out, err := r.client.Complete(ctx, BuildPrompt(msgs))
	if err != nil {
		r.logger.Warn("llm completion failed", zap.Error(err), zap.String("session_id", sessionID))
		return r.policy.PickReply(), "canned"
	}
	if out = cleanReply(out); out == "" {
		r.logger.Warn("llm returned empty reply", zap.String("session_id", sessionID))
		return r.policy.PickReply(), "canned"
	}
	return out, "llm"
}

// BuildPrompt arma la conversacion con el prompt de sistema y los ultimos mensajes del transcript.
func BuildPrompt(msgs []domain.ChatMessage) []llm.Message {
	if len(msgs) > maxContextMessages {
		msgs = msgs[len(msgs)-maxContextMessages:]
	}
	out := make([]llm.Message, 0, len(msgs)+1)
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	for _, m := range msgs {
		body := strings.TrimSpace(m.Body)
		if body == "" {
			continue
		}
		role := llm.RoleAssistant
		if m.Sender == domain.SenderUser {
			role = llm.RoleUser
		}
		out = append(out, llm.Message{Role: role, Content: body})
	}
	return out
}

package responder

import (
	"context"

	"go.uber.org/zap"

	"agency-chat/internal/domain"
)

// CannedResponder agrega, tras el retraso de la politica, una respuesta fija con remitente ai.
// Una vez agendada la respuesta no se cancela.
type CannedResponder struct {
	scheduler
	logger   *zap.Logger
	appender Appender
	policy   ResponsePolicy
}

func NewCannedResponder(logger *zap.Logger, appender Appender, policy ResponsePolicy) *CannedResponder {
	if policy == nil {
		policy = NewRandomPolicy()
	}
	return &CannedResponder{
		scheduler: newScheduler(),
		logger:    logger,
		appender:  appender,
		policy:    policy,
	}
}

func (r *CannedResponder) Schedule(sessionID string) {
	delay := r.policy.PickDelay()
	reply := r.policy.PickReply()
	r.run(delay, func(ctx context.Context) {
		if _, err := r.appender.Append(ctx, sessionID, reply, domain.SenderAI, map[string]any{"source": "canned"}); err != nil {
			r.logger.Warn("canned reply append failed", zap.Error(err), zap.String("session_id", sessionID))
		}
	})
}

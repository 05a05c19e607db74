// Package responder produce las respuestas automaticas a los mensajes del visitante.
// CannedResponder simula un agente con respuestas fijas; LLMResponder consulta un modelo
// y cae a las respuestas fijas si falla.
package responder

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"agency-chat/internal/domain"
)

// Appender persiste un mensaje en el transcript de una sesion.
type Appender interface {
	Append(ctx context.Context, sessionID, body string, sender domain.Sender, metadata map[string]any) (domain.ChatMessage, error)
}

// ResponsePolicy concentra la aleatoriedad para que los tests usen valores fijos.
type ResponsePolicy interface {
	PickDelay() time.Duration
	PickReply() string
}

const (
	MinDelay = 1000 * time.Millisecond
	MaxDelay = 3000 * time.Millisecond
)

var CannedReplies = []string{
	"Thanks for reaching out! One of our specialists will get back to you shortly.",
	"Great question! We build websites, mobile apps and digital marketing campaigns. Would you like to schedule a free consultation?",
	"We'd love to hear more about your project. Could you share a few details about what you have in mind?",
	"Our pricing depends on the scope of each project. A specialist can prepare a custom quote for you.",
	"You can also book a call with our team from the Contact page. Is there anything else I can help you with?",
}

// RandomPolicy elige el retraso uniforme en [MinDelay, MaxDelay) y la respuesta uniforme entre CannedReplies.
type RandomPolicy struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandomPolicy() *RandomPolicy {
	return &RandomPolicy{rnd: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

func (p *RandomPolicy) PickDelay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return MinDelay + time.Duration(p.rnd.Int64N(int64(MaxDelay-MinDelay)))
}

func (p *RandomPolicy) PickReply() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return CannedReplies[p.rnd.IntN(len(CannedReplies))]
}

// scheduler corre cada respuesta en su propia goroutine, desligada del request que la origino.
type scheduler struct {
	wg      sync.WaitGroup
	sleep   func(time.Duration)
	now     func() time.Time
	timeout time.Duration
}

func newScheduler() scheduler {
	return scheduler{sleep: time.Sleep, now: time.Now, timeout: 30 * time.Second}
}

func (s *scheduler) run(delay time.Duration, fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sleep(delay)
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		fn(ctx)
	}()
}

// Wait bloquea hasta que terminen las respuestas ya agendadas.
func (s *scheduler) Wait() {
	s.wg.Wait()
}

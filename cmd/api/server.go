package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// serve atiende en ln hasta que ctx se cancela. Vuelve recien cuando Shutdown drena los
// requests en curso y terminaron las respuestas que esos requests agendaron.
func serve(ctx context.Context, logger *zap.Logger, server *http.Server, ln net.Listener, replies replyScheduler) error {
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	// Serve devuelve apenas empieza Shutdown; los handlers todavia pueden agendar respuestas.
	<-drained
	replies.Wait()
	return nil
}

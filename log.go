package rconn

import (
	"context"
	"fmt"
	"log/slog"
)

// LevelTrace sits below slog's built-in Debug level, for the
// byte-level write()/read()/decode() lines that are too chatty even
// for DEBUG.
const LevelTrace = slog.Level(-8)

func (h *Handler) logPrefix() string {
	if p := h.cachedLogPrefix.Load(); p != nil {
		return *p
	}
	transport := h.cs.getTransport()
	var prefix string
	if transport != nil {
		prefix = transport.RemoteAddr()
	} else {
		prefix = "not connected"
	}
	h.cachedLogPrefix.Store(&prefix)
	return prefix
}

func (h *Handler) tracef(msg string, args ...any) {
	if !h.logger.Enabled(context.Background(), LevelTrace) {
		return
	}
	h.logger.Log(context.Background(), LevelTrace, h.logPrefix()+" "+fmt.Sprintf(msg, args...))
}

func (h *Handler) debugf(msg string, args ...any) {
	h.logger.Debug(h.logPrefix() + " " + fmt.Sprintf(msg, args...))
}

// Package logx binds coursegen identifiers onto pslog loggers.
package logx

import (
	"context"

	"pkt.systems/pslog"
)

type contextKey int

const (
	tabKey contextKey = iota
	userKey
)

// WithTab annotates the context logger with the tab name if present.
func WithTab(ctx context.Context, tab string) pslog.Logger {
	log := pslog.Ctx(ctx)
	if tab == "" {
		return log
	}
	if current, ok := ctx.Value(tabKey).(string); ok && current == tab {
		return log
	}
	return log.With("tab", tab)
}

// WithChat annotates log with the server chat id when available.
func WithChat(log pslog.Logger, chatID string) pslog.Logger {
	if chatID != "" {
		log = log.With("chat_id", chatID)
	}
	return log
}

// WithUser annotates log with the user id when available.
func WithUser(log pslog.Logger, userID string) pslog.Logger {
	if userID != "" {
		log = log.With("user", userID)
	}
	return log
}

// ContextWithTab attaches a tab-annotated logger and the tab marker used for
// de-duplication.
func ContextWithTab(ctx context.Context, tab string) context.Context {
	if ctx == nil || tab == "" {
		return ctx
	}
	log := WithTab(ctx, tab)
	ctx = pslog.ContextWithLogger(ctx, log)
	return context.WithValue(ctx, tabKey, tab)
}

// ContextWithUser attaches a user-annotated logger once per context.
func ContextWithUser(ctx context.Context, userID string) context.Context {
	if ctx == nil || userID == "" {
		return ctx
	}
	if current, ok := ctx.Value(userKey).(string); ok && current == userID {
		return ctx
	}
	ctx = pslog.ContextWithLogger(ctx, WithUser(pslog.Ctx(ctx), userID))
	return context.WithValue(ctx, userKey, userID)
}

package messaging

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSender logs outbound messages instead of delivering them. Used in
// development when no gateway credentials are configured.
type LogSender struct {
	logger zerolog.Logger
}

func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, to, body string) bool {
	s.logger.Info().Str("to", to).Str("body", body).Msg("message delivery skipped (no gateway configured)")
	return true
}

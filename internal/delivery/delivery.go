package delivery

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// LogDelivery writes notifications to the log instead of a real channel.
// The production push/email gateway implements the same interface.
type LogDelivery struct {
	logger *zerolog.Logger
}

func NewLogDelivery(logger *zerolog.Logger) *LogDelivery {
	return &LogDelivery{logger: logger}
}

func (d *LogDelivery) Send(ctx context.Context, destination, subject, body string) error {
	if destination == "" {
		return errors.New("empty destination")
	}
	d.logger.Info().Str("to", destination).Str("subject", subject).Msg("notification delivered")
	return nil
}

package oneaccount

import "github.com/rs/zerolog"

// SendEmail lets applications plug in their own mail delivery.
type SendEmail interface {
	SendPasswordResetEmail(to string, resetLink string) error
}

// ConsoleEmailSender is a development implementation that logs emails
// instead of sending them.
type ConsoleEmailSender struct {
	Logger zerolog.Logger
}

func (c *ConsoleEmailSender) SendPasswordResetEmail(to string, resetLink string) error {
	c.Logger.Info().
		Str("to", to).
		Str("subject", "Reset your password").
		Str("link", resetLink).
		Msg("password reset email")
	return nil
}

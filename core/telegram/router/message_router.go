package router

import (
	"time"

	tg "tutorbot/core/telegram"
	"tutorbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// MessageOptions wires conversation handlers for plain message updates.
type MessageOptions struct {
	// Text receives every non-command text message.
	Text tele.HandlerFunc
	// Voice receives voice note messages.
	Voice tele.HandlerFunc
}

// MessageRoutes builds handlers for text and voice routing.
// Text is first matched against registered commands so typed commands keep
// working while a conversation is in progress.
func MessageRoutes(reg *tg.Registry, opts MessageOptions) []tg.Route {
	textHandler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				name := normalizeHandlerName(key)
				return handleWithSummary(c, name, start, "", "", func() error {
					return cmd.Handler(c)
				})
			}
		}

		if opts.Text != nil {
			return handleWithSummary(c, "dialog_text", start, "", "", func() error {
				return opts.Text(c)
			})
		}

		logHandlerSummary(c, "unknown_text", start, "skip", "ok", nil)
		return nil
	}

	voiceHandler := func(c tele.Context) error {
		start := time.Now()
		if opts.Voice != nil {
			return handleWithSummary(c, "dialog_voice", start, "", "", func() error {
				return opts.Voice(c)
			})
		}
		logHandlerSummary(c, "unexpected_voice", start, "skip", "ok", nil)
		return nil
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(textHandler)),
		},
		{
			Endpoint: tele.OnVoice,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(voiceHandler)),
		},
	}
}

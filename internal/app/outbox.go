package app

import (
	"bytes"
	"context"
	"fmt"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"tutorbot/core/telegram/keyboard"
)

// keyboardRowSize keeps suggested-reply keyboards to rows phones render
// without truncating labels.
const keyboardRowSize = 3

// telegramOutbox delivers controller output through the bot API. Sends are
// synchronous so the per-turn message order (confirmation before prompt,
// text before voice) is preserved.
type telegramOutbox struct {
	bot atomic.Pointer[tele.Bot]
}

// bind records the live bot instance; the bot only exists once the transport
// has started, so the startup hook calls this before updates flow.
func (o *telegramOutbox) bind(b *tele.Bot) {
	if b != nil {
		o.bot.Store(b)
	}
}

func (o *telegramOutbox) SendText(_ context.Context, userID int64, text string, suggestedReplies []string) error {
	b := o.bot.Load()
	if b == nil {
		return fmt.Errorf("outbox: bot not started")
	}
	markup := keyboard.RemoveKeyboard()
	if len(suggestedReplies) > 0 {
		markup = keyboard.ReplyButtons(keyboard.ChunkLabels(suggestedReplies, keyboardRowSize)...)
	}
	_, err := b.Send(tele.ChatID(userID), text, &tele.SendOptions{ReplyMarkup: markup})
	return err
}

func (o *telegramOutbox) SendVoice(_ context.Context, userID int64, audio []byte) error {
	b := o.bot.Load()
	if b == nil {
		return fmt.Errorf("outbox: bot not started")
	}
	voice := &tele.Voice{File: tele.FromReader(bytes.NewReader(audio))}
	_, err := b.Send(tele.ChatID(userID), voice)
	return err
}

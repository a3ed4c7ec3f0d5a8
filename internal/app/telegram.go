package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"tutorbot/core/logger"
	coretelegram "tutorbot/core/telegram"
	"tutorbot/core/telegram/commands"
	"tutorbot/core/telegram/format"
	tghelpers "tutorbot/core/telegram/helpers"
	"tutorbot/core/telegram/middleware"
	"tutorbot/core/telegram/router"
	tgsender "tutorbot/core/telegram/sender"
	"tutorbot/internal/dialog"
)

// maxVoiceBytes caps voice note downloads; Telegram voice notes are small,
// anything bigger is not a question.
const maxVoiceBytes = 20 << 20

const voiceFetchFailed = "😕 ভয়েস মেসেজটা পাওয়া যায়নি, আবার পাঠাও।\nCouldn't fetch that voice message, please resend."

const unsupportedInputHint = "এই ধরনের মেসেজ বুঝি না। লিখে বা ভয়েস মেসেজে প্রশ্ন করো।\nI can't read that kind of message. Ask with text or a voice note."

// App owns the running bot: the conversation controller and its Telegram
// wiring.
type App struct {
	cfg        *Config
	controller *dialog.Controller
	outbox     *telegramOutbox
	bot        *tele.Bot
	dispatcher *tgsender.Dispatcher
	startedAt  time.Time
}

// New initializes logging, builds provider clients, and assembles the
// conversation controller.
func New(cfg *Config) (*App, error) {
	if err := logger.InitLogger(cfg.CoreConfig()); err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}

	dcfg, err := cfg.Dialog.build()
	if err != nil {
		return nil, err
	}

	outbox := &telegramOutbox{}
	svc := buildServices(cfg)
	svc.Outbox = outbox

	controller, err := dialog.NewController(dcfg, svc)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:        cfg,
		controller: controller,
		outbox:     outbox,
		startedAt:  time.Now(),
	}, nil
}

// TelegramRunOptions wires commands, routes, and middleware for the bot runtime.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()

	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.cmdStart,
		Description: "Start a new conversation",
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     a.cmdCancel,
		Description: "Cancel the current conversation",
		Aliases:     []string{"reset"},
	})

	reg.RegisterCommand("/stats", commands.Command{
		Handler:     a.cmdStats,
		Description: "Bot statistics",
		AdminOnly:   true,
		Hidden:      true,
	})

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: a.cfg.Core.Telegram.AdminID,
	})
	routes = append(routes, router.MessageRoutes(reg, router.MessageOptions{
		Text:  a.handleText,
		Voice: a.handleVoice,
	})...)
	routes = append(routes, coretelegram.Route{
		Endpoint: tele.OnMedia,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(a.handleUnsupported)),
	})

	return coretelegram.RunOptions{
		Config:      a.cfg.CoreConfig(),
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg.CoreConfig(), nil),
		Routes:      routes,
		OnStart: func(_ context.Context, rt coretelegram.Runtime) error {
			a.bot = rt.Bot
			a.dispatcher = rt.Dispatcher
			a.outbox.bind(rt.Bot)
			return nil
		},
	}, nil
}

// dialogCtx builds the logging context for controller calls.
func (a *App) dialogCtx(c tele.Context) context.Context {
	return tghelpers.BuildContext(c)
}

// senderID extracts the user id; channel posts have no sender and are ignored.
func senderID(c tele.Context) (int64, bool) {
	u := c.Sender()
	if u == nil {
		return 0, false
	}
	return u.ID, true
}

func (a *App) cmdStart(c tele.Context) error {
	uid, ok := senderID(c)
	if !ok {
		return nil
	}
	return a.controller.HandleCommand(a.dialogCtx(c), uid, dialog.CommandStart)
}

func (a *App) cmdCancel(c tele.Context) error {
	uid, ok := senderID(c)
	if !ok {
		return nil
	}
	return a.controller.HandleCommand(a.dialogCtx(c), uid, dialog.CommandCancel)
}

func (a *App) cmdStats(c tele.Context) error {
	username := "bot"
	if a.bot != nil && a.bot.Me != nil {
		username = a.bot.Me.Username
	}
	name, err := format.EscapeMarkdown(username, format.MarkdownV1, "")
	if err != nil {
		name = "bot"
	}
	var sendErrs uint64
	if a.dispatcher != nil {
		sendErrs = a.dispatcher.ErrorCount()
	}
	msg := fmt.Sprintf("📊 *%s*\nactive sessions: %d\nuptime: %s\nsend errors: %d",
		name,
		a.controller.ActiveSessions(),
		time.Since(a.startedAt).Round(time.Second),
		sendErrs,
	)
	return tghelpers.SendMD(c, msg)
}

func (a *App) handleText(c tele.Context) error {
	uid, ok := senderID(c)
	if !ok {
		return nil
	}
	text := strings.TrimSpace(c.Text())
	if text == "" {
		return nil
	}
	return a.controller.HandleText(a.dialogCtx(c), uid, text)
}

func (a *App) handleVoice(c tele.Context) error {
	uid, ok := senderID(c)
	if !ok {
		return nil
	}
	ctx := a.dialogCtx(c)
	msg := c.Message()
	if msg == nil || msg.Voice == nil {
		return nil
	}

	if a.bot == nil {
		return fmt.Errorf("voice handler invoked before startup")
	}
	rc, err := a.bot.File(&msg.Voice.File)
	if err != nil {
		if serr := tghelpers.SendText(c, voiceFetchFailed); serr != nil {
			return serr
		}
		return fmt.Errorf("voice download failed: %w", err)
	}
	defer rc.Close()

	audio, err := io.ReadAll(io.LimitReader(rc, maxVoiceBytes))
	if err != nil {
		if serr := tghelpers.SendText(c, voiceFetchFailed); serr != nil {
			return serr
		}
		return fmt.Errorf("voice read failed: %w", err)
	}

	return a.controller.HandleVoice(ctx, uid, audio)
}

// handleUnsupported covers media kinds the bot has no use for (photos,
// stickers, documents). Voice notes never land here: their endpoint is
// registered explicitly.
func (a *App) handleUnsupported(c tele.Context) error {
	return tghelpers.SendText(c, unsupportedInputHint)
}

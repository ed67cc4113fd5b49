package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"ctifeed/internal/aggregate"
	"ctifeed/internal/domain"
)

const latestCount = 5

// Reader is the read side the bot answers from.
type Reader interface {
	Feeds(ctx context.Context) []aggregate.FeedItem
	GetArticle(ctx context.Context, link string) (aggregate.ArticleView, error)
}

// Briefings manages saved briefings. The Telegram user ID is the client ID.
type Briefings interface {
	List(ctx context.Context, clientID string) ([]domain.SavedBriefing, error)
	Save(ctx context.Context, b domain.SavedBriefing) (domain.SavedBriefing, error)
	Delete(ctx context.Context, clientID, link string) error
}

// Handler holds dependencies for the Telegram bot handlers.
type Handler struct {
	bot       *tgbot.Bot
	reader    Reader
	briefings Briefings
	log       logrus.FieldLogger
}

// NewHandler creates a new bot handler instance.
func NewHandler(token string, reader Reader, briefings Briefings, logger logrus.FieldLogger) (*Handler, error) {
	h := newHandler(reader, briefings, logger)

	b, err := tgbot.New(token, tgbot.WithDefaultHandler(h.defaultHandler))
	if err != nil {
		h.log.WithError(err).Error("Failed to create Telegram bot instance")
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	h.bot = b
	h.registerHandlers()

	h.log.Info("Telegram bot handler initialized")
	return h, nil
}

func newHandler(reader Reader, briefings Briefings, logger logrus.FieldLogger) *Handler {
	return &Handler{
		reader:    reader,
		briefings: briefings,
		log:       logger.WithField("component", "bot_handler"),
	}
}

// registerHandlers sets up the command handlers. Commands other than /start are
// routed by dispatch from the default handler.
func (h *Handler) registerHandlers() {
	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/start", tgbot.MatchTypeExact, h.startHandler)
	h.log.Info("Registered /start command handler")
}

// Start begins polling for updates from Telegram.
// This function blocks until the context is cancelled.
func (h *Handler) Start(ctx context.Context) {
	h.log.Info("Starting Telegram bot polling...")
	h.bot.Start(ctx)
	h.log.Info("Telegram bot polling stopped.")
}

// startHandler handles the /start command.
func (h *Handler) startHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.send(ctx, b, update.Message.Chat.ID, welcomeMessage)
}

// defaultHandler answers every other text message.
func (h *Handler) defaultHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	clientID := strconv.FormatInt(update.Message.From.ID, 10)
	reply, ok := h.dispatch(ctx, clientID, update.Message.Text)
	if !ok {
		h.log.WithField("user_id", clientID).Debug("Received unhandled message")
		return
	}
	h.send(ctx, b, update.Message.Chat.ID, reply)
}

// dispatch routes a message to its command. A bare link is an /article lookup.
// It reports false for text it does not handle.
func (h *Handler) dispatch(ctx context.Context, clientID, text string) (string, bool) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://") {
		return h.article(ctx, clientID, text), true
	}

	word, arg, _ := strings.Cut(text, " ")
	// Commands in groups arrive as /cmd@botname.
	word, _, _ = strings.Cut(word, "@")
	arg = strings.TrimSpace(arg)

	var fn func(ctx context.Context, clientID, arg string) string
	switch word {
	case "/start", "/help":
		return welcomeMessage, true
	case "/latest":
		fn = h.latest
	case "/article":
		fn = h.article
	case "/save":
		fn = h.save
	case "/saved":
		fn = h.saved
	case "/unsave":
		fn = h.unsave
	default:
		return "", false
	}
	h.log.WithFields(logrus.Fields{"user_id": clientID, "command": word}).Info("Received command")
	return fn(ctx, clientID, arg), true
}

func (h *Handler) send(ctx context.Context, b *tgbot.Bot, chatID int64, text string) {
	_, err := b.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: chatID, Text: text})
	if err != nil {
		h.log.WithError(err).WithField("chat_id", chatID).Error("Failed to send message")
	}
}

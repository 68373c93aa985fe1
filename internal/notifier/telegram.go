// Package notifier delivers tenant-facing reports over Telegram.
package notifier

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/gitsync/pkg/logger"
)

// Telegram posts formatted messages to the chat identified by the tenant.
type Telegram struct {
	api *tgbotapi.BotAPI
}

// NewTelegram creates the Telegram notifier. The send timeout is enforced
// by the underlying HTTP client.
func NewTelegram(token string, debug bool, timeout time.Duration) (*Telegram, error) {
	client := &http.Client{Timeout: timeout}
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	api.Debug = debug

	logger.Info().Str("username", api.Self.UserName).Msg("Telegram bot authorized")
	return &Telegram{api: api}, nil
}

// Send posts a plain message to the tenant's chat.
func (t *Telegram) Send(_ context.Context, chatID, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}
	msg := tgbotapi.NewMessage(id, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := t.api.Send(msg); err != nil {
		logger.Error().Err(err).Str("chat_id", chatID).Msg("Failed to send message")
		return err
	}
	return nil
}

// SendReport posts an activity report with the standard header: author,
// repository, branch and a wall clock.
func (t *Telegram) SendReport(ctx context.Context, chatID, author, repo, branch, body string) error {
	header := fmt.Sprintf("👤 <b>%s</b>\n📂 <b>%s</b> (<code>%s</code>)\n🕒 %s",
		escapeHTML(author), escapeHTML(repo), escapeHTML(branch),
		time.Now().Format("03:04 PM"))
	return t.Send(ctx, chatID, header+"\n\n"+sanitize(body))
}

// sanitize strips markup Telegram's HTML mode rejects.
func sanitize(text string) string {
	replacer := strings.NewReplacer(
		"```html", "",
		"```", "",
		"<br>", "\n",
		"<br/>", "\n",
		"<br />", "\n",
		"<ul>", "",
		"</ul>", "",
		"<ol>", "",
		"</ol>", "",
		"<li>", "• ",
		"</li>", "\n",
		"<p>", "",
		"</p>", "\n\n",
	)
	return replacer.Replace(text)
}

func escapeHTML(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	return replacer.Replace(s)
}

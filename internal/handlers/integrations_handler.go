package handlers

import (
	"fmt"
	"html"
	"log"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/gin-gonic/gin"
	"robolink/internal/authz"
	"robolink/internal/models"
	"robolink/internal/services"
)

const btnCheckProfile = "🔍 Проверить профиль"

type IntegrationsHandler struct {
	TG     services.TelegramSender
	Verify *services.VerificationService
	Authz  authz.Authorizer
}

func NewIntegrationsHandler(tg services.TelegramSender, verify *services.VerificationService, az authz.Authorizer) *IntegrationsHandler {
	return &IntegrationsHandler{TG: tg, Verify: verify, Authz: az}
}

func (h *IntegrationsHandler) Webhook(c *gin.Context) {
	if h.TG == nil {
		log.Printf("[TG:WEBHOOK] TelegramService == nil (webhook disabled or no token). Return 200.")
		c.Status(http.StatusOK)
		return
	}

	var up tgbotapi.Update
	if err := c.ShouldBindJSON(&up); err != nil || up.Message == nil || up.Message.From == nil || up.Message.Chat == nil {
		if err != nil {
			log.Printf("[TG:WEBHOOK] bind json error: %v", err)
		} else {
			log.Printf("[TG:WEBHOOK] update without message, skip")
		}
		c.Status(http.StatusOK)
		return
	}

	msg := up.Message
	chatID := msg.Chat.ID
	fromID := msg.From.ID
	log.Printf("[TG:WEBHOOK] incoming: chatID=%d fromID=%d text=%q", chatID, fromID, msg.Text)

	// Оператор может действовать за другого: ответом на его сообщение.
	targetID := fromID
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil &&
		h.Authz != nil && h.Authz.CanVerifyOthers(fromID) {
		targetID = msg.ReplyToMessage.From.ID
		log.Printf("[TG:WEBHOOK] operator mode: fromID=%d targetID=%d", fromID, targetID)
	}

	switch msg.Command() {
	case "start":
		_ = h.TG.SendReplyKeyboard(chatID,
			"Привет! Я привязываю Telegram к аккаунту Roblox.\n\nОтправьте <code>/verify &lt;ник&gt;</code>, чтобы получить код.",
			[][]string{{btnCheckProfile}},
		)

	case "verify":
		username := strings.TrimSpace(msg.CommandArguments())
		if username == "" {
			_ = h.TG.SendMessage(chatID, "Укажите ник: <code>/verify &lt;ник&gt;</code>")
			break
		}
		p, err := h.Verify.Start(c.Request.Context(), targetID, chatID, username)
		if err != nil {
			log.Printf("[TG:WEBHOOK] start failed: targetID=%d username=%q err=%v", targetID, username, err)
			_ = h.TG.SendMessage(chatID, h.errText(err))
			break
		}
		_ = h.TG.SendReplyKeyboard(chatID, codeInstructions(p.RobloxUsername, p.Code), [][]string{{btnCheckProfile}})

	case "done":
		h.complete(c, chatID, targetID)

	case "reverify":
		username := strings.TrimSpace(msg.CommandArguments())
		if username == "" {
			_ = h.TG.SendMessage(chatID, "Укажите новый ник: <code>/reverify &lt;ник&gt;</code>")
			break
		}
		p, err := h.Verify.Reverify(c.Request.Context(), targetID, chatID, username)
		if err != nil {
			log.Printf("[TG:WEBHOOK] reverify failed: targetID=%d username=%q err=%v", targetID, username, err)
			_ = h.TG.SendMessage(chatID, h.errText(err))
			break
		}
		text := codeInstructions(p.RobloxUsername, p.Code) +
			"\n\nТекущая привязка сохраняется, пока новый аккаунт не подтверждён."
		_ = h.TG.SendReplyKeyboard(chatID, text, [][]string{{btnCheckProfile}})

	case "cancel":
		if err := h.Verify.Cancel(c.Request.Context(), targetID); err != nil {
			_ = h.TG.SendMessage(chatID, h.errText(err))
			break
		}
		_ = h.TG.SendMessage(chatID, "Заявка отменена.")

	case "status":
		st, err := h.Verify.Status(c.Request.Context(), targetID)
		if err != nil {
			_ = h.TG.SendMessage(chatID, h.errText(err))
			break
		}
		_ = h.TG.SendMessage(chatID, statusText(st))

	default:
		if msg.Text == btnCheckProfile {
			h.complete(c, chatID, targetID)
			break
		}
		if msg.IsCommand() {
			_ = h.TG.SendMessage(chatID, "Не понял команду. Доступно: /verify, /done, /reverify, /cancel, /status.")
			break
		}
		// обычный текст в чате — не наш
		log.Printf("[TG:WEBHOOK] plain text ignored: chatID=%d", chatID)
	}

	c.Status(http.StatusOK)
}

// complete — общий путь для /done и кнопки.
func (h *IntegrationsHandler) complete(c *gin.Context, chatID, targetID int64) {
	v, err := h.Verify.Complete(c.Request.Context(), targetID)
	if err != nil {
		log.Printf("[TG:WEBHOOK] complete failed: targetID=%d err=%v", targetID, err)
		_ = h.TG.SendMessage(chatID, h.errText(err))
		return
	}
	display := html.EscapeString(v.RobloxUsername)
	if v.GroupRank != nil {
		display = "[" + *v.GroupRank + "] " + display
	}
	_ = h.TG.SendMessage(chatID, fmt.Sprintf(
		"✅ Готово! Аккаунт привязан: <b>%s</b>\nКод из описания профиля можно убрать.", display))
}

func codeInstructions(username, code string) string {
	return fmt.Sprintf(
		"Код для <b>%s</b>: <code>%s</code>\n\n"+
			"1. Откройте roblox.com → настройки профиля\n"+
			"2. Вставьте код в описание и сохраните\n"+
			"3. Нажмите «%s» или отправьте /done\n\n"+
			"Код действует, пока вы не отмените заявку или не начнёте новую.",
		html.EscapeString(username), code, btnCheckProfile)
}

func statusText(st *models.VerificationStatus) string {
	var b strings.Builder
	switch st.State {
	case services.StateUnverified:
		b.WriteString("Статус: не привязан.\nНачните с <code>/verify &lt;ник&gt;</code>.")
	case services.StatePending:
		b.WriteString("Статус: ожидает подтверждения кода.")
	case services.StateVerified:
		b.WriteString("Статус: привязан. ✅")
	case services.StateVerifiedPending:
		b.WriteString("Статус: привязан, идёт перепривязка.")
	}
	if st.Pending != nil {
		b.WriteString(fmt.Sprintf("\nЗаявка: <b>%s</b>, код <code>%s</code>",
			html.EscapeString(st.Pending.RobloxUsername), st.Pending.Code))
	}
	if st.Binding != nil {
		b.WriteString(fmt.Sprintf("\nRoblox: <b>%s</b> (id %d)",
			html.EscapeString(st.Binding.RobloxUsername), st.Binding.RobloxID))
	}
	return b.String()
}

// errText — сентинелы сервиса в человеческие ответы бота.
func (h *IntegrationsHandler) errText(err error) string {
	switch err {
	case services.ErrUsernameNotFound:
		return "Такой ник в Roblox не найден. Проверьте написание и попробуйте ещё раз."
	case services.ErrProviderUnavailable:
		return "Roblox сейчас недоступен. Попробуйте через минуту."
	case services.ErrCodeNotFound:
		return "Код в описании профиля не найден. Сохраните описание и нажмите кнопку ещё раз."
	case services.ErrAlreadyVerified:
		return "Вы уже привязаны. Сменить аккаунт: <code>/reverify &lt;ник&gt;</code>."
	case services.ErrNotVerified:
		return "Вы ещё не привязаны. Начните с <code>/verify &lt;ник&gt;</code>."
	case services.ErrNoPending:
		return "Нет активной заявки. Начните с <code>/verify &lt;ник&gt;</code>."
	default:
		return "Что-то пошло не так. Попробуйте позже."
	}
}

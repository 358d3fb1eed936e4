package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robolink/internal/authz"
	"robolink/internal/handlers"
	"robolink/internal/repositories"
	"robolink/internal/roblox"
	"robolink/internal/services"
)

// =============================================================================
// Фейковый отправитель сообщений в Telegram
// =============================================================================

type sentMessage struct {
	chatID   int64
	text     string
	keyboard bool
}

type fakeSender struct {
	sent []sentMessage
}

func (f *fakeSender) SendMessage(chatID int64, text string) error {
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func (f *fakeSender) SendReplyKeyboard(chatID int64, text string, keyboard [][]string) error {
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text, keyboard: true})
	return nil
}

func (f *fakeSender) last(t *testing.T) sentMessage {
	t.Helper()
	require.NotEmpty(t, f.sent, "бот ничего не отправил")
	return f.sent[len(f.sent)-1]
}

// =============================================================================
// Сборка апдейтов Bot API
// =============================================================================

// Команды Telegram распознаёт по entity bot_command, поэтому
// одного текста "/verify" в сообщении недостаточно.
func cmdUpdate(fromID, chatID int64, text string) tgbotapi.Update {
	length := len(text)
	if i := strings.Index(text, " "); i > 0 {
		length = i
	}
	u := textUpdate(fromID, chatID, text)
	u.Message.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}}
	return u
}

func textUpdate(fromID, chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: 1,
		Message: &tgbotapi.Message{
			MessageID: 1,
			From:      &tgbotapi.User{ID: fromID, FirstName: "Тест"},
			Chat:      &tgbotapi.Chat{ID: chatID, Type: "private"},
			Text:      text,
		},
	}
}

// Оператор отвечает на сообщение другого пользователя в группе.
func replyUpdate(fromID, chatID, replyFromID int64, text string) tgbotapi.Update {
	u := cmdUpdate(fromID, chatID, text)
	u.Message.Chat.Type = "supergroup"
	u.Message.ReplyToMessage = &tgbotapi.Message{
		MessageID: 2,
		From:      &tgbotapi.User{ID: replyFromID, FirstName: "Новичок"},
		Chat:      u.Message.Chat,
		Text:      "хочу привязаться",
	}
	return u
}

func newWebhookRouter(t *testing.T, operators ...int64) (*gin.Engine, *fakeRoblox, *fakeSender, *services.VerificationService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fake := newFakeRoblox()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	repo := repositories.NewMemVerificationRepository()
	svc := services.NewVerificationService(repo, roblox.NewClient(srv.URL, srv.URL, 0, 2*time.Second), nil, nil, 8)
	sender := &fakeSender{}
	h := handlers.NewIntegrationsHandler(sender, svc, authz.NewStaticOperators(operators))

	r := gin.New()
	r.POST("/integrations/telegram/webhook", h.Webhook)
	return r, fake, sender, svc
}

func postUpdate(t *testing.T, r *gin.Engine, u tgbotapi.Update) {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/integrations/telegram/webhook", u)
	// Вебхук всегда отвечает 200, иначе Telegram начнёт ретраить апдейт
	require.Equal(t, http.StatusOK, w.Code)
}

func postRaw(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, "/integrations/telegram/webhook", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// =============================================================================
// Служебные апдейты и мусор
// =============================================================================

func TestWebhookAlwaysOK(t *testing.T) {
	r, _, sender, _ := newWebhookRouter(t)

	w := postRaw(t, r, "{broken json")
	assert.Equal(t, http.StatusOK, w.Code)

	w = postRaw(t, r, "{}") // апдейт без message (например, callback_query)
	assert.Equal(t, http.StatusOK, w.Code)

	w = postRaw(t, r, `{"update_id":5,"message":{"message_id":1,"chat":{"id":10,"type":"private"},"text":"без from"}}`)
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Empty(t, sender.sent, "на служебный мусор отвечать не нужно")
}

func TestWebhookPlainTextIgnored(t *testing.T) {
	r, _, sender, _ := newWebhookRouter(t)

	postUpdate(t, r, textUpdate(1, 100, "привет, бот"))
	assert.Empty(t, sender.sent)
}

func TestWebhookUnknownCommand(t *testing.T) {
	r, _, sender, _ := newWebhookRouter(t)

	postUpdate(t, r, cmdUpdate(1, 100, "/frobnicate"))
	assert.Contains(t, sender.last(t).text, "Не понял команду")
}

// =============================================================================
// Основной сценарий: /start → /verify → /done
// =============================================================================

func TestWebhookStartGreeting(t *testing.T) {
	r, _, sender, _ := newWebhookRouter(t)

	postUpdate(t, r, cmdUpdate(1, 100, "/start"))

	msg := sender.last(t)
	assert.Equal(t, int64(100), msg.chatID)
	assert.True(t, msg.keyboard, "приветствие должно ставить reply-клавиатуру")
	assert.Contains(t, msg.text, "/verify")
}

func TestWebhookVerifyFlow(t *testing.T) {
	r, fake, sender, svc := newWebhookRouter(t)
	fake.addUser("Alice123", 42)

	postUpdate(t, r, cmdUpdate(1, 100, "/verify Alice123"))

	st, err := svc.Status(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, st.Pending, "после /verify должна появиться заявка")

	msg := sender.last(t)
	assert.True(t, msg.keyboard)
	assert.Contains(t, msg.text, "Alice123")
	assert.Contains(t, msg.text, st.Pending.Code, "в инструкции должен быть код")

	// Код ещё не в профиле
	postUpdate(t, r, cmdUpdate(1, 100, "/done"))
	assert.Contains(t, sender.last(t).text, "Код в описании профиля не найден")

	fake.setProfile(42, "Мой профиль. "+st.Pending.Code)
	postUpdate(t, r, cmdUpdate(1, 100, "/done"))
	assert.Contains(t, sender.last(t).text, "✅ Готово")
	assert.Contains(t, sender.last(t).text, "Alice123")

	st, err = svc.Status(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, services.StateVerified, st.State)
}

func TestWebhookVerifyNoArgument(t *testing.T) {
	r, _, sender, _ := newWebhookRouter(t)

	postUpdate(t, r, cmdUpdate(1, 100, "/verify"))
	assert.Contains(t, sender.last(t).text, "Укажите ник")
}

func TestWebhookVerifyUnknownUsername(t *testing.T) {
	r, _, sender, _ := newWebhookRouter(t)

	postUpdate(t, r, cmdUpdate(1, 100, "/verify GhostUser"))
	assert.Contains(t, sender.last(t).text, "не найден")
}

func TestWebhookDoneWithoutPending(t *testing.T) {
	r, _, sender, _ := newWebhookRouter(t)

	postUpdate(t, r, cmdUpdate(1, 100, "/done"))
	assert.Contains(t, sender.last(t).text, "Нет активной заявки")
}

func TestWebhookDoneRepeat(t *testing.T) {
	r, fake, sender, svc := newWebhookRouter(t)
	fake.addUser("Alice123", 42)

	postUpdate(t, r, cmdUpdate(1, 100, "/verify Alice123"))
	st, err := svc.Status(context.Background(), 1)
	require.NoError(t, err)
	fake.setProfile(42, st.Pending.Code)
	postUpdate(t, r, cmdUpdate(1, 100, "/done"))
	require.Contains(t, sender.last(t).text, "✅ Готово")

	// Telegram может доставить апдейт повторно
	postUpdate(t, r, cmdUpdate(1, 100, "/done"))
	assert.Contains(t, sender.last(t).text, "Вы уже привязаны")
}

// Кнопка дублирует /done, чтобы не заставлять людей печатать команду.
func TestWebhookCheckProfileButton(t *testing.T) {
	r, fake, sender, svc := newWebhookRouter(t)
	fake.addUser("Alice123", 42)

	postUpdate(t, r, cmdUpdate(1, 100, "/verify Alice123"))
	st, err := svc.Status(context.Background(), 1)
	require.NoError(t, err)
	fake.setProfile(42, st.Pending.Code)

	postUpdate(t, r, textUpdate(1, 100, "🔍 Проверить профиль"))
	assert.Contains(t, sender.last(t).text, "✅ Готово")
}

// =============================================================================
// /status, /cancel, /reverify
// =============================================================================

func TestWebhookStatusCommand(t *testing.T) {
	r, fake, sender, svc := newWebhookRouter(t)
	fake.addUser("Alice123", 42)

	postUpdate(t, r, cmdUpdate(1, 100, "/status"))
	assert.Contains(t, sender.last(t).text, "не привязан")

	postUpdate(t, r, cmdUpdate(1, 100, "/verify Alice123"))
	st, err := svc.Status(context.Background(), 1)
	require.NoError(t, err)

	postUpdate(t, r, cmdUpdate(1, 100, "/status"))
	msg := sender.last(t)
	assert.Contains(t, msg.text, "ожидает подтверждения кода")
	assert.Contains(t, msg.text, st.Pending.Code)
}

func TestWebhookCancelCommand(t *testing.T) {
	r, fake, sender, _ := newWebhookRouter(t)
	fake.addUser("Alice123", 42)

	postUpdate(t, r, cmdUpdate(1, 100, "/verify Alice123"))
	postUpdate(t, r, cmdUpdate(1, 100, "/cancel"))
	assert.Contains(t, sender.last(t).text, "Заявка отменена")

	postUpdate(t, r, cmdUpdate(1, 100, "/cancel"))
	assert.Contains(t, sender.last(t).text, "Нет активной заявки")
}

func TestWebhookReverifyKeepsBindingUntilConfirmed(t *testing.T) {
	r, fake, sender, svc := newWebhookRouter(t)
	fake.addUser("Alice123", 42)
	fake.addUser("Bob456", 17)

	postUpdate(t, r, cmdUpdate(1, 100, "/verify Alice123"))
	st, err := svc.Status(context.Background(), 1)
	require.NoError(t, err)
	fake.setProfile(42, st.Pending.Code)
	postUpdate(t, r, cmdUpdate(1, 100, "/done"))

	postUpdate(t, r, cmdUpdate(1, 100, "/reverify Bob456"))
	msg := sender.last(t)
	assert.Contains(t, msg.text, "Bob456")
	assert.Contains(t, msg.text, "Текущая привязка сохраняется")

	st, err = svc.Status(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, services.StateVerifiedPending, st.State)
	require.NotNil(t, st.Binding)
	assert.Equal(t, "Alice123", st.Binding.RobloxUsername)
}

// =============================================================================
// Операторский режим: команда реплаем на сообщение новичка
// =============================================================================

func TestWebhookOperatorReplyTargetsAuthor(t *testing.T) {
	r, fake, _, svc := newWebhookRouter(t, 900)
	fake.addUser("Alice123", 42)

	postUpdate(t, r, replyUpdate(900, 500, 5, "/verify Alice123"))

	st, err := svc.Status(context.Background(), 5)
	require.NoError(t, err)
	assert.NotNil(t, st.Pending, "заявка должна быть на автора исходного сообщения")

	st, err = svc.Status(context.Background(), 900)
	require.NoError(t, err)
	assert.Nil(t, st.Pending, "у самого оператора заявки быть не должно")
}

func TestWebhookReplyFromNonOperatorTargetsSelf(t *testing.T) {
	r, fake, _, svc := newWebhookRouter(t, 900)
	fake.addUser("Bob456", 17)

	// 7 не в списке операторов, реплай не меняет адресата
	postUpdate(t, r, replyUpdate(7, 500, 5, "/verify Bob456"))

	st, err := svc.Status(context.Background(), 7)
	require.NoError(t, err)
	assert.NotNil(t, st.Pending)

	st, err = svc.Status(context.Background(), 5)
	require.NoError(t, err)
	assert.Nil(t, st.Pending)
}

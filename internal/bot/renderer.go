package bot

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"kelime/internal/session"
	"kelime/pkg/models"
)

// Данные inline кнопок
const (
	cbAnswer    = "ans:"
	cbNext      = "next"
	cbHome      = "home"
	cbEnd       = "end"
	cbMode      = "mode:"
	cbChap      = "ch:"
	cbTest      = "test:"
	cbSkill     = "skill:"
	cbChallenge = "chl:"
	cbStory     = "story:"
	cbReset     = "reset:yes"
	cbChest     = "chest"
)

// Renderer отображает вопросы, результаты ответов и уведомления
type Renderer interface {
	PresentQuestion(ctx context.Context, q *session.Question) error
	PresentFeedback(ctx context.Context, out *session.FeedbackOutcome) error
	Notify(ctx context.Context, notices []models.Notice) error
}

// Sender часть Telegram API, которой пользуется бот
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Telegram рендерер для одного чата
type Telegram struct {
	sender Sender
	chatID int64
	logger *zap.Logger
}

// NewTelegram создает рендерер для чата владельца
func NewTelegram(sender Sender, chatID int64, logger *zap.Logger) *Telegram {
	return &Telegram{
		sender: sender,
		chatID: chatID,
		logger: logger,
	}
}

// PresentQuestion отправляет вопрос с вариантами ответа
func (t *Telegram) PresentQuestion(_ context.Context, q *session.Question) error {
	if q == nil || q.Word == nil {
		return t.Text("❌ Soru yüklenemedi!", nil)
	}

	if q.Kind == models.QuestionAudio && q.Word.AudioRef != "" {
		audio := tgbotapi.NewAudio(t.chatID, tgbotapi.FileURL(q.Word.AudioRef))
		if _, err := t.sender.Send(audio); err != nil {
			// вопрос все равно показываем, арабская форма выводится текстом
			t.logger.Warn("ошибка отправки аудио слова", zap.Int64("word_id", q.Word.ID), zap.Error(err))
			q = withKind(q, models.QuestionRecognition)
		}
	}

	keyboard := questionKeyboard(q)
	return t.Text(questionText(q), &keyboard)
}

// PresentFeedback показывает результат ответа и кнопку продолжения
func (t *Telegram) PresentFeedback(_ context.Context, out *session.FeedbackOutcome) error {
	var keyboard *tgbotapi.InlineKeyboardMarkup
	switch {
	case out.Redirect:
		k := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🏠 Ana Sayfaya Dön", cbHome),
		))
		keyboard = &k
	case !out.AutoAdvance:
		k := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Sonraki →", cbNext),
			tgbotapi.NewInlineKeyboardButtonData("⏹ Bitir", cbEnd),
		))
		keyboard = &k
	}
	return t.Text(feedbackText(out), keyboard)
}

// Notify отправляет уведомления одним сообщением
func (t *Telegram) Notify(_ context.Context, notices []models.Notice) error {
	if len(notices) == 0 {
		return nil
	}
	lines := make([]string, 0, len(notices))
	for _, n := range notices {
		lines = append(lines, html.EscapeString(n.Message))
	}
	return t.Text(strings.Join(lines, "\n"), nil)
}

// Text отправляет HTML сообщение, при ошибке разметки повторяет обычным текстом
func (t *Telegram) Text(text string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}

	if _, err := t.sender.Send(msg); err != nil {
		t.logger.Warn("ошибка отправки HTML сообщения, отправляем как обычный текст", zap.Error(err))

		plain := tgbotapi.NewMessage(t.chatID, html.UnescapeString(htmlTags.ReplaceAllString(text, "")))
		if keyboard != nil {
			plain.ReplyMarkup = *keyboard
		}
		if _, err := t.sender.Send(plain); err != nil {
			return fmt.Errorf("ошибка отправки сообщения: %w", err)
		}
	}
	return nil
}

// Answer убирает индикатор загрузки с нажатой кнопки
func (t *Telegram) Answer(callbackID string) {
	if _, err := t.sender.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		t.logger.Error("ошибка ответа на callback", zap.Error(err))
	}
}

var htmlTags = regexp.MustCompile(`<[^>]*>`)

func withKind(q *session.Question, kind models.QuestionKind) *session.Question {
	c := *q
	c.Kind = kind
	return &c
}

// questionText текст вопроса по его виду
func questionText(q *session.Question) string {
	var b strings.Builder
	w := q.Word
	arabic := html.EscapeString(w.ArabicForm)

	b.WriteString("<b>" + html.EscapeString(session.ModeTitle(q.Mode)) + "</b>")
	switch {
	case q.Total > 0 && q.Mode == models.ModeStory:
		fmt.Fprintf(&b, " · Kelime %d / %d", q.Index, q.Total)
	case q.Total > 0:
		fmt.Fprintf(&b, " · %d/%d", q.Index, q.Total)
	default:
		fmt.Fprintf(&b, " · ❤️ %d", q.Hearts)
	}
	b.WriteString("\n\n")

	switch q.Kind {
	case models.QuestionRecall:
		fmt.Fprintf(&b, "\"%s\" anlamına gelen kelimeyi seçin:", html.EscapeString(w.Meaning))
	case models.QuestionAudio:
		b.WriteString("Sesi dinleyin ve anlamını seçin:")
	case models.QuestionContextual:
		writeContext(&b, w)
		fmt.Fprintf(&b, "Yukarıdaki cümlede \"<b>%s</b>\" kelimesinin anlamı nedir?", arabic)
	case models.QuestionProduction:
		if w.HasContext() {
			writeContext(&b, w)
			b.WriteString("Boşluğa gelecek kelimeyi seçin:")
			break
		}
		fmt.Fprintf(&b, "<b>%s</b>\n\nBu kelimenin anlamı nedir?", arabic)
	default:
		fmt.Fprintf(&b, "<b>%s</b>\n\nBu kelimenin anlamını seçin:", arabic)
	}
	return b.String()
}

func writeContext(b *strings.Builder, w *models.Word) {
	fmt.Fprintf(b, "<i>%s</i>\n%s\n\n", html.EscapeString(w.ExampleText), html.EscapeString(w.Translation))
}

// questionKeyboard по кнопке на вариант и кнопка завершения
func questionKeyboard(q *session.Question) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(q.Options)+1)
	for i, opt := range q.Options {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(opt.Text, fmt.Sprintf("%s%d", cbAnswer, i)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⏹ Bitir", cbEnd),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// feedbackText результат ответа
func feedbackText(out *session.FeedbackOutcome) string {
	var b strings.Builder
	if out.Correct {
		b.WriteString("✅ Doğru! Harika iş! 🎉")
	} else {
		fmt.Fprintf(&b, "❌ Yanlış. Doğru cevap: \"%s\"", html.EscapeString(out.CorrectAnswer))
	}

	if out.XPAwarded > 0 && out.TestResult == nil {
		fmt.Fprintf(&b, "\n+%d XP", out.XPAwarded)
	}
	if out.StageAdvanced {
		fmt.Fprintf(&b, "\n📈 Yeni aşama: %s", stageName(out.Stage))
	}
	if out.TestResult == nil {
		fmt.Fprintf(&b, "\n❤️ %d", out.Hearts)
	}
	return b.String()
}

func stageName(stage models.Stage) string {
	switch stage {
	case models.StageRecall:
		return "Hatırlama"
	case models.StageProduction:
		return "Üretim"
	}
	return "Tanıma"
}

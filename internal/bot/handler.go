package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"kelime/internal/session"
	"kelime/pkg/models"
)

const (
	// MaxTextLength максимальная длина аргумента команды
	MaxTextLength = 256

	// MaxRequestsPerMinute максимум запросов в минуту
	MaxRequestsPerMinute = 60
	RateLimitWindow      = time.Minute

	// errorReportLimit сколько слов показывать в анализе ошибок
	errorReportLimit = 5
)

const helpText = `📖 <b>Komutlar</b>

/start · Ana sayfa
/learn [mod] · Öğrenmeye başla
/chapters · Bölümler
/chapter N · Bölüme başla
/tests · Test-Out sınavları
/test N · Sınava başla
/stats · İstatistikler
/errors · Hata analizi
/chest · Günlük sandık
/refill · 50 💎 ile canları yenile
/skills · Beceri ağacı
/unlock N · Beceriyi aç
/challenges · Görevler
/challenge N · Göreve başla
/stories · Hikayeler
/story N · Hikayeye başla
/offline [N|clear] · Çevrimdışı dersler
/premium on|off · Premium üyelik
/end · Oturumu bitir
/reset · Tüm verileri sıfırla`

// RateLimiter простой rate limiter по чату
type RateLimiter struct {
	requests map[int64][]time.Time
	mutex    sync.Mutex
	now      func() time.Time
}

// NewRateLimiter создает новый rate limiter
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		requests: make(map[int64][]time.Time),
		now:      time.Now,
	}
}

// IsAllowed проверяет, разрешен ли запрос
func (rl *RateLimiter) IsAllowed(chatID int64) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	var valid []time.Time
	for _, at := range rl.requests[chatID] {
		if now.Sub(at) < RateLimitWindow {
			valid = append(valid, at)
		}
	}

	if len(valid) >= MaxRequestsPerMinute {
		rl.requests[chatID] = valid
		return false
	}

	rl.requests[chatID] = append(valid, now)
	return true
}

// Handler обрабатывает обновления Telegram для одного ученика.
// Сессия не потокобезопасна, поэтому обновления и фоновые задачи идут через mu.
type Handler struct {
	mu      sync.Mutex
	session *session.Session
	view    *Telegram
	ownerID int64
	limiter *RateLimiter
	logger  *zap.Logger
}

// NewHandler создает обработчик
func NewHandler(s *session.Session, view *Telegram, ownerID int64, logger *zap.Logger) *Handler {
	return &Handler{
		session: s,
		view:    view,
		ownerID: ownerID,
		limiter: NewRateLimiter(),
		logger:  logger,
	}
}

// HandleUpdate обрабатывает входящее обновление
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	var chatID int64
	switch {
	case update.Message != nil:
		chatID = update.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		chatID = update.CallbackQuery.Message.Chat.ID
	default:
		return nil
	}

	if chatID != h.ownerID {
		h.logger.Warn("обновление из чужого чата проигнорировано", zap.Int64("chat_id", chatID))
		return nil
	}

	if !h.limiter.IsAllowed(chatID) {
		h.logger.Warn("rate limit exceeded", zap.Int64("chat_id", chatID))
		if update.Message != nil {
			return h.view.Text("⚠️ Çok fazla istek. Bir dakika bekleyin.", nil)
		}
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if update.CallbackQuery != nil {
		return h.handleCallback(ctx, update.CallbackQuery)
	}

	h.logger.Debug("получено сообщение", zap.String("text", update.Message.Text))

	if update.Message.IsCommand() {
		return h.handleCommand(ctx, update.Message)
	}
	return h.view.Text("❓ Bilinmeyen komut. /help", nil)
}

// handleCommand обрабатывает команды
func (h *Handler) handleCommand(ctx context.Context, message *tgbotapi.Message) error {
	arg := sanitizeText(message.CommandArguments())

	switch message.Command() {
	case "start":
		return h.showHome(ctx)
	case "help":
		return h.view.Text(helpText, nil)
	case "learn":
		if arg == "" {
			return h.showHome(ctx)
		}
		return h.startMode(ctx, models.Mode(arg))
	case "chapters":
		statuses := h.session.Chapters()
		keyboard := chaptersKeyboard(statuses)
		return h.view.Text(chaptersText(statuses), &keyboard)
	case "chapter":
		return h.withNumber(arg, "/chapter 1", func(id int) error { return h.startChapter(ctx, id) })
	case "tests":
		tests := h.session.Tests()
		keyboard := testsKeyboard(tests)
		return h.view.Text(testsText(tests), &keyboard)
	case "test":
		return h.withNumber(arg, "/test 1", func(id int) error { return h.startTest(ctx, id) })
	case "stats":
		return h.view.Text(statsText(h.session.Snapshot()), nil)
	case "errors":
		return h.view.Text(errorsText(h.session.ErrorReport(errorReportLimit), h.session.WeakWords()), nil)
	case "chest":
		return h.openChest(ctx)
	case "refill":
		return h.refillWithGems(ctx)
	case "skills":
		skills := h.session.Skills()
		keyboard := skillsKeyboard(skills)
		return h.view.Text(skillsText(skills), &keyboard)
	case "unlock":
		return h.withNumber(arg, "/unlock 2", func(id int) error { return h.unlockSkill(ctx, id) })
	case "challenges":
		challenges := h.session.Challenges()
		keyboard := challengesKeyboard(challenges)
		return h.view.Text(challengesText(challenges), &keyboard)
	case "challenge":
		return h.withNumber(arg, "/challenge 1", func(id int) error { return h.startChallenge(ctx, id) })
	case "stories":
		stories := h.session.Stories()
		keyboard := storiesKeyboard(stories)
		return h.view.Text(storiesText(stories), &keyboard)
	case "story":
		return h.withNumber(arg, "/story 1", func(id int) error { return h.startStory(ctx, id) })
	case "offline":
		return h.handleOffline(ctx, arg)
	case "premium":
		return h.setPremium(ctx, arg)
	case "end":
		return h.endSession(ctx)
	case "reset":
		keyboard := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Evet, sıfırla", cbReset),
			tgbotapi.NewInlineKeyboardButtonData("❌ Vazgeç", cbHome),
		))
		return h.view.Text("⚠️ Tüm ilerlemeniz silinecek. Emin misiniz?", &keyboard)
	default:
		return h.view.Text("❓ Bilinmeyen komut. /help", nil)
	}
}

// handleCallback обрабатывает inline кнопки
func (h *Handler) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	h.view.Answer(callback.ID)

	data := callback.Data
	h.logger.Debug("обрабатываем callback", zap.String("data", data))

	switch {
	case strings.HasPrefix(data, cbAnswer):
		idx, err := strconv.Atoi(strings.TrimPrefix(data, cbAnswer))
		if err != nil {
			return fmt.Errorf("ошибка разбора варианта ответа: %w", err)
		}
		return h.answer(ctx, idx)
	case data == cbNext:
		return h.advance(ctx)
	case data == cbEnd:
		return h.endSession(ctx)
	case data == cbHome:
		h.session.EndSession()
		return h.showHome(ctx)
	case data == cbChest:
		return h.openChest(ctx)
	case data == cbReset:
		return h.reset(ctx)
	case strings.HasPrefix(data, cbMode):
		return h.startMode(ctx, models.Mode(strings.TrimPrefix(data, cbMode)))
	case strings.HasPrefix(data, cbChap):
		return h.withNumber(strings.TrimPrefix(data, cbChap), "", func(id int) error { return h.startChapter(ctx, id) })
	case strings.HasPrefix(data, cbTest):
		return h.withNumber(strings.TrimPrefix(data, cbTest), "", func(id int) error { return h.startTest(ctx, id) })
	case strings.HasPrefix(data, cbSkill):
		return h.withNumber(strings.TrimPrefix(data, cbSkill), "", func(id int) error { return h.unlockSkill(ctx, id) })
	case strings.HasPrefix(data, cbChallenge):
		return h.withNumber(strings.TrimPrefix(data, cbChallenge), "", func(id int) error { return h.startChallenge(ctx, id) })
	case strings.HasPrefix(data, cbStory):
		return h.withNumber(strings.TrimPrefix(data, cbStory), "", func(id int) error { return h.startStory(ctx, id) })
	default:
		return fmt.Errorf("неизвестный callback: %s", data)
	}
}

// RefillHearts восстанавливает сердца по таймеру для фоновой задачи
func (h *Handler) RefillHearts(ctx context.Context) (int, *session.Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session.RefillHearts(ctx)
}

// ExpireChallenges закрывает просроченные задачи для фоновой задачи
func (h *Handler) ExpireChallenges(ctx context.Context) *session.Update {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session.ExpireChallenges(ctx)
}

// Snapshot сводка прогресса для фоновых задач
func (h *Handler) Snapshot() session.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session.Snapshot()
}

func (h *Handler) showHome(ctx context.Context) error {
	if _, update := h.session.RefillHearts(ctx); update != nil {
		if err := h.view.Notify(ctx, update.Notices); err != nil {
			return err
		}
	}
	snap := h.session.Snapshot()
	keyboard := homeKeyboard(snap)
	return h.view.Text(homeText(snap), &keyboard)
}

func (h *Handler) startMode(ctx context.Context, mode models.Mode) error {
	step, err := h.session.StartMode(ctx, mode)
	if err != nil {
		return h.fail(err)
	}
	return h.presentStep(ctx, step)
}

func (h *Handler) startChapter(ctx context.Context, id int) error {
	step, err := h.session.StartChapter(ctx, id)
	if err != nil {
		return h.fail(err)
	}
	return h.presentStep(ctx, step)
}

func (h *Handler) startTest(ctx context.Context, id int) error {
	step, err := h.session.StartTestOut(ctx, id)
	if err != nil {
		return h.fail(err)
	}
	return h.presentStep(ctx, step)
}

func (h *Handler) startChallenge(ctx context.Context, id int) error {
	step, err := h.session.StartChallenge(ctx, id)
	if err != nil {
		return h.fail(err)
	}
	return h.presentStep(ctx, step)
}

func (h *Handler) startStory(ctx context.Context, id int) error {
	step, err := h.session.StartStory(ctx, id)
	if err != nil {
		return h.fail(err)
	}
	return h.presentStep(ctx, step)
}

func (h *Handler) advance(ctx context.Context) error {
	step, err := h.session.Advance(ctx)
	if err != nil {
		return h.fail(err)
	}
	return h.presentStep(ctx, step)
}

// presentStep показывает уведомления шага и следующий вопрос или главный экран
func (h *Handler) presentStep(ctx context.Context, step *session.Step) error {
	if err := h.view.Notify(ctx, step.Notices); err != nil {
		return err
	}
	if step.Done || step.Question == nil {
		return h.showHome(ctx)
	}
	return h.view.PresentQuestion(ctx, step.Question)
}

func (h *Handler) answer(ctx context.Context, idx int) error {
	out, err := h.session.SubmitOption(ctx, idx)
	if err != nil {
		return h.fail(err)
	}
	if err := h.view.PresentFeedback(ctx, out); err != nil {
		return err
	}
	if err := h.view.Notify(ctx, out.Notices); err != nil {
		return err
	}
	if out.AutoAdvance && !out.Redirect {
		return h.advance(ctx)
	}
	return nil
}

func (h *Handler) endSession(ctx context.Context) error {
	summary := h.session.EndSession()
	if summary.SessionID == "" {
		return h.showHome(ctx)
	}
	if err := h.view.Text(summaryText(summary), nil); err != nil {
		return err
	}
	return h.showHome(ctx)
}

func (h *Handler) openChest(ctx context.Context) error {
	out, err := h.session.OpenDailyChest(ctx)
	if err != nil {
		return h.fail(err)
	}
	return h.view.Notify(ctx, out.Notices)
}

func (h *Handler) refillWithGems(ctx context.Context) error {
	update, err := h.session.RefillHeartsWithGems(ctx)
	if err != nil {
		return h.fail(err)
	}
	return h.view.Notify(ctx, update.Notices)
}

func (h *Handler) unlockSkill(ctx context.Context, id int) error {
	update, err := h.session.UnlockSkill(ctx, id)
	if err != nil {
		return h.fail(err)
	}
	return h.view.Notify(ctx, update.Notices)
}

func (h *Handler) handleOffline(ctx context.Context, arg string) error {
	switch arg {
	case "":
		return h.view.Text(offlineText(h.session.Progress().OfflineLessons, h.session.Chapters()), nil)
	case "clear":
		update, err := h.session.ClearOfflineLessons(ctx)
		if err != nil {
			return h.fail(err)
		}
		return h.view.Notify(ctx, update.Notices)
	}

	return h.withNumber(arg, "/offline 1", func(id int) error {
		update, err := h.session.ToggleOfflineLesson(ctx, id)
		if err != nil {
			return h.fail(err)
		}
		return h.view.Notify(ctx, update.Notices)
	})
}

func (h *Handler) setPremium(ctx context.Context, arg string) error {
	var premium bool
	switch arg {
	case "on":
		premium = true
	case "off":
	default:
		return h.view.Text("❌ Kullanım: /premium on|off", nil)
	}

	update := h.session.SetPremium(ctx, premium)
	h.logger.Info("премиум изменен", zap.Bool("premium", premium))
	if len(update.Notices) == 0 {
		return h.view.Text("⭐ Premium üyelik kapatıldı.", nil)
	}
	return h.view.Notify(ctx, update.Notices)
}

func (h *Handler) reset(ctx context.Context) error {
	update, err := h.session.Reset(ctx)
	if err != nil {
		h.logger.Error("ошибка сброса прогресса", zap.Error(err))
		return h.fail(err)
	}
	if err := h.view.Notify(ctx, update.Notices); err != nil {
		return err
	}
	return h.showHome(ctx)
}

// fail показывает пользователю текст ошибки команды
func (h *Handler) fail(err error) error {
	var lockErr *errNumber
	if errors.As(err, &lockErr) {
		return h.view.Text(lockErr.Error(), nil)
	}
	h.logger.Debug("команда отклонена", zap.Error(err))
	return h.view.Text(session.Message(err), nil)
}

// errNumber неверный номер в аргументе команды
type errNumber struct {
	example string
}

func (e *errNumber) Error() string {
	if e.example == "" {
		return "❌ Geçersiz numara!"
	}
	return "❌ Geçersiz numara! Örnek: " + e.example
}

func (h *Handler) withNumber(arg, example string, fn func(id int) error) error {
	id, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || id <= 0 {
		return h.fail(&errNumber{example: example})
	}
	return fn(id)
}

// sanitizeText очищает аргумент команды
func sanitizeText(text string) string {
	if len(text) > MaxTextLength {
		text = text[:MaxTextLength]
	}
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
	}
	text = strings.ReplaceAll(text, "\x00", "")
	text = strings.ReplaceAll(text, "\r", "")
	return strings.TrimSpace(text)
}

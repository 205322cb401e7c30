package session

import (
	"errors"
	"fmt"
	"strings"

	"kelime/internal/catalog"
	"kelime/internal/progress"
	"kelime/internal/progression"
	"kelime/internal/scheduling"
	"kelime/pkg/models"
)

// Тексты уведомлений для пользователя
const (
	msgNoWords        = "⚠️ Kelime bulunamadı! Ana sayfaya yönlendiriliyorsunuz..."
	msgAllWordsDone   = "Tüm kelimeler tamamlandı! 🎉"
	msgChapterDone    = "🎉 %s tamamlandı! +%d XP, +%d 💎"
	msgTestDone       = "📝 Sınav tamamlandı! %d / %d doğru, %%%d başarı. +%d XP, +%d 💎"
	msgSaveFailed     = "❌ Veriler kaydedilemedi!"
	msgReset          = "🔄 Tüm veriler sıfırlandı! Yeni başlangıç yapabilirsiniz."
	msgMaxXP          = "🎉 Maksimum XP seviyesine ulaştınız!"
	msgLevelUp        = "🎉 Seviye Atladınız! Seviye %d"
	msgCrownUp        = "👑 Crown Seviyesi %d!"
	msgLeagueUp       = "🎉 %s Ligine Yükseldiniz!"
	msgBadge          = "🏆 Yeni Rozet: %s %s"
	msgSkillUnlocked  = "🌳 %s açıldı!"
	msgDailyGoal      = "🎯 Günlük hedefinize ulaştınız!"
	msgNoHearts       = "💔 Canınız kalmadı! Canlar her 30 dakikada bir yenilenir."
	msgHeartsRefilled = "❤️ %d can yenilendi!"
	msgHeartsFull     = "❤️ Canlarınız yenilendi!"
	msgDailyChest     = "📦 Günlük sandık: +%d XP, +%d 💎. Bugün %d kelime öğrendiniz! 🎉"
	msgGiftChest      = "🎁 Sürpriz Hediye! +%d XP, +%d 💎"
	msgOfflineRemoved = "📥 Ders kaldırıldı"
	msgOfflineSaved   = "✅ Ders indirildi! Artık çevrimdışı kullanabilirsiniz."
	msgOfflineCleared = "🗑️ Tüm indirilen dersler temizlendi"
	msgPremiumOn      = "⭐ Premium üyelik aktif! Tüm özelliklere erişebilirsiniz."
	msgGeneric        = "❌ Bir hata oluştu!"

	msgChallengeDone    = "🎉 Görev tamamlandı! +%d XP, +%d 💎"
	msgChallengeTimeout = "⏱️ Süre doldu! Görev tamamlanamadı."
	msgChallengeFailed  = "❌ Görev tamamlanamadı! Tüm cevaplar doğru olmalı."
	msgStoryDone        = "🎉 Hikaye tamamlandı! +%d XP"
	msgStoryRepeated    = "📖 Hikaye tekrar tamamlandı!"
)

// Badge описание значка
type Badge struct {
	ID   string
	Name string
	Icon string
}

// Badges значки в порядке отображения
func Badges() []Badge {
	return []Badge{
		{ID: models.BadgeFirstSteps, Name: "İlk Adımlar", Icon: "👣"},
		{ID: models.BadgeLearner, Name: "Öğrenci", Icon: "📚"},
		{ID: models.BadgeScholar, Name: "Alim", Icon: "🎓"},
		{ID: models.BadgeWeekWarrior, Name: "Hafta Savaşçısı", Icon: "🔥"},
		{ID: models.BadgeMonthMaster, Name: "Ay Ustası", Icon: "⭐"},
		{ID: models.BadgeDailyAchiever, Name: "Günlük Başarı", Icon: "🎯"},
		{ID: models.BadgeCentury, Name: "Yüzlük", Icon: "💯"},
		{ID: models.BadgeHalfK, Name: "Yarım Binlik", Icon: "🏆"},
	}
}

// LeagueName название лиги
func LeagueName(l models.League) string {
	switch l {
	case models.LeagueBronze:
		return "🥉 Bronz"
	case models.LeagueSilver:
		return "🥈 Gümüş"
	case models.LeagueGold:
		return "🥇 Altın"
	case models.LeaguePlatinum:
		return "💎 Platin"
	case models.LeagueDiamond:
		return "💠 Elmas"
	}
	return ""
}

// ModeTitle заголовок режима
func ModeTitle(mode models.Mode) string {
	switch mode {
	case models.ModeSpacedRepetition:
		return "🔄 Aralıklı Tekrar Sistemi"
	case models.ModeInterleaved, models.ModePractice:
		return "🎲 Karma Alıştırma"
	case models.ModeAudioFirst:
		return "🎧 Sesli Öğrenme"
	case models.ModeRecognitionRecall:
		return "🧠 Tanıma → Hatırlama"
	case models.ModeContextual, models.ModeConversation:
		return "📖 Bağlamsal Öğrenme"
	case models.ModeWeakWords:
		return "💪 Zayıf Kelimeler"
	case models.ModeTestOut:
		return "📝 Test-Out Sınavı"
	case models.ModeChapter:
		return "📚 Bölüm"
	case models.ModeChallenge:
		return "⚡ Görev"
	case models.ModeStory:
		return "📖 Hikaye"
	}
	return "📚 Öğrenme"
}

// Message текст для пользователя по ошибке команды
func Message(err error) string {
	var skillErr *progression.SkillLockError
	var testErr *progression.TestLockError

	switch {
	case err == nil:
		return ""
	case errors.As(err, &skillErr):
		if len(skillErr.Missing) > 0 {
			return "🔒 Önce şunları açmalısınız: " + strings.Join(skillErr.Missing, ", ")
		}
		return fmt.Sprintf("🔒 Bu beceriyi açmak için %d XP gerekli!", skillErr.NeedXP)
	case errors.As(err, &testErr):
		return fmt.Sprintf("🔒 Bu sınav için seviye %d gerekiyor!", testErr.Test.RequiredLevel)
	case errors.Is(err, ErrNoHearts):
		return msgNoHearts
	case errors.Is(err, ErrNoActiveQuestion):
		return "❌ Soru yüklenemedi!"
	case errors.Is(err, ErrUnknownMode):
		return "⚠️ Bilinmeyen öğrenme modu!"
	case errors.Is(err, ErrNotPremium):
		return "⭐ Bu özellik Premium üyeler için!"
	case errors.Is(err, ErrNotEnoughGems):
		return "💎 Yeterli geminiz yok!"
	case errors.Is(err, ErrChestAlreadyOpened):
		return "📦 Bugün zaten sandığı açtınız!"
	case errors.Is(err, ErrChestLocked):
		return "📦 Günlük sandığı açmak için en az 5 kelime öğrenin veya 50 XP kazanın!"
	case errors.Is(err, progression.ErrChapterNotFound):
		return "❌ Bölüm bulunamadı!"
	case errors.Is(err, progression.ErrChapterLocked):
		return "🔒 Önceki bölümü tamamlamalısınız!"
	case errors.Is(err, progression.ErrTestNotFound):
		return "❌ Sınav bulunamadı!"
	case errors.Is(err, progression.ErrNoTestWords):
		return "⚠️ Bu seviye için yeterli kelime bulunamadı!"
	case errors.Is(err, ErrChallengeNotFound):
		return "❌ Görev bulunamadı!"
	case errors.Is(err, ErrChallengeLocked):
		return "🔒 Önceki görevi tamamlamalısınız!"
	case errors.Is(err, ErrChallengeCompleted):
		return "✅ Bu görev zaten tamamlandı!"
	case errors.Is(err, ErrStoryNotFound):
		return "❌ Hikaye bulunamadı!"
	case errors.Is(err, ErrStoryLocked):
		return "🔒 Önceki hikayeyi tamamlamalısınız!"
	case errors.Is(err, progression.ErrSkillNotFound):
		return "❌ Beceri bulunamadı!"
	case errors.Is(err, progression.ErrSkillAlreadyUnlocked):
		return "🌳 Bu beceri zaten açık!"
	case errors.Is(err, scheduling.ErrNoWordsAvailable):
		return msgNoWords
	case errors.Is(err, catalog.ErrDataLoad):
		return "❌ Kelime verisi yüklenemedi!"
	case errors.Is(err, progress.ErrPersistence):
		return msgSaveFailed
	}
	return msgGeneric
}

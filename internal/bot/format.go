package bot

import (
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"kelime/internal/mastery"
	"kelime/internal/progression"
	"kelime/internal/session"
	"kelime/pkg/models"
)

// homeModes режимы на главном экране
var homeModes = []models.Mode{
	models.ModeSpacedRepetition,
	models.ModeWeakWords,
	models.ModeInterleaved,
	models.ModePractice,
	models.ModeContextual,
	models.ModeAudioFirst,
	models.ModeRecognitionRecall,
}

// homeText главный экран со сводкой прогресса
func homeText(snap session.Snapshot) string {
	var b strings.Builder
	b.WriteString("🏠 <b>Kelime</b>\n\n")
	fmt.Fprintf(&b, "⭐ Seviye %d · %d XP", snap.Level, snap.XP)
	if snap.CrownLevel > 0 {
		fmt.Fprintf(&b, " · 👑 %d", snap.CrownLevel)
	}
	b.WriteString("\n")

	if league := session.LeagueName(snap.League); league != "" {
		fmt.Fprintf(&b, "%s Ligi · %d XP", league, snap.LeagueXP)
		if snap.NextLeague != models.LeagueNone {
			fmt.Fprintf(&b, " / %d", snap.NextLeagueXP)
		}
		b.WriteString("\n")
	}

	if snap.IsPremium {
		b.WriteString("❤️ ∞")
	} else {
		fmt.Fprintf(&b, "❤️ %d/%d", snap.Hearts, snap.MaxHearts)
	}
	fmt.Fprintf(&b, " · 💎 %d · 🔥 %d gün\n", snap.Gems, snap.Streak)
	fmt.Fprintf(&b, "🎯 Günlük hedef: %d/%d\n%s\n", snap.DailyProgress, snap.DailyGoal, progressBar(snap.DailyProgress, snap.DailyGoal))
	fmt.Fprintf(&b, "🔄 Tekrar: %d · 💪 Zayıf: %d · 📚 Öğrenilen: %d", snap.DueCount, snap.WeakCount, snap.WordsStudied)
	if snap.ChestAvailable {
		b.WriteString("\n\n📦 Günlük sandık hazır!")
	}
	return b.String()
}

// homeKeyboard режимы обучения по два в ряд
func homeKeyboard(snap session.Snapshot) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, mode := range homeModes {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(session.ModeTitle(mode), cbMode+string(mode)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	if snap.ChestAvailable {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📦 Sandığı Aç", cbChest),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// statsText подробная статистика
func statsText(snap session.Snapshot) string {
	var b strings.Builder
	b.WriteString("📊 <b>İstatistikler</b>\n\n")
	fmt.Fprintf(&b, "Toplam XP: %d\nSeviye: %d\nCrown: %d\n", snap.XP, snap.Level, snap.CrownLevel)
	fmt.Fprintf(&b, "Seri: %d gün\nÖğrenilen kelime: %d\nTekrar bekleyen: %d\nZayıf kelime: %d\n",
		snap.Streak, snap.WordsStudied, snap.DueCount, snap.WeakCount)
	if snap.Mode != models.ModeDefault {
		fmt.Fprintf(&b, "\nOturum: %s · ✅ %d · ❌ %d\n", session.ModeTitle(snap.Mode), snap.SessionCorrect, snap.SessionWrong)
	}

	if len(snap.Badges) > 0 {
		b.WriteString("\n🏆 <b>Rozetler</b>\n")
		owned := make(map[string]bool, len(snap.Badges))
		for _, id := range snap.Badges {
			owned[id] = true
		}
		for _, badge := range session.Badges() {
			if owned[badge.ID] {
				fmt.Fprintf(&b, "%s %s\n", badge.Icon, badge.Name)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// chaptersText список глав с состоянием
func chaptersText(statuses []progression.ChapterStatus) string {
	if len(statuses) == 0 {
		return "Bölümler yükleniyor..."
	}
	var b strings.Builder
	b.WriteString("📚 <b>Bölümler</b>\n\n")
	for _, st := range statuses {
		fmt.Fprintf(&b, "%s %s · %d/%d\n", chapterIcon(st.State), html.EscapeString(st.Chapter.Name), st.Learned, st.Total)
	}
	return strings.TrimRight(b.String(), "\n")
}

func chapterIcon(state models.ChapterState) string {
	switch state {
	case models.ChapterCompleted:
		return "✅"
	case models.ChapterInProgress:
		return "▶️"
	case models.ChapterUnlockable:
		return "🔓"
	}
	return "🔒"
}

// chaptersKeyboard кнопки открытых глав
func chaptersKeyboard(statuses []progression.ChapterStatus) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, st := range statuses {
		var label string
		switch st.State {
		case models.ChapterLocked:
			continue
		case models.ChapterCompleted:
			label = "Tamamlandı"
		case models.ChapterInProgress:
			label = "Devam Et"
		default:
			label = "Başla"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s · %s", st.Chapter.Name, label), fmt.Sprintf("%s%d", cbChap, st.Chapter.ID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// testsText список тестов
func testsText(tests []session.TestStatus) string {
	var b strings.Builder
	b.WriteString("📝 <b>Test-Out Sınavları</b>\n\n")
	for _, t := range tests {
		if t.Available {
			fmt.Fprintf(&b, "✅ %s · %d soru\n", html.EscapeString(t.Test.Name), t.Test.Questions)
		} else {
			fmt.Fprintf(&b, "🔒 %s · Kilitli - Seviye %d gerekiyor\n", html.EscapeString(t.Test.Name), t.Test.RequiredLevel)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func testsKeyboard(tests []session.TestStatus) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, t := range tests {
		if !t.Available {
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Sınava Başla: "+t.Test.Name, fmt.Sprintf("%s%d", cbTest, t.Test.ID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// skillsText дерево навыков
func skillsText(skills []progression.SkillStatus) string {
	var b strings.Builder
	b.WriteString("🌳 <b>Beceri Ağacı</b>\n\n")
	for _, s := range skills {
		icon := "🔒"
		switch {
		case s.Unlocked:
			icon = "✅"
		case s.CanUnlock:
			icon = "🔓"
		}
		fmt.Fprintf(&b, "%s %s · %d XP\n", icon, html.EscapeString(s.Skill.Name), s.Skill.XPRequired)
	}
	return strings.TrimRight(b.String(), "\n")
}

func skillsKeyboard(skills []progression.SkillStatus) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, s := range skills {
		if s.Unlocked || !s.CanUnlock {
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Aç: "+s.Skill.Name, fmt.Sprintf("%s%d", cbSkill, s.Skill.ID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// challengesText список задач
func challengesText(challenges []session.ChallengeStatus) string {
	var b strings.Builder
	b.WriteString("⚡ <b>Görevler</b>\n\n")
	shown := 0
	for _, c := range challenges {
		if !c.Available {
			continue
		}
		shown++
		icon := "⚡"
		switch {
		case c.Progress.Completed:
			icon = "✅"
		case c.Progress.Active:
			icon = "⏳"
		}
		fmt.Fprintf(&b, "%s <b>%s</b> · %s\nÖdül: +%d XP +%d 💎\n",
			icon, html.EscapeString(c.Challenge.Name), html.EscapeString(c.Challenge.Description), c.Challenge.XP, c.Challenge.Gems)
		if c.Progress.Active {
			fmt.Fprintf(&b, "%d / %d doğru", c.Progress.Correct, c.Progress.Total)
			if c.Deadline != nil {
				fmt.Fprintf(&b, " · bitiş %s", c.Deadline.Format("15:04"))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if shown == 0 {
		return "İlk kelimeleri öğrenmeye başladığınızda görevler açılacak! ⚡"
	}
	return strings.TrimRight(b.String(), "\n")
}

func challengesKeyboard(challenges []session.ChallengeStatus) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, c := range challenges {
		if !c.Available || c.Progress.Completed {
			continue
		}
		label := "Başla: "
		if c.Progress.Active {
			label = "Devam Et: "
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label+c.Challenge.Name, fmt.Sprintf("%s%d", cbChallenge, c.Challenge.ID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// storiesText список историй
func storiesText(stories []session.StoryStatus) string {
	var b strings.Builder
	b.WriteString("📖 <b>Hikayeler</b>\n\n")
	shown := 0
	for _, st := range stories {
		if !st.Available {
			continue
		}
		shown++
		done := ""
		if st.Completed {
			done = " ✅"
		}
		fmt.Fprintf(&b, "<b>%s</b>%s · %s\n%s %d/%d kelime\n\n",
			html.EscapeString(st.Story.Title), done, html.EscapeString(st.Story.Description),
			progressBar(st.Learned, st.Story.Words), st.Learned, st.Story.Words)
	}
	if shown == 0 {
		return "İlk kelimeleri öğrenmeye başladığınızda hikayeler açılacak! 📖"
	}
	return strings.TrimRight(b.String(), "\n")
}

func storiesKeyboard(stories []session.StoryStatus) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, st := range stories {
		if !st.Available {
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📖 "+st.Story.Title, fmt.Sprintf("%s%d", cbStory, st.Story.ID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// errorsText частые ошибки и слабые слова
func errorsText(groups []mastery.ErrorGroup, weak []*models.Word) string {
	var b strings.Builder
	b.WriteString("📉 <b>Hata Analizi</b>\n")
	if len(groups) == 0 {
		b.WriteString("\nHenüz hata yok! 🎉\n")
	}
	for _, g := range groups {
		fmt.Fprintf(&b, "\n<b>%s</b>\n", categoryName(g.Category))
		for _, item := range g.Items {
			fmt.Fprintf(&b, "%s · %s · %d hata\n",
				html.EscapeString(item.Word.ArabicForm), html.EscapeString(item.Word.Meaning), item.Count)
		}
	}

	if len(weak) > 0 {
		fmt.Fprintf(&b, "\n💪 <b>Zayıf Kelimeler</b> (%d)\n", len(weak))
		for i, w := range weak {
			if i == 10 {
				fmt.Fprintf(&b, "… +%d\n", len(weak)-i)
				break
			}
			fmt.Fprintf(&b, "%s · %s\n", html.EscapeString(w.ArabicForm), html.EscapeString(w.Meaning))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func categoryName(c models.ErrorCategory) string {
	switch c {
	case models.ErrorCategoryMedium:
		return "Orta"
	case models.ErrorCategoryHard:
		return "Zor"
	}
	return "Kolay"
}

// offlineText скачанные главы
func offlineText(lessons []int, statuses []progression.ChapterStatus) string {
	if len(lessons) == 0 {
		return "📥 İndirilmiş ders yok. /offline N ile bölüm indirebilirsiniz."
	}
	names := make(map[int]string, len(statuses))
	for _, st := range statuses {
		names[st.Chapter.ID] = st.Chapter.Name
	}
	var b strings.Builder
	b.WriteString("📥 <b>İndirilen Dersler</b>\n\n")
	for _, id := range lessons {
		name := names[id]
		if name == "" {
			name = fmt.Sprintf("#%d", id)
		}
		fmt.Fprintf(&b, "• %s\n", html.EscapeString(name))
	}
	return strings.TrimRight(b.String(), "\n")
}

// summaryText итог сессии
func summaryText(s session.Summary) string {
	total := s.Correct + s.Wrong
	accuracy := 0.0
	if total > 0 {
		accuracy = float64(s.Correct) / float64(total) * 100
	}
	return fmt.Sprintf("📚 <b>Oturum tamamlandı</b>\n\n%s\n✅ %d · ❌ %d · 🎯 %.0f%%",
		html.EscapeString(session.ModeTitle(s.Mode)), s.Correct, s.Wrong, accuracy)
}

// progressBar текстовый прогресс-бар
func progressBar(current, total int) string {
	if total <= 0 {
		return "▱▱▱▱▱▱▱▱▱▱ 0%"
	}
	percentage := min(float64(current)/float64(total)*100, 100)
	filled := int(percentage / 10)
	return fmt.Sprintf("%s%s %.0f%%", strings.Repeat("▰", filled), strings.Repeat("▱", 10-filled), percentage)
}

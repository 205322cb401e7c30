package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"kelime/internal/config"
	"kelime/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const sampleJSON = `[
	{"id_number": 1, "arabic_word": "كتاب", "turkish_mean": "kitap", "word_diffuculty": 2, "ayah_text": "ذلك الكتاب", "meal": "Bu kitap"},
	{"id_number": 2, "arabic_word": "قلم", "turkish_mean": "kalem", "word_diffuculty": 9},
	{"id_number": 3, "arabic_word": "بيت", "turkish_mean": "ev"},
	{"id_number": "x", "arabic_word": "باب", "turkish_mean": "kapı", "word_diffuculty": 1},
	{"id_number": 2, "arabic_word": "قلم", "turkish_mean": "kalem", "word_diffuculty": 9},
	{"id_number": 5, "arabic_word": "", "turkish_mean": "boş", "word_diffuculty": 3}
]`

func words(difficulties ...float64) []*models.Word {
	out := make([]*models.Word, 0, len(difficulties))
	for i, d := range difficulties {
		out = append(out, &models.Word{ID: int64(i + 1), ArabicForm: "ك", Meaning: "m", Difficulty: d})
	}
	return out
}

func TestNewDropsInvalidWords(t *testing.T) {
	c := New([]*models.Word{
		{ID: 1, ArabicForm: "كتاب", Meaning: "kitap", Difficulty: 2},
		{ID: 1, ArabicForm: "كتاب", Meaning: "kitap", Difficulty: 2},
		{ID: 0, ArabicForm: "قلم", Meaning: "kalem", Difficulty: 3},
		{ID: 2, ArabicForm: "قلم", Meaning: "", Difficulty: 3},
		nil,
	}, zap.NewNop())

	assert.Equal(t, 1, c.Len())
	w, ok := c.ByID(1)
	require.True(t, ok)
	assert.Equal(t, "kitap", w.Meaning)

	_, ok = c.ByID(2)
	assert.False(t, ok)

	d, ok := c.Difficulty(1)
	assert.True(t, ok)
	assert.Equal(t, 2.0, d)
}

func TestResolveSkipsUnknownIDs(t *testing.T) {
	c := New(words(1, 2, 3), zap.NewNop())

	resolved := c.Resolve([]int64{3, 99, 1})
	require.Len(t, resolved, 2)
	assert.Equal(t, int64(3), resolved[0].ID)
	assert.Equal(t, int64(1), resolved[1].ID)
}

func TestLoadFromJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleJSON), 0o644))

	result := NewLoader(0, zap.NewNop()).Load(context.Background(), path, nil)

	assert.Equal(t, SourcePrimary, result.Source)
	assert.Nil(t, result.Notice)
	assert.NoError(t, result.Err)
	assert.Equal(t, 2, result.Catalog.Len())

	withContext := result.Catalog.WithContext()
	require.Len(t, withContext, 1)
	assert.Equal(t, int64(1), withContext[0].ID)
}

func TestLoadFallsBackToOfflineCache(t *testing.T) {
	offline := func(ctx context.Context) ([]*models.Word, error) {
		return words(4, 5), nil
	}

	result := NewLoader(0, zap.NewNop()).Load(context.Background(), filepath.Join(t.TempDir(), "missing.json"), offline)

	assert.Equal(t, SourceOffline, result.Source)
	assert.Equal(t, 2, result.Catalog.Len())
	require.NotNil(t, result.Notice)
	assert.Equal(t, models.SeverityInfo, result.Notice.Severity)
	assert.True(t, errors.Is(result.Err, ErrDataLoad))
}

func TestLoadEmptyWhenNothingAvailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not": "an array"}`), 0o644))

	offline := func(ctx context.Context) ([]*models.Word, error) {
		return nil, errors.New("кеш пуст")
	}

	result := NewLoader(0, zap.NewNop()).Load(context.Background(), path, offline)

	assert.Equal(t, SourceEmpty, result.Source)
	assert.True(t, result.Catalog.Empty())
	require.NotNil(t, result.Notice)
	assert.Equal(t, models.SeverityError, result.Notice.Severity)
	assert.ErrorIs(t, result.Err, ErrDataLoad)
}

func TestLoadFromURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/words.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleJSON))
	}))
	defer server.Close()

	loader := NewLoader(0, zap.NewNop())

	result := loader.Load(context.Background(), server.URL+"/words.json", nil)
	assert.Equal(t, SourcePrimary, result.Source)
	assert.Equal(t, 2, result.Catalog.Len())

	_, err := loader.Fetch(context.Background(), server.URL+"/missing.json")
	assert.ErrorIs(t, err, ErrDataLoad)
}

func TestLoadFromXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.xlsx")

	f := excelize.NewFile()
	rows := [][]interface{}{
		{"id", "arabic", "meaning", "difficulty", "example", "translation", "audio", "example_audio"},
		{1, "كتاب", "kitap", 2, "ذلك الكتاب", "Bu kitap", "kitap.mp3", ""},
		{2, "قلم", "kalem", "4,5"},
		{"bad", "بيت", "ev", 3},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	loaded, err := NewLoader(0, zap.NewNop()).Fetch(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	assert.Equal(t, int64(1), loaded[0].ID)
	assert.Equal(t, "kitap", loaded[0].Meaning)
	assert.True(t, loaded[0].HasContext())
	assert.Equal(t, "kitap.mp3", loaded[0].AudioRef)
	assert.Equal(t, 4.5, loaded[1].Difficulty)
}

func TestBuildChapters(t *testing.T) {
	rules := config.DefaultRules().Chapters

	t.Run("равные диапазоны", func(t *testing.T) {
		ds := make([]float64, 0, 20)
		for d := 1; d <= 20; d++ {
			ds = append(ds, float64(d))
		}
		chapters := New(words(ds...), zap.NewNop()).BuildChapters(rules)

		require.Len(t, chapters, 10)
		for i, ch := range chapters {
			assert.Equal(t, i+1, ch.ID)
			assert.Equal(t, ChapterName(i+1), ch.Name)
			assert.Len(t, ch.Words, 2)
		}
		assert.Equal(t, 1.0, chapters[0].Words[0].Difficulty)
		assert.Equal(t, 20.0, chapters[9].Words[1].Difficulty)
	})

	t.Run("перекошенные данные", func(t *testing.T) {
		chapters := New(words(1, 1, 1, 1, 1, 1, 1, 1, 1, 10), zap.NewNop()).BuildChapters(rules)

		// Первый диапазон, четыре равных среза и последний диапазон
		require.Len(t, chapters, 6)
		assert.Len(t, chapters[0].Words, 9)
		for _, ch := range chapters[1:5] {
			assert.Len(t, ch.Words, 1)
		}
		last := chapters[5]
		assert.Equal(t, 6, last.ID)
		assert.Equal(t, 10, last.Difficulty)
		require.Len(t, last.Words, 1)
		assert.Equal(t, int64(10), last.Words[0].ID)
	})

	t.Run("пустой каталог", func(t *testing.T) {
		assert.Empty(t, New(nil, zap.NewNop()).BuildChapters(rules))
	})
}

func TestChapterByID(t *testing.T) {
	chapters := New(words(1, 5, 9), zap.NewNop()).BuildChapters(config.DefaultRules().Chapters)

	ch, ok := ChapterByID(chapters, 1)
	require.True(t, ok)
	assert.Equal(t, 1, ch.ID)

	_, ok = ChapterByID(chapters, 42)
	assert.False(t, ok)
}

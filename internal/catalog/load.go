package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"kelime/pkg/models"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Source источник, из которого фактически загружен каталог
type Source string

const (
	SourcePrimary Source = "primary"
	SourceOffline Source = "offline"
	SourceEmpty   Source = "empty"
)

// Сообщения пользователю о деградации источника
const (
	noticeOffline = "📥 Çevrimdışı modda: İndirilen dersler kullanılıyor"
	noticeEmpty   = "❌ Kelime verisi yüklenemedi! Lütfen daha sonra tekrar deneyin."
)

const maxCatalogBytes = 64 << 20

// FallbackFunc возвращает слова из офлайн кеша
type FallbackFunc func(ctx context.Context) ([]*models.Word, error)

// LoadResult результат загрузки каталога
type LoadResult struct {
	Catalog *Catalog
	Source  Source
	Notice  *models.Notice
	// Err причина деградации, оборачивает ErrDataLoad
	Err error
}

// XLSXColumns колонки листа Excel с данными слов
type XLSXColumns struct {
	Sheet           string
	StartRow        int
	ID              string
	ArabicForm      string
	Meaning         string
	Difficulty      string
	ExampleText     string
	Translation     string
	AudioRef        string
	ExampleAudioRef string
}

// DefaultXLSXColumns стандартная раскладка колонок, первая строка заголовок
func DefaultXLSXColumns() XLSXColumns {
	return XLSXColumns{
		StartRow:        2,
		ID:              "A",
		ArabicForm:      "B",
		Meaning:         "C",
		Difficulty:      "D",
		ExampleText:     "E",
		Translation:     "F",
		AudioRef:        "G",
		ExampleAudioRef: "H",
	}
}

// Loader загружает каталог из файла или по URL
type Loader struct {
	client  *http.Client
	timeout time.Duration
	columns XLSXColumns
	logger  *zap.Logger
}

// NewLoader создает загрузчик каталога
func NewLoader(timeout time.Duration, logger *zap.Logger) *Loader {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Loader{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		columns: DefaultXLSXColumns(),
		logger:  logger,
	}
}

// WithColumns задает раскладку колонок Excel
func (l *Loader) WithColumns(columns XLSXColumns) *Loader {
	l.columns = columns
	return l
}

// Load загружает каталог, при ошибке переходит на офлайн кеш, затем на пустой каталог
func (l *Loader) Load(ctx context.Context, source string, fallback FallbackFunc) *LoadResult {
	words, err := l.Fetch(ctx, source)
	if err == nil && len(words) > 0 {
		c := New(words, l.logger)
		if !c.Empty() {
			l.logger.Info("каталог загружен", zap.String("source", source), zap.Int("words", c.Len()))
			return &LoadResult{Catalog: c, Source: SourcePrimary}
		}
	}
	if err == nil {
		err = fmt.Errorf("%w: источник %s не содержит слов", ErrDataLoad, source)
	}
	l.logger.Warn("основной источник каталога недоступен", zap.String("source", source), zap.Error(err))

	if fallback != nil {
		offline, fbErr := fallback(ctx)
		if fbErr != nil {
			l.logger.Warn("офлайн кеш недоступен", zap.Error(fbErr))
		}
		if c := New(offline, l.logger); !c.Empty() {
			l.logger.Info("каталог загружен из офлайн кеша", zap.Int("words", c.Len()))
			return &LoadResult{
				Catalog: c,
				Source:  SourceOffline,
				Notice:  &models.Notice{Message: noticeOffline, Severity: models.SeverityInfo},
				Err:     err,
			}
		}
	}

	l.logger.Error("каталог пуст, слова не загружены", zap.Error(err))
	return &LoadResult{
		Catalog: New(nil, l.logger),
		Source:  SourceEmpty,
		Notice:  &models.Notice{Message: noticeEmpty, Severity: models.SeverityError},
		Err:     err,
	}
}

// Fetch читает слова из источника без запасных вариантов
func (l *Loader) Fetch(ctx context.Context, source string) ([]*models.Word, error) {
	if source == "" {
		return nil, fmt.Errorf("%w: источник не задан", ErrDataLoad)
	}

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return l.fetchURL(ctx, source)
	}

	switch strings.ToLower(filepath.Ext(source)) {
	case ".xlsx":
		return l.readXLSX(source)
	default:
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDataLoad, err)
		}
		defer f.Close()
		return l.decodeJSON(io.LimitReader(f, maxCatalogBytes))
	}
}

func (l *Loader) fetchURL(ctx context.Context, url string) ([]*models.Word, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataLoad, err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataLoad, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP статус %d", ErrDataLoad, resp.StatusCode)
	}

	return l.decodeJSON(io.LimitReader(resp.Body, maxCatalogBytes))
}

// rawWord запись каталога до проверки
type rawWord struct {
	ID              *float64 `json:"id_number"`
	ArabicForm      string   `json:"arabic_word"`
	Meaning         string   `json:"turkish_mean"`
	Difficulty      *float64 `json:"word_diffuculty"`
	ExampleText     string   `json:"ayah_text"`
	Translation     string   `json:"meal"`
	ExampleAudioRef string   `json:"ayah_sound_url"`
	AudioRef        string   `json:"sound_url"`
}

func (r rawWord) toWord() (*models.Word, error) {
	if r.ID == nil || *r.ID != float64(int64(*r.ID)) {
		return nil, fmt.Errorf("нет целого идентификатора")
	}
	if r.Difficulty == nil {
		return nil, fmt.Errorf("нет сложности")
	}
	return &models.Word{
		ID:              int64(*r.ID),
		ArabicForm:      strings.TrimSpace(r.ArabicForm),
		Meaning:         strings.TrimSpace(r.Meaning),
		Difficulty:      *r.Difficulty,
		ExampleText:     r.ExampleText,
		Translation:     r.Translation,
		ExampleAudioRef: r.ExampleAudioRef,
		AudioRef:        r.AudioRef,
	}, nil
}

// decodeJSON разбирает массив записей, пропуская поврежденные
func (l *Loader) decodeJSON(r io.Reader) ([]*models.Word, error) {
	var records []json.RawMessage
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: данные не являются массивом слов: %v", ErrDataLoad, err)
	}

	words := make([]*models.Word, 0, len(records))
	for i, rec := range records {
		var raw rawWord
		if err := json.Unmarshal(rec, &raw); err != nil {
			l.logger.Warn("запись каталога не разобрана", zap.Int("index", i), zap.Error(err))
			continue
		}
		w, err := raw.toWord()
		if err != nil {
			l.logger.Warn("запись каталога отброшена", zap.Int("index", i), zap.Error(err))
			continue
		}
		words = append(words, w)
	}
	return words, nil
}

// readXLSX читает слова из листа Excel
func (l *Loader) readXLSX(path string) ([]*models.Word, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: ошибка открытия Excel файла: %v", ErrDataLoad, err)
	}
	defer f.Close()

	sheet := l.columns.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: ошибка чтения листа %s: %v", ErrDataLoad, sheet, err)
	}

	words := make([]*models.Word, 0, len(rows))
	for i, row := range rows {
		if i < l.columns.StartRow-1 {
			continue
		}
		w, err := l.parseRow(row)
		if err != nil {
			l.logger.Warn("строка Excel отброшена", zap.Int("row", i+1), zap.Error(err))
			continue
		}
		words = append(words, w)
	}
	return words, nil
}

func (l *Loader) parseRow(row []string) (*models.Word, error) {
	cell := func(column string) string {
		if column == "" {
			return ""
		}
		idx, err := excelize.ColumnNameToNumber(column)
		if err != nil || idx-1 >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx-1])
	}

	id, err := strconv.ParseInt(cell(l.columns.ID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("некорректный идентификатор: %w", err)
	}
	difficulty, err := strconv.ParseFloat(strings.ReplaceAll(cell(l.columns.Difficulty), ",", "."), 64)
	if err != nil {
		return nil, fmt.Errorf("некорректная сложность: %w", err)
	}

	return &models.Word{
		ID:              id,
		ArabicForm:      cell(l.columns.ArabicForm),
		Meaning:         cell(l.columns.Meaning),
		Difficulty:      difficulty,
		ExampleText:     cell(l.columns.ExampleText),
		Translation:     cell(l.columns.Translation),
		AudioRef:        cell(l.columns.AudioRef),
		ExampleAudioRef: cell(l.columns.ExampleAudioRef),
	}, nil
}

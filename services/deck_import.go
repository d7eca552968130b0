package services

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vnkhanh/audiodeck-backend/models"
)

// DeckFormat is the kind of uploaded card source.
type DeckFormat string

const (
	FormatApkg DeckFormat = "apkg"
	FormatXLSX DeckFormat = "xlsx"
)

// FormatFromFileName maps an upload's extension to a DeckFormat.
func FormatFromFileName(name string) (DeckFormat, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".apkg":
		return FormatApkg, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDeckFormat, filepath.Ext(name))
	}
}

// ImportCards reads cards from an uploaded deck or spreadsheet.
func ImportCards(format DeckFormat, data []byte) ([]models.Card, error) {
	switch format {
	case FormatApkg:
		return ImportApkg(data)
	case FormatXLSX:
		return ImportSpreadsheet(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDeckFormat, format)
	}
}

// ImportApkg reads the notes of an Anki package. The non-empty fields of each
// note (markup and [sound:] tags removed) become front, back and extra fields
// in note order.
func ImportApkg(data []byte) ([]models.Card, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a zip archive: %v", ErrUnsupportedDeckFormat, err)
	}

	files := map[string]*zip.File{}
	for _, f := range zr.File {
		files[f.Name] = f
	}

	var collection *zip.File
	for _, name := range []string{"collection.anki21", "collection.anki2"} {
		if f, ok := files[name]; ok {
			collection = f
			break
		}
	}
	if collection == nil {
		if _, ok := files["collection.anki21b"]; ok {
			return nil, fmt.Errorf("%w: compressed collection.anki21b is not supported", ErrUnsupportedDeckFormat)
		}
		return nil, fmt.Errorf("%w: package has no collection", ErrUnsupportedDeckFormat)
	}

	dir, err := os.MkdirTemp("", "audiodeck-import-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	dbPath := filepath.Join(dir, "collection.db")
	if err := extractZipFile(collection, dbPath); err != nil {
		return nil, err
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open collection: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	defer sqlDB.Close()

	var notes []struct {
		ID   int64
		Flds string
	}
	if err := db.Raw("SELECT id, flds FROM notes ORDER BY id").Scan(&notes).Error; err != nil {
		return nil, fmt.Errorf("%w: read notes: %v", ErrUnsupportedDeckFormat, err)
	}

	cards := make([]models.Card, 0, len(notes))
	for _, note := range notes {
		var fields []string
		for _, field := range strings.Split(note.Flds, fieldSeparator) {
			if clean := CleanFieldText(field); clean != "" {
				fields = append(fields, clean)
			}
		}
		if len(fields) == 0 {
			continue
		}
		card := models.Card{ID: strconv.FormatInt(note.ID, 10), Front: fields[0]}
		if len(fields) > 1 {
			card.Back = fields[1]
		}
		if len(fields) > 2 {
			card.Extra = fields[2:]
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// ImportSpreadsheet reads the first sheet of an .xlsx workbook: column A is
// the front, column B the back. A first row reading "front" is a header.
func ImportSpreadsheet(data []byte) ([]models.Card, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedDeckFormat, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrUnsupportedDeckFormat)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedDeckFormat, err)
	}

	cards := make([]models.Card, 0, len(rows))
	for i, row := range rows {
		if i == 0 && len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "front") {
			continue
		}
		card := models.Card{ID: strconv.Itoa(i + 1)}
		if len(row) > 0 {
			card.Front = CleanFieldText(row[0])
		}
		if len(row) > 1 {
			card.Back = CleanFieldText(row[1])
		}
		if card.Front == "" && card.Back == "" {
			continue
		}
		cards = append(cards, card)
	}
	return cards, nil
}

func extractZipFile(f *zip.File, dst string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	return out.Close()
}

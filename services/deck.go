package services

import (
	"archive/zip"
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	deckModelName    = "Audio Practice Model"
	deckTemplateName = "Audio to Native"
	fieldSeparator   = "\x1f"
)

// DeckCard is one card handed to the packager. Cards without Audio are
// excluded from the package and counted in DeckFile.Skipped.
type DeckCard struct {
	Front     string
	Back      string
	AudioFile string
	Audio     []byte
}

// DeckFile is a finished .apkg package.
type DeckFile struct {
	Name     string
	FileName string
	Data     []byte
	Cards    int
	Skipped  int
}

// DeckPackager writes Anki packages: a zip holding a collection.anki2 SQLite
// database, a "media" index and the numbered media files.
type DeckPackager struct {
	now func() time.Time
}

func NewDeckPackager() *DeckPackager {
	return &DeckPackager{now: time.Now}
}

// DeckFileName is the download name for a deck.
func DeckFileName(deckName string) string {
	name := slug.Make(deckName)
	if name == "" {
		name = "audio-practice-deck"
	}
	return name + ".apkg"
}

// DefaultDeckName names a deck after its language pair.
func DefaultDeckName(target, native string) string {
	if target == "" {
		target = "auto"
	}
	if native == "" {
		return fmt.Sprintf("Audio Practice Deck (%s)", strings.ToUpper(target))
	}
	return fmt.Sprintf("Audio Practice Deck (%s - %s)", strings.ToUpper(target), strings.ToUpper(native))
}

// Build packages cards in input order. Any failure is wrapped in ErrPackaging.
func (p *DeckPackager) Build(deckName string, cards []DeckCard) (DeckFile, error) {
	if deckName == "" {
		deckName = DefaultDeckName("", "")
	}

	dir, err := os.MkdirTemp("", "audiodeck-*")
	if err != nil {
		return DeckFile{}, fmt.Errorf("%w: temp dir: %v", ErrPackaging, err)
	}
	defer os.RemoveAll(dir)

	included := make([]DeckCard, 0, len(cards))
	for _, card := range cards {
		if len(card.Audio) == 0 || card.AudioFile == "" {
			continue
		}
		included = append(included, card)
	}

	collectionPath := filepath.Join(dir, "collection.anki2")
	if err := p.writeCollection(collectionPath, deckName, included); err != nil {
		return DeckFile{}, fmt.Errorf("%w: %v", ErrPackaging, err)
	}

	data, err := zipPackage(collectionPath, included)
	if err != nil {
		return DeckFile{}, fmt.Errorf("%w: %v", ErrPackaging, err)
	}

	return DeckFile{
		Name:     deckName,
		FileName: DeckFileName(deckName),
		Data:     data,
		Cards:    len(included),
		Skipped:  len(cards) - len(included),
	}, nil
}

type ankiNote struct {
	ID    int64  `gorm:"column:id;primaryKey;autoIncrement:false"`
	GUID  string `gorm:"column:guid"`
	Mid   int64  `gorm:"column:mid"`
	Mod   int64  `gorm:"column:mod"`
	Usn   int    `gorm:"column:usn"`
	Tags  string `gorm:"column:tags"`
	Flds  string `gorm:"column:flds"`
	Sfld  string `gorm:"column:sfld"`
	Csum  int64  `gorm:"column:csum"`
	Flags int    `gorm:"column:flags"`
	Data  string `gorm:"column:data"`
}

func (ankiNote) TableName() string { return "notes" }

type ankiCard struct {
	ID     int64  `gorm:"column:id;primaryKey;autoIncrement:false"`
	Nid    int64  `gorm:"column:nid"`
	Did    int64  `gorm:"column:did"`
	Ord    int    `gorm:"column:ord"`
	Mod    int64  `gorm:"column:mod"`
	Usn    int    `gorm:"column:usn"`
	Type   int    `gorm:"column:type"`
	Queue  int    `gorm:"column:queue"`
	Due    int    `gorm:"column:due"`
	Ivl    int    `gorm:"column:ivl"`
	Factor int    `gorm:"column:factor"`
	Reps   int    `gorm:"column:reps"`
	Lapses int    `gorm:"column:lapses"`
	Left   int    `gorm:"column:left"`
	Odue   int    `gorm:"column:odue"`
	Odid   int    `gorm:"column:odid"`
	Flags  int    `gorm:"column:flags"`
	Data   string `gorm:"column:data"`
}

func (ankiCard) TableName() string { return "cards" }

const ankiSchema = `
CREATE TABLE col (
    id integer primary key, crt integer not null, mod integer not null,
    scm integer not null, ver integer not null, dty integer not null,
    usn integer not null, ls integer not null, conf text not null,
    models text not null, decks text not null, dconf text not null,
    tags text not null
);
CREATE TABLE notes (
    id integer primary key, guid text not null, mid integer not null,
    mod integer not null, usn integer not null, tags text not null,
    flds text not null, sfld integer not null, csum integer not null,
    flags integer not null, data text not null
);
CREATE TABLE cards (
    id integer primary key, nid integer not null, did integer not null,
    ord integer not null, mod integer not null, usn integer not null,
    type integer not null, queue integer not null, due integer not null,
    ivl integer not null, factor integer not null, reps integer not null,
    lapses integer not null, left integer not null, odue integer not null,
    odid integer not null, flags integer not null, data text not null
);
CREATE TABLE revlog (
    id integer primary key, cid integer not null, usn integer not null,
    ease integer not null, ivl integer not null, lastIvl integer not null,
    factor integer not null, time integer not null, type integer not null
);
CREATE TABLE graves (usn integer not null, oid integer not null, type integer not null);
CREATE INDEX ix_notes_usn on notes (usn);
CREATE INDEX ix_cards_usn on cards (usn);
CREATE INDEX ix_revlog_usn on revlog (usn);
CREATE INDEX ix_cards_nid on cards (nid);
CREATE INDEX ix_cards_sched on cards (did, queue, due);
CREATE INDEX ix_revlog_cid on revlog (cid);
CREATE INDEX ix_notes_csum on notes (csum);
`

func (p *DeckPackager) writeCollection(path, deckName string, cards []DeckCard) error {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("open collection: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("collection handle: %w", err)
	}
	defer sqlDB.Close()

	now := p.now()
	deckID := stableID("audio_practice_deck_" + deckName)
	modelID := stableID("audio_practice_model_" + deckName)

	for _, stmt := range strings.Split(ankiSchema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	conf, models, decks, dconf, err := collectionJSON(now, deckID, modelID, deckName)
	if err != nil {
		return err
	}
	err = db.Exec(`INSERT INTO col VALUES (1, ?, ?, ?, 11, 0, 0, 0, ?, ?, ?, ?, '{}')`,
		now.Unix(), now.UnixMilli(), now.UnixMilli(), conf, models, decks, dconf).Error
	if err != nil {
		return fmt.Errorf("insert col: %w", err)
	}

	if len(cards) == 0 {
		return nil
	}

	baseID := now.UnixMilli()
	notes := make([]ankiNote, 0, len(cards))
	ankiCards := make([]ankiCard, 0, len(cards))
	for i, card := range cards {
		fields := []string{"[sound:" + card.AudioFile + "]", card.Front, card.Back}
		noteID := baseID + int64(i)
		notes = append(notes, ankiNote{
			ID:   noteID,
			GUID: noteGUID(deckID, fields),
			Mid:  modelID,
			Mod:  now.Unix(),
			Usn:  -1,
			Flds: strings.Join(fields, fieldSeparator),
			Sfld: card.Front,
			Csum: fieldChecksum(card.Front),
		})
		ankiCards = append(ankiCards, ankiCard{
			ID:  noteID,
			Nid: noteID,
			Did: deckID,
			Mod: now.Unix(),
			Usn: -1,
			Due: i + 1,
		})
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(notes, 200).Error; err != nil {
			return fmt.Errorf("insert notes: %w", err)
		}
		if err := tx.CreateInBatches(ankiCards, 200).Error; err != nil {
			return fmt.Errorf("insert cards: %w", err)
		}
		return nil
	})
}

func collectionJSON(now time.Time, deckID, modelID int64, deckName string) (conf, models, decks, dconf string, err error) {
	confMap := map[string]any{
		"activeDecks":   []int64{deckID},
		"curDeck":       deckID,
		"newSpread":     0,
		"collapseTime":  1200,
		"timeLim":       0,
		"estTimes":      true,
		"dueCounts":     true,
		"curModel":      strconv.FormatInt(modelID, 10),
		"nextPos":       1,
		"sortType":      "noteFld",
		"sortBackwards": false,
		"addToCur":      true,
	}

	field := func(name string, ord int) map[string]any {
		return map[string]any{
			"name": name, "ord": ord, "font": "Arial", "size": 20,
			"media": []string{}, "rtl": false, "sticky": false,
		}
	}
	modelsMap := map[string]any{
		strconv.FormatInt(modelID, 10): map[string]any{
			"id":    modelID,
			"name":  deckModelName,
			"type":  0,
			"mod":   now.Unix(),
			"usn":   -1,
			"sortf": 1,
			"did":   deckID,
			"flds":  []any{field("Audio", 0), field("Front", 1), field("Back", 2)},
			"tmpls": []any{map[string]any{
				"name":  deckTemplateName,
				"ord":   0,
				"qfmt":  "{{Audio}}",
				"afmt":  `{{FrontSide}}<hr id="answer">{{Front}}<br>{{Back}}`,
				"bqfmt": "",
				"bafmt": "",
				"did":   nil,
			}},
			"req":       []any{[]any{0, "any", []int{0}}},
			"tags":      []string{},
			"vers":      []any{},
			"css":       ".card { font-family: arial; font-size: 20px; text-align: center; color: black; background-color: white; }",
			"latexPre":  "\\documentclass[12pt]{article}\n\\special{papersize=3in,5in}\n\\usepackage{amssymb,amsmath}\n\\pagestyle{empty}\n\\setlength{\\parindent}{0in}\n\\begin{document}\n",
			"latexPost": "\\end{document}",
		},
	}

	deck := func(id int64, name string) map[string]any {
		return map[string]any{
			"id": id, "name": name, "desc": "", "mod": now.Unix(), "usn": -1,
			"collapsed": false, "conf": 1, "dyn": 0, "extendNew": 10, "extendRev": 50,
			"lrnToday": []int{0, 0}, "newToday": []int{0, 0},
			"revToday": []int{0, 0}, "timeToday": []int{0, 0},
		}
	}
	decksMap := map[string]any{
		"1":                           deck(1, "Default"),
		strconv.FormatInt(deckID, 10): deck(deckID, deckName),
	}

	dconfMap := map[string]any{
		"1": map[string]any{
			"id": 1, "name": "Default", "mod": 0, "usn": 0, "maxTaken": 60,
			"autoplay": true, "timer": 0, "replayq": true,
			"new": map[string]any{
				"bury": true, "delays": []int{1, 10}, "initialFactor": 2500,
				"ints": []int{1, 4, 7}, "order": 1, "perDay": 20, "separate": true,
			},
			"lapse": map[string]any{
				"delays": []int{10}, "leechAction": 0, "leechFails": 8, "minInt": 1, "mult": 0,
			},
			"rev": map[string]any{
				"bury": true, "ease4": 1.3, "fuzz": 0.05, "ivlFct": 1,
				"maxIvl": 36500, "minSpace": 1, "perDay": 100,
			},
		},
	}

	out := make([]string, 0, 4)
	for _, v := range []any{confMap, modelsMap, decksMap, dconfMap} {
		b, err := json.Marshal(v)
		if err != nil {
			return "", "", "", "", fmt.Errorf("marshal collection json: %w", err)
		}
		out = append(out, string(b))
	}
	return out[0], out[1], out[2], out[3], nil
}

func zipPackage(collectionPath string, cards []DeckCard) ([]byte, error) {
	collection, err := os.ReadFile(collectionPath)
	if err != nil {
		return nil, fmt.Errorf("read collection: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, err := zw.Create("collection.anki2")
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(collection); err != nil {
		return nil, err
	}

	// media entries are numbered; "media" maps number -> file name
	mediaIndex := map[string]string{}
	seen := map[string]bool{}
	for _, card := range cards {
		if seen[card.AudioFile] {
			continue
		}
		seen[card.AudioFile] = true
		key := strconv.Itoa(len(mediaIndex))
		mediaIndex[key] = card.AudioFile

		w, err := zw.Create(key)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(card.Audio); err != nil {
			return nil, err
		}
	}

	index, err := json.Marshal(mediaIndex)
	if err != nil {
		return nil, err
	}
	w, err = zw.Create("media")
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(index); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// stableID derives a positive 32-bit id from seed.
func stableID(seed string) int64 {
	sum := md5.Sum([]byte(seed))
	id, _ := strconv.ParseInt(hex.EncodeToString(sum[:4]), 16, 64)
	return id
}

func noteGUID(deckID int64, fields []string) string {
	sum := sha256.Sum256([]byte(strconv.FormatInt(deckID, 10) + fieldSeparator + strings.Join(fields, fieldSeparator)))
	return base64.RawURLEncoding.EncodeToString(sum[:])[:10]
}

// fieldChecksum is Anki's duplicate-check value: the first 8 hex digits of
// the SHA-1 of the stripped sort field.
func fieldChecksum(field string) int64 {
	sum := sha1.Sum([]byte(CleanFieldText(field)))
	v, _ := strconv.ParseInt(hex.EncodeToString(sum[:4]), 16, 64)
	return v
}

package controllers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/vnkhanh/audiodeck-backend/models"
	"github.com/vnkhanh/audiodeck-backend/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakePipeline struct {
	gotCards []models.Card
	gotOpts  models.DeckOptions
	report   models.CommitReport
	deck     services.DeckFile
	err      error
}

func (f *fakePipeline) Preview(cards []models.Card, opts models.DeckOptions) (models.PreviewReport, error) {
	f.gotCards, f.gotOpts = cards, opts
	if f.err != nil {
		return models.PreviewReport{}, f.err
	}
	return models.PreviewReport{TotalCards: len(cards), AudioCards: len(cards)}, nil
}

func (f *fakePipeline) Commit(_ context.Context, cards []models.Card, opts models.DeckOptions) (models.CommitReport, services.DeckFile, error) {
	f.gotCards, f.gotOpts = cards, opts
	return f.report, f.deck, f.err
}

func deckRouter(p DeckPipeline) *gin.Engine {
	dc := NewDeckController(p, 1<<20)
	r := gin.New()
	r.GET("/api/languages", GetLanguages)
	r.POST("/api/decks/preview", dc.Preview)
	r.POST("/api/decks/commit", dc.Commit)
	return r
}

func postJSON(r http.Handler, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPreview_JSON(t *testing.T) {
	p := &fakePipeline{}
	w := postJSON(deckRouter(p), "/api/decks/preview",
		`{"cards":[{"front":"hello"},{"front":"bonjour"}],"options":{"native_language":"en","audio_side":"auto"}}`, nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, p.gotCards, 2)
	assert.Equal(t, "bonjour", p.gotCards[1].Front)
	assert.Equal(t, "en", p.gotOpts.NativeLanguage)

	var report models.PreviewReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 2, report.TotalCards)
}

func TestPreview_InvalidBody(t *testing.T) {
	w := postJSON(deckRouter(&fakePipeline{}), "/api/decks/preview", `{"cards":`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), services.KindInvalidInput)
}

func TestPreview_ValidationErrorIsBadRequest(t *testing.T) {
	w := postJSON(deckRouter(&fakePipeline{err: services.ErrNoCards}), "/api/decks/preview", `{"cards":[]}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCommit_JSONResponse(t *testing.T) {
	p := &fakePipeline{
		report: models.CommitReport{
			DeckName:     "Greetings",
			FileName:     "greetings.apkg",
			CardsCreated: 1,
			CardsFailed:  1,
			Results: []models.CardResult{
				{Index: 0, State: models.CardStored},
				{Index: 1, State: models.CardFailed, ErrorKind: services.KindUnsupportedLanguage},
			},
		},
		deck: services.DeckFile{Name: "Greetings", FileName: "greetings.apkg", Data: []byte("PK-deck")},
	}
	w := postJSON(deckRouter(p), "/api/decks/commit", `{"cards":[{"front":"hello"},{"front":"xyz"}]}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		FileName     string              `json:"file_name"`
		CardsCreated int                 `json:"cards_created"`
		CardsFailed  int                 `json:"cards_failed"`
		Results      []models.CardResult `json:"results"`
		DeckBase64   string              `json:"deck_base64"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "greetings.apkg", body.FileName)
	assert.Equal(t, 1, body.CardsCreated)
	assert.Equal(t, 1, body.CardsFailed)
	require.Len(t, body.Results, 2)
	assert.Equal(t, services.KindUnsupportedLanguage, body.Results[1].ErrorKind)

	deck, err := base64.StdEncoding.DecodeString(body.DeckBase64)
	require.NoError(t, err)
	assert.Equal(t, []byte("PK-deck"), deck)
}

func TestCommit_Attachment(t *testing.T) {
	p := &fakePipeline{
		report: models.CommitReport{DeckName: "D", FileName: "d.apkg", CardsCreated: 2},
		deck:   services.DeckFile{FileName: "d.apkg", Data: []byte("PK-deck")},
	}
	w := postJSON(deckRouter(p), "/api/decks/commit", `{"cards":[{"front":"a"},{"front":"b"}]}`,
		map[string]string{"Accept": "application/octet-stream"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="d.apkg"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "2", w.Header().Get("X-Cards-Created"))
	assert.Equal(t, "0", w.Header().Get("X-Cards-Failed"))
	assert.Equal(t, []byte("PK-deck"), w.Body.Bytes())

	raw, err := base64.StdEncoding.DecodeString(w.Header().Get("X-Card-Report"))
	require.NoError(t, err)
	var report models.CommitReport
	require.NoError(t, json.Unmarshal(raw, &report))
	assert.Equal(t, 2, report.CardsCreated)
}

func TestCommit_AttachmentOmitsLargeReport(t *testing.T) {
	results := make([]models.CardResult, 500)
	for i := range results {
		results[i] = models.CardResult{Index: i, State: models.CardStored, Fingerprint: strings.Repeat("a", 64)}
	}
	p := &fakePipeline{
		report: models.CommitReport{FileName: "big.apkg", CardsCreated: len(results), Results: results},
		deck:   services.DeckFile{FileName: "big.apkg", Data: []byte("PK-deck")},
	}
	w := postJSON(deckRouter(p), "/api/decks/commit", `{"cards":[{"front":"a"}]}`,
		map[string]string{"Accept": "application/octet-stream"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-Card-Report"))
	assert.Equal(t, "true", w.Header().Get("X-Card-Report-Omitted"))
	assert.Equal(t, "500", w.Header().Get("X-Cards-Created"))
	assert.Equal(t, []byte("PK-deck"), w.Body.Bytes())
}

func TestCommit_FatalErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
		kind string
	}{
		{services.ErrSynthesisAuth, http.StatusBadGateway, services.KindSynthesisAuth},
		{services.ErrPackaging, http.StatusInternalServerError, services.KindPackaging},
		{context.Canceled, http.StatusRequestTimeout, services.KindCancelled},
		{services.ErrTooManyCards, http.StatusBadRequest, services.KindInvalidInput},
	}
	for _, tt := range tests {
		p := &fakePipeline{
			err:    tt.err,
			report: models.CommitReport{Results: []models.CardResult{{Index: 0, State: models.CardFailed}}},
		}
		w := postJSON(deckRouter(p), "/api/decks/commit", `{"cards":[{"front":"a"}]}`, nil)
		assert.Equal(t, tt.want, w.Code, "%v", tt.err)

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, tt.kind, body["kind"])
		assert.NotContains(t, body, "deck_base64")
		assert.Contains(t, body, "results")
	}
}

func multipartBody(t *testing.T, fileName string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestPreview_SpreadsheetUpload(t *testing.T) {
	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)
	require.NoError(t, wb.SetCellValue(sheet, "A1", "hello"))
	require.NoError(t, wb.SetCellValue(sheet, "B1", "bonjour"))
	xlsx, err := wb.WriteToBuffer()
	require.NoError(t, err)

	body, contentType := multipartBody(t, "words.xlsx", xlsx.Bytes(), map[string]string{
		"language":        "fr",
		"native_language": "en",
		"deck_name":       "Upload",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/decks/preview", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	p := &fakePipeline{}
	deckRouter(p).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, p.gotCards, 1)
	assert.Equal(t, "hello", p.gotCards[0].Front)
	assert.Equal(t, "bonjour", p.gotCards[0].Back)
	assert.Equal(t, "fr", p.gotOpts.TargetLanguage)
	assert.Equal(t, "en", p.gotOpts.NativeLanguage)
	assert.Equal(t, "Upload", p.gotOpts.DeckName)
}

func TestPreview_UnsupportedUpload(t *testing.T) {
	body, contentType := multipartBody(t, "notes.csv", []byte("a,b"), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/decks/preview", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	deckRouter(&fakePipeline{}).ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetLanguages(t *testing.T) {
	w := httptest.NewRecorder()
	deckRouter(&fakePipeline{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/languages", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data []struct {
			Code string `json:"code"`
		} `json:"data"`
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 32, body.Count)
	assert.Len(t, body.Data, 32)
}

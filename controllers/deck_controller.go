package controllers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vnkhanh/audiodeck-backend/models"
	"github.com/vnkhanh/audiodeck-backend/services"
)

// Proxies commonly cap a single response header at 4-8 KB.
const maxReportHeaderBytes = 4096

// DeckPipeline is the preview/commit workflow behind the deck endpoints.
type DeckPipeline interface {
	Preview(cards []models.Card, opts models.DeckOptions) (models.PreviewReport, error)
	Commit(ctx context.Context, cards []models.Card, opts models.DeckOptions) (models.CommitReport, services.DeckFile, error)
}

type DeckController struct {
	pipeline       DeckPipeline
	maxUploadBytes int64
}

func NewDeckController(pipeline DeckPipeline, maxUploadBytes int64) *DeckController {
	return &DeckController{pipeline: pipeline, maxUploadBytes: maxUploadBytes}
}

// Preview godoc: POST /api/decks/preview
// Accepts a JSON DeckSpec or a multipart upload ("file" = .apkg/.xlsx).
func (dc *DeckController) Preview(c *gin.Context) {
	spec, ok := dc.bindDeckSpec(c)
	if !ok {
		return
	}

	report, err := dc.pipeline.Preview(spec.Cards, spec.Options)
	if err != nil {
		respondPipelineError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Commit godoc: POST /api/decks/commit
// Returns the deck as base64 inside the JSON report, or as an attachment
// when the client sends Accept: application/octet-stream.
func (dc *DeckController) Commit(c *gin.Context) {
	spec, ok := dc.bindDeckSpec(c)
	if !ok {
		return
	}

	report, deck, err := dc.pipeline.Commit(c.Request.Context(), spec.Cards, spec.Options)
	if err != nil {
		respondPipelineError(c, err, report.Results)
		return
	}

	if strings.Contains(c.GetHeader("Accept"), "application/octet-stream") {
		reportJSON, err := json.Marshal(report)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "kind": services.KindInternal})
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, deck.FileName))
		c.Header("X-Cards-Created", strconv.Itoa(report.CardsCreated))
		c.Header("X-Cards-Failed", strconv.Itoa(report.CardsFailed))
		if encoded := base64.StdEncoding.EncodeToString(reportJSON); len(encoded) <= maxReportHeaderBytes {
			c.Header("X-Card-Report", encoded)
		} else {
			// per-card results are only in the JSON response for large decks
			c.Header("X-Card-Report-Omitted", "true")
		}
		c.Data(http.StatusOK, "application/octet-stream", deck.Data)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deck_name":     report.DeckName,
		"file_name":     report.FileName,
		"cards_created": report.CardsCreated,
		"cards_failed":  report.CardsFailed,
		"results":       report.Results,
		"deck_base64":   base64.StdEncoding.EncodeToString(deck.Data),
	})
}

// GetLanguages godoc: GET /api/languages
func GetLanguages(c *gin.Context) {
	langs := services.SupportedLanguages()
	out := make([]gin.H, 0, len(langs))
	for _, l := range langs {
		out = append(out, gin.H{"code": l.Code, "name": l.Name, "locale": l.Locale})
	}
	c.JSON(http.StatusOK, gin.H{"data": out, "count": len(out)})
}

func (dc *DeckController) bindDeckSpec(c *gin.Context) (models.DeckSpec, bool) {
	var spec models.DeckSpec

	if dc.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, dc.maxUploadBytes)
	}

	if c.ContentType() != "multipart/form-data" {
		if err := c.ShouldBindJSON(&spec); err != nil {
			badRequest(c, "invalid request body: "+err.Error())
			return spec, false
		}
		return spec, true
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "no file uploaded")
		return spec, false
	}
	format, err := services.FormatFromFileName(fileHeader.Filename)
	if err != nil {
		badRequest(c, err.Error())
		return spec, false
	}
	if err := c.ShouldBind(&spec.Options); err != nil {
		badRequest(c, "invalid options: "+err.Error())
		return spec, false
	}

	file, err := fileHeader.Open()
	if err != nil {
		badRequest(c, "cannot read upload")
		return spec, false
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		badRequest(c, "cannot read upload")
		return spec, false
	}

	spec.Cards, err = services.ImportCards(format, data)
	if err != nil {
		badRequest(c, err.Error())
		return spec, false
	}
	return spec, true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "kind": services.KindInvalidInput})
}

func respondPipelineError(c *gin.Context, err error, results []models.CardResult) {
	status := http.StatusInternalServerError
	kind := services.ErrorKind(err)
	switch {
	case kind == services.KindInvalidInput:
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrSynthesisAuth):
		status = http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusRequestTimeout
	}
	_ = c.Error(err)

	body := gin.H{"error": err.Error(), "kind": kind}
	if len(results) > 0 {
		body["results"] = results
	}
	c.JSON(status, body)
}

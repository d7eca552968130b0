package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	DefaultElevenLabsBaseURL = "https://api.elevenlabs.io"
	DefaultElevenLabsVoiceID = "21m00Tcm4TlvDq8ikWAM"
	DefaultElevenLabsModelID = "eleven_turbo_v2_5"
)

// ElevenLabsConfig configures ElevenLabsSynthesizer.
type ElevenLabsConfig struct {
	APIKey  string
	BaseURL string
	VoiceID string
	ModelID string
}

// ElevenLabsSynthesizer calls the ElevenLabs text-to-speech REST API.
type ElevenLabsSynthesizer struct {
	cfg        ElevenLabsConfig
	httpClient *http.Client
}

type elevenLabsRequest struct {
	Text         string `json:"text"`
	ModelID      string `json:"model_id,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

func NewElevenLabsSynthesizer(cfg ElevenLabsConfig, httpClient *http.Client) *ElevenLabsSynthesizer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultElevenLabsBaseURL
	}
	if cfg.VoiceID == "" {
		cfg.VoiceID = DefaultElevenLabsVoiceID
	}
	if cfg.ModelID == "" {
		cfg.ModelID = DefaultElevenLabsModelID
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &ElevenLabsSynthesizer{cfg: cfg, httpClient: httpClient}
}

func (e *ElevenLabsSynthesizer) Name() string {
	return "elevenlabs"
}

func (e *ElevenLabsSynthesizer) Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("%w: empty text", ErrSynthesisFailed)
	}
	lang, ok := LookupLanguage(req.Language)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, req.Language)
	}

	voiceID := req.Voice
	if voiceID == "" {
		voiceID = e.cfg.VoiceID
	}

	payload, err := json.Marshal(elevenLabsRequest{
		Text:         req.Text,
		ModelID:      e.cfg.ModelID,
		LanguageCode: lang.Code,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrSynthesisFailed, err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=mp3_44100_128",
		strings.TrimRight(e.cfg.BaseURL, "/"), url.PathEscape(voiceID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrSynthesisFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("xi-api-key", e.cfg.APIKey)

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrSynthesisTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrSynthesisTransient, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyElevenLabsStatus(resp.StatusCode, body)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty audio", ErrSynthesisFailed)
	}
	return body, nil
}

func classifyElevenLabsStatus(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 300 {
		msg = msg[:300]
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: status %d: %s", ErrSynthesisAuth, status, msg)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d: %s", ErrSynthesisRateLimited, status, msg)
	case (status == http.StatusBadRequest || status == http.StatusUnprocessableEntity) &&
		strings.Contains(strings.ToLower(msg), "language"):
		return fmt.Errorf("%w: status %d: %s", ErrUnsupportedLanguage, status, msg)
	case status >= 500:
		return fmt.Errorf("%w: status %d: %s", ErrSynthesisTransient, status, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrSynthesisFailed, status, msg)
	}
}

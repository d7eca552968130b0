package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	texttospeechpb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Google TTS rejects inputs above 5000 bytes.
const googleChunkBytes = 4500

type googleClient interface {
	SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error)
	Close() error
}

type gapicClient struct {
	*texttospeech.Client
}

func (c gapicClient) SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error) {
	return c.Client.SynthesizeSpeech(ctx, req)
}

// GoogleSynthesizer uses Google Cloud Text-to-Speech.
type GoogleSynthesizer struct {
	client       googleClient
	defaultVoice string
	speakingRate float64
}

// NewGoogleSynthesizer opens a client from a service-account JSON file.
// defaultVoice (e.g. "fr-FR-Neural2-A") is only used for its own locale.
func NewGoogleSynthesizer(ctx context.Context, credentialsFile, defaultVoice string) (*GoogleSynthesizer, error) {
	if credentialsFile == "" {
		return nil, errors.New("GOOGLE_CREDENTIALS_JSON is not set")
	}
	client, err := texttospeech.NewClient(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("create texttospeech client: %w", err)
	}
	return &GoogleSynthesizer{
		client:       gapicClient{client},
		defaultVoice: defaultVoice,
		speakingRate: 1.0,
	}, nil
}

func (g *GoogleSynthesizer) Name() string {
	return "google"
}

func (g *GoogleSynthesizer) Close() error {
	return g.client.Close()
}

// Synthesize converts text to MP3, splitting long inputs at sentence ends.
func (g *GoogleSynthesizer) Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error) {
	if len(strings.TrimSpace(req.Text)) == 0 {
		return nil, fmt.Errorf("%w: empty text", ErrSynthesisFailed)
	}
	lang, ok := LookupLanguage(req.Language)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, req.Language)
	}

	voice := &texttospeechpb.VoiceSelectionParams{LanguageCode: lang.Locale}
	if name := g.voiceFor(lang, req.Voice); name != "" {
		voice.Name = name
	}

	var allAudio []byte
	for _, chunk := range splitTextToChunksByByte(req.Text, googleChunkBytes) {
		resp, err := g.client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
			Input: &texttospeechpb.SynthesisInput{
				InputSource: &texttospeechpb.SynthesisInput_Text{Text: chunk},
			},
			Voice: voice,
			AudioConfig: &texttospeechpb.AudioConfig{
				AudioEncoding: texttospeechpb.AudioEncoding_MP3,
				SpeakingRate:  g.speakingRate,
			},
		})
		if err != nil {
			return nil, classifyGoogleError(err)
		}
		allAudio = append(allAudio, resp.AudioContent...)
	}
	return allAudio, nil
}

// voiceFor picks the request voice, else the configured default when it
// belongs to the same locale. Google rejects a voice from another locale.
func (g *GoogleSynthesizer) voiceFor(lang SupportedLanguage, requested string) string {
	for _, v := range []string{requested, g.defaultVoice} {
		if v != "" && strings.HasPrefix(strings.ToLower(v), strings.ToLower(lang.Locale)) {
			return v
		}
	}
	return ""
}

func classifyGoogleError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	switch status.Code(err) {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %v", ErrSynthesisAuth, err)
	case codes.ResourceExhausted:
		return fmt.Errorf("%w: %v", ErrSynthesisRateLimited, err)
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %v", ErrUnsupportedLanguage, err)
	case codes.Unavailable, codes.DeadlineExceeded, codes.Internal, codes.Aborted:
		return fmt.Errorf("%w: %v", ErrSynthesisTransient, err)
	default:
		return fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}
}

// splitTextToChunksByByte cuts text under maxBytes, preferring sentence ends
// and never splitting a UTF-8 sequence.
func splitTextToChunksByByte(text string, maxBytes int) []string {
	var chunks []string
	remaining := text

	for len(remaining) > 0 {
		if len(remaining) <= maxBytes {
			chunks = append(chunks, remaining)
			break
		}

		cutPos := maxBytes
		for i := cutPos; i > 0; i-- {
			if remaining[i-1] == '.' || remaining[i-1] == '!' || remaining[i-1] == '?' || remaining[i-1] == '\n' {
				cutPos = i
				break
			}
		}

		for cutPos < len(remaining) && (remaining[cutPos]&0xC0) == 0x80 {
			cutPos++
		}

		chunks = append(chunks, remaining[:cutPos])
		remaining = remaining[cutPos:]
	}

	return chunks
}

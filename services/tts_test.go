package services

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	texttospeechpb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeGoogleClient struct {
	requests []*texttospeechpb.SynthesizeSpeechRequest
	err      error
}

func (f *fakeGoogleClient) SynthesizeSpeech(_ context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &texttospeechpb.SynthesizeSpeechResponse{AudioContent: []byte("mp3;")}, nil
}

func (f *fakeGoogleClient) Close() error { return nil }

func TestGoogleSynthesizer_VoiceAndLocale(t *testing.T) {
	client := &fakeGoogleClient{}
	g := &GoogleSynthesizer{client: client, defaultVoice: "fr-FR-Neural2-A", speakingRate: 1}

	audio, err := g.Synthesize(context.Background(), SynthesisRequest{Text: "bonjour", Language: "fr"})
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3;"), audio)
	require.Len(t, client.requests, 1)
	assert.Equal(t, "fr-FR", client.requests[0].Voice.LanguageCode)
	assert.Equal(t, "fr-FR-Neural2-A", client.requests[0].Voice.Name)

	// the French default voice must not be sent for German
	_, err = g.Synthesize(context.Background(), SynthesisRequest{Text: "hallo", Language: "de"})
	require.NoError(t, err)
	assert.Equal(t, "de-DE", client.requests[1].Voice.LanguageCode)
	assert.Empty(t, client.requests[1].Voice.Name)

	_, err = g.Synthesize(context.Background(), SynthesisRequest{Text: "hallo", Language: "de", Voice: "de-DE-Wavenet-B"})
	require.NoError(t, err)
	assert.Equal(t, "de-DE-Wavenet-B", client.requests[2].Voice.Name)
}

func TestGoogleSynthesizer_LongTextIsChunked(t *testing.T) {
	client := &fakeGoogleClient{}
	g := &GoogleSynthesizer{client: client, speakingRate: 1}

	text := strings.Repeat("Une phrase assez longue pour remplir le tampon. ", 200)
	audio, err := g.Synthesize(context.Background(), SynthesisRequest{Text: text, Language: "fr"})
	require.NoError(t, err)
	assert.Greater(t, len(client.requests), 1)
	assert.Equal(t, strings.Repeat("mp3;", len(client.requests)), string(audio))
}

func TestGoogleSynthesizer_ErrorClassification(t *testing.T) {
	tests := []struct {
		code codes.Code
		want error
	}{
		{codes.Unauthenticated, ErrSynthesisAuth},
		{codes.PermissionDenied, ErrSynthesisAuth},
		{codes.ResourceExhausted, ErrSynthesisRateLimited},
		{codes.InvalidArgument, ErrUnsupportedLanguage},
		{codes.Unavailable, ErrSynthesisTransient},
		{codes.NotFound, ErrSynthesisFailed},
	}
	for _, tt := range tests {
		g := &GoogleSynthesizer{client: &fakeGoogleClient{err: status.Error(tt.code, "x")}}
		_, err := g.Synthesize(context.Background(), SynthesisRequest{Text: "hi", Language: "en"})
		assert.ErrorIs(t, err, tt.want, tt.code.String())
	}
}

func TestSplitTextToChunksByByte(t *testing.T) {
	text := strings.Repeat("é", 3000) + ". Fin."
	chunks := splitTextToChunksByByte(text, 1000)

	require.Greater(t, len(chunks), 1)
	assert.Equal(t, text, strings.Join(chunks, ""))
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c))
	}

	assert.Equal(t, []string{"a. b.", " c"}, splitTextToChunksByByte("a. b. c", 6))
}

func TestMP3Duration_RejectsNonAudio(t *testing.T) {
	_, err := MP3Duration([]byte("definitely not an mp3"))
	assert.Error(t, err)
}

package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnkhanh/audiodeck-backend/services"
)

func TestFingerprint_NormalizesWhitespaceAndCase(t *testing.T) {
	t.Parallel()

	base := services.Fingerprint("Hello world", "en")
	for _, variant := range []string{
		"hello world",
		"  Hello world  ",
		"HELLO   WORLD",
		"\tHello\nworld\n",
	} {
		assert.Equal(t, base, services.Fingerprint(variant, "en"), "variant %q", variant)
	}
}

func TestFingerprint_LanguageSensitive(t *testing.T) {
	t.Parallel()

	en := services.Fingerprint("chat", "en")
	fr := services.Fingerprint("chat", "fr")
	assert.NotEqual(t, en, fr)
	assert.Equal(t, en, services.Fingerprint("chat", "EN"))
}

func TestFingerprint_Deterministic(t *testing.T) {
	t.Parallel()

	fp := services.Fingerprint("bonjour", "fr")
	require.Len(t, fp, 64)
	assert.Equal(t, fp, services.Fingerprint("bonjour", "fr"))
	assert.Equal(t, fp+".mp3", services.AudioFileName(fp))
}

func TestNormalizeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"  Straße ", "strasse"},
		{"Ünïcode", "ünïcode"},
		{"a  b\tc", "a b c"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, services.NormalizeText(tt.in), "input %q", tt.in)
	}
}

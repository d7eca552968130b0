package services

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeText is the form text takes before hashing: trimmed, inner
// whitespace collapsed, case-folded and NFC-composed. Inputs that differ only
// in those respects share one cache entry.
func NormalizeText(text string) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	return norm.NFC.String(cases.Fold().String(collapsed))
}

// Fingerprint is the cache key for (text, language). The language is part of
// the digest so the same spelling in two languages is synthesized twice.
func Fingerprint(text, language string) string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(language))))
	h.Write([]byte{0})
	h.Write([]byte(NormalizeText(text)))
	return hex.EncodeToString(h.Sum(nil))
}

// AudioFileName is the object name (and deck media name) for a fingerprint.
func AudioFileName(fingerprint string) string {
	return fingerprint + ".mp3"
}

package models

// CardState tracks a card through the commit phase.
type CardState string

const (
	CardPending      CardState = "pending"
	CardDetecting    CardState = "detecting"
	CardHashing      CardState = "hashing"
	CardCacheLookup  CardState = "cache_lookup"
	CardCacheHit     CardState = "cache_hit"
	CardSynthesizing CardState = "synthesizing"
	CardStored       CardState = "stored"
	CardFailed       CardState = "failed"
)

// Terminal reports whether no further transitions follow.
func (s CardState) Terminal() bool {
	return s == CardStored || s == CardFailed
}

// CardPreview is the per-card result of the preview phase.
type CardPreview struct {
	Index         int       `json:"index"`
	CardID        string    `json:"card_id,omitempty"`
	Front         CardField `json:"front"`
	Back          CardField `json:"back"`
	AudioSide     AudioSide `json:"audio_side,omitempty"`
	AudioText     string    `json:"audio_text,omitempty"`
	AudioLanguage string    `json:"audio_language,omitempty"`
	Uncertain     bool      `json:"uncertain"`
	NeedsAudio    bool      `json:"needs_audio"`
}

// PreviewReport is returned by the preview phase.
type PreviewReport struct {
	TotalCards     int            `json:"total_cards"`
	AudioCards     int            `json:"audio_cards"`
	UncertainCards int            `json:"uncertain_cards"`
	Characters     int            `json:"characters"`
	Languages      map[string]int `json:"languages"`
	Cards          []CardPreview  `json:"cards"`
}

// CardResult is the per-card status of a commit.
type CardResult struct {
	Index       int       `json:"index"`
	CardID      string    `json:"card_id,omitempty"`
	State       CardState `json:"state"`
	Language    string    `json:"language,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	AudioFile   string    `json:"audio_file,omitempty"`
	CacheHit    bool      `json:"cache_hit"`
	ErrorKind   string    `json:"error_kind,omitempty"`
	Error       string    `json:"error,omitempty"`
	Warning     string    `json:"warning,omitempty"`
}

// CommitReport is returned by the commit phase alongside the deck bytes.
type CommitReport struct {
	DeckName     string       `json:"deck_name"`
	FileName     string       `json:"file_name"`
	CardsCreated int          `json:"cards_created"`
	CardsFailed  int          `json:"cards_failed"`
	Results      []CardResult `json:"results"`
}

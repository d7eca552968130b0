package models

// CardField is one side of a flashcard. Language stays empty until detection runs.
type CardField struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
	Fallback bool   `json:"fallback,omitempty"` // detector gave no guess, default language used
	IsNative bool   `json:"is_native,omitempty"`
}

// Card is an incoming flashcard. Extra holds any further note fields after
// front and back, in note order.
type Card struct {
	ID    string   `json:"id,omitempty"`
	Front string   `json:"front"`
	Back  string   `json:"back"`
	Extra []string `json:"extra,omitempty"`
}

type AudioSide string

const (
	AudioSideAuto  AudioSide = "auto"
	AudioSideFront AudioSide = "front"
	AudioSideBack  AudioSide = "back"
)

// DeckOptions are the generation options sent alongside the cards.
type DeckOptions struct {
	DeckName       string    `json:"deck_name" form:"deck_name"`
	TargetLanguage string    `json:"target_language" form:"language"`
	NativeLanguage string    `json:"native_language" form:"native_language"`
	Voice          string    `json:"voice" form:"voice"`
	AudioSide      AudioSide `json:"audio_side" form:"audio_side"`
	JobID          string    `json:"job_id" form:"job_id"`
}

// DeckSpec is the full user input: cards plus options.
type DeckSpec struct {
	Cards   []Card      `json:"cards"`
	Options DeckOptions `json:"options"`
}

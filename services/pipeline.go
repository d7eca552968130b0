package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/vnkhanh/audiodeck-backend/models"
)

// PipelineConfig is everything the orchestrator needs from configuration.
type PipelineConfig struct {
	DefaultLanguage string
	Concurrency     int
	MaxCards        int
}

// ProgressReporter receives card state changes during a commit.
type ProgressReporter interface {
	CardProgress(jobID string, result models.CardResult, done, total int)
}

// Pipeline runs the two-phase preview/commit workflow.
type Pipeline struct {
	cfg      PipelineConfig
	detector Detector
	cache    *AudioCache
	synth    Synthesizer
	packager *DeckPackager
	progress ProgressReporter
}

func NewPipeline(cfg PipelineConfig, detector Detector, cache *AudioCache, synth Synthesizer, packager *DeckPackager, progress ProgressReporter) *Pipeline {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Pipeline{
		cfg:      cfg,
		detector: detector,
		cache:    cache,
		synth:    synth,
		packager: packager,
		progress: progress,
	}
}

// Preview detects languages and plans which field of each card is voiced.
// It touches neither the cache nor the synthesizer.
func (p *Pipeline) Preview(cards []models.Card, opts models.DeckOptions) (models.PreviewReport, error) {
	opts, err := p.validate(cards, opts)
	if err != nil {
		return models.PreviewReport{}, err
	}

	report := models.PreviewReport{
		TotalCards: len(cards),
		Languages:  map[string]int{},
		Cards:      make([]models.CardPreview, 0, len(cards)),
	}
	for i, card := range cards {
		plan := p.plan(i, card, opts)
		if plan.Uncertain {
			report.UncertainCards++
		}
		if plan.NeedsAudio {
			report.AudioCards++
			report.Characters += utf8.RuneCountInString(plan.AudioText)
			report.Languages[plan.AudioLanguage]++
		}
		report.Cards = append(report.Cards, plan)
	}
	return report, nil
}

// Commit resolves audio for every card and packages the deck. Per-card
// failures are reported and the card is left out of the deck; auth and
// packaging failures abort the whole commit and no deck is returned.
func (p *Pipeline) Commit(ctx context.Context, cards []models.Card, opts models.DeckOptions) (models.CommitReport, DeckFile, error) {
	opts, err := p.validate(cards, opts)
	if err != nil {
		return models.CommitReport{}, DeckFile{}, err
	}

	deckName := opts.DeckName
	if deckName == "" {
		deckName = DefaultDeckName(opts.TargetLanguage, opts.NativeLanguage)
	}

	results := make([]models.CardResult, len(cards))
	deckCards := make([]DeckCard, len(cards))
	tracker := &progressTracker{reporter: p.progress, jobID: opts.JobID, total: len(cards)}

	// calls already sent to the synthesizer or storage finish even if the
	// client goes away; the request context is checked once the batch ends
	external := context.WithoutCancel(ctx)
	g, gctx := errgroup.WithContext(external)
	g.SetLimit(p.cfg.Concurrency)

	for i, card := range cards {
		g.Go(func() error {
			if gctx.Err() != nil {
				results[i] = failedResult(i, card, gctx.Err())
				tracker.report(results[i])
				return nil
			}
			result, deckCard, err := p.commitCard(gctx, i, card, opts, tracker)
			results[i] = result
			deckCards[i] = deckCard
			return err
		})
	}

	err = g.Wait()
	observeResults(results)
	if err != nil {
		log.Error().Err(err).Str("job_id", opts.JobID).Msg("commit aborted")
		return models.CommitReport{DeckName: deckName, Results: results}, DeckFile{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.CommitReport{DeckName: deckName, Results: results}, DeckFile{}, err
	}

	deck, err := p.packager.Build(deckName, deckCards)
	if err != nil {
		return models.CommitReport{DeckName: deckName, Results: results}, DeckFile{}, err
	}

	report := models.CommitReport{
		DeckName: deck.Name,
		FileName: deck.FileName,
		Results:  results,
	}
	for _, r := range results {
		if r.State == models.CardStored {
			report.CardsCreated++
		} else {
			report.CardsFailed++
		}
	}

	log.Info().
		Str("job_id", opts.JobID).
		Str("deck", deck.Name).
		Int("cards", len(cards)).
		Int("created", report.CardsCreated).
		Int("failed", report.CardsFailed).
		Msg("deck committed")

	return report, deck, nil
}

// commitCard walks one card through
// pending → detecting → hashing → cache_lookup → {cache_hit | synthesizing} → {stored | failed}.
// The returned error is non-nil only for failures that abort the batch.
func (p *Pipeline) commitCard(ctx context.Context, i int, card models.Card, opts models.DeckOptions, tracker *progressTracker) (models.CardResult, DeckCard, error) {
	result := models.CardResult{Index: i, CardID: card.ID, State: models.CardPending}
	step := func(state models.CardState) {
		result.State = state
		tracker.report(result)
	}
	fail := func(err error) (models.CardResult, DeckCard, error) {
		result.State = models.CardFailed
		result.ErrorKind = ErrorKind(err)
		result.Error = err.Error()
		tracker.report(result)
		log.Warn().Err(err).Int("card", i).Str("kind", result.ErrorKind).Msg("card failed")
		if IsFatal(err) {
			return result, DeckCard{}, err
		}
		return result, DeckCard{}, nil
	}

	step(models.CardDetecting)
	plan := p.plan(i, card, opts)
	if !plan.NeedsAudio {
		return fail(ErrEmptyCard)
	}
	result.Language = plan.AudioLanguage

	step(models.CardHashing)
	fp := Fingerprint(plan.AudioText, plan.AudioLanguage)
	result.Fingerprint = fp

	synth := func(ctx context.Context, text, language string) ([]byte, error) {
		step(models.CardSynthesizing)
		return p.synth.Synthesize(ctx, SynthesisRequest{Text: text, Language: language, Voice: opts.Voice})
	}

	step(models.CardCacheLookup)
	ref, err := p.cache.GetOrCreate(ctx, fp, plan.AudioText, plan.AudioLanguage, synth)
	if err != nil {
		return fail(err)
	}
	if ref.CacheHit {
		result.CacheHit = true
		step(models.CardCacheHit)
	}

	audio, err := p.cache.Fetch(ctx, ref)
	if err != nil && ref.CacheHit && errors.Is(err, ErrStorageDownload) {
		log.Warn().Err(err).Str("fingerprint", fp).Msg("cached object unreadable, synthesizing again")
		ref, err = p.cache.Repair(ctx, ref, plan.AudioText, synth)
		if err == nil {
			audio, err = p.cache.Fetch(ctx, ref)
		}
	}
	if err != nil {
		return fail(err)
	}
	if ref.WriteErr != nil {
		result.Warning = fmt.Sprintf("%s: %v", KindCacheWrite, ref.WriteErr)
	}

	result.AudioFile = path.Base(ref.Path)
	step(models.CardStored)
	return result, DeckCard{
		Front:     plan.Front.Text,
		Back:      plan.Back.Text,
		AudioFile: result.AudioFile,
		Audio:     audio,
	}, nil
}

// plan detects both fields and picks the voiced one.
func (p *Pipeline) plan(i int, card models.Card, opts models.DeckOptions) models.CardPreview {
	preview := models.CardPreview{
		Index:  i,
		CardID: card.ID,
		Front:  p.detectField(card.Front, opts.NativeLanguage),
		Back:   p.detectField(card.Back, opts.NativeLanguage),
	}
	if opts.NativeLanguage != "" && len(card.Extra) > 0 {
		preview.Front, preview.Back = p.splitNoteFields(preview.Front, preview.Back, card.Extra, opts.NativeLanguage)
	}

	var voiced *models.CardField
	switch opts.AudioSide {
	case models.AudioSideFront:
		voiced, preview.AudioSide = &preview.Front, models.AudioSideFront
	case models.AudioSideBack:
		voiced, preview.AudioSide = &preview.Back, models.AudioSideBack
	default:
		voiced, preview.AudioSide, preview.Uncertain = pickForeignField(&preview, opts.NativeLanguage)
	}

	if voiced == nil || voiced.Text == "" {
		return preview
	}
	preview.AudioText = voiced.Text
	preview.AudioLanguage = voiced.Language
	if opts.TargetLanguage != "" {
		preview.AudioLanguage = opts.TargetLanguage
	}
	preview.NeedsAudio = true
	return preview
}

// pickForeignField voices the first non-native field. Without a clear
// foreign/native split the card is uncertain and the front is voiced.
func pickForeignField(preview *models.CardPreview, native string) (*models.CardField, models.AudioSide, bool) {
	front, back := &preview.Front, &preview.Back
	if front.Text == "" && back.Text == "" {
		return nil, "", false
	}
	if native == "" {
		if front.Text == "" {
			return back, models.AudioSideBack, false
		}
		return front, models.AudioSideFront, false
	}

	var foreign, nativeField *models.CardField
	var side models.AudioSide
	for _, candidate := range []struct {
		field *models.CardField
		side  models.AudioSide
	}{{front, models.AudioSideFront}, {back, models.AudioSideBack}} {
		if candidate.field.Text == "" {
			continue
		}
		if candidate.field.IsNative {
			if nativeField == nil {
				nativeField = candidate.field
			}
			continue
		}
		if foreign == nil {
			foreign, side = candidate.field, candidate.side
		}
	}

	if foreign != nil && nativeField != nil {
		return foreign, side, false
	}
	if foreign != nil {
		return foreign, side, true
	}
	if front.Text != "" {
		return front, models.AudioSideFront, true
	}
	return back, models.AudioSideBack, true
}

// splitNoteFields picks front and back of a note with more than two fields:
// the first non-native field and the first native one. Notes without both
// keep their first two fields.
func (p *Pipeline) splitNoteFields(front, back models.CardField, extra []string, native string) (models.CardField, models.CardField) {
	fields := []models.CardField{front, back}
	for _, raw := range extra {
		fields = append(fields, p.detectField(raw, native))
	}

	var foreign, nativeField *models.CardField
	for i := range fields {
		f := &fields[i]
		switch {
		case f.Text == "":
		case f.IsNative && nativeField == nil:
			nativeField = f
		case !f.IsNative && foreign == nil:
			foreign = f
		}
	}
	if foreign == nil || nativeField == nil {
		return front, back
	}
	return *foreign, *nativeField
}

func (p *Pipeline) detectField(raw, native string) models.CardField {
	field := models.CardField{Text: CleanFieldText(raw)}
	if field.Text == "" {
		return field
	}
	field.Language, field.Fallback = p.detector.Detect(field.Text)
	if field.Fallback && p.cfg.DefaultLanguage != "" {
		field.Language = p.cfg.DefaultLanguage
	}
	field.IsNative = native != "" && field.Language == native
	return field
}

func (p *Pipeline) validate(cards []models.Card, opts models.DeckOptions) (models.DeckOptions, error) {
	if len(cards) == 0 {
		return opts, ErrNoCards
	}
	if p.cfg.MaxCards > 0 && len(cards) > p.cfg.MaxCards {
		return opts, fmt.Errorf("%w: %d > %d", ErrTooManyCards, len(cards), p.cfg.MaxCards)
	}

	for _, lang := range []*string{&opts.TargetLanguage, &opts.NativeLanguage} {
		if *lang == "" {
			continue
		}
		supported, ok := LookupLanguage(*lang)
		if !ok {
			return opts, fmt.Errorf("%w: unsupported language %q", ErrInvalidOptions, *lang)
		}
		*lang = supported.Code
	}

	side := models.AudioSide(strings.ToLower(string(opts.AudioSide)))
	switch side {
	case "":
		side = models.AudioSideAuto
	case models.AudioSideAuto, models.AudioSideFront, models.AudioSideBack:
	default:
		return opts, fmt.Errorf("%w: audio_side %q", ErrInvalidOptions, opts.AudioSide)
	}
	opts.AudioSide = side
	return opts, nil
}

func observeResults(results []models.CardResult) {
	for _, r := range results {
		cardsProcessed.WithLabelValues(string(r.State)).Inc()
	}
}

func failedResult(i int, card models.Card, err error) models.CardResult {
	return models.CardResult{
		Index:     i,
		CardID:    card.ID,
		State:     models.CardFailed,
		ErrorKind: ErrorKind(err),
		Error:     err.Error(),
	}
}

type progressTracker struct {
	reporter ProgressReporter
	jobID    string
	total    int
	mu       sync.Mutex
	done     int
}

func (t *progressTracker) report(result models.CardResult) {
	if t.reporter == nil || t.jobID == "" {
		return
	}
	t.mu.Lock()
	if result.State.Terminal() {
		t.done++
	}
	done := t.done
	t.mu.Unlock()
	t.reporter.CardProgress(t.jobID, result, done, t.total)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dasmlab/aarogya/pkg/catalog"
	"github.com/dasmlab/aarogya/pkg/generate"
	"github.com/dasmlab/aarogya/pkg/prompt"
	"github.com/sirupsen/logrus"
)

// Translator converts text between catalog languages.
// *translate.Registry satisfies it.
type Translator interface {
	Translate(ctx context.Context, text string, src, tgt catalog.Code) (string, error)
}

// Generator produces an answer for a prompt.
// *generate.Stage satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt string, cfg generate.Config) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string, cfg generate.Config) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string, cfg generate.Config) (string, error) {
	return f(ctx, prompt, cfg)
}

// ChatRequest is an inbound question as received at the boundary.
type ChatRequest struct {
	Text string
	Lang string
}

// Outcome classifies a pipeline result.
type Outcome int

const (
	Success Outcome = iota
	SoftFailure
	HardFailure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case SoftFailure:
		return "soft_failure"
	case HardFailure:
		return "hard_failure"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is produced once per validated request.
//
//   - Success: Lang, Answer and NormalizedEnglish are set.
//   - SoftFailure: Lang, Answer and Warning are set.
//   - HardFailure: only Err is set.
type Result struct {
	Outcome           Outcome
	Lang              catalog.Code
	Answer            string
	NormalizedEnglish string
	Warning           string
	Err               error
}

// Stage names a step of the chat pipeline.
type Stage int

const (
	StageValidate Stage = iota
	StageNormalize
	StageGenerate
	StageDenormalize
	StageRespond
	StageFallback
	StageHardFail
)

func (s Stage) String() string {
	switch s {
	case StageValidate:
		return "validate"
	case StageNormalize:
		return "normalize"
	case StageGenerate:
		return "generate"
	case StageDenormalize:
		return "denormalize"
	case StageRespond:
		return "respond"
	case StageFallback:
		return "fallback"
	case StageHardFail:
		return "hard_fail"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// StageError records which pipeline stage failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ErrValidation matches every request rejection.
var ErrValidation = errors.New("invalid chat request")

// ErrEmptyInput rejects a request whose text is blank after trimming.
var ErrEmptyInput = fmt.Errorf("%w: Empty text", ErrValidation)

// ValidationMessage returns the message reported to callers for a
// rejected request.
func ValidationMessage(err error) string {
	var unsupported *UnsupportedLanguageError
	if errors.As(err, &unsupported) {
		return unsupported.Error()
	}
	if errors.Is(err, ErrEmptyInput) {
		return "Empty text"
	}
	return err.Error()
}

// UnsupportedLanguageError rejects a language outside the catalog.
type UnsupportedLanguageError struct {
	Lang      string
	Supported []catalog.Code
}

func (e *UnsupportedLanguageError) Error() string {
	return fmt.Sprintf("Unsupported lang '%s'. Use one of: %v", e.Lang, e.Supported)
}

func (e *UnsupportedLanguageError) Is(target error) bool {
	return target == ErrValidation
}

// Orchestrator runs the chat pipeline:
// VALIDATE -> NORMALIZE -> GENERATE -> DENORMALIZE -> RESPOND, with a single
// FALLBACK pass on reduced generation settings and HARD_FAIL when that fails too.
type Orchestrator struct {
	catalog    *catalog.Catalog
	translator Translator
	generator  Generator
	prompts    *prompt.Builder
	primary    generate.Config
	reduced    generate.Config
	timeout    time.Duration
	logger     *logrus.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPrimaryConfig overrides the generation settings of the normal path.
func WithPrimaryConfig(cfg generate.Config) Option {
	return func(o *Orchestrator) { o.primary = cfg }
}

// WithReducedConfig overrides the generation settings of the fallback path.
func WithReducedConfig(cfg generate.Config) Option {
	return func(o *Orchestrator) { o.reduced = cfg }
}

// WithPromptBuilder replaces the default prompt builder.
func WithPromptBuilder(b *prompt.Builder) Option {
	return func(o *Orchestrator) {
		if b != nil {
			o.prompts = b
		}
	}
}

// WithTimeout bounds each Chat call, fallback included. Zero means no deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// NewOrchestrator composes the pipeline from its collaborators.
func NewOrchestrator(cat *catalog.Catalog, translator Translator, generator Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		catalog:    cat,
		translator: translator,
		generator:  generator,
		prompts:    prompt.NewBuilder(),
		primary:    generate.Primary(),
		reduced:    generate.Reduced(),
		logger:     logrus.New(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Catalog returns the language catalog requests are validated against.
func (o *Orchestrator) Catalog() *catalog.Catalog {
	return o.catalog
}

// Validate checks req and returns its language and trimmed text. A missing
// language means English. The language is checked before the text.
func (o *Orchestrator) Validate(req ChatRequest) (catalog.Code, string, error) {
	raw := strings.ToLower(strings.TrimSpace(req.Lang))
	if raw == "" {
		raw = string(catalog.English)
	}
	lang, ok := o.catalog.Lookup(raw)
	if !ok {
		return "", "", &UnsupportedLanguageError{Lang: raw, Supported: o.catalog.Codes()}
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return "", "", ErrEmptyInput
	}
	return lang, text, nil
}

// Chat answers req. The returned error is non-nil only when req fails
// validation; pipeline failures are reported through Result.
func (o *Orchestrator) Chat(ctx context.Context, req ChatRequest) (Result, error) {
	startTime := time.Now()

	lang, text, err := o.Validate(req)
	if err != nil {
		chatRejectedTotal.Inc()
		o.logger.WithFields(logrus.Fields{
			"lang":  req.Lang,
			"stage": StageValidate.String(),
		}).WithError(err).Info("Chat request rejected")
		return Result{}, err
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	result := o.run(ctx, lang, text)
	recordChat(lang, result.Outcome, time.Since(startTime))
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, lang catalog.Code, text string) Result {
	logger := o.logger.WithField("lang", lang)

	answer, textEn, err := o.pipeline(ctx, lang, text, o.primary)
	if err == nil {
		logger.WithField("stage", StageRespond.String()).Debug("Chat answered")
		return Result{
			Outcome:           Success,
			Lang:              lang,
			Answer:            answer,
			NormalizedEnglish: textEn,
		}
	}

	recordStageFailure(err)
	logger.WithError(err).WithField("stage", StageFallback.String()).Warn("Pipeline failed, retrying with reduced generation settings")

	fallbackAnswer, _, fallbackErr := o.pipeline(ctx, lang, text, o.reduced)
	if fallbackErr != nil {
		recordStageFailure(fallbackErr)
		logger.WithError(fallbackErr).WithField("stage", StageHardFail.String()).Error("Fallback pipeline failed")
		return Result{
			Outcome: HardFailure,
			Err:     fallbackErr,
		}
	}

	return Result{
		Outcome: SoftFailure,
		Lang:    lang,
		Answer:  fallbackAnswer,
		Warning: err.Error(),
	}
}

// pipeline runs NORMALIZE, GENERATE and DENORMALIZE strictly in order,
// deriving the English text from the original request text every time.
func (o *Orchestrator) pipeline(ctx context.Context, lang catalog.Code, text string, cfg generate.Config) (answer string, textEn string, err error) {
	textEn, err = o.normalize(ctx, lang, text)
	if err != nil {
		return "", "", &StageError{Stage: StageNormalize, Err: err}
	}

	answerEn, err := o.generator.Generate(ctx, o.prompts.Build(textEn), cfg)
	if err != nil {
		return "", textEn, &StageError{Stage: StageGenerate, Err: err}
	}

	answer, err = o.denormalize(ctx, lang, answerEn)
	if err != nil {
		return "", textEn, &StageError{Stage: StageDenormalize, Err: err}
	}
	return answer, textEn, nil
}

func (o *Orchestrator) normalize(ctx context.Context, lang catalog.Code, text string) (string, error) {
	if lang == catalog.English {
		return text, nil
	}
	return o.translator.Translate(ctx, text, lang, catalog.English)
}

func (o *Orchestrator) denormalize(ctx context.Context, lang catalog.Code, answerEn string) (string, error) {
	if lang == catalog.English {
		return answerEn, nil
	}
	return o.translator.Translate(ctx, answerEn, catalog.English, lang)
}

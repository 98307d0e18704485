package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hrygo/eventchain/internal/observability"
	"github.com/hrygo/eventchain/plugin/ai"
	"github.com/hrygo/eventchain/plugin/ai/timeout"
)

// MaxInputLength is the longest request text accepted, in characters.
const MaxInputLength = 2000

// ErrInvalidInput is returned for empty or oversize request text. No stage runs.
var ErrInvalidInput = errors.New("invalid input")

// State is a step of the pipeline state machine.
type State string

const (
	StateStart     State = "START"
	StateExtracted State = "EXTRACTED"
	StateRejected  State = "REJECTED"
	StateRouted    State = "ROUTED"
	StateDetailed  State = "DETAILED"
	StateConfirmed State = "CONFIRMED"
)

// Stage names used in logs and metrics.
const (
	StageExtract     = "extract"
	StageParseNew    = "parse_new"
	StageParseModify = "parse_modify"
	StageConfirm     = "confirm"
	StageLink        = "link"
)

// Rejection is the non-error outcome of a run stopped before confirmation.
type Rejection struct {
	Reason  RejectReason `json:"reason"`
	Message string       `json:"message"`
}

// Result is the outcome of a run that did not fail.
// Exactly one of Confirmation and Rejection is set.
type Result struct {
	RunID        string            `json:"run_id"`
	State        State             `json:"state"`
	Trace        []State           `json:"trace"`
	Extraction   *ExtractionRecord `json:"extraction,omitempty"`
	Detail       Detail            `json:"detail,omitempty"`
	Confirmation *Confirmation     `json:"confirmation,omitempty"`
	Rejection    *Rejection        `json:"rejection,omitempty"`
}

// Confirmed reports whether the run reached CONFIRMED.
func (r *Result) Confirmed() bool {
	return r.State == StateConfirmed
}

func (r *Result) advance(s State) {
	r.State = s
	r.Trace = append(r.Trace, s)
}

// Config holds the pipeline policy.
type Config struct {
	// ConfidenceThreshold is the gate threshold; nil means DefaultConfidenceThreshold.
	ConfidenceThreshold *float64
	// Signer is the name the confirmation is signed with.
	Signer string
	Logger *slog.Logger
}

// Pipeline sequences extraction, gate, routing, detail parsing and confirmation.
// It holds no per-run state and is safe for concurrent use.
type Pipeline struct {
	gate      Gate
	signer    string
	extractor Extractor
	parser    DetailParser
	confirmer Confirmer
	linker    Linker
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithExtractor replaces the extraction stage.
func WithExtractor(e Extractor) Option {
	return func(p *Pipeline) { p.extractor = e }
}

// WithDetailParser replaces both detail parsers.
func WithDetailParser(dp DetailParser) Option {
	return func(p *Pipeline) { p.parser = dp }
}

// WithConfirmer replaces the confirmation generator.
func WithConfirmer(c Confirmer) Option {
	return func(p *Pipeline) { p.confirmer = c }
}

// WithLinker sets the collaborator that supplies confirmation links.
func WithLinker(l Linker) Option {
	return func(p *Pipeline) { p.linker = l }
}

// WithMetrics records run and stage metrics into m.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// NewPipeline creates a pipeline whose default stages call gateway.
// gateway may be nil only when options replace every stage that needs it.
func NewPipeline(cfg Config, gateway ai.Gateway, opts ...Option) (*Pipeline, error) {
	threshold := DefaultConfidenceThreshold
	if cfg.ConfidenceThreshold != nil {
		threshold = *cfg.ConfidenceThreshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("confidence threshold must be within [0,1], got %v", threshold)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pipeline{
		gate:   NewGate(threshold),
		signer: cfg.Signer,
		logger: logger,
	}
	for _, opt := range opts {
		opt(p)
	}

	if gateway != nil {
		if p.extractor == nil {
			p.extractor = NewModelExtractor(gateway, logger)
		}
		if p.parser == nil {
			p.parser = NewModelParser(gateway, logger)
		}
		if p.confirmer == nil {
			p.confirmer = NewModelConfirmer(gateway, logger)
		}
	}
	if p.extractor == nil || p.parser == nil || p.confirmer == nil {
		return nil, errors.New("model gateway is required unless every stage is supplied")
	}
	if p.metrics == nil {
		p.metrics = observability.NewMetrics(0)
	}
	return p, nil
}

// Metrics returns the metrics collector of the pipeline.
func (p *Pipeline) Metrics() *observability.Metrics {
	return p.metrics
}

// Signer returns the configured signer.
func (p *Pipeline) Signer() string {
	return p.signer
}

// Gate returns the admission gate of the pipeline.
func (p *Pipeline) Gate() Gate {
	return p.gate
}

// Process runs the pipeline on userText, resolving relative dates against now.
// It returns a Result for confirmed and rejected runs, ErrInvalidInput for unusable
// text, and a *ai.GatewayError when any model call fails.
func (p *Pipeline) Process(ctx context.Context, userText string, now time.Time) (*Result, error) {
	return p.ProcessAs(ctx, userText, p.signer, now)
}

// ProcessAs is Process with the confirmation signed by signer instead of the configured signer.
func (p *Pipeline) ProcessAs(ctx context.Context, userText, signer string, now time.Time) (*Result, error) {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return nil, fmt.Errorf("%w: empty text", ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(userText); n > MaxInputLength {
		return nil, fmt.Errorf("%w: text too long, maximum %d characters, got %d", ErrInvalidInput, MaxInputLength, n)
	}

	run := observability.NewRunContext(p.logger)
	ctx = observability.WithRunContext(ctx, run)
	log := run.Logger

	log.Info("processing calendar request", observability.LogFieldInputLen, len(userText))
	log.Debug("raw input", "text", truncate(userText))

	res := &Result{RunID: run.RunID, State: StateStart, Trace: []State{StateStart}}

	start := time.Now()
	rec, err := p.extractor.Extract(ctx, userText, now)
	p.observe(StageExtract, start, err)
	if err == nil && rec == nil {
		err = errors.New("extractor returned no record")
	}
	if err != nil {
		return nil, p.fail(ctx, run, StageExtract, err)
	}
	res.Extraction = rec
	res.advance(StateExtracted)

	if reason, ok := p.gate.Evaluate(rec); !ok {
		log.Warn("gate check failed",
			"reason", reason,
			"is_calendar_event", rec.IsCalendarEvent,
			"confidence", fmt.Sprintf("%.2f", rec.ConfidenceScore))
		return p.reject(run, res, reason), nil
	}
	log.Info("gate check passed, proceeding with event processing", "request_type", rec.RequestType)
	res.advance(StateRouted)

	var detail Detail
	switch rec.RequestType {
	case RequestNew:
		start = time.Now()
		details, err := p.parser.ParseNew(ctx, rec.Description, now)
		p.observe(StageParseNew, start, err)
		if err == nil && details == nil {
			err = errors.New("parser returned no event details")
		}
		if err != nil {
			return nil, p.fail(ctx, run, StageParseNew, err)
		}
		detail = details
	case RequestModify:
		start = time.Now()
		changes, err := p.parser.ParseModify(ctx, rec.Description, now)
		p.observe(StageParseModify, start, err)
		if err == nil && changes == nil {
			err = errors.New("parser returned no change set")
		}
		if err != nil {
			return nil, p.fail(ctx, run, StageParseModify, err)
		}
		detail = changes
	default:
		log.Warn("request type not supported", "request_type", rec.RequestType)
		return p.reject(run, res, ReasonUnsupportedRequestType), nil
	}
	res.Detail = detail
	res.advance(StateDetailed)

	start = time.Now()
	confirmation, err := p.confirmer.Confirm(ctx, detail, signer)
	p.observe(StageConfirm, start, err)
	if err == nil && confirmation == nil {
		err = errors.New("confirmer returned no confirmation")
	}
	if err != nil {
		return nil, p.fail(ctx, run, StageConfirm, err)
	}
	confirmation.Link = p.link(ctx, run, detail)
	res.Confirmation = confirmation
	res.advance(StateConfirmed)

	p.metrics.RecordConfirmed(run.Duration())
	log.Info("calendar request processing completed successfully",
		observability.LogFieldOutcome, StateConfirmed,
		observability.LogFieldDuration, run.DurationMs())
	return res, nil
}

// link asks the linker for a reference link. Linker failures leave the link empty.
func (p *Pipeline) link(ctx context.Context, run *observability.RunContext, detail Detail) string {
	if p.linker == nil {
		return ""
	}
	start := time.Now()
	link, err := p.linker.Link(ctx, detail)
	p.observe(StageLink, start, err)
	if err != nil {
		run.Stage(StageLink).Warn("link unavailable", "error", err)
		return ""
	}
	return link
}

func (p *Pipeline) reject(run *observability.RunContext, res *Result, reason RejectReason) *Result {
	res.Rejection = &Rejection{Reason: reason, Message: rejectionMessage(reason)}
	res.advance(StateRejected)
	p.metrics.RecordRejected(string(reason), run.Duration())
	run.Logger.Info("calendar request rejected",
		observability.LogFieldOutcome, reason,
		observability.LogFieldDuration, run.DurationMs())
	return res
}

// fail records the aborted run and returns the error as a *ai.GatewayError.
// Deadline and cancellation errors from replaced stages keep their kind.
func (p *Pipeline) fail(ctx context.Context, run *observability.RunContext, stage string, err error) error {
	gwErr := ai.ClassifyError(ctx, err)
	p.metrics.RecordFailed(string(gwErr.Kind), run.Duration())
	run.Stage(stage).Error("calendar request failed",
		observability.LogFieldErrorKind, gwErr.Kind,
		observability.LogFieldDuration, run.DurationMs(),
		"error", gwErr.Error())
	return gwErr
}

func (p *Pipeline) observe(stage string, start time.Time, err error) {
	p.metrics.RecordStage(stage, time.Since(start), err != nil)
}

func rejectionMessage(reason RejectReason) string {
	switch reason {
	case ReasonNotCalendarEvent:
		return "This doesn't appear to be a calendar event request."
	case ReasonLowConfidence:
		return "This might be a calendar request, but it is not clear enough to act on."
	case ReasonUnsupportedRequestType:
		return "Only new events and changes to existing events are supported."
	default:
		return string(reason)
	}
}

func truncate(s string) string {
	return ai.Truncate(s, timeout.MaxTruncateLength)
}

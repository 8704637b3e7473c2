package translation

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/example/lingoflow/internal/config"
	"github.com/example/lingoflow/internal/errcode"
	"github.com/example/lingoflow/internal/language"
	"github.com/example/lingoflow/internal/model"
	"github.com/example/lingoflow/internal/observability"
	"github.com/example/lingoflow/internal/prompt"
	"github.com/example/lingoflow/internal/provider"
	"github.com/example/lingoflow/internal/queue"
	"github.com/example/lingoflow/internal/stats"
)

// Service runs the translation pipeline. All collaborators are injected;
// tests substitute stubs through the provider factory and interfaces.
type Service struct {
	cfg     *config.Config
	reg     *language.Registry
	builder *prompt.Builder
	manager *model.Manager
	queue   *queue.Queue
	window  *stats.Window
	metrics *observability.Metrics
	tracer  trace.Tracer
	logger  *slog.Logger

	// shuttingDown gates new admissions during graceful shutdown.
	shuttingDown func() bool
}

// Options carries the optional collaborators.
type Options struct {
	Metrics      *observability.Metrics
	Tracer       trace.Tracer
	Logger       *slog.Logger
	ShuttingDown func() bool
}

// NewService wires the pipeline.
func NewService(cfg *config.Config, reg *language.Registry, builder *prompt.Builder,
	manager *model.Manager, q *queue.Queue, window *stats.Window, opts Options) *Service {

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("translation")
	}
	shuttingDown := opts.ShuttingDown
	if shuttingDown == nil {
		shuttingDown = func() bool { return false }
	}
	return &Service{
		cfg:          cfg,
		reg:          reg,
		builder:      builder,
		manager:      manager,
		queue:        q,
		window:       window,
		metrics:      opts.Metrics,
		tracer:       tracer,
		logger:       logger,
		shuttingDown: shuttingDown,
	}
}

// Queue exposes the admission queue for status lookups and shutdown.
func (s *Service) Queue() *queue.Queue { return s.queue }

// Translate executes one request end to end. It never panics and never
// returns an error; failures become failed responses.
func (s *Service) Translate(ctx context.Context, req Request) (resp Response) {
	start := time.Now()

	ctx, span := s.tracer.Start(ctx, "translation.translate",
		trace.WithAttributes(
			attribute.String("request.id", req.RequestID),
			attribute.String("request.target", req.TargetLanguage),
		))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("translation panicked", "request_id", req.RequestID, "panic", r)
			resp = s.failure(req, errcode.New(errcode.InternalError), start, false)
		}
	}()

	if s.shuttingDown() {
		return s.failure(req, errcode.New(errcode.ServiceUnavailable), start, false)
	}

	if terr := s.validate(req); terr != nil {
		return s.failure(req, terr, start, true)
	}

	if terr := s.resolveModel(ctx, req); terr != nil {
		return s.failure(req, terr, start, true)
	}

	if err := s.manager.EnsureLoaded(ctx); err != nil {
		return s.failure(req, errcode.From(err), start, true)
	}

	adm := s.queue.Acquire(req.RequestID)
	switch adm.Decision {
	case queue.Rejected:
		return s.rejection(req, start)
	case queue.Waiting:
		return Response{
			RequestID:            req.RequestID,
			Status:               StatusPending,
			QueuePosition:        adm.Position,
			EstimatedWaitSeconds: int(adm.EstimatedWait.Seconds()),
		}
	}

	// The slot is always released, also when perform panics, and before
	// statistics are touched; the two locks must never nest the other way.
	ctx, cancel := context.WithTimeout(ctx, s.cfg.TranslationTimeout())
	result, terr := func() (performResult, *errcode.Error) {
		defer s.queue.Release(req.RequestID)
		defer cancel()
		return s.perform(ctx, req)
	}()

	elapsed := time.Since(start)
	if terr != nil {
		s.record(false, elapsed)
		s.logger.Warn("translation failed",
			"request_id", req.RequestID, "code", terr.Code)
		return s.failureAfterStats(req, terr, elapsed)
	}

	s.record(true, elapsed)
	s.logger.Info("translation completed",
		"request_id", req.RequestID,
		"source", req.SourceLanguage,
		"target", req.TargetLanguage,
		"chars", utf8.RuneCountInString(req.Text),
		"elapsed_ms", elapsed.Milliseconds(),
	)

	return Response{
		RequestID:        req.RequestID,
		Status:           StatusCompleted,
		ProcessingTimeMS: elapsed.Milliseconds(),
		ExecutionMode:    string(s.manager.ExecutionMode()),
		TranslatedText:   result.text,
		DetectedLanguage: result.detectedLanguage,
		ConfidenceScore:  result.confidence,
	}
}

type performResult struct {
	text             string
	detectedLanguage string
	confidence       *float64
}

// perform runs detection, generation and post-processing inside an
// acquired slot.
func (s *Service) perform(ctx context.Context, req Request) (performResult, *errcode.Error) {
	var out performResult

	source := req.SourceLanguage
	if source == language.Auto {
		code, conf := s.detectLanguage(ctx, req.Text)
		if code == "" {
			code = s.reg.DefaultTarget()
		}
		out.detectedLanguage = code
		c := conf
		out.confidence = &c
		source = code
	}

	if source == req.TargetLanguage {
		return out, errcode.New(errcode.ValidationSameLanguage)
	}

	prov, _ := s.manager.Active()
	if prov == nil {
		return out, errcode.New(errcode.ModelNotLoaded)
	}

	params := provider.ForQuality(req.Quality, s.cfg.Model.Generation)
	p := s.builder.Translation(prompt.TranslationInput{
		Text:       req.Text,
		SourceCode: source,
		TargetCode: req.TargetLanguage,
	})

	raw, err := s.generate(ctx, prov, p, params)
	if err != nil {
		return out, s.generationError(ctx, err)
	}

	cleaned := CleanOutput(raw)

	// One bounded retry when the output does not look like the target
	// language; the retry reuses the already-acquired slot.
	if !language.LooksLike(req.TargetLanguage, cleaned) {
		retryPrompt := s.builder.Translation(prompt.TranslationInput{
			Text:            req.Text,
			SourceCode:      source,
			TargetCode:      req.TargetLanguage,
			ForceOutputOnly: true,
		})
		retryRaw, retryErr := s.generate(ctx, prov, retryPrompt, params.ForceOutputOnly())
		if retryErr == nil {
			if retryCleaned := CleanOutput(retryRaw); language.LooksLike(req.TargetLanguage, retryCleaned) {
				cleaned = retryCleaned
			}
		}
	}

	if !strings.Contains(req.Text, "\n") {
		cleaned = FirstNonEmptyLine(cleaned)
	}

	if cleaned == "" {
		return out, errcode.Newf(errcode.InternalError, "模型未產生任何翻譯結果")
	}

	out.text = cleaned
	return out, nil
}

func (s *Service) generate(ctx context.Context, prov provider.Provider, p prompt.Prompt, params provider.GenParams) (string, error) {
	ctx, span := s.tracer.Start(ctx, "provider.generate")
	defer span.End()
	return prov.Generate(ctx, p, params)
}

func (s *Service) generationError(ctx context.Context, err error) *errcode.Error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errcode.New(errcode.TranslationTimeout)
	}
	return errcode.From(err)
}

// detectLanguage asks the model for a "code:confidence" line, falling back
// to the script heuristic when the model's answer is unusable.
func (s *Service) detectLanguage(ctx context.Context, text string) (string, float64) {
	prov, _ := s.manager.Active()
	if prov != nil {
		params := provider.ForQuality(provider.QualityFast, s.cfg.Model.Generation)
		raw, err := s.generate(ctx, prov, s.builder.LanguageDetection(text), params)
		if err == nil {
			if code, conf, ok := parseDetection(raw, s.reg); ok {
				return code, conf
			}
		} else {
			s.logger.Warn("model language detection failed", "err", err)
		}
	}
	return language.DetectByScript(text)
}

// parseDetection parses "code:confidence"; unknown codes and "auto" are
// rejected so the heuristic can take over.
func parseDetection(raw string, reg *language.Registry) (string, float64, bool) {
	line := strings.TrimSpace(raw)
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = strings.TrimSpace(line[:idx])
	}
	code, confStr, found := strings.Cut(line, ":")
	if !found {
		return "", 0, false
	}
	code = strings.TrimSpace(code)
	if code == language.Auto || !reg.IsValidCode(code) {
		return "", 0, false
	}

	conf := 0.8
	if v, err := strconv.ParseFloat(strings.TrimSpace(confStr), 64); err == nil {
		conf = min(1.0, max(0.0, v))
	}
	return code, conf, true
}

func (s *Service) validate(req Request) *errcode.Error {
	if strings.TrimSpace(req.Text) == "" {
		return errcode.New(errcode.ValidationEmptyText)
	}
	if utf8.RuneCountInString(req.Text) > s.cfg.MaxTextLength() {
		return errcode.New(errcode.ValidationTextTooLong)
	}
	if !s.reg.IsValidCode(req.SourceLanguage) {
		return errcode.New(errcode.ValidationInvalidLanguage)
	}
	if req.TargetLanguage == language.Auto || !s.reg.IsValidCode(req.TargetLanguage) {
		return errcode.New(errcode.ValidationInvalidLanguage)
	}
	if req.SourceLanguage != language.Auto && req.SourceLanguage == req.TargetLanguage {
		return errcode.New(errcode.ValidationSameLanguage)
	}
	return nil
}

// resolveModel applies the per-request model hint under the switching
// policy. The hint never replaces the active model without an explicit
// switch or a lazy policy.
func (s *Service) resolveModel(ctx context.Context, req Request) *errcode.Error {
	if req.ModelID == "" || req.ModelID == s.manager.ActiveID() {
		return nil
	}
	if _, ok := model.Find(s.cfg.ModelsDir(), req.ModelID); !ok {
		return errcode.New(errcode.ModelNotFound)
	}
	if s.cfg.SwitchPolicy() != "lazy" {
		return errcode.New(errcode.ModelSwitchRejected)
	}
	if err := s.manager.Switch(ctx, req.ModelID, false); err != nil {
		return errcode.From(err)
	}
	return nil
}

// record emits exactly one statistics record per completed call.
func (s *Service) record(success bool, elapsed time.Duration) {
	s.window.Record(success, elapsed)
	if s.metrics != nil {
		status := StatusFailed
		if success {
			status = StatusCompleted
		}
		s.metrics.ObserveTranslation(status, elapsed.Seconds())
	}
}

// failure records a failed call (optionally in statistics) and shapes the
// failed response.
func (s *Service) failure(req Request, terr *errcode.Error, start time.Time, countInStats bool) Response {
	elapsed := time.Since(start)
	if countInStats {
		s.record(false, elapsed)
	}
	return s.failureAfterStats(req, terr, elapsed)
}

func (s *Service) failureAfterStats(req Request, terr *errcode.Error, elapsed time.Duration) Response {
	return Response{
		RequestID:        req.RequestID,
		Status:           StatusFailed,
		ProcessingTimeMS: elapsed.Milliseconds(),
		ExecutionMode:    string(s.manager.ExecutionMode()),
		ErrorCode:        terr.Code,
		ErrorMessage:     terr.Message,
	}
}

// rejection shapes the queue-full response; rejected admissions are not
// statistics records because no slot was ever held.
func (s *Service) rejection(req Request, start time.Time) Response {
	return Response{
		RequestID:        req.RequestID,
		Status:           StatusRejected,
		ProcessingTimeMS: time.Since(start).Milliseconds(),
		ExecutionMode:    string(s.manager.ExecutionMode()),
		ErrorCode:        errcode.QueueFull,
		ErrorMessage:     errcode.Message(errcode.QueueFull),
	}
}

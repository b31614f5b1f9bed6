// internal/workers/matching/find-pet-matches/handler.go
package findpetmatches

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	apperrors "petcare-workers/internal/common/errors"
	"petcare-workers/internal/common/logger"
	"petcare-workers/internal/common/metrics"
	"petcare-workers/internal/common/observability"
	"petcare-workers/internal/common/validation"
	"petcare-workers/internal/engine"
	"petcare-workers/internal/models"
	"petcare-workers/internal/records"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const (
	TaskType = "find-pet-matches"
)

type HandlerOptions struct {
	Config *Config
	Engine *engine.Engine
	// Source resolves subjects by id and loads the default pool. Optional
	// when every job carries its subject and pool inline.
	Source        records.RecordSource
	Validator     *validation.Validator
	Observability *observability.Observability
	Logger        logger.Logger
}

type Handler struct {
	config    *Config
	engine    *engine.Engine
	source    records.RecordSource
	validator *validation.Validator
	obs       *observability.Observability
	errors    *apperrors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	if opts.Engine == nil {
		return nil, errors.New("matching engine is required")
	}
	if opts.Config == nil {
		opts.Config = LoadConfig()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	log := opts.Logger.WithFields(map[string]interface{}{"taskType": TaskType})

	return &Handler{
		config:    opts.Config,
		engine:    opts.Engine,
		source:    opts.Source,
		validator: opts.Validator,
		obs:       opts.Observability,
		errors:    apperrors.NewErrorHandler(log),
		logger:    log,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	done := metrics.TrackJob(TaskType)

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()
	ctx, span := observability.StartSpan(ctx, TaskType)
	defer span.End()
	span.SetAttributes(attribute.Int64("job.key", job.Key))

	log := logger.WithTrace(ctx, h.logger)
	log.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	input, err := h.parseInput(job.Variables)
	var output *Output
	if err == nil {
		output, err = h.execute(ctx, input)
	}
	if err != nil {
		stdErr := apperrors.AsStandardError(err)
		done(string(stdErr.Code))
		h.obs.RecordJob(ctx, TaskType, "failed", time.Since(start))
		span.RecordError(stdErr)
		h.errors.HandleJobError(ctx, client, job, stdErr)
		return
	}

	done("")
	h.obs.RecordJob(ctx, TaskType, "completed", time.Since(start))

	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
	if err != nil {
		log.Error("failed to create complete job command", map[string]interface{}{"error": err.Error()})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		log.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
	}
}

func (h *Handler) parseInput(variables string) (*Input, error) {
	result, err := h.validator.Validate(TaskType, []byte(variables))
	if err != nil {
		return nil, apperrors.NewParseError(err)
	}
	if !result.Valid {
		return nil, apperrors.NewInvalidInputError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewParseError(err)
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, apperrors.NewInvalidInputError("input cannot be nil")
	}

	subject, err := h.resolveSubject(ctx, input)
	if err != nil {
		return nil, err
	}

	pool, err := h.resolvePool(ctx, subject, input.Pool)
	if err != nil {
		return nil, err
	}

	matches := h.engine.FindMatches(subject, pool)

	limit := input.Limit
	if limit <= 0 {
		limit = h.config.MaxResults
	}
	truncated := false
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
		truncated = true
	}
	for _, m := range matches {
		metrics.MatchResults.WithLabelValues(string(m.Confidence)).Inc()
	}

	output := &Output{
		RunID:       uuid.New().String(),
		SubjectID:   subject.ReportID(),
		SubjectKind: subject.Kind(),
		Matches:     matches,
		MatchCount:  len(matches),
		PoolSize:    len(pool),
		Truncated:   truncated,
	}

	h.logger.Info("match set built", map[string]interface{}{
		"runId":     output.RunID,
		"subjectId": output.SubjectID,
		"kind":      output.SubjectKind,
		"poolSize":  output.PoolSize,
		"matches":   output.MatchCount,
	})
	return output, nil
}

func (h *Handler) resolveSubject(ctx context.Context, input *Input) (models.Report, error) {
	if input.Subject != nil && input.Subject.Report != nil {
		return input.Subject.Report, nil
	}
	if strings.TrimSpace(input.SubjectID) == "" {
		return nil, apperrors.NewInvalidInputError("subject or subjectId is required")
	}
	kind, err := models.ParseKind(input.SubjectKind)
	if err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}
	if h.source == nil {
		return nil, apperrors.NewInvalidInputError("subjectId given but no record source is configured")
	}

	report, err := h.source.GetReport(ctx, kind, input.SubjectID)
	if err != nil {
		if errors.Is(err, records.ErrRecordNotFound) {
			return nil, apperrors.NewRecordNotFoundError(string(kind), input.SubjectID)
		}
		return nil, apperrors.NewRecordSourceFailedError(err)
	}
	return report, nil
}

func (h *Handler) resolvePool(ctx context.Context, subject models.Report, inline []models.PetRecord) ([]models.Report, error) {
	if inline != nil {
		pool := make([]models.Report, 0, len(inline))
		for _, rec := range inline {
			if rec.Report != nil {
				pool = append(pool, rec.Report)
			}
		}
		return pool, nil
	}
	if h.source == nil {
		return nil, apperrors.NewInvalidInputError("pool is required when no record source is configured")
	}

	pool, err := h.source.ListReports(ctx, subject.Kind().Opposite(), h.config.PoolLimit)
	if err != nil {
		return nil, apperrors.NewRecordSourceFailedError(err)
	}
	return pool, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

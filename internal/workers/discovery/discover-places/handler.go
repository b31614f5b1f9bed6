// internal/workers/discovery/discover-places/handler.go
package discoverplaces

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	apperrors "petcare-workers/internal/common/errors"
	"petcare-workers/internal/common/logger"
	"petcare-workers/internal/common/metrics"
	"petcare-workers/internal/common/observability"
	"petcare-workers/internal/common/validation"
	"petcare-workers/internal/engine"
	"petcare-workers/internal/engine/aggregate"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const (
	TaskType = "discover-places"
)

type HandlerOptions struct {
	Config *Config
	// Engine discovers through the primary provider.
	Engine *engine.Engine
	// Fallback, when set, is consulted once the primary provider is unavailable.
	Fallback      *engine.Engine
	Validator     *validation.Validator
	Observability *observability.Observability
	Logger        logger.Logger
}

type Handler struct {
	config    *Config
	engine    *engine.Engine
	fallback  *engine.Engine
	validator *validation.Validator
	obs       *observability.Observability
	errors    *apperrors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	if opts.Engine == nil {
		return nil, errors.New("discovery engine is required")
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
		fallback:  opts.Fallback,
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

	output, err := h.run(ctx, job.Variables)
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
	h.completeJob(ctx, client, job, output, log)
}

// run validates and decodes the job variables, then executes.
func (h *Handler) run(ctx context.Context, variables string) (*Output, error) {
	input, err := h.parseInput(variables)
	if err != nil {
		return nil, err
	}
	return h.execute(ctx, input)
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
	if strings.TrimSpace(input.Category) == "" && !input.query().HasFreeText() {
		return nil, apperrors.NewInvalidInputError("category or freeText is required")
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, apperrors.NewInvalidInputError("input cannot be nil")
	}
	q := input.query()

	source := SourcePrimary
	res, err := h.engine.Discover(ctx, q)
	if err != nil && h.fallback != nil && isUnavailable(err) {
		h.logger.Warn("primary provider unavailable, using fallback index", map[string]interface{}{
			"category": res.Plan.Category,
			"error":    err.Error(),
		})
		metrics.DiscoveryFallbacks.WithLabelValues(res.Plan.Category).Inc()
		source = SourceFallback
		res, err = h.fallback.Discover(ctx, q)
	}
	if err != nil {
		if isUnavailable(err) {
			return nil, apperrors.NewProviderUnavailableError(err)
		}
		return nil, apperrors.NewInternalError(err)
	}

	metrics.DiscoveryCandidates.WithLabelValues(res.Plan.Category, source).Observe(float64(len(res.Candidates)))

	output := &Output{
		RunID:        uuid.New().String(),
		Candidates:   res.Candidates,
		Keywords:     res.Plan.Keywords,
		TypeHint:     res.Plan.TypeHint,
		Category:     res.Plan.Category,
		Partial:      res.Partial,
		Source:       source,
		FallbackUsed: source == SourceFallback,
		Stats:        res.Stats,
	}

	h.logger.Info("discovery completed", map[string]interface{}{
		"runId":      output.RunID,
		"category":   output.Category,
		"keywords":   len(output.Keywords),
		"candidates": len(output.Candidates),
		"partial":    output.Partial,
		"source":     source,
	})
	return output, nil
}

// isUnavailable covers both an all-failed run and a run cut off before any
// search returned.
func isUnavailable(err error) bool {
	return errors.Is(err, aggregate.ErrProviderUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output, log logger.Logger) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		log.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		log.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": strconv.FormatInt(job.Key, 10),
			"error":  err.Error(),
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

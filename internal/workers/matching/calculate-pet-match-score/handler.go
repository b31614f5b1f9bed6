// internal/workers/matching/calculate-pet-match-score/handler.go
package calculatepetmatchscore

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
	"petcare-workers/internal/engine/match"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "calculate-pet-match-score"
)

type Handler struct {
	config    *Config
	engine    *engine.Engine
	validator *validation.Validator
	obs       *observability.Observability
	errors    *apperrors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(config *Config, eng *engine.Engine, validator *validation.Validator, obs *observability.Observability, log logger.Logger) (*Handler, error) {
	if eng == nil {
		return nil, errors.New("matching engine is required")
	}
	if config == nil {
		config = LoadConfig()
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})

	return &Handler{
		config:    config,
		engine:    eng,
		validator: validator,
		obs:       obs,
		errors:    apperrors.NewErrorHandler(log),
		logger:    log,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	done := metrics.TrackJob(TaskType)

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.run(job.Variables)
	if err != nil {
		stdErr := apperrors.AsStandardError(err)
		done(string(stdErr.Code))
		h.obs.RecordJob(ctx, TaskType, "failed", time.Since(start))
		h.errors.HandleJobError(ctx, client, job, stdErr)
		return
	}

	done("")
	h.obs.RecordJob(ctx, TaskType, "completed", time.Since(start))

	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err.Error()})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
	}
}

func (h *Handler) run(variables string) (*Output, error) {
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
	return h.execute(&input)
}

func (h *Handler) execute(input *Input) (*Output, error) {
	if input == nil || input.A.Report == nil || input.B.Report == nil {
		return nil, apperrors.NewInvalidInputError("both reports a and b are required")
	}

	bd := h.engine.Explain(input.A.Report, input.B.Report)
	h.logger.Debug("pair scored", map[string]interface{}{
		"a":         input.A.ReportID(),
		"b":         input.B.ReportID(),
		"score":     bd.Score,
		"microchip": bd.MicrochipMatch,
	})

	return &Output{
		MatchScore:   bd.Score,
		Confidence:   match.ConfidenceFor(bd.Score),
		MatchFactors: bd,
	}, nil
}

func (h *Handler) Execute(input *Input) (*Output, error) {
	return h.execute(input)
}

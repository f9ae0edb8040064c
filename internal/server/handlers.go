package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/temirov/tistory-batch/internal/batch"
	"github.com/temirov/tistory-batch/internal/config"
	"github.com/temirov/tistory-batch/internal/content"
	"github.com/temirov/tistory-batch/internal/export"
	"github.com/temirov/tistory-batch/internal/llm"
)

const (
	modelsFlightKey = "models"

	blankAPIKeyMessage        = "api_key must not be blank"
	invalidRequestBodyFormat  = "invalid request body: %v"
	contentDispositionFormat  = `attachment; filename="%s"`
	postsBundleFileNameSuffix = ".html"
)

var errMissingGeneratorFactory = llm.NewConfigurationError("no generator factory configured")

func (server *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "state": server.dependencies.Orchestrator.Snapshot().State.String()})
}

// listModels never fails: without a usable key or provider it answers with
// the fallback list. Concurrent refreshes share one provider call.
func (server *Server) listModels(c *gin.Context) {
	flightContext := context.WithoutCancel(c.Request.Context())
	value, _, _ := server.modelGroup.Do(modelsFlightKey, func() (any, error) {
		generator, generatorErr := server.generator()
		if generatorErr != nil {
			server.dependencies.Logger.Debug("model refresh without generator", zap.Error(generatorErr))
		}
		return generator.AvailableModels(flightContext), nil
	})
	c.JSON(http.StatusOK, modelsResponse{Models: value.([]string)})
}

func (server *Server) saveCredentials(c *gin.Context) {
	var request credentialsRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, http.StatusBadRequest, fmt.Sprintf(invalidRequestBodyFormat, err))
		return
	}
	if strings.TrimSpace(request.APIKey) == "" {
		respondError(c, http.StatusBadRequest, blankAPIKeyMessage)
		return
	}
	store := server.dependencies.Credentials
	if err := store.Save(request.APIKey); err != nil {
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	_, source, resolveErr := config.ResolveAPIKey(server.dependencies.APIKeyEnvironment, server.dependencies.LookupEnvironment, store)
	if resolveErr != nil {
		_ = c.Error(resolveErr)
	}
	server.dependencies.Logger.Info("api key saved", zap.String("path", store.Path()), zap.String("effective_source", source))
	c.JSON(http.StatusOK, credentialsResponse{
		APIKey: config.MaskAPIKey(request.APIKey),
		Path:   store.Path(),
		Source: source,
	})
}

func (server *Server) startBatch(c *gin.Context) {
	var request startBatchRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, http.StatusBadRequest, fmt.Sprintf(invalidRequestBodyFormat, err))
		return
	}
	settings, settingsErr := server.settingsFor(request)
	if settingsErr != nil {
		respondError(c, http.StatusBadRequest, settingsErr.Error())
		return
	}
	topics := append(batch.CleanTopics(request.Topics), batch.ParseTopics(request.Text)...)
	if len(topics) == 0 {
		respondError(c, statusFor(batch.ErrNoTopics), batch.ErrNoTopics.Error())
		return
	}

	generator, generatorErr := server.generator()
	if generatorErr != nil {
		respondError(c, statusFor(generatorErr), generatorErr.Error())
		return
	}
	settings.Generator = generator

	runID, startErr := server.dependencies.Orchestrator.Start(server.batchContext, topics, settings)
	if startErr != nil {
		respondError(c, statusFor(startErr), startErr.Error())
		return
	}
	tagRun(c, runID)
	snapshot := server.dependencies.Orchestrator.Snapshot()
	c.JSON(http.StatusAccepted, startBatchResponse{RunID: runID, Total: snapshot.Total})
}

func (server *Server) settingsFor(request startBatchRequest) (batch.Settings, error) {
	defaults := server.dependencies.Defaults
	settings := batch.Settings{
		Keywords: defaults.Keywords,
		Category: defaults.Category,
		Tone:     defaults.Tone,
		Model:    defaults.Model,
		Limit:    defaults.Limit,
	}
	if request.Keywords != nil {
		settings.Keywords = strings.TrimSpace(*request.Keywords)
	}
	if strings.TrimSpace(request.Category) != "" {
		category, err := content.ParseCategory(request.Category)
		if err != nil {
			return batch.Settings{}, err
		}
		settings.Category = category
	}
	if strings.TrimSpace(request.Tone) != "" {
		tone, err := content.ParseTone(request.Tone)
		if err != nil {
			return batch.Settings{}, err
		}
		settings.Tone = tone
	}
	if model := strings.TrimSpace(request.Model); model != "" {
		settings.Model = model
	}
	if request.Limit != "" {
		settings.Limit = batch.ResolveLimit(string(request.Limit))
	}
	return settings, nil
}

func (server *Server) batchStatus(c *gin.Context) {
	snapshot := server.dependencies.Orchestrator.Snapshot()
	tagRun(c, snapshot.RunID)
	c.JSON(http.StatusOK, newStatusResponse(snapshot))
}

func (server *Server) stopBatch(c *gin.Context) {
	server.dependencies.Orchestrator.Stop()
	snapshot := server.dependencies.Orchestrator.Snapshot()
	tagRun(c, snapshot.RunID)
	c.JSON(http.StatusAccepted, gin.H{"state": snapshot.State.String()})
}

func (server *Server) clearBatch(c *gin.Context) {
	tagRun(c, server.dependencies.Orchestrator.Snapshot().RunID)
	server.dependencies.Orchestrator.Clear()
	c.Status(http.StatusNoContent)
}

func (server *Server) exportBatch(c *gin.Context) {
	tagRun(c, server.dependencies.Orchestrator.Snapshot().RunID)
	format, formatErr := export.ParseFormat(c.Param("format"))
	if formatErr != nil {
		respondError(c, http.StatusBadRequest, formatErr.Error())
		return
	}
	generatedAt := server.dependencies.Now()
	data, renderErr := export.Render(format, server.dependencies.Orchestrator.Results(), generatedAt)
	if renderErr != nil {
		respondError(c, statusFor(renderErr), renderErr.Error())
		return
	}
	fileName := export.DefaultFileName(format, generatedAt)
	if format == export.FormatPosts {
		fileName += postsBundleFileNameSuffix
	}
	c.Header("Content-Disposition", fmt.Sprintf(contentDispositionFormat, fileName))
	c.Data(http.StatusOK, format.ContentType(), data)
}

func statusFor(err error) int {
	var classified *llm.Error
	switch {
	case errors.Is(err, batch.ErrNoTopics):
		return http.StatusBadRequest
	case errors.Is(err, batch.ErrAlreadyRunning), errors.Is(err, batch.ErrStillStopping):
		return http.StatusConflict
	case errors.Is(err, export.ErrNoResults), errors.Is(err, export.ErrNoSuccessfulResults):
		return http.StatusNotFound
	case errors.As(err, &classified) && classified.Kind == llm.KindConfiguration:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, status int, message string) {
	c.Set(errorMessageContextKey, message)
	c.AbortWithStatusJSON(status, errorResponse{Error: message})
}

package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/felipemchdev/policyforge-core/config"
	"github.com/felipemchdev/policyforge-core/model"
	"github.com/felipemchdev/policyforge-core/pkg/logger"
	"github.com/felipemchdev/policyforge-core/service"
	"github.com/gin-gonic/gin"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// createRequestSchemaJSON is the strict input contract for Submit. The
// section payloads are free-form objects; the engine owns their semantics.
const createRequestSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["template_id", "selected_policy_pack", "payload"],
  "properties": {
    "template_id": {"type": "string", "minLength": 1},
    "selected_policy_pack": {"type": "string", "minLength": 1},
    "payload": {
      "type": "object",
      "required": ["applicant", "application", "options"],
      "properties": {
        "applicant": {"type": "object"},
        "application": {"type": "object"},
        "options": {"type": "object"}
      }
    }
  }
}`

var createRequestSchema = mustCompileSchema("create-request", createRequestSchemaJSON)

func mustCompileSchema(id, schema string) *jsonschema.Schema {
	resourceID := "inmemory://" + id
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resourceID, strings.NewReader(schema)); err != nil {
		panic(err)
	}
	return compiler.MustCompile(resourceID)
}

var allowedArtifactTypes = map[string]struct{}{
	"json": {},
	"csv":  {},
	"pdf":  {},
}

// Headers forwarded from upstream artifact responses. Everything else is
// dropped so transport internals never leak to the browser.
var artifactHeaderAllowlist = []string{"Content-Type", "Content-Disposition", "Cache-Control"}

type EngineHandler struct {
	engine *service.EngineClient
	config *config.Config
}

func NewEngineHandler(engine *service.EngineClient, cfg *config.Config) *EngineHandler {
	return &EngineHandler{engine: engine, config: cfg}
}

// Submit validates the request body and forwards it to the engine's create
// endpoint. Submits are never retried by the gateway: a duplicate would be a
// duplicate application.
func (h *EngineHandler) Submit(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.GatewayError{
			Error: "Invalid request body.",
			Code:  model.CodeInvalidBody,
		})
		return
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.JSON(http.StatusBadRequest, model.GatewayError{
			Error: "Invalid request body.",
			Code:  model.CodeInvalidBody,
		})
		return
	}

	if err := createRequestSchema.Validate(payload); err != nil {
		c.JSON(http.StatusBadRequest, model.GatewayError{
			Error: "Request body does not match the required schema.",
			Code:  model.CodeValidationError,
		})
		return
	}

	call, failure := h.engine.Call(c.Request.Context(), http.MethodPost, "/v1/requests", bytes.NewReader(raw))
	if failure != nil {
		h.respondFailure(c, failure)
		return
	}
	defer call.Response.Body.Close()

	if !isSuccess(call.Response.StatusCode) {
		h.proxyEngineError(c, call.Response)
		return
	}

	data := service.DecodeJSON(call.Response)
	c.JSON(http.StatusCreated, model.EngineRequest{
		ID:     service.CoerceID(data, "unknown"),
		Status: service.CoerceStatus(data, "submitted"),
	})
}

// GetStatus looks up a request's processing status.
func (h *EngineHandler) GetStatus(c *gin.Context) {
	id := c.Param("id")

	call, failure := h.engine.Get(c.Request.Context(), "/v1/requests/"+id)
	if failure != nil {
		h.respondFailure(c, failure)
		return
	}
	defer call.Response.Body.Close()

	if !isSuccess(call.Response.StatusCode) {
		h.proxyEngineError(c, call.Response)
		return
	}

	data := service.DecodeJSON(call.Response)
	c.JSON(http.StatusOK, model.EngineRequest{
		ID:          service.CoerceID(data, id),
		Status:      service.CoerceStatus(data, "running"),
		SubmittedAt: service.CoerceTimestamp(data, "submitted_at"),
		UpdatedAt:   service.CoerceTimestamp(data, "updated_at"),
	})
}

// GetResult fetches and normalizes the evaluation result of a completed
// request.
func (h *EngineHandler) GetResult(c *gin.Context) {
	id := c.Param("id")

	call, failure := h.engine.Get(c.Request.Context(), "/v1/requests/"+id+"/result")
	if failure != nil {
		h.respondFailure(c, failure)
		return
	}
	defer call.Response.Body.Close()

	if !isSuccess(call.Response.StatusCode) {
		h.proxyEngineError(c, call.Response)
		return
	}

	data := service.DecodeJSON(call.Response)
	c.JSON(http.StatusOK, model.EngineResult{
		ID:             service.CoerceID(data, id),
		Decision:       service.CoerceDecision(data),
		Reasons:        service.CoerceReasons(data),
		ComputedFields: service.CoerceComputedFields(data),
		Artifacts:      service.CoerceArtifacts(data),
	})
}

// GetArtifact streams an artifact body through unchanged, keeping only the
// allowlisted headers. The type is validated before any upstream contact.
func (h *EngineHandler) GetArtifact(c *gin.Context) {
	id := c.Param("id")
	artifactType := c.Param("type")

	if _, ok := allowedArtifactTypes[artifactType]; !ok {
		c.JSON(http.StatusBadRequest, model.GatewayError{
			Error: "Unsupported artifact type.",
			Code:  model.CodeInvalidArtifactType,
		})
		return
	}

	call, failure := h.engine.Get(c.Request.Context(), "/v1/requests/"+id+"/artifacts/"+artifactType)
	if failure != nil {
		h.respondFailure(c, failure)
		return
	}
	defer call.Response.Body.Close()

	if !isSuccess(call.Response.StatusCode) {
		c.JSON(call.Response.StatusCode, model.GatewayError{
			Error: "Artifact is not available yet.",
			Code:  model.CodeArtifactUnavailable,
		})
		return
	}

	for _, header := range artifactHeaderAllowlist {
		if value := call.Response.Header.Get(header); value != "" {
			c.Header(header, value)
		}
	}
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, call.Response.Body); err != nil {
		logger.Warn(c.Request.Context(), "artifact stream interrupted",
			"id", id, "type", artifactType, "error", err)
	}
}

// Health probes the engine's /health endpoint and reports online, degraded
// (reachable but slower than the threshold) or unreachable, always with the
// measured latency.
func (h *EngineHandler) Health(c *gin.Context) {
	call, failure := h.engine.Get(c.Request.Context(), "/health")
	if failure != nil {
		c.JSON(failureStatusCode(failure), gin.H{
			"status":     "unreachable",
			"latency_ms": failure.Duration.Milliseconds(),
			"detail":     failureDetail(failure),
		})
		return
	}
	defer call.Response.Body.Close()
	io.Copy(io.Discard, call.Response.Body)

	if !isSuccess(call.Response.StatusCode) {
		c.JSON(call.Response.StatusCode, gin.H{
			"status":     "unreachable",
			"latency_ms": call.Duration.Milliseconds(),
			"detail":     "Engine returned error (" + strconv.Itoa(call.Response.StatusCode) + ")",
		})
		return
	}

	status := "online"
	if call.Duration > h.config.Engine.DegradedThreshold() {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      status,
		"latency_ms":  call.Duration.Milliseconds(),
		"environment": h.config.Engine.Environment,
	})
}

func (h *EngineHandler) respondFailure(c *gin.Context, failure *service.EngineFailure) {
	logger.Warn(c.Request.Context(), "engine call failed",
		"kind", string(failure.Kind), "error", failure.Err)

	switch failure.Kind {
	case service.FailureNotConfigured:
		c.JSON(http.StatusServiceUnavailable, model.GatewayError{
			Error: "Engine not configured.",
			Code:  model.CodeEngineNotConfigured,
			Instructions: []string{
				"Set engine.base_url in config.yaml or the POLICYFORGE_ENGINE_URL environment variable (example: http://localhost:8000).",
				"Set POLICYFORGE_ENVIRONMENT to one of: dev, qa, prod.",
			},
		})
	case service.FailureTimeout:
		c.JSON(http.StatusGatewayTimeout, model.GatewayError{
			Error: "Engine timed out.",
			Code:  model.CodeEngineTimeout,
		})
	default:
		c.JSON(http.StatusServiceUnavailable, model.GatewayError{
			Error: "Engine unreachable.",
			Code:  model.CodeEngineUnreachable,
		})
	}
}

// proxyEngineError forwards an upstream non-2xx with the same status code and
// a normalized body. 5xx is flagged separately: it tells the poller the
// condition may clear on retry.
func (h *EngineHandler) proxyEngineError(c *gin.Context, resp *http.Response) {
	payload := service.DecodeJSON(resp)

	code := model.CodeEngineError
	if resp.StatusCode >= 500 {
		code = model.CodeEngine5xx
	}

	c.JSON(resp.StatusCode, model.GatewayError{
		Error:           service.NormalizeErrorMessage(payload),
		Code:            code,
		TechnicalStatus: strconv.Itoa(resp.StatusCode),
	})
}

func failureStatusCode(failure *service.EngineFailure) int {
	if failure.Kind == service.FailureTimeout {
		return http.StatusGatewayTimeout
	}
	return http.StatusServiceUnavailable
}

func failureDetail(failure *service.EngineFailure) string {
	switch failure.Kind {
	case service.FailureNotConfigured:
		return "Engine not configured"
	case service.FailureTimeout:
		return "Engine timed out"
	default:
		return "Engine unreachable"
	}
}

func isSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

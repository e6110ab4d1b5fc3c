package model

// EngineRequest is the normalized view of a request tracked by the upstream
// decision engine. Timestamp fields are passed through as-is when the engine
// provides them.
type EngineRequest struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	SubmittedAt string `json:"submitted_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// ArtifactRef points at a downloadable artifact. A signed URL bypasses the
// gateway's own artifact proxy; an endpoint is a relative path served by it.
type ArtifactRef struct {
	SignedURL string `json:"signed_url,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
}

// EngineResult is the normalized evaluation outcome for a completed request.
// Artifacts is nil when the engine provided none, so "not provided" stays
// distinguishable from "provided but empty".
type EngineResult struct {
	ID             string                 `json:"id"`
	Decision       string                 `json:"decision"`
	Reasons        []string               `json:"reasons"`
	ComputedFields map[string]any         `json:"computed_fields"`
	Artifacts      map[string]ArtifactRef `json:"artifacts,omitempty"`
}

// GatewayError is the uniform failure shape returned to clients regardless of
// the internal cause.
type GatewayError struct {
	Error           string   `json:"error"`
	Code            string   `json:"code,omitempty"`
	TechnicalStatus string   `json:"technical_status,omitempty"`
	Instructions    []string `json:"instructions,omitempty"`
}

// Machine-readable error codes carried in GatewayError.Code.
const (
	CodeInvalidBody         = "INVALID_BODY"
	CodeValidationError     = "VALIDATION_ERROR"
	CodeInvalidArtifactType = "INVALID_ARTIFACT_TYPE"
	CodeRateLimited         = "RATE_LIMITED"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeInternalError       = "INTERNAL_ERROR"
	CodeEngineNotConfigured = "ENGINE_NOT_CONFIGURED"
	CodeEngineUnreachable   = "ENGINE_UNREACHABLE"
	CodeEngineTimeout       = "ENGINE_TIMEOUT"
	CodeEngine5xx           = "ENGINE_5XX"
	CodeEngineError         = "ENGINE_ERROR"
	CodeArtifactUnavailable = "ARTIFACT_UNAVAILABLE"
)

package service

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/felipemchdev/policyforge-core/model"
)

// The upstream engine's response shape is not contractually fixed. These
// coercers fold every recognized shape into the gateway's internal schema and
// fall back to safe defaults instead of propagating malformed data. All of
// them accept a nil payload.

// DecodeJSON reads the response body as a JSON object. Non-JSON content
// types, decode failures and non-object payloads all yield nil.
func DecodeJSON(resp *http.Response) map[string]any {
	if resp == nil || resp.Body == nil {
		return nil
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/json") {
		return nil
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil
	}
	return payload
}

// CoerceID prefers id, then request_id, then requestId, then the fallback.
func CoerceID(payload map[string]any, fallback string) string {
	for _, key := range []string{"id", "request_id", "requestId"} {
		if value := nonEmptyString(payload[key]); value != "" {
			return value
		}
	}
	return fallback
}

// CoerceStatus prefers status, then state, then the fallback ("submitted"
// for just-created requests, "running" for unknown in-flight ones).
func CoerceStatus(payload map[string]any, fallback string) string {
	for _, key := range []string{"status", "state"} {
		if value := nonEmptyString(payload[key]); value != "" {
			return value
		}
	}
	return fallback
}

// CoerceTimestamp passes a string timestamp field through unchanged.
func CoerceTimestamp(payload map[string]any, key string) string {
	value, _ := payload[key].(string)
	return value
}

// CoerceDecision prefers top-level decision, then result.decision, then
// the literal "unknown".
func CoerceDecision(payload map[string]any) string {
	if value := nonEmptyString(payload["decision"]); value != "" {
		return value
	}
	if nested, ok := payload["result"].(map[string]any); ok {
		if value := nonEmptyString(nested["decision"]); value != "" {
			return value
		}
	}
	return "unknown"
}

// CoerceReasons accepts an array whose elements are plain strings or objects
// exposing message, reason or code (first present string wins). Anything else
// is dropped. A missing or malformed field yields an empty slice, never nil.
func CoerceReasons(payload map[string]any) []string {
	reasons := []string{}

	raw, ok := payload["reasons"].([]any)
	if !ok {
		return reasons
	}

	for _, item := range raw {
		switch v := item.(type) {
		case string:
			if v != "" {
				reasons = append(reasons, v)
			}
		case map[string]any:
			for _, key := range []string{"message", "reason", "code"} {
				if s, ok := v[key].(string); ok && s != "" {
					reasons = append(reasons, s)
					break
				}
			}
		}
	}
	return reasons
}

// CoerceComputedFields prefers top-level computed_fields, then
// result.computed_fields, then an empty mapping.
func CoerceComputedFields(payload map[string]any) map[string]any {
	if direct, ok := payload["computed_fields"].(map[string]any); ok {
		return direct
	}
	if nested, ok := payload["result"].(map[string]any); ok {
		if fields, ok := nested["computed_fields"].(map[string]any); ok {
			return fields
		}
	}
	return map[string]any{}
}

// CoerceArtifacts folds the artifacts mapping into ArtifactRefs. A string
// value is a signed URL when absolute http(s), otherwise a relative endpoint;
// an object value contributes its signed_url and endpoint string fields.
// Entries producing neither are dropped, and an empty result normalizes to
// nil so "not provided" stays distinct from "provided but empty".
func CoerceArtifacts(payload map[string]any) map[string]model.ArtifactRef {
	raw, ok := payload["artifacts"].(map[string]any)
	if !ok {
		return nil
	}

	artifacts := make(map[string]model.ArtifactRef)
	for name, value := range raw {
		var ref model.ArtifactRef
		switch v := value.(type) {
		case string:
			if v == "" {
				continue
			}
			if isAbsoluteHTTPURL(v) {
				ref.SignedURL = v
			} else {
				ref.Endpoint = v
			}
		case map[string]any:
			if s, ok := v["signed_url"].(string); ok && s != "" {
				ref.SignedURL = s
			}
			if s, ok := v["endpoint"].(string); ok && s != "" {
				ref.Endpoint = s
			}
		}
		if ref.SignedURL == "" && ref.Endpoint == "" {
			continue
		}
		artifacts[name] = ref
	}

	if len(artifacts) == 0 {
		return nil
	}
	return artifacts
}

// NormalizeErrorMessage extracts a human-readable message from an upstream
// error payload, preferring error over message.
func NormalizeErrorMessage(payload map[string]any) string {
	for _, key := range []string{"error", "message"} {
		if value := nonEmptyString(payload[key]); value != "" {
			return value
		}
	}
	return "Engine request failed."
}

func nonEmptyString(value any) string {
	s, ok := value.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return ""
	}
	return s
}

func isAbsoluteHTTPURL(value string) bool {
	parsed, err := url.Parse(value)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

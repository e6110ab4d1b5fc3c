package service

import (
	"io"
	"net/http"
	"reflect"
	"strings"
	"testing"

	"github.com/felipemchdev/policyforge-core/model"
)

func jsonResponse(contentType, body string) *http.Response {
	return &http.Response{
		Header: http.Header{"Content-Type": []string{contentType}},
		Body:   io.NopCloser(strings.NewReader(body)),
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Run("valid object", func(t *testing.T) {
		payload := DecodeJSON(jsonResponse("application/json; charset=utf-8", `{"id":"req_1"}`))
		if payload == nil || payload["id"] != "req_1" {
			t.Errorf("Expected decoded payload, got %v", payload)
		}
	})

	t.Run("non-json content type", func(t *testing.T) {
		if payload := DecodeJSON(jsonResponse("text/html", `{"id":"req_1"}`)); payload != nil {
			t.Errorf("Expected nil for non-JSON content type, got %v", payload)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		if payload := DecodeJSON(jsonResponse("application/json", `{"id":`)); payload != nil {
			t.Errorf("Expected nil for malformed body, got %v", payload)
		}
	})

	t.Run("nil response", func(t *testing.T) {
		if payload := DecodeJSON(nil); payload != nil {
			t.Errorf("Expected nil for nil response, got %v", payload)
		}
	})
}

func TestCoerceID(t *testing.T) {
	tests := []struct {
		name     string
		payload  map[string]any
		expected string
	}{
		{"top-level id", map[string]any{"id": "a", "request_id": "b"}, "a"},
		{"request_id fallback", map[string]any{"request_id": "b", "requestId": "c"}, "b"},
		{"requestId fallback", map[string]any{"requestId": "c"}, "c"},
		{"empty string skipped", map[string]any{"id": "  ", "request_id": "b"}, "b"},
		{"non-string skipped", map[string]any{"id": 42}, "fallback"},
		{"nil payload", nil, "fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CoerceID(tt.payload, "fallback"); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestCoerceStatus(t *testing.T) {
	if got := CoerceStatus(map[string]any{"status": "queued"}, "running"); got != "queued" {
		t.Errorf("Expected queued, got %q", got)
	}
	if got := CoerceStatus(map[string]any{"state": "pending"}, "running"); got != "pending" {
		t.Errorf("Expected pending, got %q", got)
	}
	if got := CoerceStatus(nil, "submitted"); got != "submitted" {
		t.Errorf("Expected fallback submitted, got %q", got)
	}
}

func TestCoerceDecision(t *testing.T) {
	if got := CoerceDecision(map[string]any{"decision": "approved"}); got != "approved" {
		t.Errorf("Expected approved, got %q", got)
	}
	nested := map[string]any{"result": map[string]any{"decision": "rejected"}}
	if got := CoerceDecision(nested); got != "rejected" {
		t.Errorf("Expected nested decision rejected, got %q", got)
	}
	if got := CoerceDecision(map[string]any{}); got != "unknown" {
		t.Errorf("Expected unknown, got %q", got)
	}
	if got := CoerceDecision(nil); got != "unknown" {
		t.Errorf("Expected unknown for nil payload, got %q", got)
	}
}

func TestCoerceReasons(t *testing.T) {
	t.Run("missing reasons yields empty sequence", func(t *testing.T) {
		reasons := CoerceReasons(map[string]any{})
		if reasons == nil || len(reasons) != 0 {
			t.Errorf("Expected empty non-nil slice, got %v", reasons)
		}
	})

	t.Run("mixed element shapes", func(t *testing.T) {
		payload := map[string]any{"reasons": []any{
			"income below threshold",
			map[string]any{"message": "gpa too low"},
			map[string]any{"reason": "missing consent"},
			map[string]any{"code": "R_17"},
			map[string]any{"detail": "ignored"},
			42,
			nil,
		}}

		expected := []string{"income below threshold", "gpa too low", "missing consent", "R_17"}
		if got := CoerceReasons(payload); !reflect.DeepEqual(got, expected) {
			t.Errorf("Expected %v, got %v", expected, got)
		}
	})

	t.Run("message preferred over reason and code", func(t *testing.T) {
		payload := map[string]any{"reasons": []any{
			map[string]any{"code": "R_1", "reason": "r", "message": "m"},
		}}
		if got := CoerceReasons(payload); len(got) != 1 || got[0] != "m" {
			t.Errorf("Expected [m], got %v", got)
		}
	})

	t.Run("non-array reasons", func(t *testing.T) {
		if got := CoerceReasons(map[string]any{"reasons": "nope"}); len(got) != 0 {
			t.Errorf("Expected empty slice, got %v", got)
		}
	})
}

func TestCoerceComputedFields(t *testing.T) {
	direct := map[string]any{"computed_fields": map[string]any{"score": 92.4}}
	if got := CoerceComputedFields(direct); got["score"] != 92.4 {
		t.Errorf("Expected score 92.4, got %v", got["score"])
	}

	nested := map[string]any{"result": map[string]any{"computed_fields": map[string]any{"rank": "A"}}}
	if got := CoerceComputedFields(nested); got["rank"] != "A" {
		t.Errorf("Expected nested rank A, got %v", got["rank"])
	}

	if got := CoerceComputedFields(nil); got == nil || len(got) != 0 {
		t.Errorf("Expected empty mapping, got %v", got)
	}
}

func TestCoerceArtifacts(t *testing.T) {
	t.Run("string values", func(t *testing.T) {
		payload := map[string]any{"artifacts": map[string]any{
			"json": "https://bucket.example.com/result.json?sig=abc",
			"csv":  "/v1/requests/req_1/artifacts/csv",
		}}

		artifacts := CoerceArtifacts(payload)
		if artifacts["json"].SignedURL != "https://bucket.example.com/result.json?sig=abc" {
			t.Errorf("Expected absolute URL as signed URL, got %+v", artifacts["json"])
		}
		if artifacts["csv"].Endpoint != "/v1/requests/req_1/artifacts/csv" {
			t.Errorf("Expected relative path as endpoint, got %+v", artifacts["csv"])
		}
	})

	t.Run("object values", func(t *testing.T) {
		payload := map[string]any{"artifacts": map[string]any{
			"pdf": map[string]any{
				"signed_url": "https://bucket.example.com/result.pdf",
				"endpoint":   "/v1/requests/req_1/artifacts/pdf",
			},
		}}

		ref := CoerceArtifacts(payload)["pdf"]
		if ref.SignedURL == "" || ref.Endpoint == "" {
			t.Errorf("Expected both fields extracted, got %+v", ref)
		}
	})

	t.Run("unusable entries dropped", func(t *testing.T) {
		payload := map[string]any{"artifacts": map[string]any{
			"json": map[string]any{"note": "nothing useful"},
			"csv":  7,
			"pdf":  "",
		}}

		if artifacts := CoerceArtifacts(payload); artifacts != nil {
			t.Errorf("Expected nil when every entry is dropped, got %v", artifacts)
		}
	})

	t.Run("absent artifacts normalize to nil", func(t *testing.T) {
		if artifacts := CoerceArtifacts(map[string]any{}); artifacts != nil {
			t.Errorf("Expected nil, got %v", artifacts)
		}
	})
}

func TestNormalizeErrorMessage(t *testing.T) {
	if got := NormalizeErrorMessage(map[string]any{"error": "boom"}); got != "boom" {
		t.Errorf("Expected boom, got %q", got)
	}
	if got := NormalizeErrorMessage(map[string]any{"message": "nope"}); got != "nope" {
		t.Errorf("Expected nope, got %q", got)
	}
	if got := NormalizeErrorMessage(nil); got != "Engine request failed." {
		t.Errorf("Expected default message, got %q", got)
	}
}

func TestNormalizedResultRoundTrip(t *testing.T) {
	payload := map[string]any{
		"decision":        "approved",
		"computed_fields": map[string]any{"score": 92.4},
	}

	result := model.EngineResult{
		ID:             CoerceID(payload, "req_1"),
		Decision:       CoerceDecision(payload),
		Reasons:        CoerceReasons(payload),
		ComputedFields: CoerceComputedFields(payload),
		Artifacts:      CoerceArtifacts(payload),
	}

	if result.Decision != "approved" {
		t.Errorf("Expected decision approved, got %q", result.Decision)
	}
	if result.ComputedFields["score"] != 92.4 {
		t.Errorf("Expected score 92.4, got %v", result.ComputedFields["score"])
	}
	if len(result.Reasons) != 0 {
		t.Errorf("Expected no reasons, got %v", result.Reasons)
	}
}

package notification

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEventJSONShapes(t *testing.T) {
	cases := []struct {
		name     string
		event    Event
		expected map[string]any
	}{
		{
			name:  "route updated",
			event: NewRouteUpdated("/api/posts", "pages/api/posts.js"),
			expected: map[string]any{
				"event":     "route-updated",
				"routePath": "/api/posts",
				"filePath":  "pages/api/posts.js",
			},
		},
		{
			name:  "dependency updated",
			event: NewDependencyUpdated("lib/db.js", []string{"/api/posts", "/api/users"}),
			expected: map[string]any{
				"event":          "dependency-updated",
				"dependency":     "lib/db.js",
				"affectedRoutes": []any{"/api/posts", "/api/users"},
			},
		},
		{
			name:  "env updated",
			event: NewEnvUpdated(".env", true),
			expected: map[string]any{
				"event":           "env-updated",
				"filePath":        ".env",
				"requiresRestart": true,
			},
		},
		{
			name:  "reload error",
			event: NewReloadError("pages/api/posts.js", errors.New("syntax error"), 2),
			expected: map[string]any{
				"event":    "reload-error",
				"filePath": "pages/api/posts.js",
				"error":    "syntax error",
				"retries":  float64(2),
			},
		},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			payload, err := json.Marshal(testCase.event)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			var decoded map[string]any
			if err := json.Unmarshal(payload, &decoded); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			for key, expected := range testCase.expected {
				got, ok := decoded[key]
				if !ok {
					t.Fatalf("missing %q in %s", key, payload)
				}
				switch expectedValue := expected.(type) {
				case []any:
					gotSlice, ok := got.([]any)
					if !ok || len(gotSlice) != len(expectedValue) {
						t.Fatalf("field %q = %v, want %v", key, got, expected)
					}
					for i := range expectedValue {
						if gotSlice[i] != expectedValue[i] {
							t.Fatalf("field %q[%d] = %v, want %v", key, i, gotSlice[i], expectedValue[i])
						}
					}
				default:
					if got != expected {
						t.Fatalf("field %q = %v, want %v", key, got, expected)
					}
				}
			}
		})
	}
}

func TestConfigUpdatedOmitsRestartWhenSoftReloadSufficed(t *testing.T) {
	payload, err := json.Marshal(NewConfigUpdated("reflex.yaml", false))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, present := decoded["requiresRestart"]; present {
		t.Fatalf("expected requiresRestart omitted when false: %s", payload)
	}
}

func TestBusIsProcessWide(t *testing.T) {
	if Bus() == nil {
		t.Fatal("expected package bus")
	}
	ch, cancel := Bus().SubscribeTypes(EventRouteUpdated)
	defer cancel()

	Publish(NewRouteUpdated("/api/posts", "pages/api/posts.js"))

	got := <-ch
	if got.RoutePath != "/api/posts" {
		t.Fatalf("unexpected event %+v", got)
	}
}

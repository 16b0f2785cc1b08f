package modelmux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/modelmux/modelmux/internal/jsonschema"
	"github.com/modelmux/modelmux/providers/ai"
)

type person struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func toolCallHandler(t *testing.T, arguments string, capture *[]byte) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if capture != nil {
			*capture = body
		}
		fmt.Fprintf(w, `{
			"choices": [{
				"message": {
					"role": "assistant",
					"tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "structured_output", "arguments": %q}}]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 9, "total_tokens": 21}
		}`, arguments)
	})
}

// Uncataloged providers have no native structured output, so GenerateObject
// synthesizes a forced tool and reads the object from its arguments.
func TestGenerateObjectViaTool(t *testing.T) {
	var body []byte
	id := newTestProvider(t, toolCallHandler(t, `{"name":"Ada","age":36}`, &body))

	obj, err := GenerateObject[person](context.Background(), id+":test-model", "who wrote the first program?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obj.Value.Name != "Ada" || obj.Value.Age != 36 {
		t.Errorf("value = %+v", obj.Value)
	}
	if obj.Response.Usage.TotalTokens != 21 {
		t.Errorf("usage = %+v", obj.Response.Usage)
	}

	payload := string(body)
	if !strings.Contains(payload, `"tool_choice"`) || !strings.Contains(payload, "structured_output") {
		t.Errorf("request did not force the tool: %s", payload)
	}
}

func TestGenerateObjectRepairsDamagedJSON(t *testing.T) {
	// Truncated arguments, as models produce when cut off mid-object.
	id := newTestProvider(t, toolCallHandler(t, `{"name":"Ada","age":36`, nil))

	obj, err := GenerateObject[person](context.Background(), id+":test-model", "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obj.Value.Name != "Ada" || obj.Value.Age != 36 {
		t.Errorf("value = %+v", obj.Value)
	}
}

func TestGenerateObjectMissingToolCall(t *testing.T) {
	id := newTestProvider(t, chatHandler(t, "I refuse to call tools."))

	_, err := GenerateObject[person](context.Background(), id+":test-model", "hi")
	var aiErr *ai.Error
	if !errors.As(err, &aiErr) || aiErr.Kind != ai.ErrAPIResponse {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(aiErr.Reason, "structured_output") {
		t.Errorf("reason = %q", aiErr.Reason)
	}
}

type ticket struct {
	Priority string `json:"priority" jsonschema:"enum=low,enum=high"`
}

func TestGenerateObjectSchemaViolation(t *testing.T) {
	id := newTestProvider(t, toolCallHandler(t, `{"priority":"medium"}`, nil))

	_, err := GenerateObject[ticket](context.Background(), id+":test-model", "hi")
	var aiErr *ai.Error
	if !errors.As(err, &aiErr) || !strings.Contains(aiErr.Reason, "schema_validation") {
		t.Fatalf("err = %v", err)
	}
}

func TestStreamObject(t *testing.T) {
	id := newTestProvider(t, sseHandler(t,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"structured_output","arguments":""}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"name\":\"Ada\""}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":",\"age\":36}"}}]}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"tool_calls"}],"usage":{"prompt_tokens":12,"completion_tokens":9,"total_tokens":21}}`,
		`[DONE]`,
	))

	objStream, err := StreamObject[person](context.Background(), id+":test-model", "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var updates []person
	for value, err := range objStream.Updates() {
		if err != nil {
			t.Fatalf("update error: %v", err)
		}
		updates = append(updates, value)
	}
	if len(updates) == 0 {
		t.Fatal("no updates")
	}
	// The first fragment repairs to a partial object, the last is complete.
	if updates[0].Name != "Ada" {
		t.Errorf("first update = %+v", updates[0])
	}
	last := updates[len(updates)-1]
	if last.Name != "Ada" || last.Age != 36 {
		t.Errorf("last update = %+v", last)
	}

	obj, err := objStream.Object(context.Background())
	if err != nil {
		t.Fatalf("Object: %v", err)
	}
	if obj.Value != last {
		t.Errorf("final value = %+v", obj.Value)
	}
	if obj.Response.Usage.TotalTokens != 21 {
		t.Errorf("usage = %+v", obj.Response.Usage)
	}
}

func TestStreamObjectEmptyStream(t *testing.T) {
	id := newTestProvider(t, sseHandler(t,
		`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
		`[DONE]`,
	))

	objStream, err := StreamObject[person](context.Background(), id+":test-model", "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = objStream.Object(context.Background())
	var aiErr *ai.Error
	if !errors.As(err, &aiErr) || aiErr.Kind != ai.ErrAPIResponse {
		t.Fatalf("err = %v", err)
	}
}

func TestParseAndValidateStripsFences(t *testing.T) {
	schema := jsonschema.Generate[person]()
	payload := "```json\n{\"name\":\"Ada\",\"age\":36}\n```"

	value, err := parseAndValidate[person](payload, schema)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value.Name != "Ada" || value.Age != 36 {
		t.Errorf("value = %+v", value)
	}
}

func TestParseAndValidateRejectsNonJSON(t *testing.T) {
	schema := jsonschema.Generate[person]()
	_, err := parseAndValidate[person]("certainly! here is prose instead of JSON", schema)
	var aiErr *ai.Error
	if !errors.As(err, &aiErr) || aiErr.Kind != ai.ErrAPIResponse {
		t.Fatalf("err = %v", err)
	}
}

package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelmux/modelmux/internal/sse"
	"github.com/modelmux/modelmux/providers/ai"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Adapter implements the canonical provider contract for Gemini.
type Adapter struct {
	baseURL string
}

func init() {
	ai.Register(&Adapter{baseURL: defaultBaseURL})
}

func (a *Adapter) ID() string { return "gemini" }

func (a *Adapter) DefaultEnvKey() string { return "GEMINI_API_KEY" }

func (a *Adapter) NewFramer() sse.Framer {
	// streamGenerateContent answers SSE when alt=sse is honored and a plain
	// JSON array otherwise; the auto framer sniffs which arrived.
	return sse.NewAutoFramer()
}

func (a *Adapter) Schema() ai.OptionSchema {
	schema, _ := ai.CoreOptionSchema().Extend(ai.OptionSchema{
		"top_k":           ai.KindInt,
		"thinking_budget": ai.KindInt,
	})
	return schema
}

// generationConfigKeys maps canonical option names onto the camelCase field
// names of generationConfig.
var generationConfigKeys = map[string]string{
	"temperature":       "temperature",
	"max_tokens":        "maxOutputTokens",
	"top_p":             "topP",
	"top_k":             "topK",
	"stop":              "stopSequences",
	"frequency_penalty": "frequencyPenalty",
	"presence_penalty":  "presencePenalty",
}

func (a *Adapter) TranslateOptions(operation string, model ai.Model, opts ai.OptionMap) (ai.OptionMap, []string, error) {
	translated := opts.Clone()
	var warnings []string
	for from, to := range generationConfigKeys {
		if from == to {
			continue
		}
		if err := translated.Rename(from, to); err != nil {
			return nil, nil, err
		}
	}
	if budget, ok := translated["thinking_budget"]; ok {
		delete(translated, "thinking_budget")
		translated["thinkingConfig"] = map[string]any{"thinkingBudget": budget, "includeThoughts": true}
	}
	return translated, warnings, nil
}

func (a *Adapter) BuildChatRequest(req ai.ChatRequest) (*ai.Request, error) {
	payload := generateRequest{}

	system, contents, err := encodeContents(req.Context)
	if err != nil {
		return nil, err
	}
	if system != "" {
		payload.SystemInstruction = &instruction{Parts: []part{{Text: system}}}
	}
	payload.Contents = contents

	config := map[string]any{}
	for k, v := range req.Options {
		switch k {
		case "tool_choice", "stream":
		default:
			config[k] = v
		}
	}

	if len(req.Tools) > 0 {
		declarations := make([]functionDeclaration, 0, len(req.Tools))
		for _, tool := range req.Tools {
			decl := functionDeclaration{Name: tool.Name, Description: tool.Description}
			if tool.Parameters != nil {
				schema, err := json.Marshal(tool.Parameters)
				if err != nil {
					return nil, ai.WrapError(ai.ErrInvalidSchema, err, "failed to encode tool parameters")
				}
				decl.Parameters = schema
			}
			declarations = append(declarations, decl)
		}
		payload.Tools = []toolDeclaration{{FunctionDeclarations: declarations}}
		payload.ToolConfig = encodeToolConfig(req.ToolChoice)
	}

	if req.ResponseFormat != nil && req.ResponseFormat.Schema != nil {
		schema, err := json.Marshal(req.ResponseFormat.Schema)
		if err != nil {
			return nil, ai.WrapError(ai.ErrInvalidSchema, err, "failed to encode response schema")
		}
		config["responseMimeType"] = "application/json"
		config["responseSchema"] = json.RawMessage(schema)
	}

	if len(config) > 0 {
		payload.GenerationConfig = config
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, ai.WrapError(ai.ErrAPIRequest, err, "failed to encode chat request")
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", a.baseURL, req.Model.Name)
	if req.Stream {
		url = fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", a.baseURL, req.Model.Name)
	}
	return ai.NewRequest(url, body), nil
}

func (a *Adapter) DecodeChatResponse(body []byte, model ai.Model) (*ai.Response, error) {
	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ai.Error{Kind: ai.ErrAPIResponse, Reason: "failed to decode generateContent response", ResponseBody: string(body), Cause: err}
	}
	if len(resp.Candidates) == 0 {
		return nil, &ai.Error{Kind: ai.ErrAPIResponse, Reason: "response contained no candidates", ResponseBody: string(body)}
	}
	cand := resp.Candidates[0]

	var texts, thoughts []string
	message := ai.Message{Role: ai.RoleAssistant}
	if cand.Content != nil {
		for _, p := range cand.Content.Parts {
			switch {
			case p.FunctionCall != nil:
				message.ToolCalls = append(message.ToolCalls, ai.ToolCall{
					ID:   newCallID(),
					Type: "function",
					Function: ai.ToolCallFunction{
						Name:      p.FunctionCall.Name,
						Arguments: string(p.FunctionCall.Args),
					},
				})
			case p.Thought:
				thoughts = append(thoughts, p.Text)
			case p.Text != "":
				texts = append(texts, p.Text)
			}
		}
	}

	text := strings.Join(texts, "\n")
	if len(thoughts) > 0 {
		message.Parts = append(message.Parts, ai.ReasoningPart(strings.Join(thoughts, "\n")))
		if text != "" {
			message.Parts = append(message.Parts, ai.TextPart(text))
		}
	} else {
		message.Content = text
	}

	message.ToolCalls = ai.SanitizeToolCalls(message.ToolCalls)

	return &ai.Response{
		Model:        model.String(),
		Message:      message,
		FinishReason: mapFinishReason(cand.FinishReason, len(message.ToolCalls) > 0),
		Usage:        decodeUsage(resp.UsageMetadata),
		ProviderMeta: ai.ExtractProviderMeta(body, "candidates", "usageMetadata"),
	}, nil
}

func (a *Adapter) NewStreamDecoder(model ai.Model) ai.StreamDecoder {
	return newStreamDecoder()
}

func (a *Adapter) Decorate(req *ai.Request, apiKey string) error {
	req.Header.Set("x-goog-api-key", apiKey)
	return nil
}

func (a *Adapter) BuildEmbedRequest(model ai.Model, input []string, opts ai.OptionMap) (*ai.Request, error) {
	batch := batchEmbedRequest{Requests: make([]embedRequest, 0, len(input))}
	for _, text := range input {
		batch.Requests = append(batch.Requests, embedRequest{
			Model:   "models/" + model.Name,
			Content: content{Parts: []part{{Text: text}}},
		})
	}
	body, err := json.Marshal(batch)
	if err != nil {
		return nil, ai.WrapError(ai.ErrAPIRequest, err, "failed to encode embed request")
	}
	url := fmt.Sprintf("%s/models/%s:batchEmbedContents", a.baseURL, model.Name)
	return ai.NewRequest(url, body), nil
}

func (a *Adapter) DecodeEmbedResponse(body []byte, model ai.Model) (*ai.EmbedResponse, error) {
	var resp batchEmbedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ai.Error{Kind: ai.ErrAPIResponse, Reason: "failed to decode embed response", ResponseBody: string(body), Cause: err}
	}
	embeddings := make([][]float64, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		embeddings = append(embeddings, e.Values)
	}
	// The batch endpoint reports no token usage.
	return &ai.EmbedResponse{Model: model.String(), Embeddings: embeddings}, nil
}

// encodeContents splits the canonical conversation into the system
// instruction and the contents list. Gemini names the assistant role "model"
// and routes tool results through functionResponse parts on user turns.
func encodeContents(conversation *ai.Context) (string, []content, error) {
	if conversation == nil {
		return "", nil, ai.Errorf(ai.ErrInvalidMessage, "conversation context is required")
	}

	var system string
	var contents []content
	callNames := map[string]string{}

	for _, msg := range conversation.Messages() {
		switch msg.Role {
		case ai.RoleSystem:
			system = msg.Text()

		case ai.RoleUser:
			parts, err := encodeParts(msg)
			if err != nil {
				return "", nil, err
			}
			contents = append(contents, content{Role: "user", Parts: parts})

		case ai.RoleAssistant:
			var parts []part
			if text := msg.Text(); text != "" {
				parts = append(parts, part{Text: text})
			}
			for _, call := range msg.ToolCalls {
				callNames[call.ID] = call.Function.Name
				args := json.RawMessage(call.Function.Arguments)
				if len(args) == 0 {
					args = json.RawMessage("{}")
				}
				parts = append(parts, part{FunctionCall: &functionCall{Name: call.Function.Name, Args: args}})
			}
			if len(parts) > 0 {
				contents = append(contents, content{Role: "model", Parts: parts})
			}

		case ai.RoleTool:
			// functionResponse is keyed by function name, not call id.
			name := callNames[msg.ToolCallID]
			if name == "" {
				name = msg.ToolCallID
			}
			response, err := json.Marshal(map[string]string{"result": msg.Text()})
			if err != nil {
				return "", nil, ai.WrapError(ai.ErrInvalidMessage, err, "failed to encode tool result")
			}
			contents = append(contents, content{
				Role:  "user",
				Parts: []part{{FunctionResponse: &functionResponse{Name: name, Response: response}}},
			})
		}
	}
	return system, contents, nil
}

func encodeParts(msg ai.Message) ([]part, error) {
	if len(msg.Parts) == 0 {
		return []part{{Text: msg.Content}}, nil
	}
	var parts []part
	for _, p := range msg.Parts {
		switch p.Type {
		case ai.ContentText:
			parts = append(parts, part{Text: p.Text})
		case ai.ContentImageURL:
			parts = append(parts, part{FileData: &fileData{MimeType: "image/*", FileURI: p.URL}})
		case ai.ContentImage, ai.ContentFile:
			parts = append(parts, part{InlineData: &inlineData{MimeType: p.MediaType, Data: p.Data}})
		default:
			return nil, ai.Errorf(ai.ErrInvalidMessage, "content type %q is not supported by the generateContent API", p.Type)
		}
	}
	return parts, nil
}

func encodeToolConfig(choice string) *toolConfig {
	switch strings.ToLower(choice) {
	case "", "auto":
		return nil
	case "any", "required":
		return &toolConfig{FunctionCallingConfig: &functionCallingConfig{Mode: "ANY"}}
	case "none":
		return &toolConfig{FunctionCallingConfig: &functionCallingConfig{Mode: "NONE"}}
	default:
		return &toolConfig{FunctionCallingConfig: &functionCallingConfig{
			Mode:                 "ANY",
			AllowedFunctionNames: []string{choice},
		}}
	}
}

func mapFinishReason(reason string, hasToolCalls bool) ai.FinishReason {
	switch reason {
	case "STOP":
		if hasToolCalls {
			return ai.FinishToolCalls
		}
		return ai.FinishStop
	case "MAX_TOKENS":
		return ai.FinishLength
	case "SAFETY", "RECITATION", "PROHIBITED_CONTENT":
		return ai.FinishContentFilter
	case "":
		return ""
	default:
		return ai.FinishReason(strings.ToLower(reason))
	}
}

func decodeUsage(meta *usageMetadata) ai.Usage {
	if meta == nil {
		return ai.Usage{}
	}
	return ai.Usage{
		InputTokens:     meta.PromptTokenCount,
		OutputTokens:    meta.CandidatesTokenCount,
		TotalTokens:     meta.TotalTokenCount,
		ReasoningTokens: meta.ThoughtsTokenCount,
		CachedTokens:    meta.CachedContentTokenCount,
	}.Normalize()
}

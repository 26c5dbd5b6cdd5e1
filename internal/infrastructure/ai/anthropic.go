package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/doeshing/gitscope/internal/domain"
	"github.com/doeshing/gitscope/internal/ports"
)

type anthropicStepper struct {
	model      domain.ModelDefinition
	httpClient *http.Client
}

func newAnthropicStepper(model domain.ModelDefinition, client *http.Client) ports.Stepper {
	return &anthropicStepper{model: model, httpClient: client}
}

func (s *anthropicStepper) Name() string {
	return "anthropic"
}

// Step implements ports.Stepper. Capability specs are advertised as tools;
// the first tool_use block of the reply becomes the capability call.
func (s *anthropicStepper) Step(ctx context.Context, req ports.StepRequest) (ports.StepResult, error) {
	apiKey := resolveAuth(s.model.AuthEnvVar, "ANTHROPIC_API_KEY")
	if apiKey == "" {
		return ports.StepResult{}, fmt.Errorf("missing credentials in %s", s.model.AuthEnvVar)
	}

	payload := anthropicRequest{
		Model:     valueOrDefault(s.model.ModelID, "claude-3-5-sonnet-20240620"),
		MaxTokens: valueOrDefaultInt(s.model.MaxTokens, 4096),
		System:    req.System,
		Messages:  renderMessages(req.Messages),
		Tools:     renderTools(req.Tools),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return ports.StepResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, valueOrDefault(s.model.Endpoint, "https://api.anthropic.com/v1/messages"), bytes.NewReader(body))
	if err != nil {
		return ports.StepResult{}, err
	}
	httpReq.Header.Set("x-api-key", apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")
	httpReq.Header.Set("content-type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return ports.StepResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return ports.StepResult{}, fmt.Errorf("anthropic: %s", resp.Status)
	}

	var decoded anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return ports.StepResult{}, err
	}
	return decoded.toStepResult(), nil
}

// renderMessages flattens the conversation for the wire. Tool results travel
// as user-role text blocks labeled with the capability name; the loop owns
// the transcript format, the adapter only ships it.
func renderMessages(messages []ports.Message) []anthropicMessage {
	out := make([]anthropicMessage, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		text := m.Text
		if role == "tool" {
			role = "user"
			text = fmt.Sprintf("[%s result]\n%s", m.ToolName, m.Text)
		}
		out = append(out, anthropicMessage{
			Role:    role,
			Content: []anthropicContent{{Type: "text", Text: text}},
		})
	}
	return out
}

func renderTools(tools []ports.ToolSpec) []anthropicTool {
	out := make([]anthropicTool, 0, len(tools))
	for _, t := range tools {
		props := make(map[string]anthropicProperty, len(t.Params))
		required := make([]string, 0, len(t.Params))
		for name, desc := range t.Params {
			props[name] = anthropicProperty{Type: "string", Description: desc}
			required = append(required, name)
		}
		out = append(out, anthropicTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: anthropicSchema{Type: "object", Properties: props, Required: required},
		})
	}
	return out
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema anthropicSchema `json:"input_schema"`
}

type anthropicSchema struct {
	Type       string                       `json:"type"`
	Properties map[string]anthropicProperty `json:"properties"`
	Required   []string                     `json:"required,omitempty"`
}

type anthropicProperty struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

type anthropicResponse struct {
	Content []struct {
		Type  string          `json:"type"`
		Text  string          `json:"text"`
		Name  string          `json:"name"`
		Input json.RawMessage `json:"input"`
	} `json:"content"`
}

func (a anthropicResponse) toStepResult() ports.StepResult {
	var result ports.StepResult
	for _, block := range a.Content {
		switch block.Type {
		case "text":
			if result.Text == "" {
				result.Text = block.Text
			}
		case "tool_use":
			if result.Call != nil {
				continue
			}
			args := map[string]string{}
			if len(block.Input) > 0 {
				// Non-string argument values are tolerated and stringified.
				var raw map[string]json.RawMessage
				if err := json.Unmarshal(block.Input, &raw); err == nil {
					for k, v := range raw {
						var s string
						if err := json.Unmarshal(v, &s); err == nil {
							args[k] = s
						} else {
							args[k] = string(v)
						}
					}
				}
			}
			result.Call = &ports.ToolCall{Name: block.Name, Args: args}
		}
	}
	return result
}

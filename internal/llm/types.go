package llm

import "encoding/json"

// Message is a chat message in the OpenAI API format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the OpenAI-compatible chat completion request.
// Fields not explicitly modeled are preserved in Extra for pass-through, so
// clients can send sampling parameters the server does not interpret.
type ChatRequest struct {
	Model    string                     `json:"model"`
	Messages json.RawMessage            `json:"messages"`
	Stream   bool                       `json:"stream,omitempty"`
	Extra    map[string]json.RawMessage `json:"-"`
}

func (r ChatRequest) MarshalJSON() ([]byte, error) {
	m := make(map[string]json.RawMessage)
	for k, v := range r.Extra {
		m[k] = v
	}
	if r.Model != "" {
		b, _ := json.Marshal(r.Model)
		m["model"] = b
	}
	if r.Messages != nil {
		m["messages"] = r.Messages
	}
	if r.Stream {
		m["stream"] = json.RawMessage(`true`)
	}
	return json.Marshal(m)
}

func (r *ChatRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["model"]; ok {
		json.Unmarshal(v, &r.Model)
		delete(raw, "model")
	}
	if v, ok := raw["messages"]; ok {
		r.Messages = v
		delete(raw, "messages")
	}
	if v, ok := raw["stream"]; ok {
		json.Unmarshal(v, &r.Stream)
		delete(raw, "stream")
	}
	r.Extra = raw
	return nil
}

// Schema describes the expected JSON output structure for structured chat
// responses, sent as a json_schema response_format.
type Schema struct {
	Type       string                    `json:"type"`
	Properties map[string]SchemaProperty `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

// SchemaProperty describes a single field within a Schema.
type SchemaProperty struct {
	Type        string  `json:"type"`
	Description string  `json:"description,omitempty"`
	Items       *Schema `json:"items,omitempty"`
	Minimum     *int    `json:"minimum,omitempty"`
	Maximum     *int    `json:"maximum,omitempty"`
}

// chatResponse is the non-streaming completion response, reduced to the
// fields the service reads.
type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

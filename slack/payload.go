package slack

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// ActionPayload is the subset of a Slack block-actions payload the triage
// webhook consumes: who clicked which button on which message.
type ActionPayload struct {
	UserID  string
	Channel string
	TS      string
	Value   ButtonValue
}

// interactionPayload mirrors the wire shape of a block_actions payload.
type interactionPayload struct {
	Type string `json:"type"`
	User struct {
		ID string `json:"id"`
	} `json:"user"`
	Channel struct {
		ID string `json:"id"`
	} `json:"channel"`
	Message struct {
		TS string `json:"ts"`
	} `json:"message"`
	Actions []struct {
		ActionID string `json:"action_id"`
		Value    string `json:"value"`
	} `json:"actions"`
}

// ParseActionPayload decodes the form-encoded body of an interactive
// action request. Slack sends the JSON payload in a "payload" form field.
func ParseActionPayload(body []byte) (*ActionPayload, error) {
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse form body: %w", err)
	}
	raw := form.Get("payload")
	if raw == "" {
		return nil, fmt.Errorf("missing payload field")
	}

	var p interactionPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	if len(p.Actions) == 0 {
		return nil, fmt.Errorf("payload contains no actions")
	}

	var value ButtonValue
	if v := p.Actions[0].Value; v != "" {
		if err := json.Unmarshal([]byte(v), &value); err != nil {
			return nil, fmt.Errorf("failed to decode action value: %w", err)
		}
	}

	out := &ActionPayload{
		UserID:  p.User.ID,
		Channel: p.Channel.ID,
		TS:      p.Message.TS,
		Value:   value,
	}
	if out.Value.RunID == "" {
		// Older buttons may predate run ids in the value; the message
		// coordinates still identify the run.
		out.Value.RunID = out.Channel + ":" + out.TS
	}
	return out, nil
}

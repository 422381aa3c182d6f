package slack

import "encoding/json"

// Block is a Block Kit layout block. Only the shapes the triage
// notification uses are modeled.
type Block struct {
	Type     string    `json:"type"`
	BlockID  string    `json:"block_id,omitempty"`
	Text     *TextObj  `json:"text,omitempty"`
	Elements []Element `json:"elements,omitempty"`
}

// TextObj is a Block Kit text object.
type TextObj struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Element is an interactive block element (here always a button).
type Element struct {
	Type     string   `json:"type"`
	ActionID string   `json:"action_id,omitempty"`
	Text     *TextObj `json:"text,omitempty"`
	Value    string   `json:"value,omitempty"`
}

// SectionBlock builds a mrkdwn section block.
func SectionBlock(text string) Block {
	return Block{
		Type: "section",
		Text: &TextObj{Type: "mrkdwn", Text: text},
	}
}

// ButtonValue is the payload carried by a triage button. It round-trips
// through Slack to the actions webhook, where it is the only link back to
// the suspended run.
type ButtonValue struct {
	RunID    string `json:"run_id"`
	Level    string `json:"level"`
	Category string `json:"category,omitempty"`
}

// ButtonOption is one selectable button in an actions block.
type ButtonOption struct {
	Label string
	Value ButtonValue
}

// ActionsBlock builds an actions block with one button per option. The
// action id is derived from the option's level so handlers can tell
// buttons apart without parsing the value.
func ActionsBlock(blockID string, options []ButtonOption) Block {
	elements := make([]Element, 0, len(options))
	for _, opt := range options {
		raw, _ := json.Marshal(opt.Value)
		elements = append(elements, Element{
			Type:     "button",
			ActionID: "set_triage_" + opt.Value.Level,
			Text:     &TextObj{Type: "plain_text", Text: opt.Label},
			Value:    string(raw),
		})
	}
	return Block{
		Type:     "actions",
		BlockID:  blockID,
		Elements: elements,
	}
}

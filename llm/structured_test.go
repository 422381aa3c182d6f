package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON(t *testing.T) {
	type classification struct {
		Type      string `json:"type"`
		Rationale string `json:"rationale"`
	}

	cases := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{"bare object", `{"type":"APP","rationale":"crash report"}`, "APP", false},
		{"fenced json", "```json\n{\"type\":\"WEBSITE\"}\n```", "WEBSITE", false},
		{"fenced without language", "```\n{\"type\":\"PASSENGER\"}\n```", "PASSENGER", false},
		{"surrounding prose", "Sure, here is the result:\n{\"type\":\"CHAUFFEUR\"}\nLet me know!", "CHAUFFEUR", false},
		{"no object", "I could not classify this report.", "", true},
		{"broken json", `{"type": APP}`, "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out classification
			err := DecodeJSON(tc.content, &out)
			if tc.wantErr {
				var provErr *Error
				require.ErrorAs(t, err, &provErr)
				assert.Equal(t, ErrMalformedOutput, provErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, out.Type)
		})
	}
}

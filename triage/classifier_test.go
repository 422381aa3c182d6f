package triage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/incidentflow/llm"
)

type fakeProvider struct {
	content string
	err     error
	lastReq *llm.ChatRequest
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Content: f.content}, nil
}

func TestLLMClassifier(t *testing.T) {
	t.Run("valid category", func(t *testing.T) {
		p := &fakeProvider{content: `{"type":"CHAUFFEUR","rationale":"driver app mentioned"}`}
		c := NewLLMClassifier(p, nil)

		out, err := c.Classify(context.Background(), "driver app will not load jobs")
		require.NoError(t, err)
		assert.Equal(t, CategoryChauffeur, out.Category)
		assert.Equal(t, "driver app mentioned", out.Rationale)

		require.Len(t, p.lastReq.Messages, 2)
		assert.Equal(t, llm.RoleSystem, p.lastReq.Messages[0].Role)
		assert.Equal(t, "driver app will not load jobs", p.lastReq.Messages[1].Content)
	})

	t.Run("fenced output", func(t *testing.T) {
		p := &fakeProvider{content: "```json\n{\"type\":\"APP\",\"rationale\":\"crash\"}\n```"}
		out, err := NewLLMClassifier(p, nil).Classify(context.Background(), "app crashes")
		require.NoError(t, err)
		assert.Equal(t, CategoryApp, out.Category)
	})

	t.Run("unknown category is a fault", func(t *testing.T) {
		p := &fakeProvider{content: `{"type":"BILLING","rationale":"invoice"}`}
		_, err := NewLLMClassifier(p, nil).Classify(context.Background(), "invoice is wrong")
		assert.Error(t, err)
	})

	t.Run("non-json output is a fault", func(t *testing.T) {
		p := &fakeProvider{content: "I think this is an app issue."}
		_, err := NewLLMClassifier(p, nil).Classify(context.Background(), "something broke")
		assert.Error(t, err)
	})

	t.Run("provider error propagates", func(t *testing.T) {
		p := &fakeProvider{err: errors.New("rate limited")}
		_, err := NewLLMClassifier(p, nil).Classify(context.Background(), "something broke")
		assert.Error(t, err)
	})
}

func TestLLMAdvisor(t *testing.T) {
	t.Run("structured advice", func(t *testing.T) {
		p := &fakeProvider{content: `{"summary":"bad deploy","steps":["check deploys","check errors","roll back"],"notify":["on-call"]}`}
		a := NewLLMAdvisor(p, nil)

		out, err := a.Advise(context.Background(), CategoryWebsite, SeverityP1, "site returns 500")
		require.NoError(t, err)
		assert.Equal(t, "bad deploy", out.Summary)
		assert.Len(t, out.Steps, 3)
		assert.Equal(t, []string{"on-call"}, out.Notify)

		// Category, level, and report all reach the prompt.
		assert.Contains(t, p.lastReq.Messages[1].Content, "WEBSITE")
		assert.Contains(t, p.lastReq.Messages[1].Content, "P1")
		assert.Contains(t, p.lastReq.Messages[1].Content, "site returns 500")
	})

	t.Run("malformed output is a fault", func(t *testing.T) {
		p := &fakeProvider{content: "no json here"}
		_, err := NewLLMAdvisor(p, nil).Advise(context.Background(), CategoryApp, SeverityP2, "x")
		assert.Error(t, err)
	})
}

package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/incidentflow/slack"
	"github.com/BaSui01/incidentflow/store"
	"github.com/BaSui01/incidentflow/triage"
	"github.com/BaSui01/incidentflow/workflow"
)

type stubClassifier struct{}

func (stubClassifier) Classify(ctx context.Context, report string) (*triage.Classification, error) {
	return &triage.Classification{Category: triage.CategoryApp, Rationale: "stub"}, nil
}

type stubAdvisor struct{}

func (stubAdvisor) Advise(ctx context.Context, category triage.Category, level triage.Severity, report string) (*triage.AdviceContent, error) {
	return &triage.AdviceContent{
		Summary: "stub advice",
		Steps:   []string{"one", "two", "three"},
	}, nil
}

type stubNotifier struct {
	posts int
}

func (n *stubNotifier) PostMessage(ctx context.Context, channel, text, threadTS string, blocks []slack.Block) (*slack.MessageRef, error) {
	n.posts++
	return &slack.MessageRef{Channel: channel, TS: fmt.Sprintf("1700000000.%06d", n.posts)}, nil
}

type recordingUpdater struct {
	calls []string
}

func (u *recordingUpdater) UpdateMessage(ctx context.Context, channel, ts, text string) error {
	u.calls = append(u.calls, text)
	return nil
}

type fixture struct {
	engine  *workflow.Engine
	trigger *triage.ResumeTrigger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	steps := triage.NewSteps(stubClassifier{}, stubAdvisor{}, &stubNotifier{}, triage.Routing{Default: "C-triage"}, nil)
	engine, err := triage.NewEngine(steps, store.NewMemory(), nil)
	require.NoError(t, err)
	return &fixture{engine: engine, trigger: triage.NewResumeTrigger(engine, nil)}
}

func TestSubmitReportAndStatus(t *testing.T) {
	f := newFixture(t)
	h := NewReportHandler(f.engine, nil, nil)
	mux := http.NewServeMux()
	h.Register(mux)

	req := httptest.NewRequest("POST", "/api/report", strings.NewReader(`{"report":"app crashes on login"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp submitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	require.NotEmpty(t, resp.RunID)
	assert.True(t, strings.HasPrefix(resp.RunID, "web-"))

	// The run executes on a background task; wait for it before polling.
	h.Wait()

	statusReq := httptest.NewRequest("GET", "/api/status/"+resp.RunID, nil)
	statusRec := httptest.NewRecorder()
	mux.ServeHTTP(statusRec, statusReq)

	require.Equal(t, http.StatusOK, statusRec.Code)
	var view triage.StatusView
	require.NoError(t, json.Unmarshal(statusRec.Body.Bytes(), &view))
	assert.True(t, view.HasReport)
	assert.Equal(t, triage.CategoryApp, view.Category)
	require.NotNil(t, view.Slack)
	assert.Nil(t, view.Triage, "run is paused awaiting a decision")
}

func TestSubmitReportFormEncoded(t *testing.T) {
	f := newFixture(t)
	h := NewReportHandler(f.engine, nil, nil)

	form := url.Values{"report": {"website shows 500"}}
	req := httptest.NewRequest("POST", "/api/report", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.SubmitReport(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	h.Wait()
}

func TestSubmitReportRejectsEmpty(t *testing.T) {
	f := newFixture(t)
	h := NewReportHandler(f.engine, nil, nil)

	for _, body := range []string{`{"report":""}`, `{"report":"   "}`, `{}`} {
		req := httptest.NewRequest("POST", "/api/report", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.SubmitReport(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var resp errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, string(workflow.CodeInvalidInput), resp.Code)
	}
}

func TestSubmitReportRejectsMalformedJSON(t *testing.T) {
	f := newFixture(t)
	h := NewReportHandler(f.engine, nil, nil)

	req := httptest.NewRequest("POST", "/api/report", strings.NewReader(`{"report":`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.SubmitReport(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusUnknownRun(t *testing.T) {
	f := newFixture(t)
	h := NewReportHandler(f.engine, nil, nil)
	mux := http.NewServeMux()
	h.Register(mux)

	req := httptest.NewRequest("GET", "/api/status/ghost", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(workflow.CodeUnknownRun), resp.Code)
}

// signedActionRequest builds a form-encoded block_actions request with a
// valid signature.
func signedActionRequest(t *testing.T, v *slack.SignatureVerifier, runID string, level triage.Severity) *http.Request {
	t.Helper()
	value, err := json.Marshal(slack.ButtonValue{RunID: runID, Level: string(level), Category: "APP"})
	require.NoError(t, err)
	payload, err := json.Marshal(map[string]any{
		"type":    "block_actions",
		"user":    map[string]string{"id": "U123"},
		"channel": map[string]string{"id": "C-triage"},
		"message": map[string]string{"ts": "1700000000.000001"},
		"actions": []map[string]string{
			{"action_id": "set_triage_" + string(level), "value": string(value)},
		},
	})
	require.NoError(t, err)

	body := url.Values{"payload": {string(payload)}}.Encode()
	req := httptest.NewRequest("POST", "/slack/actions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	ts := fmt.Sprintf("%d", time.Now().Unix())
	req.Header.Set("X-Slack-Request-Timestamp", ts)
	req.Header.Set("X-Slack-Signature", v.Sign(ts, []byte(body)))
	return req
}

func TestHandleAction(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Start(context.Background(), "run-1", workflow.State{triage.FieldReport: "app is down"})
	require.NoError(t, err)

	verifier, err := slack.NewSignatureVerifier("secret")
	require.NoError(t, err)
	updater := &recordingUpdater{}
	h := NewActionsHandler(verifier, updater, f.trigger, nil, nil)

	rec := httptest.NewRecorder()
	h.HandleAction(rec, signedActionRequest(t, verifier, "run-1", triage.SeverityP1))
	require.Equal(t, http.StatusOK, rec.Code)

	h.Wait()

	// The source message was exhausted and the run completed.
	require.Len(t, updater.calls, 1)
	assert.Contains(t, updater.calls[0], "P1")
	assert.Contains(t, updater.calls[0], "<@U123>")

	state, err := f.engine.GetState(context.Background(), "run-1")
	require.NoError(t, err)
	decision, ok := triage.DecisionFrom(state)
	require.True(t, ok)
	assert.Equal(t, triage.SeverityP1, decision.SeverityLevel)
	_, ok = triage.AdviceFrom(state)
	assert.True(t, ok)
}

func TestHandleActionRejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	verifier, err := slack.NewSignatureVerifier("secret")
	require.NoError(t, err)
	h := NewActionsHandler(verifier, nil, f.trigger, nil, nil)

	body := "payload=%7B%7D"
	req := httptest.NewRequest("POST", "/slack/actions", strings.NewReader(body))
	req.Header.Set("X-Slack-Request-Timestamp", fmt.Sprintf("%d", time.Now().Unix()))
	req.Header.Set("X-Slack-Signature", "v0=deadbeef")

	rec := httptest.NewRecorder()
	h.HandleAction(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandleActionRejectsMalformedPayload(t *testing.T) {
	f := newFixture(t)
	verifier, err := slack.NewSignatureVerifier("secret")
	require.NoError(t, err)
	h := NewActionsHandler(verifier, nil, f.trigger, nil, nil)

	body := "token=abc"
	ts := fmt.Sprintf("%d", time.Now().Unix())
	req := httptest.NewRequest("POST", "/slack/actions", strings.NewReader(body))
	req.Header.Set("X-Slack-Request-Timestamp", ts)
	req.Header.Set("X-Slack-Signature", verifier.Sign(ts, []byte(body)))

	rec := httptest.NewRecorder()
	h.HandleAction(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWriteErrorStatusMapping(t *testing.T) {
	cases := []struct {
		code workflow.ErrorCode
		want int
	}{
		{workflow.CodeInvalidInput, http.StatusBadRequest},
		{workflow.CodeUnknownRun, http.StatusNotFound},
		{workflow.CodeDuplicateRun, http.StatusConflict},
		{workflow.CodeInvalidTransition, http.StatusConflict},
		{workflow.CodeConcurrentResume, http.StatusTooManyRequests},
		{workflow.CodeStoreUnavailable, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeError(rec, workflow.NewError(tc.code, "boom"))
		assert.Equal(t, tc.want, rec.Code, string(tc.code))
	}

	rec := httptest.NewRecorder()
	writeError(rec, fmt.Errorf("plain error"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

package verify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/svllm/svllm/ai/llm"
)

func newTestRequest() *llm.Request {
	return &llm.Request{
		Model:  "gpt-4o-2024-11-20",
		APIKey: "sk-test",
		Messages: []llm.Message{
			{Role: "system", Content: "stay secure"},
			{Role: "user", Content: "generate a threat model"},
		},
	}
}

func TestSendForwardsMessagesAndAuxiliary(t *testing.T) {
	var captured []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = io.ReadAll(r.Body)
		require.Equal(t, "/api/chat", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"content":"threat model ready"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	req := newTestRequest()
	req.Auxiliary = map[string]string{"design_spec": "the module spec"}

	reply, err := client.Send(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "assistant", reply.Role)
	require.Equal(t, "threat model ready", reply.Content)

	require.Equal(t, "gpt-4o-2024-11-20", gjson.GetBytes(captured, "model").String())
	require.Equal(t, "stay secure", gjson.GetBytes(captured, "messages.0.content").String())
	require.Equal(t, "the module spec", gjson.GetBytes(captured, "design_spec").String())
}

func TestSendRecognizesMissingInputsSignal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"status": "missing_inputs",
			"required_inputs": {"threat_modeling": ["design_spec", "vulnerability"]},
			"content": "Please provide the design specification."
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	_, err := client.Send(context.Background(), newTestRequest())

	var missing *llm.MissingInputsError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, map[string][]string{"threat_modeling": {"design_spec", "vulnerability"}}, missing.RequiredInputs)
	require.Equal(t, "Please provide the design specification.", missing.Content)
}

func TestSendMissingInputsOnErrorStatus(t *testing.T) {
	// Some backend versions send the signal with a 4xx status; it is still a
	// continuation request, not a failure.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"status":"missing_inputs","required_inputs":{"sva_generation":["assertion"]}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	_, err := client.Send(context.Background(), newTestRequest())

	var missing *llm.MissingInputsError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, []string{"assertion"}, missing.Fields())
}

func TestSendNormalizesBackendFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"upstream model unavailable"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	_, err := client.Send(context.Background(), newTestRequest())

	var transportErr *llm.TransportError
	require.ErrorAs(t, err, &transportErr)
	require.Equal(t, http.StatusBadGateway, transportErr.StatusCode)
	require.Equal(t, "upstream model unavailable", transportErr.Message)
}

func TestSendMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"unexpected":"shape"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	_, err := client.Send(context.Background(), newTestRequest())

	var transportErr *llm.TransportError
	require.ErrorAs(t, err, &transportErr)
}

func TestSendConnectionRefused(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", time.Second)
	_, err := client.Send(context.Background(), newTestRequest())

	var transportErr *llm.TransportError
	require.ErrorAs(t, err, &transportErr)
	require.Zero(t, transportErr.StatusCode)
}

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func sampleEvent() Event {
	return NewEvent(EventDetailSaved, uuid.New(), "malaymail", "https://example.com/a", "/data/malaymail/additional/a.json")
}

// TestLoadConfig_YAML verifies YAML parsing, defaults and env expansion
func TestLoadConfig_YAML(t *testing.T) {
	t.Setenv("HOOK_TOKEN", "secret")
	path := writeFile(t, "notify.yaml", `
publishers:
  - id: hook
    type: HTTP
    http:
      url: https://hooks.example.com/archive
      headers:
        Authorization: Bearer ${HOOK_TOKEN}
  - id: queue
    type: queue
    enabled: false
    queue:
      provider: aws-sqs
      sqs:
        queue_url: https://sqs.us-east-1.amazonaws.com/123/news
        region: us-east-1
`)

	cfgs, err := LoadConfig(path)

	require.NoError(t, err)
	require.Len(t, cfgs, 2)
	assert.Equal(t, TypeHTTP, cfgs[0].Type)
	assert.Equal(t, "POST", cfgs[0].HTTP.Method)
	assert.Equal(t, 5, cfgs[0].HTTP.TimeoutSeconds)
	assert.Equal(t, "Bearer secret", cfgs[0].HTTP.Headers["Authorization"])
	assert.True(t, cfgs[0].IsEnabled())
	assert.False(t, cfgs[1].IsEnabled())
}

// TestLoadConfig_JSON verifies JSON files are accepted
func TestLoadConfig_JSON(t *testing.T) {
	path := writeFile(t, "notify.json", `{"publishers":[{"id":"t","type":"queue","queue":{"provider":"gcp","gcp":{"project_id":"p","topic":"news"}}}]}`)

	cfgs, err := LoadConfig(path)

	require.NoError(t, err)
	require.Len(t, cfgs, 1)
	assert.Equal(t, ProviderGCP, cfgs[0].Queue.Provider)
}

// TestLoadConfig_Invalid verifies validation failures
func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no publishers", "publishers: []"},
		{"missing id", "publishers:\n  - type: http\n    http: {url: https://x}"},
		{"missing url", "publishers:\n  - id: a\n    type: http"},
		{"unknown type", "publishers:\n  - id: a\n    type: smtp"},
		{"unknown provider", "publishers:\n  - id: a\n    type: queue\n    queue: {provider: azure}"},
		{"sqs without region", "publishers:\n  - id: a\n    type: queue\n    queue: {provider: aws-sqs, sqs: {queue_url: https://q}}"},
		{"duplicate id", "publishers:\n  - id: a\n    type: http\n    http: {url: https://x}\n  - id: a\n    type: http\n    http: {url: https://y}"},
		{"malformed", "publishers: [unterminated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeFile(t, "notify.yaml", tt.content))
			assert.Error(t, err)
		})
	}

	_, err := LoadConfig(writeFile(t, "notify.yaml", "publishers: []"))
	assert.ErrorIs(t, err, ErrNoPublishers)
}

// TestHTTPPublisher verifies events are posted as JSON with headers
func TestHTTPPublisher(t *testing.T) {
	var got Event
	var gotAuth, gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotMethod = r.Method
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	cfg := sanitize(PublisherConfig{
		ID:   "hook",
		Type: TypeHTTP,
		HTTP: &HTTPConfig{URL: server.URL, Method: "put", Headers: map[string]string{"Authorization": "Bearer t"}},
	})
	pub, err := DefaultRegistry().Build(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	evt := sampleEvent()
	require.NoError(t, pub.Publish(context.Background(), evt))

	assert.Equal(t, "PUT", gotMethod)
	assert.Equal(t, "Bearer t", gotAuth)
	assert.Equal(t, evt.ID, got.ID)
	assert.Equal(t, EventDetailSaved, got.Type)
	assert.Equal(t, "hook", pub.ID())
	assert.Equal(t, TypeHTTP, pub.Type())
}

// TestHTTPPublisher_ErrorStatus verifies non-2xx responses fail
func TestHTTPPublisher_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := sanitize(PublisherConfig{ID: "hook", Type: TypeHTTP, HTTP: &HTTPConfig{URL: server.URL}})
	pub, err := newHTTPPublisher(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	assert.Error(t, pub.Publish(context.Background(), sampleEvent()))
}

type fakeSQS struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

type fakeSNS struct {
	input *sns.PublishInput
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = in
	return &sns.PublishOutput{MessageId: aws.String("m-2")}, nil
}

// TestSQSSender verifies the message body and attributes
func TestSQSSender(t *testing.T) {
	client := &fakeSQS{}
	sender := &sqsSender{queueURL: "https://sqs.example.com/q", client: client, logger: zap.NewNop()}
	evt := sampleEvent()

	require.NoError(t, sender.Send(context.Background(), evt))

	require.NotNil(t, client.input)
	assert.Equal(t, "https://sqs.example.com/q", aws.ToString(client.input.QueueUrl))
	assert.Equal(t, "malaymail", aws.ToString(client.input.MessageAttributes["source"].StringValue))

	var decoded Event
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(client.input.MessageBody)), &decoded))
	assert.Equal(t, evt.Path, decoded.Path)
}

// TestSNSSender verifies the topic and payload
func TestSNSSender(t *testing.T) {
	client := &fakeSNS{}
	sender := &snsSender{topicARN: "arn:aws:sns:us-east-1:123:news", client: client, logger: zap.NewNop()}

	require.NoError(t, sender.Send(context.Background(), sampleEvent()))

	require.NotNil(t, client.input)
	assert.Equal(t, "arn:aws:sns:us-east-1:123:news", aws.ToString(client.input.TopicArn))
	assert.Equal(t, EventDetailSaved, aws.ToString(client.input.MessageAttributes["event_type"].StringValue))
}

// TestQueuePublisher_WrapsErrors verifies provider errors are wrapped
func TestQueuePublisher_WrapsErrors(t *testing.T) {
	boom := errors.New("throttled")
	pub := &queuePublisher{
		id:       "q",
		provider: ProviderAWSSQS,
		sender:   &sqsSender{queueURL: "q", client: &fakeSQS{err: boom}, logger: zap.NewNop()},
	}

	err := pub.Publish(context.Background(), sampleEvent())

	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), ProviderAWSSQS)
}

// TestPubSubSender verifies delivery to a Pub/Sub emulator
func TestPubSubSender(t *testing.T) {
	srv := pstest.NewServer()
	defer srv.Close()
	t.Setenv("PUBSUB_EMULATOR_HOST", srv.Addr)

	ctx := context.Background()
	admin, err := pubsub.NewClient(ctx, "test-project")
	require.NoError(t, err)
	defer admin.Close()
	_, err = admin.CreateTopic(ctx, "archive-events")
	require.NoError(t, err)

	sender, err := newPubSubSender(ctx, &GCPConfig{ProjectID: "test-project", Topic: "archive-events"}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, sender.Send(ctx, sampleEvent()))

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "malaymail", msgs[0].Attributes["source"])

	pub := &queuePublisher{id: "gcp", provider: ProviderGCP, sender: sender}
	require.NoError(t, pub.Close())
	assert.Error(t, sender.Send(ctx, sampleEvent()), "a closed sender should not publish")
}

type stubPublisher struct {
	id     string
	err    error
	events []Event
}

func (s *stubPublisher) ID() string   { return s.id }
func (s *stubPublisher) Type() string { return "stub" }
func (s *stubPublisher) Publish(_ context.Context, evt Event) error {
	s.events = append(s.events, evt)
	return s.err
}

// TestDispatcher_FanOut verifies every publisher sees the event and errors
// are joined
func TestDispatcher_FanOut(t *testing.T) {
	errA := errors.New("a failed")
	a := &stubPublisher{id: "a", err: errA}
	b := &stubPublisher{id: "b"}
	d := NewDispatcher([]Publisher{a, b}, zaptest.NewLogger(t))

	err := d.Publish(context.Background(), sampleEvent())

	assert.ErrorIs(t, err, errA)
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1, "a failing publisher should not stop the next")
	assert.Equal(t, 2, d.Len())
}

// TestDispatcher_Nil verifies a nil dispatcher is a no-op
func TestDispatcher_Nil(t *testing.T) {
	var d *Dispatcher

	assert.NoError(t, d.Publish(context.Background(), sampleEvent()))
	assert.Equal(t, 0, d.Len())
}

type closingPublisher struct {
	stubPublisher
	closed   int
	closeErr error
}

func (c *closingPublisher) Close() error {
	c.closed++
	return c.closeErr
}

// TestDispatcher_Close verifies publishers holding connections are closed
// and their errors joined
func TestDispatcher_Close(t *testing.T) {
	errB := errors.New("b close failed")
	a := &closingPublisher{stubPublisher: stubPublisher{id: "a"}}
	b := &closingPublisher{stubPublisher: stubPublisher{id: "b"}, closeErr: errB}
	plain := &stubPublisher{id: "plain"}
	d := NewDispatcher([]Publisher{a, plain, b}, zaptest.NewLogger(t))

	err := d.Close()

	assert.ErrorIs(t, err, errB)
	assert.Contains(t, err.Error(), "publisher b")
	assert.Equal(t, 1, a.closed)
	assert.Equal(t, 1, b.closed)

	var none *Dispatcher
	assert.NoError(t, none.Close())
}

// TestBuildDispatcher_ClosesBuiltOnError verifies publishers built before a
// failing entry are released
func TestBuildDispatcher_ClosesBuiltOnError(t *testing.T) {
	reg := NewRegistry()
	var first *closingPublisher
	reg.Register("closing", func(_ context.Context, cfg PublisherConfig, _ *zap.Logger) (Publisher, error) {
		first = &closingPublisher{stubPublisher: stubPublisher{id: cfg.ID}}
		return first, nil
	})

	_, err := BuildDispatcher(context.Background(), reg, []PublisherConfig{
		{ID: "ok", Type: "closing"},
		{ID: "bad", Type: "unknown"},
	}, nil)

	require.Error(t, err)
	require.NotNil(t, first)
	assert.Equal(t, 1, first.closed)
}

// TestBuildDispatcher_SkipsDisabled verifies disabled entries are not built
func TestBuildDispatcher_SkipsDisabled(t *testing.T) {
	disabled := false
	reg := NewRegistry()
	built := 0
	reg.Register("stub", func(_ context.Context, cfg PublisherConfig, _ *zap.Logger) (Publisher, error) {
		built++
		return &stubPublisher{id: cfg.ID}, nil
	})

	d, err := BuildDispatcher(context.Background(), reg, []PublisherConfig{
		{ID: "on", Type: "stub"},
		{ID: "off", Type: "stub", Enabled: &disabled},
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, built)
	assert.Equal(t, 1, d.Len())

	_, err = BuildDispatcher(context.Background(), reg, []PublisherConfig{{ID: "x", Type: "unknown"}}, nil)
	assert.Error(t, err)
}

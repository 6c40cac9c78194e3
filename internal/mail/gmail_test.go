package mail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/spec-kit/sector-mail-desk/internal/config"
)

type fakeGmail struct {
	mu         sync.Mutex
	pages      map[string]gmail.ListMessagesResponse
	labels     []*gmail.Label
	created    []string
	modified   map[string][]string
	sent       []gmail.Message
	failFirstN int
	calls      int
}

func (f *fakeGmail) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failFirstN > 0 {
		f.failFirstN--
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"code":503,"message":"backend"}}`))
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/gmail/v1/users/me/")
	switch {
	case path == "labels" && r.Method == http.MethodGet:
		writeJSON(w, gmail.ListLabelsResponse{Labels: f.labels})
	case path == "labels" && r.Method == http.MethodPost:
		var label gmail.Label
		_ = json.NewDecoder(r.Body).Decode(&label)
		label.Id = "Label_new"
		f.labels = append(f.labels, &label)
		f.created = append(f.created, label.Name)
		writeJSON(w, label)
	case path == "messages" && r.Method == http.MethodGet:
		writeJSON(w, f.pages[r.URL.Query().Get("pageToken")])
	case path == "messages/send":
		var msg gmail.Message
		_ = json.NewDecoder(r.Body).Decode(&msg)
		f.sent = append(f.sent, msg)
		writeJSON(w, gmail.Message{Id: "sent-1", ThreadId: msg.ThreadId})
	case strings.HasSuffix(path, "/modify"):
		var req gmail.ModifyMessageRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.modified[strings.TrimSuffix(path, "/modify")] = req.AddLabelIds
		writeJSON(w, gmail.Message{})
	case strings.HasPrefix(path, "messages/"):
		writeJSON(w, gmail.Message{
			Id:       strings.TrimPrefix(path, "messages/"),
			ThreadId: "t-1",
			Payload: &gmail.MessagePart{
				MimeType: "multipart/alternative",
				Headers:  []*gmail.MessagePartHeader{{Name: "Subject", Value: "Hello"}},
				Parts: []*gmail.MessagePart{{
					MimeType: "text/plain",
					Body:     &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte("Numéro 1234567"))},
				}},
			},
			InternalDate: 1700000000000,
		})
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, fake *fakeGmail) *GmailClient {
	t.Helper()
	if fake.modified == nil {
		fake.modified = map[string][]string{}
	}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gmail.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	retry := NewRetryPolicy(config.RetryConfig{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}, zap.NewNop())
	return NewGmailClient(svc, config.GmailConfig{UserID: "me", CallTimeout: 5 * time.Second}, retry,
		config.BreakerConfig{MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, ConsecutiveFailures: 10}, zap.NewNop())
}

func TestGmailClientListMessageIDsFollowsPagesUpToLimit(t *testing.T) {
	fake := &fakeGmail{pages: map[string]gmail.ListMessagesResponse{
		"":   {Messages: []*gmail.Message{{Id: "m1"}, {Id: "m2"}}, NextPageToken: "p2"},
		"p2": {Messages: []*gmail.Message{{Id: "m3"}, {Id: "m4"}}, NextPageToken: "p3"},
		"p3": {Messages: []*gmail.Message{{Id: "m5"}}},
	}}
	client := newTestClient(t, fake)

	ids, err := client.ListMessageIDs(context.Background(), []string{"Label_1"}, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2", "m3"}, ids)
}

func TestGmailClientRetriesTransientFailures(t *testing.T) {
	fake := &fakeGmail{
		failFirstN: 2,
		pages:      map[string]gmail.ListMessagesResponse{"": {Messages: []*gmail.Message{{Id: "m1"}}}},
	}
	client := newTestClient(t, fake)

	ids, err := client.ListMessageIDs(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, ids)
	assert.Equal(t, 3, fake.calls)
}

func TestGmailClientResolveSkipsUnknownLabels(t *testing.T) {
	fake := &fakeGmail{labels: []*gmail.Label{{Id: "Label_1", Name: "SAP-CHR"}}}
	client := newTestClient(t, fake)

	ids, err := client.ResolveLabelIDs(context.Background(), []string{"SAP-CHR", "missing"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Label_1"}, ids)
}

func TestGmailClientEnsureLabelCreatesOnlyWhenMissing(t *testing.T) {
	fake := &fakeGmail{labels: []*gmail.Label{{Id: "Label_1", Name: "Traité"}}}
	client := newTestClient(t, fake)

	id, err := client.EnsureLabel(context.Background(), "Traité")
	require.NoError(t, err)
	assert.Equal(t, "Label_1", id)

	id, err = client.EnsureLabel(context.Background(), "Clôturé")
	require.NoError(t, err)
	assert.Equal(t, "Label_new", id)
	assert.Equal(t, []string{"Clôturé"}, fake.created)
}

func TestGmailClientGetMessageDecodesParts(t *testing.T) {
	client := newTestClient(t, &fakeGmail{})

	msg, err := client.GetMessage(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "t-1", msg.ThreadID)
	assert.Equal(t, "Hello", msg.Header("subject"))
	require.Len(t, msg.Payload.Parts, 1)
	assert.Equal(t, "Numéro 1234567", string(msg.Payload.Parts[0].Data))
	assert.Equal(t, int64(1700000000), msg.InternalDate.Unix())
}

func TestGmailClientSendAndModify(t *testing.T) {
	fake := &fakeGmail{}
	client := newTestClient(t, fake)

	id, err := client.Send(context.Background(), "cmF3", "t-9")
	require.NoError(t, err)
	assert.Equal(t, "sent-1", id)
	require.Len(t, fake.sent, 1)
	assert.Equal(t, "t-9", fake.sent[0].ThreadId)

	require.NoError(t, client.ApplyLabelToThread(context.Background(), "t-9", "Label_2"))
	assert.Equal(t, []string{"Label_2"}, fake.modified["threads/t-9"])
	require.NoError(t, client.ApplyLabelToMessage(context.Background(), "m1", "Label_3"))
	assert.Equal(t, []string{"Label_3"}, fake.modified["messages/m1"])
}

func TestDecodeBodyDataAcceptsUnpadded(t *testing.T) {
	data, err := decodeBodyData(base64.RawURLEncoding.EncodeToString([]byte("ab")))
	require.NoError(t, err)
	assert.Equal(t, "ab", string(data))
}

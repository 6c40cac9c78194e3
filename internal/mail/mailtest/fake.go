// Package mailtest provides an in-memory mail.Client.
package mailtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/spec-kit/sector-mail-desk/internal/mail"
)

// SentMessage records one Send call.
type SentMessage struct {
	Raw      string
	ThreadID string
}

// FakeClient is a mailbox held in memory. Messages carry label ids; labels
// map ids to names.
type FakeClient struct {
	mu       sync.Mutex
	labels   map[string]string
	messages map[string]*mail.Message
	order    []string
	threads  map[string][]string
	sent     []SentMessage
	nextID   int

	// ListErr, GetErr and SendErr inject failures.
	ListErr error
	GetErr  map[string]error
	SendErr error
	// LabelErr is returned by message and thread label calls.
	LabelErr error
}

var _ mail.Client = (*FakeClient)(nil)

// NewFakeClient returns an empty mailbox.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		labels:   map[string]string{},
		messages: map[string]*mail.Message{},
		threads:  map[string][]string{},
		GetErr:   map[string]error{},
	}
}

// AddLabel registers a label and returns its id.
func (f *FakeClient) AddLabel(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addLabelLocked(name)
}

func (f *FakeClient) addLabelLocked(name string) string {
	for id, existing := range f.labels {
		if strings.EqualFold(existing, name) {
			return id
		}
	}
	f.nextID++
	id := fmt.Sprintf("Label_%d", f.nextID)
	f.labels[id] = name
	return id
}

// AddMessage stores msg under the given label names, creating labels as needed.
func (f *FakeClient) AddMessage(msg *mail.Message, labelNames ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, name := range labelNames {
		msg.LabelIDs = append(msg.LabelIDs, f.addLabelLocked(name))
	}
	f.messages[msg.ID] = msg
	f.order = append(f.order, msg.ID)
}

// MessageLabels returns the label names currently on a message.
func (f *FakeClient) MessageLabels(id string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok {
		return nil
	}
	return lo.Map(msg.LabelIDs, func(labelID string, _ int) string { return f.labels[labelID] })
}

// ThreadLabels returns the label names applied to a thread.
func (f *FakeClient) ThreadLabels(threadID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return lo.Map(f.threads[threadID], func(labelID string, _ int) string { return f.labels[labelID] })
}

// Sent returns every message passed to Send.
func (f *FakeClient) Sent() []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentMessage(nil), f.sent...)
}

func (f *FakeClient) findLocked(name string) (string, bool) {
	for id, existing := range f.labels {
		if strings.EqualFold(existing, name) {
			return id, true
		}
	}
	return "", false
}

func (f *FakeClient) ResolveLabelIDs(_ context.Context, names []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, name := range names {
		if id, ok := f.findLocked(name); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *FakeClient) FindLabelID(_ context.Context, name string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.findLocked(name)
	return id, ok, nil
}

func (f *FakeClient) EnsureLabel(_ context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addLabelLocked(name), nil
}

// ListMessageIDs returns messages carrying every requested label.
func (f *FakeClient) ListMessageIDs(_ context.Context, labelIDs []string, limit int) ([]string, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, id := range f.order {
		if lo.Every(f.messages[id].LabelIDs, labelIDs) {
			ids = append(ids, id)
		}
		if limit > 0 && len(ids) == limit {
			break
		}
	}
	return ids, nil
}

func (f *FakeClient) GetMessage(_ context.Context, id string) (*mail.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.GetErr[id]; err != nil {
		return nil, err
	}
	msg, ok := f.messages[id]
	if !ok {
		return nil, fmt.Errorf("message %s not found", id)
	}
	return msg, nil
}

func (f *FakeClient) ApplyLabelToMessage(_ context.Context, messageID, labelID string) error {
	if f.LabelErr != nil {
		return f.LabelErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[messageID]
	if !ok {
		return fmt.Errorf("message %s not found", messageID)
	}
	if !lo.Contains(msg.LabelIDs, labelID) {
		msg.LabelIDs = append(msg.LabelIDs, labelID)
	}
	return nil
}

func (f *FakeClient) ApplyLabelToThread(_ context.Context, threadID, labelID string) error {
	if f.LabelErr != nil {
		return f.LabelErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !lo.Contains(f.threads[threadID], labelID) {
		f.threads[threadID] = append(f.threads[threadID], labelID)
	}
	return nil
}

func (f *FakeClient) Send(_ context.Context, raw, threadID string) (string, error) {
	if f.SendErr != nil {
		return "", f.SendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, SentMessage{Raw: raw, ThreadID: threadID})
	return fmt.Sprintf("sent-%d", len(f.sent)), nil
}

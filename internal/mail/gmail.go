package mail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"google.golang.org/api/gmail/v1"

	"github.com/spec-kit/sector-mail-desk/internal/config"
)

const maxListPage = 500

// GmailClient implements Client over the Gmail REST API. Every call runs
// under a per-call timeout, the shared retry policy and a circuit breaker.
type GmailClient struct {
	svc     *gmail.Service
	userID  string
	timeout time.Duration
	retry   *RetryPolicy
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

var _ Client = (*GmailClient)(nil)

// NewGmailClient wires a Gmail service into the adapter.
func NewGmailClient(svc *gmail.Service, cfg config.GmailConfig, retry *RetryPolicy, breakerCfg config.BreakerConfig, logger *zap.Logger) *GmailClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	userID := cfg.UserID
	if userID == "" {
		userID = "me"
	}
	return &GmailClient{
		svc:     svc,
		userID:  userID,
		timeout: cfg.CallTimeout,
		retry:   retry,
		breaker: NewBreaker("gmail-api", breakerCfg, logger),
		logger:  logger,
	}
}

// NewBreaker builds a breaker that only counts transient errors as failures.
func NewBreaker(name string, cfg config.BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker {
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

// Ping reports an open breaker without calling the API.
func (c *GmailClient) Ping(context.Context) error {
	if state := c.breaker.State(); state == gobreaker.StateOpen {
		return fmt.Errorf("gmail circuit %s", state)
	}
	return nil
}

func (c *GmailClient) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return c.retry.Do(ctx, op, func() error {
		_, err := c.breaker.Execute(func() (interface{}, error) {
			callCtx := ctx
			if c.timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, c.timeout)
				defer cancel()
			}
			return nil, fn(callCtx)
		})
		return err
	})
}

func (c *GmailClient) listLabels(ctx context.Context) ([]*gmail.Label, error) {
	var labels []*gmail.Label
	err := c.call(ctx, "labels.list", func(ctx context.Context) error {
		resp, err := c.svc.Users.Labels.List(c.userID).Context(ctx).Do()
		if err != nil {
			return err
		}
		labels = resp.Labels
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	return labels, nil
}

func (c *GmailClient) ResolveLabelIDs(ctx context.Context, names []string) ([]string, error) {
	labels, err := c.listLabels(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, name := range lo.Uniq(names) {
		label, ok := lo.Find(labels, func(l *gmail.Label) bool { return strings.EqualFold(l.Name, name) })
		if !ok {
			c.logger.Warn("label not found, skipping", zap.String("label", name))
			continue
		}
		ids = append(ids, label.Id)
	}
	return ids, nil
}

func (c *GmailClient) FindLabelID(ctx context.Context, name string) (string, bool, error) {
	labels, err := c.listLabels(ctx)
	if err != nil {
		return "", false, err
	}
	label, ok := lo.Find(labels, func(l *gmail.Label) bool { return strings.EqualFold(l.Name, name) })
	if !ok {
		return "", false, nil
	}
	return label.Id, true, nil
}

func (c *GmailClient) EnsureLabel(ctx context.Context, name string) (string, error) {
	id, ok, err := c.FindLabelID(ctx, name)
	if err != nil {
		return "", err
	}
	if ok {
		return id, nil
	}
	err = c.call(ctx, "labels.create", func(ctx context.Context) error {
		created, err := c.svc.Users.Labels.Create(c.userID, &gmail.Label{
			Name:                  name,
			LabelListVisibility:   "labelShow",
			MessageListVisibility: "show",
		}).Context(ctx).Do()
		if err != nil {
			return err
		}
		id = created.Id
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("create label %q: %w", name, err)
	}
	c.logger.Info("label created", zap.String("label", name), zap.String("label_id", id))
	return id, nil
}

func (c *GmailClient) ListMessageIDs(ctx context.Context, labelIDs []string, limit int) ([]string, error) {
	var ids []string
	pageToken := ""
	for limit <= 0 || len(ids) < limit {
		pageSize := int64(maxListPage)
		if limit > 0 && limit-len(ids) < maxListPage {
			pageSize = int64(limit - len(ids))
		}
		var resp *gmail.ListMessagesResponse
		err := c.call(ctx, "messages.list", func(ctx context.Context) error {
			req := c.svc.Users.Messages.List(c.userID).LabelIds(labelIDs...).MaxResults(pageSize)
			if pageToken != "" {
				req = req.PageToken(pageToken)
			}
			var err error
			resp, err = req.Context(ctx).Do()
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (c *GmailClient) GetMessage(ctx context.Context, id string) (*Message, error) {
	var msg *gmail.Message
	err := c.call(ctx, "messages.get", func(ctx context.Context) error {
		var err error
		msg, err = c.svc.Users.Messages.Get(c.userID, id).Format("full").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}
	return &Message{
		ID:           msg.Id,
		ThreadID:     msg.ThreadId,
		LabelIDs:     msg.LabelIds,
		Payload:      convertPart(msg.Payload, c.logger),
		InternalDate: time.UnixMilli(msg.InternalDate).UTC(),
	}, nil
}

func (c *GmailClient) ApplyLabelToMessage(ctx context.Context, messageID, labelID string) error {
	err := c.call(ctx, "messages.modify", func(ctx context.Context) error {
		_, err := c.svc.Users.Messages.Modify(c.userID, messageID, &gmail.ModifyMessageRequest{
			AddLabelIds: []string{labelID},
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("label message %s: %w", messageID, err)
	}
	return nil
}

func (c *GmailClient) ApplyLabelToThread(ctx context.Context, threadID, labelID string) error {
	err := c.call(ctx, "threads.modify", func(ctx context.Context) error {
		_, err := c.svc.Users.Threads.Modify(c.userID, threadID, &gmail.ModifyThreadRequest{
			AddLabelIds: []string{labelID},
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("label thread %s: %w", threadID, err)
	}
	return nil
}

func (c *GmailClient) Send(ctx context.Context, raw, threadID string) (string, error) {
	var sentID string
	err := c.call(ctx, "messages.send", func(ctx context.Context) error {
		sent, err := c.svc.Users.Messages.Send(c.userID, &gmail.Message{
			Raw:      raw,
			ThreadId: threadID,
		}).Context(ctx).Do()
		if err != nil {
			return err
		}
		sentID = sent.Id
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return sentID, nil
}

func convertPart(p *gmail.MessagePart, logger *zap.Logger) *Part {
	if p == nil {
		return nil
	}
	part := &Part{MimeType: strings.ToLower(p.MimeType)}
	for _, h := range p.Headers {
		part.Headers = append(part.Headers, Header{Name: h.Name, Value: h.Value})
	}
	if p.Body != nil && p.Body.Data != "" {
		data, err := decodeBodyData(p.Body.Data)
		if err != nil {
			logger.Warn("undecodable body data", zap.String("part_id", p.PartId), zap.Error(err))
		}
		part.Data = data
	}
	for _, child := range p.Parts {
		part.Parts = append(part.Parts, convertPart(child, logger))
	}
	return part
}

func decodeBodyData(data string) ([]byte, error) {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err == nil {
		return decoded, nil
	}
	decoded, rawErr := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if rawErr == nil {
		return decoded, nil
	}
	return nil, err
}

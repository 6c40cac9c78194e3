package mail

import (
	"context"
	"errors"
)

// ErrLabelNotFound is returned when a label name has no provider id.
var ErrLabelNotFound = errors.New("label not found")

// Client is the provider surface consumed by the pipelines.
type Client interface {
	// ResolveLabelIDs maps names to ids; unknown names are skipped.
	ResolveLabelIDs(ctx context.Context, names []string) ([]string, error)
	// FindLabelID looks a label up without creating it.
	FindLabelID(ctx context.Context, name string) (string, bool, error)
	// EnsureLabel returns the label id, creating the label when absent.
	EnsureLabel(ctx context.Context, name string) (string, error)
	ListMessageIDs(ctx context.Context, labelIDs []string, limit int) ([]string, error)
	GetMessage(ctx context.Context, id string) (*Message, error)
	ApplyLabelToMessage(ctx context.Context, messageID, labelID string) error
	ApplyLabelToThread(ctx context.Context, threadID, labelID string) error
	// Send submits a base64url encoded RFC 2822 message into threadID.
	Send(ctx context.Context, raw, threadID string) (string, error)
}

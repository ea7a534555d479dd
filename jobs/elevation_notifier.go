package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/AceBNeato/sdmdweb-sub001/internal/elevation"
)

// ElevationNotifier emails a principal when a temporary role is granted to
// them. Enqueue failures surface to the caller, which treats notification as
// best-effort.
type ElevationNotifier struct {
	client *Client
}

// NewElevationNotifier constructs a notifier backed by the job queue.
func NewElevationNotifier(client *Client) *ElevationNotifier {
	return &ElevationNotifier{client: client}
}

// NotifyGranted enqueues the grant notification mail.
func (n *ElevationNotifier) NotifyGranted(ctx context.Context, grant elevation.Grant) error {
	payload := SendEmailPayload{
		To:      grant.PrincipalEmail,
		Subject: fmt.Sprintf("Temporary %s access granted", grant.RoleName),
		Body: fmt.Sprintf("You have been granted the %s role until %s.",
			grant.RoleName, grant.ExpiresAt.Format(time.RFC1123)),
	}
	_, err := n.client.EnqueueSendEmail(ctx, payload)
	return err
}

// Package delivery defines the escalation notifier interface used to push
// pending escalation requests to an external channel (chat, email, ...).
// The core engine never blocks on it and functions identically with no
// provider configured.
package delivery

import "github.com/agentgov/governor/internal/models"

// DeliverOptions carries fields not already on the EscalationRequest that
// a provider may need (e.g. an explicit channel override).
type DeliverOptions struct {
	ApproverIDs []string
	Summary     string
	ChannelType string
}

// DeliverInput is Provider.Deliver's argument.
type DeliverInput struct {
	Request *models.EscalationRequest
	Options *DeliverOptions
}

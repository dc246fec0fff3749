package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeInvitation is the task type for invitation emails.
	TaskTypeInvitation = "mail:invitation"
	// TaskTypeSecurityCode is the task type for password recovery emails.
	TaskTypeSecurityCode = "mail:security_code"
	// TaskTypeExpireEntitlements is the nightly entitlement expiry sweep.
	TaskTypeExpireEntitlements = "entitlement:expire"
)

// Sender delivers emails. Implemented by the SMTP mailer.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// InvitationPayload carries an invitation email.
type InvitationPayload struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// SecurityCodePayload carries a password recovery email.
type SecurityCodePayload struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// NewInvitationTask constructs an Asynq task.
func NewInvitationTask(payload InvitationPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeInvitation, data), nil
}

// NewSecurityCodeTask constructs an Asynq task.
func NewSecurityCodeTask(payload SecurityCodePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSecurityCode, data), nil
}

// NewExpireEntitlementsTask constructs the expiry sweep task, enqueued by the
// scheduler.
func NewExpireEntitlementsTask() *asynq.Task {
	return asynq.NewTask(TaskTypeExpireEntitlements, nil)
}

// HandleInvitationTask returns the processor for TaskTypeInvitation tasks.
func HandleInvitationTask(sender Sender, baseURL string) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload InvitationPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		body := fmt.Sprintf(
			"You have been invited to Lumina. Set your password here: %s/invitations/accept?token=%s",
			baseURL, payload.Token)
		return sender.Send(ctx, payload.Email, "Your Lumina invitation", body)
	}
}

// HandleSecurityCodeTask returns the processor for TaskTypeSecurityCode tasks.
func HandleSecurityCodeTask(sender Sender) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SecurityCodePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		body := fmt.Sprintf("Your Lumina security code is %s. It expires in 15 minutes.", payload.Code)
		return sender.Send(ctx, payload.Email, "Password recovery code", body)
	}
}

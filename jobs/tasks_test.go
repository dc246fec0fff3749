package jobs

import (
	"context"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []string
}

func (f *fakeSender) Send(ctx context.Context, to, subject, body string) error {
	f.sent = append(f.sent, to+"|"+subject+"|"+body)
	return nil
}

type fakeExpirer struct {
	expired int64
}

func (f *fakeExpirer) ExpireOverdue(ctx context.Context) (int64, error) {
	f.expired++
	return 3, nil
}

func TestHandleInvitationTask(t *testing.T) {
	sender := &fakeSender{}
	task, err := NewInvitationTask(InvitationPayload{Email: "new@lumina.io", Token: "tok-123"})
	require.NoError(t, err)

	handler := HandleInvitationTask(sender, "https://lumina.io")
	require.NoError(t, handler(context.Background(), task))
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0], "new@lumina.io")
	assert.Contains(t, sender.sent[0], "token=tok-123")
}

func TestHandleSecurityCodeTask(t *testing.T) {
	sender := &fakeSender{}
	task, err := NewSecurityCodeTask(SecurityCodePayload{Email: "lost@lumina.io", Code: "654321"})
	require.NoError(t, err)

	handler := HandleSecurityCodeTask(sender)
	require.NoError(t, handler(context.Background(), task))
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0], "654321")
}

func TestMalformedPayloadSkipsRetry(t *testing.T) {
	sender := &fakeSender{}
	handler := HandleInvitationTask(sender, "https://lumina.io")

	err := handler(context.Background(), asynq.NewTask(TaskTypeInvitation, []byte("{broken")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, sender.sent)
}

func TestHandleExpireEntitlementsTask(t *testing.T) {
	expirer := &fakeExpirer{}
	handler := HandleExpireEntitlementsTask(expirer, slog.Default())

	require.NoError(t, handler(context.Background(), NewExpireEntitlementsTask()))
	assert.Equal(t, int64(1), expirer.expired)
}

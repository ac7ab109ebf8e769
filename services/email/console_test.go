package emailsvc

import (
	"bytes"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbuAli85/business-services-hub-sub009/core"
)

func TestConsoleService_render(t *testing.T) {
	conf := core.NewTestConfig()
	svc := NewConsoleServiceMock(conf)

	msg := core.NewNotification("Awe", "awe@test.om", "Invoice INV-202410-0001", "Total: 26.775 OMR")
	body, err := svc.render(*msg)
	require.NoError(t, err)
	assert.Contains(t, body, "Subject: ["+conf.AppName+"] Invoice INV-202410-0001\r\n")
	assert.Contains(t, body, "To: \"Awe\" <awe@test.om>\r\n")
	assert.Contains(t, body, "Content-Type: text/plain; charset=utf-8\r\n\r\nTotal: 26.775 OMR\r\n")

	require.NoError(t, msg.Attach(strings.NewReader("number,total\n"), "invoices.csv", "text/csv"))
	msg.Cc = []mail.Address{{Address: "finance@test.om"}}
	body, err = svc.render(*msg)
	require.NoError(t, err)
	assert.Contains(t, body, "CC: <finance@test.om>\r\n")
	assert.Contains(t, body, "Content-Type: multipart/mixed; boundary=")
	assert.Contains(t, body, "attachment; filename=invoices.csv")
}

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	conf := core.NewTestConfig()
	svc := NewConsoleServiceMock(conf)
	out := new(bytes.Buffer)
	svc.out = out

	svc.SendMessages(
		core.NewNotification("Awe", "awe@test.om", "Hello", "body"),
		core.NewNotification("Nobody", "", "Skipped", "no address"),
		&core.EmailMessage{To: []mail.Address{{Address: "empty@test.om"}}, Subject: "No content"},
	)

	sent := svc.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Hello", sent[0].Subject)
	assert.Contains(t, out.String(), "Subject: ["+conf.AppName+"] Hello")

	svc.Reset()
	assert.Empty(t, svc.Sent())
}

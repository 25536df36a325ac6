package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

// InvitationEmail holds the values rendered into an invitation message.
type InvitationEmail struct {
	OrganizationName string
	InviteeName      string
	Role             string
	AcceptURL        string
	ExpiresAt        time.Time
	ValidFor         time.Duration
}

var invitationTmpl = template.Must(template.New("invitation").Parse(`<!DOCTYPE html>
<html>
<body>
<p>Hello{{if .InviteeName}} {{.InviteeName}}{{end}},</p>
<p>You have been invited to join <strong>{{.OrganizationName}}</strong> as <strong>{{.Role}}</strong>.</p>
<p><a href="{{.AcceptURL}}">Accept the invitation</a></p>
<p>This invitation is valid for {{.ValidDays}} days and expires on {{.ExpiresOn}}.</p>
<p>If you were not expecting this email you can ignore it.</p>
</body>
</html>
`))

// RenderInvitation returns the subject and HTML body of an invitation email.
func RenderInvitation(e InvitationEmail) (string, string, error) {
	data := struct {
		InvitationEmail
		ValidDays int
		ExpiresOn string
	}{
		InvitationEmail: e,
		ValidDays:       int(e.ValidFor.Hours() / 24),
		ExpiresOn:       e.ExpiresAt.UTC().Format("January 2, 2006 15:04 MST"),
	}
	var buf bytes.Buffer
	if err := invitationTmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render invitation: %w", err)
	}
	subject := fmt.Sprintf("You're invited to join %s", e.OrganizationName)
	return subject, buf.String(), nil
}

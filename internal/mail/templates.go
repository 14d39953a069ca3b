package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
)

var verificationTmpl = template.Must(template.New("verification").Parse(`
<p>Hello {{.Name}},</p>
<p>Thank you for registering your organization! Please verify your email address to activate your account by clicking on the link below:</p>
<p><a href="{{.Link}}">Verify My Email Address</a></p>
<p>This verification link will expire in {{.Expiry}}.</p>
<p>If you did not create an account, please ignore this email.</p>
`))

var resetRequestTmpl = template.Must(template.New("reset").Parse(`
<p>Hello {{.Name}},</p>
<p>You are receiving this because you (or someone else) have requested the reset of the password for your account.</p>
<p>Please click on the following link, or paste this into your browser to complete the process:</p>
<p><a href="{{.Link}}">Reset My Password</a></p>
<p>This link will expire in {{.Expiry}}.</p>
<p>If you did not request this, please ignore this email and your password will remain unchanged.</p>
`))

var resetConfirmationTmpl = template.Must(template.New("confirmation").Parse(`
<p>Hello {{.Name}},</p>
<p>This is a confirmation that the password for your account has just been changed.</p>
<p>If you did not make this change, please contact support immediately.</p>
`))

type templateData struct {
	Name   string
	Link   string
	Expiry string
}

func render(tmpl *template.Template, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render email template: %w", err)
	}
	return buf.String(), nil
}

// VerificationMessage builds the email-verification message for a new account.
// The link embeds the opaque verification token as a query parameter.
func VerificationMessage(to, name, baseURL, token string) (Message, error) {
	link := fmt.Sprintf("%s/auth/verify-email?token=%s", baseURL, url.QueryEscape(token))
	html, err := render(verificationTmpl, templateData{Name: name, Link: link, Expiry: "15 hours"})
	if err != nil {
		return Message{}, err
	}

	return Message{
		To:      to,
		Subject: "Verify Your Email Address for Your New Organization",
		HTML:    html,
	}, nil
}

// ResetRequestMessage builds the password-reset message.
func ResetRequestMessage(to, name, baseURL, token string) (Message, error) {
	link := fmt.Sprintf("%s/auth/reset-password?token=%s", baseURL, url.QueryEscape(token))
	html, err := render(resetRequestTmpl, templateData{Name: name, Link: link, Expiry: "15 minutes"})
	if err != nil {
		return Message{}, err
	}

	return Message{
		To:      to,
		Subject: "Password Reset Request",
		HTML:    html,
	}, nil
}

// ResetConfirmationMessage builds the post-reset confirmation message.
func ResetConfirmationMessage(to, name string) (Message, error) {
	html, err := render(resetConfirmationTmpl, templateData{Name: name})
	if err != nil {
		return Message{}, err
	}

	return Message{
		To:      to,
		Subject: "Your Password Has Been Changed",
		HTML:    html,
	}, nil
}

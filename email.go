package accountauth

import (
	"fmt"
	"strings"
	"text/template"
	"time"
)

// MailParams is passed as data when executing the mail templates.
type MailParams struct {
	Email      string
	UserID     string
	Token      string
	SiteName   string
	SenderName string
	Link       string
	TokenTTL   time.Duration
}

// DefaultConfirmationMailTemplate is the default body for the
// email-confirmation message.
const DefaultConfirmationMailTemplate = `Hi {{.Email}},

Welcome to {{.SiteName}}. Please confirm your email address by visiting:

{{.Link}}

The link is valid for {{printf "%.f" .TokenTTL.Hours}} hours.

If you did not create this account, you can ignore this email.


Regards,

{{.SenderName}}
`

// DefaultPasswordResetMailTemplate is the default body for the
// password-reset message.
const DefaultPasswordResetMailTemplate = `Hi {{.Email}},

A password reset was requested for your {{.SiteName}} account. You can choose
a new password by visiting:

{{.Link}}

The link is valid for {{printf "%.f" .TokenTTL.Minutes}} minutes.

If you did not request a password reset, you can ignore this email and your
password will stay unchanged.


Regards,

{{.SenderName}}
`

type mailRenderer struct {
	cfg         EmailConfig
	confirmURL  *template.Template
	resetURL    *template.Template
	confirmBody *template.Template
	resetBody   *template.Template
}

func newMailRenderer(cfg EmailConfig) (*mailRenderer, error) {
	confirmURL, err := template.New("confirm-url").Parse(cfg.ConfirmationURL)
	if err != nil {
		return nil, fmt.Errorf("parse confirmation url template: %w", err)
	}
	resetURL, err := template.New("reset-url").Parse(cfg.PasswordResetURL)
	if err != nil {
		return nil, fmt.Errorf("parse password reset url template: %w", err)
	}
	confirmBody, err := template.New("confirm-body").Parse(DefaultConfirmationMailTemplate)
	if err != nil {
		return nil, err
	}
	resetBody, err := template.New("reset-body").Parse(DefaultPasswordResetMailTemplate)
	if err != nil {
		return nil, err
	}

	return &mailRenderer{
		cfg:         cfg,
		confirmURL:  confirmURL,
		resetURL:    resetURL,
		confirmBody: confirmBody,
		resetBody:   resetBody,
	}, nil
}

// ConfirmationMail renders the subject and body of the email-confirmation
// message for user.
func (r *mailRenderer) ConfirmationMail(user UserRecord, token string, ttl time.Duration) (string, string, error) {
	params := MailParams{
		Email:      user.Email,
		UserID:     user.UserID,
		Token:      token,
		SiteName:   r.cfg.SiteName,
		SenderName: r.cfg.SenderName,
		TokenTTL:   ttl,
	}

	link, err := renderTemplate(r.confirmURL, params)
	if err != nil {
		return "", "", err
	}
	params.Link = link

	body, err := renderTemplate(r.confirmBody, params)
	if err != nil {
		return "", "", err
	}

	subject := "Confirm your " + r.cfg.SiteName + " email address"
	return subject, body, nil
}

// PasswordResetMail renders the subject and body of the password-reset
// message for user.
func (r *mailRenderer) PasswordResetMail(user UserRecord, token string, ttl time.Duration) (string, string, error) {
	params := MailParams{
		Email:      user.Email,
		UserID:     user.UserID,
		Token:      token,
		SiteName:   r.cfg.SiteName,
		SenderName: r.cfg.SenderName,
		TokenTTL:   ttl,
	}

	link, err := renderTemplate(r.resetURL, params)
	if err != nil {
		return "", "", err
	}
	params.Link = link

	body, err := renderTemplate(r.resetBody, params)
	if err != nil {
		return "", "", err
	}

	subject := "Reset your " + r.cfg.SiteName + " password"
	return subject, body, nil
}

func renderTemplate(t *template.Template, params MailParams) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, params); err != nil {
		return "", err
	}
	return b.String(), nil
}

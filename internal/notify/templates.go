package notify

import (
	"bytes"
	"fmt"
	"text/template"
)

type mailTemplate struct {
	subject *template.Template
	body    *template.Template
}

var builtinTemplates = map[TemplateID][2]string{
	TemplateConfirmEmail: {
		"Confirm your StaffHub account",
		`Hello {{.name}},

Please confirm your email address by opening the link below:

{{.link}}

The link expires in {{.ttl}}. If you did not sign up, you can ignore this message.
`,
	},
	TemplatePasswordReset: {
		"Reset your StaffHub password",
		`Hello {{.name}},

We received a request to reset your password. Open the link below to choose a new one:

{{.link}}

The link expires in {{.ttl}}. If you did not request a reset, you can ignore this message.
`,
	},
	TemplateApprovalRequest: {
		"New employee awaiting approval: {{.employee}}",
		`Hello,

{{.employee}} ({{.email}}) has signed up and is waiting for approval.
Review pending employees in the StaffHub admin console.
`,
	},
	TemplateAccountApproved: {
		"Your StaffHub account has been approved",
		`Hello {{.name}},

An administrator approved your account. You can now sign in{{if .link}} at {{.link}}{{end}}.
`,
	},
	TemplateAccountRejected: {
		"Your StaffHub account request",
		`Hello {{.name}},

An administrator declined your account request. Contact your HR team if you believe this is a mistake.
`,
	},
	TemplatePasswordChanged: {
		"Your StaffHub password was changed",
		`Hello {{.name}},

The password for your account was just changed and every other session was signed out.
If this was not you, reset your password immediately and contact your administrator.
`,
	},
}

func parseTemplates() (map[TemplateID]mailTemplate, error) {
	parsed := make(map[TemplateID]mailTemplate, len(builtinTemplates))
	for id, src := range builtinTemplates {
		subject, err := template.New(string(id) + ".subject").Option("missingkey=zero").Parse(src[0])
		if err != nil {
			return nil, fmt.Errorf("notify: parse %s subject: %w", id, err)
		}
		body, err := template.New(string(id) + ".body").Option("missingkey=zero").Parse(src[1])
		if err != nil {
			return nil, fmt.Errorf("notify: parse %s body: %w", id, err)
		}
		parsed[id] = mailTemplate{subject: subject, body: body}
	}
	return parsed, nil
}

func (t mailTemplate) render(vars map[string]string) (string, string, error) {
	var subject, body bytes.Buffer
	if err := t.subject.Execute(&subject, vars); err != nil {
		return "", "", err
	}
	if err := t.body.Execute(&body, vars); err != nil {
		return "", "", err
	}
	return subject.String(), body.String(), nil
}

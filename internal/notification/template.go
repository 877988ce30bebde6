package notification

import (
	"bytes"
	"html/template"
)

// SubjectPrefix is prepended to every outgoing notification subject.
const SubjectPrefix = "userhub - "

// emailTmpl is the HTML wrapper applied to every outgoing notification.
// {{.Subject}}, {{.Greeting}} and {{.Body}} are auto-escaped by html/template.
var emailTmpl = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width,initial-scale=1.0">
  <title>{{.Subject}}</title>
</head>
<body style="margin:0;padding:0;background-color:#f4f4f5;
     font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,Arial,sans-serif;">
  <table width="100%" cellpadding="0" cellspacing="0" role="presentation"
         style="background-color:#f4f4f5;padding:40px 16px;">
    <tr>
      <td align="center">
        <table width="560" cellpadding="0" cellspacing="0" role="presentation"
               style="max-width:560px;width:100%;">
          <tr>
            <td style="background-color:#0f766e;padding:24px 36px;border-radius:12px 12px 0 0;">
              <span style="font-size:20px;font-weight:700;color:#ffffff;">userhub</span>
            </td>
          </tr>
          <tr>
            <td style="background-color:#ffffff;padding:32px 36px;">
              <p style="margin:0 0 16px;font-size:16px;font-weight:600;color:#111827;">{{.Greeting}}</p>
              <div style="font-size:14px;line-height:1.7;color:#374151;
                          white-space:pre-wrap;word-break:break-word;">{{.Body}}</div>
            </td>
          </tr>
          <tr>
            <td style="background-color:#f9fafb;padding:16px 36px;
                       border-top:1px solid #e5e7eb;border-radius:0 0 12px 12px;">
              <p style="margin:0;font-size:12px;color:#9ca3af;">
                You are receiving this because an account was registered with this address.
              </p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>
`))

// buildSubject prepends the standard prefix to a subject line.
func buildSubject(subject string) string {
	return SubjectPrefix + subject
}

// buildEmailHTML renders the HTML email template.
func buildEmailHTML(subject, greeting, body string) (string, error) {
	var buf bytes.Buffer
	err := emailTmpl.Execute(&buf, struct{ Subject, Greeting, Body string }{subject, greeting, body})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

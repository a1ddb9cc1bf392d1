package verification

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

const mailSubject = "Email Verification Code"

//go:embed templates/verification_code.html
var templatesFS embed.FS

var codeTemplate = template.Must(template.ParseFS(templatesFS, "templates/verification_code.html"))

type mailData struct {
	Code          string
	FirstName     string
	ExpiryMinutes int
}

func renderMail(d mailData) (string, error) {
	var buf bytes.Buffer
	if err := codeTemplate.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("render verification mail: %w", err)
	}
	return buf.String(), nil
}

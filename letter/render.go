// Package letter produces the printable dispute letter for a filed dispute.
package letter

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"disputeai/dispute"
)

var problemTitles = map[string]string{
	"item_not_received":         "Item not received",
	"item_not_as_described":     "Item not as described",
	"damaged_item":              "Damaged item",
	"unauthorized_charge":       "Unauthorized charge",
	"refund_not_received":       "Refund not received",
	"subscription_cancellation": "Subscription cancellation",
	"other":                     "Other",
}

const letterTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Dispute {{.Reference}}</title>
<style>
body { font-family: Georgia, serif; margin: 48px; color: #111; }
h1 { font-size: 20px; margin-bottom: 4px; }
table { border-collapse: collapse; margin: 16px 0; }
td { padding: 4px 12px 4px 0; vertical-align: top; }
td.label { color: #555; }
.warning { color: #a40000; }
</style>
</head>
<body>
<p>{{.Date}}</p>
<p>To: {{.Record.PlatformName}} customer support</p>
<h1>Formal dispute: {{.Problem}}</h1>
<p>Reference: {{.Reference}}</p>
<p>Dear Sir or Madam,</p>
<p>I am writing to dispute a purchase made on {{.PurchaseDate}} for {{.Record.Amount}} {{.Record.Currency}}.</p>
<table>
<tr><td class="label">Platform</td><td>{{.Record.PlatformName}}</td></tr>
{{- if .Record.OrderNumber}}
<tr><td class="label">Order number</td><td>{{deref .Record.OrderNumber}}</td></tr>
{{- end}}
<tr><td class="label">Problem</td><td>{{.Problem}}{{if .Record.ProblemSubtype}} ({{deref .Record.ProblemSubtype}}){{end}}</td></tr>
</table>
<p>{{.Record.Description}}</p>
{{- if .Record.ContactedPlatform}}
<p>I have already contacted you about this matter. {{deref .Record.ContactDescription}}</p>
{{- end}}
{{- if .Evidence}}
<p>Supporting evidence{{if .EvidenceType}} ({{.EvidenceType}}){{end}}:</p>
<ul>
{{- range .Evidence}}
<li><a href="{{.URL}}">{{.Name}}</a></li>
{{- end}}
</ul>
{{- if .EvidenceNote}}<p>{{.EvidenceNote}}</p>{{end}}
{{- else}}
<p class="warning">No proof was uploaded with this dispute.</p>
{{- end}}
<p>I request that you resolve this matter promptly.</p>
<p>Sincerely,<br>{{.Sender}}</p>
</body>
</html>
`

// Evidence is one linked file in the letter.
type Evidence struct {
	Name string
	URL  string
}

type view struct {
	Reference    string
	Date         string
	PurchaseDate string
	Problem      string
	Sender       string
	Record       dispute.Record
	Evidence     []Evidence
	EvidenceType string
	EvidenceNote string
}

// Renderer fills the letter template.
type Renderer struct {
	tmpl *template.Template
	now  func() time.Time
}

// NewRenderer parses the letter template.
func NewRenderer() *Renderer {
	return &Renderer{
		tmpl: template.Must(template.New("letter").Funcs(template.FuncMap{
			"deref": func(s *string) string {
				if s == nil {
					return ""
				}
				return *s
			},
		}).Parse(letterTemplate)),
		now: time.Now,
	}
}

// WithClock overrides the letter date.
func (r *Renderer) WithClock(now func() time.Time) *Renderer {
	r.now = now
	return r
}

// Render returns the HTML letter for d signed by sender.
func (r *Renderer) Render(d dispute.Detail, sender string) (string, error) {
	v := view{
		Reference:    reference(d.ID),
		Date:         r.now().UTC().Format("January 2, 2006"),
		PurchaseDate: d.PurchaseDate.Format("January 2, 2006"),
		Problem:      problemTitle(d.ProblemType),
		Sender:       sender,
		Record:       d.Record,
	}
	if d.Bundle != nil {
		v.Evidence = append(v.Evidence, Evidence{Name: d.Bundle.PrimaryName, URL: d.Bundle.PrimaryURL})
		for i, u := range d.Bundle.SecondaryURLs {
			name := u
			if i < len(d.Bundle.SecondaryNames) {
				name = d.Bundle.SecondaryNames[i]
			}
			v.Evidence = append(v.Evidence, Evidence{Name: name, URL: u})
		}
		v.EvidenceType = d.Bundle.EvidenceType
		v.EvidenceNote = d.Bundle.Description
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("letter: render %s: %w", d.ID, err)
	}
	return buf.String(), nil
}

func reference(id string) string {
	ref := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(ref) > 10 {
		ref = ref[:10]
	}
	return "DSP-" + ref
}

func problemTitle(kind string) string {
	if t, ok := problemTitles[kind]; ok {
		return t
	}
	return strings.ReplaceAll(kind, "_", " ")
}

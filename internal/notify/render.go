package notify

import (
	"html"
	"regexp"
	"strings"

	"github.com/foxzi/alumnet/internal/config"
	"github.com/foxzi/alumnet/internal/models"
)

var varPattern = regexp.MustCompile(`\{\{\s*[a-zA-Z0-9_]+\s*\}\}`)

// Template is a subject/body pair with {{var}} placeholders
type Template struct {
	Subject string
	Body    string
}

var defaultTemplates = map[models.ListingType]Template{
	models.ListingJobPosting: {
		Subject: "New job posting: {{title}} at {{company}}",
		Body: `<h2>{{title}}</h2>
<p><strong>{{company}}</strong> &middot; {{location}}</p>
<p>{{description}}</p>
<p><a href="{{url}}">View and apply</a></p>`,
	},
	models.ListingEvent: {
		Subject: "Upcoming event: {{title}}",
		Body: `<h2>{{title}}</h2>
<p>{{starts_at}} &middot; {{location}}</p>
<p>{{description}}</p>
<p><a href="{{url}}">Event details</a></p>`,
	},
	models.ListingOpportunity: {
		Subject: "New opportunity: {{title}}",
		Body: `<h2>{{title}}</h2>
<p><strong>{{organization}}</strong></p>
<p>{{description}}</p>
<p>Deadline: {{deadline}}</p>
<p><a href="{{url}}">Learn more</a></p>`,
	},
	models.ListingPost: {
		Subject: "{{title}}",
		Body: `<h2>{{title}}</h2>
<div>{{content}}</div>`,
	},
}

// configKeys maps listing types to their notify.templates keys
var configKeys = map[models.ListingType]string{
	models.ListingJobPosting:  "job_posting",
	models.ListingEvent:       "event",
	models.ListingOpportunity: "opportunity",
	models.ListingPost:        "post",
}

// Renderer turns a listing into a campaign subject and HTML body
type Renderer struct {
	templates map[models.ListingType]Template
	footer    string
}

// NewRenderer starts from the built-in templates and applies overrides from
// cfg. An override may set only the subject or only the body.
func NewRenderer(cfg config.NotifyConfig) *Renderer {
	r := &Renderer{
		templates: make(map[models.ListingType]Template, len(defaultTemplates)),
		footer:    cfg.Footer,
	}
	for lt, tmpl := range defaultTemplates {
		if o, ok := cfg.Templates[configKeys[lt]]; ok {
			if o.Subject != "" {
				tmpl.Subject = o.Subject
			}
			if o.Body != "" {
				tmpl.Body = o.Body
			}
		}
		r.templates[lt] = tmpl
	}
	return r
}

// Render fills the template for l. Subject values are flattened to one line;
// body values are HTML-escaped.
func (r *Renderer) Render(l models.Listing) (subject, body string) {
	tmpl := r.templates[l.ListingType()]
	fields := l.Fields()

	subjectVars := make(map[string]string, len(fields))
	bodyVars := make(map[string]string, len(fields))
	for k, v := range fields {
		subjectVars[k] = strings.Join(strings.Fields(v), " ")
		bodyVars[k] = strings.ReplaceAll(html.EscapeString(v), "\n", "<br>\n")
	}

	subject = strings.TrimSpace(renderTemplate(tmpl.Subject, subjectVars))
	body = r.WithFooter(renderTemplate(tmpl.Body, bodyVars))
	return subject, body
}

// WithFooter appends the configured footer to an HTML body
func (r *Renderer) WithFooter(body string) string {
	if r.footer == "" {
		return body
	}
	return body + "\n<hr>\n<p>" + r.footer + "</p>"
}

// renderTemplate substitutes {{variable}} patterns; unknown names are left as is
func renderTemplate(template string, vars map[string]string) string {
	if template == "" {
		return template
	}

	return varPattern.ReplaceAllStringFunc(template, func(match string) string {
		varName := strings.TrimSpace(match[2 : len(match)-2])
		if value, ok := vars[varName]; ok {
			return value
		}
		return match
	})
}

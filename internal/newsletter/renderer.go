package newsletter

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

// FallbackName greets subscribers who have no registered account.
const FallbackName = "Food Lover"

// BrandConfig carries the site identity injected into every rendered
// newsletter. It is passed in at construction rather than read from the
// environment so that rendering stays a pure function of its inputs.
type BrandConfig struct {
	SiteURL       string
	BrandName     string
	Tagline       string
	SignatureName string
	AccentColor   string
}

// templateData is the struct executed against the newsletter template.
// BodyHTML is admin-authored rich text from the site's editor and
// RecipientName comes from the account registry; both are embedded
// verbatim (template.HTML), not sanitized or reinterpreted here.
type templateData struct {
	RecipientName template.HTML
	Subject       string
	BodyHTML      template.HTML
	Brand         BrandConfig
	Year          int
}

// Renderer produces the complete, self-contained HTML document for one
// newsletter recipient: inline-styled, table-layout, no script dependencies,
// suitable for direct transport as an email body. Output differs between
// recipients only in the greeting name.
type Renderer struct {
	tmpl  *template.Template
	brand BrandConfig
}

// NewRenderer parses the embedded newsletter template and returns a
// Renderer bound to the given brand configuration.
func NewRenderer(brand BrandConfig) (*Renderer, error) {
	raw, err := templateFS.ReadFile("templates/newsletter.html")
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to read newsletter.html: %w", err)
	}

	tmpl, err := template.New("newsletter").Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to parse newsletter.html: %w", err)
	}

	return &Renderer{
		tmpl:  tmpl,
		brand: brand,
	}, nil
}

// Render builds the personalized document for one recipient. The recipient
// name appears verbatim in the greeting line; bodyHTML appears verbatim in
// the content container. The subject is accepted for interface symmetry but
// the layout does not repeat it in the body.
func (r *Renderer) Render(recipientName, subject, bodyHTML, recipientEmail string) (string, error) {
	data := templateData{
		RecipientName: template.HTML(recipientName),
		Subject:       subject,
		BodyHTML:      template.HTML(bodyHTML),
		Brand:         r.brand,
		Year:          time.Now().UTC().Year(),
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("renderer: failed to render newsletter for %s: %w", RedactEmail(recipientEmail), err)
	}

	return buf.String(), nil
}

// FirstName extracts the leading word of a full display name for the
// greeting, falling back to FallbackName when the registry has no name.
func FirstName(fullName string) string {
	name := strings.TrimSpace(fullName)
	if name == "" {
		return FallbackName
	}
	if first, _, found := strings.Cut(name, " "); found {
		return first
	}
	return name
}

// Package workorder renders estimates as a printable HTML work order or a plain-text quote.
package workorder

import (
	"embed"
	"fmt"
	htmltemplate "html/template"
	"io"
	texttemplate "text/template"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Simplici0/renoprice/internal/pricing"
)

//go:embed templates
var templateFS embed.FS

var (
	funcs = map[string]any{
		"title": title,
		"money": money,
		"qty":   quantity,
		"days":  days,
	}

	htmlTemplates = htmltemplate.Must(
		htmltemplate.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/workorder.html"),
	)
	textTemplate = texttemplate.Must(
		texttemplate.New("quote.txt").Funcs(funcs).ParseFS(templateFS, "templates/quote.txt"),
	)
)

// Document is the data behind a work order or quote. QuoteID and CreatedAt are empty for
// estimates that were not persisted.
type Document struct {
	QuoteID   string
	CreatedAt string
	Title     string
	Estimate  pricing.Estimate
}

// RenderHTML writes the printable work order for d.
func RenderHTML(w io.Writer, d Document) error {
	if err := htmlTemplates.ExecuteTemplate(w, "layout.html", d); err != nil {
		return fmt.Errorf("render work order: %w", err)
	}
	return nil
}

// RenderText writes the plain-text quote for d.
func RenderText(w io.Writer, d Document) error {
	if err := textTemplate.Execute(w, d); err != nil {
		return fmt.Errorf("render quote text: %w", err)
	}
	return nil
}

// title builds a Caser per call; Casers are not safe for concurrent use.
func title(s string) string {
	return cases.Title(language.English).String(s)
}

func money(currency string, amount float64) string {
	return currency + " " + decimal.NewFromFloat(amount).StringFixed(2)
}

func quantity(q float64) string {
	return decimal.NewFromFloat(q).String()
}

func days(low, high int) string {
	switch {
	case low == high && low == 1:
		return "1 day"
	case low == high:
		return fmt.Sprintf("%d days", low)
	default:
		return fmt.Sprintf("%d-%d days", low, high)
	}
}

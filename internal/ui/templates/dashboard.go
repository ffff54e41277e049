// Package templates renders the dashboard shell. Table bodies are streamed in
// afterwards by the /sse endpoints.
package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.5/bundles/datastar.js"

type panel struct {
	id    string
	title string
	body  string
}

var panels = []panel{
	{"monthly-content", "Monthly KPIs", "Loading monthly KPIs..."},
	{"states-content", "Top state by month", "Loading top states..."},
	{"city-content", "Revenue by city", "Loading city revenue..."},
	{"recent-content", "Recent orders", "Loading recent orders..."},
}

// Dashboard is the full page. The body triggers one refresh-all stream on
// load, which patches every panel.
func Dashboard(title string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!doctype html><html lang="en"><head><meta charset="utf-8"><title>`); err != nil {
			return err
		}
		if _, err := io.WriteString(w, templ.EscapeString(title)); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `</title><script type="module" src="`+datastarScript+`"></script>`+
			`</head><body data-signals="{monthlyData: [], statesData: [], stats: {}}" data-on-load="@get('/sse/refresh-all')">`); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `<h1>`+templ.EscapeString(title)+`</h1><main class="grid">`); err != nil {
			return err
		}
		for _, p := range panels {
			if err := Panel(p.id, p.title, p.body).Render(ctx, w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</main><footer><button data-on-click="@get('/sse/refresh-all')">Refresh</button></footer></body></html>`)
		return err
	})
}

// Panel is one titled section whose content div is replaced by id.
func Panel(id, title, placeholder string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<section class="panel"><h2>`+templ.EscapeString(title)+`</h2>`+
			`<div id="`+templ.EscapeString(id)+`">`+templ.EscapeString(placeholder)+`</div></section>`)
		return err
	})
}

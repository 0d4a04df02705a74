package templates

import (
	"context"
	"io"
	"net/url"

	"github.com/a-h/templ"
)

// HomePage renders the landing page with the enabled flavors and an address bar.
func HomePage(data HomePageData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}

		w.raw(`<header><h1>`)
		w.text(data.Title)
		w.raw(`</h1><p>`)
		w.text(data.Tagline)
		w.raw(`</p></header>`)

		w.raw(`<form method="get" action="/go"><input type="text" name="path" placeholder="/any/path/you/like" aria-label="Path">`)
		w.raw(`<button type="submit">Visit</button></form>`)

		if !data.HasAPIKey {
			w.raw(`<p class="status">No API key is configured for you yet. Store one with <code>PUT `)
			w.text(data.SettingsURL)
			w.raw(`</code> before visiting a page.</p>`)
		}

		w.raw(`<section>`)
		for _, f := range data.Flavors {
			class := "flavor"
			if f.Selected {
				class += " selected"
			}
			w.raw(`<article class="`)
			w.attr(class)
			w.raw(`" id="flavor-`)
			w.attr(f.ID)
			w.raw(`"><h2>`)
			w.text(f.Name)
			w.raw(`</h2><p>`)
			w.text(f.Description)
			w.raw(`</p>`)

			if len(f.Examples) > 0 {
				w.raw(`<ul>`)
				for _, example := range f.Examples {
					w.raw(`<li><a href="`)
					w.attr(exampleURL(example, f.ID))
					w.raw(`">`)
					w.text(example)
					w.raw(`</a></li>`)
				}
				w.raw(`</ul>`)
			}
			w.raw(`</article>`)
		}
		w.raw(`</section>`)

		return w.err
	})

	return Layout(data.Title, data.FooterNote, body)
}

func exampleURL(path, flavorID string) string {
	return path + "?" + url.Values{"flavor": []string{flavorID}}.Encode()
}

package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// ErrorPage renders a failed page request.
func ErrorPage(data ErrorPageData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}

		w.raw(`<h1 class="status">`)
		w.text(data.StatusLabel)
		w.raw(`</h1><p>`)
		w.text(data.Message)
		w.raw(`</p>`)

		if data.Hint != "" {
			w.raw(`<p>`)
			w.text(data.Hint)
			if data.HintURL != "" {
				w.raw(` <a href="`)
				w.attr(data.HintURL)
				w.raw(`">`)
				w.text(data.HintURL)
				w.raw(`</a>`)
			}
			w.raw(`</p>`)
		}

		w.raw(`<p><a href="/">Back to the start</a></p>`)
		return w.err
	})

	return Layout(data.Title, "", body)
}

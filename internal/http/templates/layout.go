package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

const layoutStyle = `body{font-family:system-ui,sans-serif;margin:0;background:#f7f5f0;color:#1d1d1f}` +
	`main{max-width:46rem;margin:0 auto;padding:3rem 1.5rem}` +
	`h1{font-size:2.4rem;margin:0 0 .5rem}` +
	`a{color:#2d5fbd}` +
	`.flavor{border-top:1px solid #ddd;padding:1rem 0}` +
	`.flavor.selected h2::after{content:" (default)";font-size:.8rem;color:#777}` +
	`.status{font-family:ui-monospace,monospace;color:#a33}` +
	`form{display:flex;gap:.5rem;margin:1.5rem 0}` +
	`input[type=text]{flex:1;padding:.5rem;font-size:1rem}` +
	`footer{color:#777;font-size:.85rem;margin-top:3rem}`

// Layout wraps body in the shared page chrome.
func Layout(title, footerNote string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		if footerNote == "" {
			footerNote = DefaultFooterNote
		}

		w := &writer{w: out}
		w.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		w.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		w.raw(`<link rel="icon" href="/favicon.svg" type="image/svg+xml"><title>`)
		w.text(title)
		w.raw(`</title><style>`)
		w.raw(layoutStyle)
		w.raw(`</style></head><body><main>`)
		if w.err != nil {
			return w.err
		}

		if err := body.Render(ctx, out); err != nil {
			return err
		}

		w.raw(`<footer><p>`)
		w.text(footerNote)
		w.raw(`</p></footer></main></body></html>`)
		return w.err
	})
}

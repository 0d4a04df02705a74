package http

import (
	"bytes"
	"context"

	"github.com/a-h/templ"
	"github.com/rotisserie/eris"
)

func renderComponent(ctx context.Context, component templ.Component) ([]byte, error) {
	var buf bytes.Buffer
	if err := component.Render(ctx, &buf); err != nil {
		return nil, eris.Wrap(err, "rendering component")
	}
	return buf.Bytes(), nil
}

// renderHTML renders component into an HTML response carrying status.
func renderHTML(ctx context.Context, status int, component templ.Component) (*htmlResponse, error) {
	body, err := renderComponent(ctx, component)
	if err != nil {
		return nil, err
	}
	return newHTMLResponse(status, body), nil
}

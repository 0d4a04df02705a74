package prompt

import (
	"strings"

	"github.com/rotisserie/eris"

	"wanderweb/app/internal/flavor"
)

const urlMarker = "URL: "

// Assembler builds the final model prompt from a flavor, the requested path and the parameter context.
type Assembler struct {
	flavors *flavor.Registry
}

// NewAssembler constructs an Assembler backed by the flavor registry.
func NewAssembler(flavors *flavor.Registry) (*Assembler, error) {
	if flavors == nil {
		return nil, eris.New("flavor registry is required")
	}
	return &Assembler{flavors: flavors}, nil
}

// Assemble concatenates the flavor's base prompt, the URL marker with the query and the parameter context.
// Unknown flavor ids use the default flavor. The output contains no time- or randomness-dependent text.
func (a *Assembler) Assemble(query, parameterContext, flavorID string) string {
	f := a.flavors.GetByID(flavorID)

	var b strings.Builder
	b.Grow(len(f.BasePrompt) + len(urlMarker) + len(query) + len(parameterContext) + 2)
	b.WriteString(strings.TrimRight(f.BasePrompt, "\n"))
	b.WriteString("\n\n")
	b.WriteString(urlMarker)
	b.WriteString(query)
	b.WriteString(parameterContext)

	return b.String()
}

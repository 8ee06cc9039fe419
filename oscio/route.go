// SPDX-License-Identifier: EPL-2.0

package oscio

import (
	"slices"
	"strings"
	"unicode"

	"github.com/ik5/soundscape/project"
)

// Route sends one installation's analysis to its targets.
type Route struct {
	// Installation indexes Frame.Installations.
	Installation int
	Address      string
	Targets      []string
	// Speakers index Frame.Speakers in the order they are reported.
	Speakers []int
}

// Routes derives the analysis routes of p. Speaker and installation indices
// follow the order of p, which is also the layout order.
func Routes(p *project.Project) []Route {
	routes := make([]Route, 0, len(p.Installations))

	for i, in := range p.Installations {
		if len(in.Targets) == 0 {
			continue
		}

		r := Route{Installation: i, Address: "/" + Slug(in.Name), Targets: slices.Clone(in.Targets)}
		for k, s := range p.Speakers {
			if slices.Contains(s.Installations, in.ID) {
				r.Speakers = append(r.Speakers, k)
			}
		}
		routes = append(routes, r)
	}

	return routes
}

// Slug lowercases name and joins its letter and digit runs with hyphens.
func Slug(name string) string {
	var b strings.Builder

	pending := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('-')
			}
			pending = false
			b.WriteRune(r)

			continue
		}
		pending = true
	}

	return b.String()
}

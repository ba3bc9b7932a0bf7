package graphql

import (
	"strings"
	"unicode"

	"github.com/vellum-cms/vellum/internal/schema"
)

// pascal turns "blog-post", "blog_post" or "default.compo" into "BlogPost" / "DefaultCompo".
func pascal(s string) string {
	var b strings.Builder
	upper := true
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// camel lowercases the first rune of pascal(s).
func camel(s string) string {
	p := []rune(pascal(s))
	if len(p) == 0 {
		return ""
	}
	p[0] = unicode.ToLower(p[0])
	return string(p)
}

// typeName is the GraphQL object name of a model. Components are prefixed so they
// never collide with content types.
func typeName(m *schema.Model) string {
	if m.IsComponent() {
		return "Component" + pascal(m.UID)
	}
	return pascal(m.Info.SingularName)
}

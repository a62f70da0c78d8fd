package displayname

import (
	"reflect"
	"strings"
	"unicode"

	pluralizer "github.com/gertd/go-pluralize"

	"github.com/Konsultn-Engineering/accessorcache/ast"
	"github.com/Konsultn-Engineering/accessorcache/member"
)

var pluralizeClient = pluralizer.NewClient()

// Humanize returns a resolver that names a member after its field name split
// into words: FirstName -> "First Name", HTTPStatus -> "HTTP Status".
// An element of a collection member is named in the singular, so
// x => x.Orders[0] is "Order". Other expressions get no name.
func Humanize() Resolver {
	return ResolverFunc(func(_ reflect.Type, m member.Ref, expr ast.Expr) (Name, error) {
		if d, ok := m.Get(); ok {
			return Of(Words(d.Name)), nil
		}
		if d, ok := indexedMember(expr); ok {
			return ItemName(Of(Words(d.Name))), nil
		}
		return None(), nil
	})
}

// indexedMember finds the collection member of an x => x.A.B[i] expression.
func indexedMember(expr ast.Expr) (member.Descriptor, bool) {
	if expr == nil {
		return member.Descriptor{}, false
	}
	idx, ok := expr.BodyNode().(*ast.Index)
	if !ok {
		return member.Descriptor{}, false
	}
	return member.ExtractNode(expr.ParamType(), expr.ParamNode(), idx.Target).Get()
}

// Words splits a Go identifier into space separated words and upper-cases
// the first letter. Acronyms stay together.
func Words(name string) string {
	if name == "" {
		return ""
	}

	runes := []rune(name)
	var sb strings.Builder
	sb.Grow(len(name) + 4)

	for i, r := range runes {
		if r == '_' {
			if sb.Len() > 0 && !strings.HasSuffix(sb.String(), " ") {
				sb.WriteByte(' ')
			}
			continue
		}

		if i > 0 && unicode.IsUpper(r) && runes[i-1] != '_' {
			prev := runes[i-1]
			// aB -> a B, a1B -> a1 B, ABc -> A Bc
			if unicode.IsLower(prev) || unicode.IsDigit(prev) ||
				(unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1])) {
				sb.WriteByte(' ')
			}
		}

		if sb.Len() == 0 {
			r = unicode.ToUpper(r)
		}
		sb.WriteRune(r)
	}

	return strings.TrimSpace(sb.String())
}

// ItemName names one element of a collection member from the collection's
// display name by singularising its last word: "Order Lines" -> "Order Line".
func ItemName(n Name) Name {
	s, ok := n.Get()
	if !ok || s == "" {
		return n
	}

	head, last := "", s
	if i := strings.LastIndexByte(s, ' '); i >= 0 {
		head, last = s[:i+1], s[i+1:]
	}
	return Of(head + preserveCase(last, pluralizeClient.Singular(last)))
}

// preserveCase applies the case pattern of original to result.
func preserveCase(original, result string) string {
	if original == "" || result == "" {
		return result
	}
	if strings.ToLower(original) == original {
		return strings.ToLower(result)
	}
	if strings.ToUpper(original) == original {
		return strings.ToUpper(result)
	}
	if unicode.IsUpper(rune(original[0])) {
		return strings.ToUpper(result[:1]) + strings.ToLower(result[1:])
	}
	return strings.ToLower(result)
}

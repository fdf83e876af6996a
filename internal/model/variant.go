package model

import "fmt"

// Variant selects which embed page a widget instance backs.
type Variant string

const (
	VariantSession      Variant = "session"
	VariantConversation Variant = "conversation"
	VariantDocs         Variant = "docs"
)

// ParseVariant validates a variant name. An empty name is the session variant.
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(s); v {
	case "":
		return VariantSession, nil
	case VariantSession, VariantConversation, VariantDocs:
		return v, nil
	default:
		return "", fmt.Errorf("unknown widget variant %q", s)
	}
}

// RequiresConfigID reports whether the variant cannot start without a
// widget config id.
func (v Variant) RequiresConfigID() bool {
	return v == VariantSession || v == VariantDocs
}

package domain

import "strings"

// KeyBy says which field an identity was derived from.
type KeyBy string

const (
	KeyByID          KeyBy = "id"
	KeyByOrderNumber KeyBy = "number"
)

// Key is the merge identity of an order.
type Key struct {
	By    KeyBy
	Value string
}

// String renders the key as "<by>:<value>" so id and order number spaces never collide.
func (k Key) String() string {
	return string(k.By) + ":" + k.Value
}

// IsZero reports whether the key is unset.
func (k Key) IsZero() bool {
	return k.Value == ""
}

// Matches reports whether ref addresses the order identified by k or carrying number.
func (k Key) Matches(ref string, number string) bool {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return false
	}
	return k.Value == ref || (number != "" && number == ref) || k.String() == ref
}

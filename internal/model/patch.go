package model

// OptionalText is an update slot for a nullable text column.
// The zero value leaves the column untouched.
type OptionalText struct {
	Set   bool
	Value *string // nil clears the column
}

// SetText returns a slot assigning s.
func SetText(s string) OptionalText { return OptionalText{Set: true, Value: &s} }

// ClearText returns a slot assigning null.
func ClearText() OptionalText { return OptionalText{Set: true} }

// capture returns a slot restoring the current value.
func captureText(cur *string) OptionalText {
	if cur == nil {
		return ClearText()
	}
	return SetText(*cur)
}

func (o OptionalText) apply(cur *string) *string {
	if !o.Set {
		return cur
	}
	if o.Value == nil {
		return nil
	}
	v := *o.Value
	return &v
}

func (o OptionalText) put(r Record, col string) {
	if !o.Set {
		return
	}
	if o.Value == nil {
		r[col] = nil
		return
	}
	r[col] = *o.Value
}

// Ptr returns a pointer to v. Handy for building update shapes.
func Ptr[T any](v T) *T { return &v }

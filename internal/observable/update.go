package observable

// Update is the argument to Next and Overwrite: either a replacement
// mapping or a function computing one from the current value.
// Build one with Replace or Compute.
type Update interface {
	resolve(current Value) any
}

type replacement struct {
	value any
}

func (r replacement) resolve(Value) any { return r.value }

type computed struct {
	fn func(Value) any
}

func (c computed) resolve(current Value) any {
	if c.fn == nil {
		return nil
	}
	return c.fn(current)
}

// Replace wraps a mapping to apply as-is. v is validated when the update is
// applied, so dynamically typed input (decoded YAML or JSON) can be passed
// directly.
func Replace(v any) Update {
	return replacement{value: v}
}

// Compute wraps a pure function of the current value. fn gets a clone of
// the current value and runs without the container locked, so it may read
// the container. If another update commits while fn runs, fn is called again
// with the newer value; fn must therefore not update the container itself.
func Compute(fn func(prev Value) any) Update {
	return computed{fn: fn}
}

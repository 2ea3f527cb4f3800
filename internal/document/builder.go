package document

// ObjectBuilder accumulates fields for an object in insertion order.
// The zero value is ready to use. Build may be called once; the builder
// must not be reused afterwards.
type ObjectBuilder struct {
	fields []Field
}

// NewObjectBuilder returns a builder with room for n fields.
func NewObjectBuilder(n int) *ObjectBuilder {
	return &ObjectBuilder{fields: make([]Field, 0, n)}
}

// Set appends key with value v. Keys are not deduplicated.
func (b *ObjectBuilder) Set(key string, v *Value) *ObjectBuilder {
	if v == nil {
		v = null
	}
	b.fields = append(b.fields, Field{Key: key, Value: v})
	return b
}

// Len returns the number of fields added so far.
func (b *ObjectBuilder) Len() int { return len(b.fields) }

// Build returns the object. The builder hands over its slice.
func (b *ObjectBuilder) Build() *Value {
	v := &Value{kind: KindObject, fields: b.fields}
	if v.fields == nil {
		v.fields = []Field{}
	}
	b.fields = nil
	return v
}

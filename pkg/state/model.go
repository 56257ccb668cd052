package state

// Submission is one operator write carried from the interactive side into
// the device context
type Submission struct {
	Field Field
	Value any
}

// Model holds Desired and Pending. It has a single owner, the device
// context, and is not safe for concurrent use.
type Model struct {
	desired [numFields]any
	pending FieldSet
}

// NewModel returns an empty model with nothing pending
func NewModel() *Model {
	return &Model{}
}

// Submit validates v, stores it as the desired value of f and marks f
// pending. A later submission for the same field replaces the earlier one.
func (m *Model) Submit(f Field, v any) error {
	norm, err := Validate(f, v)
	if err != nil {
		return err
	}
	m.desired[f] = norm
	m.pending = m.pending.With(f)
	return nil
}

// Pending returns the pending bits
func (m *Model) Pending() FieldSet {
	return m.pending
}

// IsPending reports whether f awaits application
func (m *Model) IsPending(f Field) bool {
	return m.pending.Has(f)
}

// Desired returns the last desired value of f, pending or not
func (m *Model) Desired(f Field) (any, bool) {
	v := m.desired[f]
	return v, v != nil
}

// Take returns the desired value of a pending field and clears its bit.
// The bit is cleared whatever the caller does with the value.
func (m *Model) Take(f Field) (any, bool) {
	if !m.pending.Has(f) {
		return nil, false
	}
	m.pending = m.pending.Without(f)
	return m.desired[f], true
}


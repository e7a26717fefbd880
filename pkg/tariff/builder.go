package tariff

// Builder accumulates a name and periods and produces a validated Tariff.
// It is reusable: Build does not consume the accumulated state, and Reset
// clears it for a new tariff.
type Builder struct {
	name    string
	periods []*Period
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// SetName sets the tariff name, replacing any previously set name.
func (b *Builder) SetName(name string) *Builder {
	b.name = name
	return b
}

// AddPeriod appends a period to the tariff under construction.
func (b *Builder) AddPeriod(p *Period) *Builder {
	b.periods = append(b.periods, p)
	return b
}

// Reset clears the builder's accumulated name and periods.
func (b *Builder) Reset() *Builder {
	b.name = ""
	b.periods = nil
	return b
}

// Build validates the accumulated name and periods and returns a Tariff.
func (b *Builder) Build() (*Tariff, error) {
	return New(b.name, b.periods)
}

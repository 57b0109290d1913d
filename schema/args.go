package schema

// Args is the typed result of a successful validation. Only declared
// parameters that were present survive; string and enum values are strings,
// number values are float64 and boolean values are bool.
type Args struct {
	values map[string]any
}

// Has reports whether the parameter was supplied.
func (a Args) Has(name string) bool {
	_, ok := a.values[name]
	return ok
}

// String returns a string or enum parameter, or "" when absent.
func (a Args) String(name string) string {
	s, _ := a.values[name].(string)
	return s
}

// Number returns a numeric parameter, or 0 when absent.
func (a Args) Number(name string) float64 {
	n, _ := a.values[name].(float64)
	return n
}

// Bool returns a boolean parameter, or false when absent.
func (a Args) Bool(name string) bool {
	b, _ := a.values[name].(bool)
	return b
}

// Len returns the number of validated parameters.
func (a Args) Len() int {
	return len(a.values)
}


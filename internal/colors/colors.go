// Package colors maps raw host paint indices to external colour IDs.
package colors

const (
	// MaxKnown is the highest paint index the host defines.
	MaxKnown = 160
	// Unknown is returned for indices outside the known palette.
	Unknown = -1
)

// Known reports whether raw is inside the host palette.
func Known(raw int) bool {
	return raw >= 0 && raw <= MaxKnown
}

// Map returns the external colour ID for a raw paint index. Indices inside the
// palette map to themselves; anything else maps to Unknown.
func Map(raw int) int {
	if !Known(raw) {
		return Unknown
	}
	return raw
}

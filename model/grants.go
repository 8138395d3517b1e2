package model

// Wildcard is the grant entry that unlocks every module.
const Wildcard = "*"

// ModuleGrants is an explicit list of module ids a user may open. A nil list
// means "not supplied" and defers to the static role table; a non-nil empty
// list grants nothing. JSON null and an absent field both decode to nil, and
// a nil list encodes as null so the distinction survives a round trip.
type ModuleGrants []string

// Supplied reports whether the server sent an explicit grant list.
func (g ModuleGrants) Supplied() bool {
	return g != nil
}

// Has returns true if the list contains the wildcard or moduleID.
func (g ModuleGrants) Has(moduleID string) bool {
	for _, id := range g {
		if id == Wildcard || id == moduleID {
			return true
		}
	}
	return false
}

package inventory

import "strings"

// ResolveName returns the canonical two-part name for ref under activeDB.
// Any qualifier already present on ref is discarded, so a cross-database
// reference such as "TA02.T" resolves to "<activeDB>.T".
func ResolveName(ref, activeDB string) string {
	return activeDB + "." + LastSegment(ref)
}

// LastSegment returns the part of ref after its final dot.
func LastSegment(ref string) string {
	if i := strings.LastIndexByte(ref, '.'); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

// SplitQualified splits "DB.NAME" into its database and local name.
// A reference without a dot has an empty database.
func SplitQualified(ref string) (db, name string) {
	if i := strings.IndexByte(ref, '.'); i >= 0 {
		return ref[:i], LastSegment(ref)
	}
	return "", ref
}

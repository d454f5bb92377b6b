package document

// ScalarField describes a single-valued field. A nil pointer means the field
// is unset; in a delta it means "no proposed change".
type ScalarField[T any] struct {
	Name string
	Get  func(*T) *string
	Set  func(*T, *string)
}

// SetField describes a plain set of scalars. Element order is preserved for
// stable output but carries no meaning. A nil slice means the field is unset.
type SetField[T any] struct {
	Name string
	Get  func(*T) []string
	Set  func(*T, []string)
}

// EntityField describes a set of nested whitelisted sub-entities.
type EntityField[T any] struct {
	Name string
	Get  func(*T) []Obligation
	Set  func(*T, []Obligation)
}

// RefField describes a set of cross-reference records identified by
// structural equality.
type RefField[T any] struct {
	Name string
	Get  func(*T) []ExternalRef
	Set  func(*T, []ExternalRef)
}

// Schema is the declared-field table for one document type, built once at
// startup and reused for every diff and merge. Clone must produce an
// independent deep copy, including fields outside the declared tables
// (identifiers and the like), so merge results never alias the stored
// document.
type Schema[T any] struct {
	Type     string
	Scalars  []ScalarField[T]
	Sets     []SetField[T]
	Entities []EntityField[T]
	Refs     []RefField[T]
	Clone    func(*T) *T
}

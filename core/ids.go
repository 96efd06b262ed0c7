package core

// TableID identifies an indexed table. It is the key under which the
// transactional log and the keeper coordinate concurrent writers.
type TableID string

// RevisionID identifies one indexing configuration of a table.
// IDs are monotonically increasing per table.
type RevisionID int64

// ConvertedRevisionID is reserved for tables that were written before
// indexing and converted afterwards. A converted revision carries no
// transformations; all of its rows live in the root cube.
const ConvertedRevisionID RevisionID = 0

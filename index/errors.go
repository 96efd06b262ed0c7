package index

import "errors"

// ErrConfiguration is returned for index configurations that cannot be
// honored: indexed columns missing from the schema, column sets changed
// incompatibly with the existing revision, or indexing requested without
// columns. Configuration errors are never retried.
var ErrConfiguration = errors.New("index configuration error")

// ErrData is returned for data the index cannot represent, such as a
// histogram column with fewer than two distinct values. Data errors are
// fatal and surface at construction time.
var ErrData = errors.New("index data error")

package catalog

import "errors"

var (
	// ErrCorruptCatalog is returned if the binary structure of a catalog is inconsistent
	// (section headers that do not fit the stream, truncated records, dangling references)
	ErrCorruptCatalog = errors.New("corrupt catalog")

	// ErrUnsupportedFormat is returned for an unknown magic or format version
	ErrUnsupportedFormat = errors.New("unsupported catalog format")

	// ErrIO is returned if the catalog source cannot be read
	ErrIO = errors.New("catalog i/o error")

	// ErrUnknownProperty is returned for a property name that is not in the catalog
	ErrUnknownProperty = errors.New("unknown property")

	// ErrUnknownValue is returned for a value name that is not in the catalog
	ErrUnknownValue = errors.New("unknown value")

	// ErrClosed is returned by lazy lookups after the catalog was closed
	ErrClosed = errors.New("catalog closed")
)

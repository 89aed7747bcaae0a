package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/ValentinKolb/dDetect/lib/source"
)

// --------------------------------------------------------------------------
// Binary Format
// --------------------------------------------------------------------------

// Magic identifies a catalog file
var Magic = [8]byte{'D', 'D', 'E', 'T', 'E', 'C', 'T', 0}

// FormatVersion is the only supported version of the binary format
const FormatVersion uint16 = 1

// section identifies one list of records in the catalog file
type section int

const (
	sectionStrings section = iota
	sectionComponents
	sectionHeaders
	sectionProperties
	sectionValues
	sectionProfiles
	sectionProfileOffsets
	sectionSignatures
	sectionReserved
	sectionCount
)

var sectionNames = [sectionCount]string{
	"strings", "components", "headers", "properties", "values",
	"profiles", "profile offsets", "signatures", "reserved",
}

func (s section) String() string {
	if s < 0 || s >= sectionCount {
		return fmt.Sprintf("section(%d)", int(s))
	}
	return sectionNames[s]
}

// record widths of fixed width sections (0 = variable width)
const (
	componentWidth     = 5 * 4
	headerWidth        = 4
	propertyWidth      = 4*4 + 1 + 4 + 1 + 1 + 3*4
	valueWidth         = 3 * 4
	profileHeaderWidth = 5 * 4
	profileOffsetWidth = 2 * 4
	signatureBaseWidth = 2 * 4
)

// fileHeaderSize is the size of the fixed part before the first section
const fileHeaderSize = 8 + 2 + 8 + 4 + int(sectionCount)*12

// signatureWidth returns the width of a signature record for a number of components
func signatureWidth(components int) int {
	return signatureBaseWidth + 4*components
}

// sectionHeader locates one list of records in the stream
type sectionHeader struct {
	Start  int32
	Length int32
	Count  int32
}

func (h sectionHeader) end() int64 { return int64(h.Start) + int64(h.Length) }

// fileHeader is the decoded fixed part of a catalog file
type fileHeader struct {
	Version   uint16
	Published int64
	NameRef   int32
	Sections  [sectionCount]sectionHeader
}

// readFileHeader decodes and validates the file header.
// Every section must lie inside the stream and fixed width sections must have a
// length matching their count.
func readFileHeader(d *source.Decoder) (*fileHeader, error) {
	if n := d.Size(); n < int64(len(Magic)) {
		// a non-empty start of the magic is a truncated catalog
		head, err := d.Bytes(int(n))
		if err != nil {
			return nil, decodeError("magic", err)
		}
		if n > 0 && bytes.HasPrefix(Magic[:], head) {
			return nil, fmt.Errorf("%w: stream of %d bytes ends inside the magic", ErrCorruptCatalog, n)
		}
		return nil, fmt.Errorf("%w: stream of %d bytes is too short", ErrUnsupportedFormat, n)
	}

	magic, err := d.Bytes(len(Magic))
	if err != nil {
		return nil, decodeError("magic", err)
	}
	if [8]byte(magic) != Magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrUnsupportedFormat, magic)
	}

	h := &fileHeader{}
	if h.Version, err = d.Uint16(); err != nil {
		return nil, decodeError("version", err)
	}
	if h.Version != FormatVersion {
		return nil, fmt.Errorf("%w: version %d (supported: %d)", ErrUnsupportedFormat, h.Version, FormatVersion)
	}
	if h.Published, err = d.Int64(); err != nil {
		return nil, decodeError("published", err)
	}
	if h.NameRef, err = d.Int32(); err != nil {
		return nil, decodeError("name", err)
	}

	for s := section(0); s < sectionCount; s++ {
		ints, err := d.Int32s(3)
		if err != nil {
			return nil, decodeError(s.String()+" header", err)
		}
		h.Sections[s] = sectionHeader{Start: ints[0], Length: ints[1], Count: ints[2]}
	}

	if err := h.validate(d.Size()); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *fileHeader) validate(size int64) error {
	for s := section(0); s < sectionCount; s++ {
		sh := h.Sections[s]
		if sh.Start < 0 || sh.Length < 0 || sh.Count < 0 {
			return fmt.Errorf("%w: negative %s header %+v", ErrCorruptCatalog, s, sh)
		}
		if s == sectionReserved && sh.Length == 0 {
			continue
		}
		if int64(sh.Start) < int64(fileHeaderSize) || sh.end() > size {
			return fmt.Errorf("%w: %s section [%d, %d) outside of stream (size %d)", ErrCorruptCatalog, s, sh.Start, sh.end(), size)
		}
	}

	components := int(h.Sections[sectionComponents].Count)
	fixed := map[section]int{
		sectionComponents:     componentWidth,
		sectionHeaders:        headerWidth,
		sectionProperties:     propertyWidth,
		sectionValues:         valueWidth,
		sectionProfileOffsets: profileOffsetWidth,
		sectionSignatures:     signatureWidth(components),
	}
	for s, width := range fixed {
		sh := h.Sections[s]
		if int64(sh.Length) != int64(sh.Count)*int64(width) {
			return fmt.Errorf("%w: %s section has length %d for %d records of %d bytes", ErrCorruptCatalog, s, sh.Length, sh.Count, width)
		}
	}

	if h.Sections[sectionProfileOffsets].Count != h.Sections[sectionProfiles].Count {
		return fmt.Errorf("%w: %d profile offsets for %d profiles", ErrCorruptCatalog,
			h.Sections[sectionProfileOffsets].Count, h.Sections[sectionProfiles].Count)
	}
	// every profile needs at least its fixed part
	if int64(h.Sections[sectionProfiles].Length) < int64(h.Sections[sectionProfiles].Count)*profileHeaderWidth {
		return fmt.Errorf("%w: profiles section too short for %d profiles", ErrCorruptCatalog, h.Sections[sectionProfiles].Count)
	}
	return nil
}

// decodeError maps read errors of the decoder to the catalog error taxonomy:
// reads past the end of the stream are a corruption, everything else is an i/o error
func decodeError(what string, err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated %s: %v", ErrCorruptCatalog, what, err)
	}
	if errors.Is(err, ErrCorruptCatalog) || errors.Is(err, ErrClosed) {
		return err
	}
	if errors.Is(err, source.ErrClosed) {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return fmt.Errorf("%w: reading %s: %v", ErrIO, what, err)
}

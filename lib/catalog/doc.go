// Package catalog loads and queries the binary signature catalog.
//
// A catalog is an immutable dataset of components, properties, values, profiles and
// signatures. It is loaded once from a file or a buffer and shared by all matchers.
//
// Binary Format:
//
// All integers are little-endian. The file starts with a fixed header followed by
// the records of nine sections:
//
//	magic      [8]byte  "DDETECT\x00"
//	version    uint16   (supported: 1)
//	published  int64    unix seconds
//	nameRef    int32    string index of the catalog name
//	sections   9 x {start int32, length int32, count int32}
//	           Strings, Components, Headers, Properties, Values,
//	           Profiles, ProfileOffsets, Signatures, (reserved)
//
// Records:
//
//	String         uint16 length + bytes
//	Component      id, nameRef, defaultProfile, firstHeader, headerCount  (5 x int32)
//	Header         nameRef                                                (int32)
//	Property       component, nameRef, categoryRef, descriptionRef (int32), valueType (uint8),
//	               displayOrder (int32), isList, isMandatory (uint8),
//	               firstValue, lastValue, defaultValue (int32)
//	Value          property, nameRef, descriptionRef                      (3 x int32)
//	Profile        component, id, rank, valueCount, signatureCount (int32),
//	               values [valueCount]int32, signatures [signatureCount]int32
//	ProfileOffset  profileId, offset into the profiles section            (2 x int32)
//	Signature      rank, stringRef, profiles [components]int32 (-1 = absent)
//
// A section header that does not fit the stream, or whose length does not match
// count times the record width, makes the whole catalog invalid (ErrCorruptCatalog).
// An unknown magic or version yields ErrUnsupportedFormat. Loading never returns a
// partially decoded catalog.
//
// Modes:
//
//  1. ModeEager: every list is decoded during load, lookups are slice accesses.
//  2. ModeLazy: strings, components, headers, properties and profile offsets are
//     decoded during load. Values, profiles and signatures are decoded on demand
//     through a pool of decoders and kept in the entity caches of the cache package.
//
// The profiles carrying a value are resolved by scanning all profiles and cached in
// the value-profiles cache in both modes.
//
// Device IDs:
//
// A device id joins the profile ids of a signature in component order with "-"
// (0 for absent components), e.g. "12280-17470-18092". SignatureByDeviceID resolves a
// device id back to its signature.
//
// Writing:
//
// Builder writes catalogs in the binary format, Definition is a JSON representation
// that can be converted into a Builder (used by "ddetect catalog build").
//
// Thread-safety: a Catalog is safe for concurrent use, a Builder is not.
package catalog

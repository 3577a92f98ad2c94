package domain

import "bytes"

// FileKind classifies an installed regular file for merging.
type FileKind int

const (
	// PlainFile is copied once after comparing the per-architecture copies.
	PlainFile FileKind = iota
	// Executable is a 64-bit Mach-O image, fused with lipo and signed.
	Executable
	// StaticArchive is an ar archive, fused with lipo.
	StaticArchive
)

// HeaderSize is the number of leading bytes ClassifyHeader inspects.
const HeaderSize = 8

var (
	machO64Magic = []byte{0xcf, 0xfa, 0xed, 0xfe}
	arMagic      = []byte("!<arch>\n")
)

// ClassifyHeader returns the kind of file that starts with header.
func ClassifyHeader(header []byte) FileKind {
	switch {
	case len(header) >= len(arMagic) && bytes.Equal(header[:len(arMagic)], arMagic):
		return StaticArchive
	case len(header) >= len(machO64Magic) && bytes.Equal(header[:len(machO64Magic)], machO64Magic):
		return Executable
	default:
		return PlainFile
	}
}

func (k FileKind) String() string {
	switch k {
	case Executable:
		return "executable"
	case StaticArchive:
		return "static-archive"
	default:
		return "plain"
	}
}

// FileDigest identifies the content of a regular file.
type FileDigest struct {
	Sum  uint64
	Size int64
}

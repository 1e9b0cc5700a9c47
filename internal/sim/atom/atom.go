// Package atom implements the 16-bit packed cell value shared by data and
// program, plus the compass geometry its bonds live on.
//
// Bit layout (MSB first):
//
//	15..13 type
//	12..10 vm-bond direction
//	9      vm-bond flag
//	8..6   dir1
//	5..3   dir2 (then-bond direction for if atoms)
//	2      dir1-bond flag
//	1      dir2-bond flag
//	0      spare
package atom

import "fmt"

// Atom is one grid cell. Zero is an empty cell.
type Atom uint16

// Empty is the value of an unoccupied cell.
const Empty Atom = 0

const (
	typeMask  Atom = 0b1110_0000_0000_0000
	typeShift      = 13

	vmDirMask  Atom = 0b0001_1100_0000_0000
	vmDirShift      = 10
	vmBondMask Atom = 0b0000_0010_0000_0000

	dir1Mask     Atom = 0b0000_0001_1100_0000
	dir1Shift         = 6
	dir1BondMask Atom = 0b0000_0000_0000_0100

	dir2Mask     Atom = 0b0000_0000_0011_1000
	dir2Shift         = 3
	dir2BondMask Atom = 0b0000_0000_0000_0010
)

// Type is the instruction kind stored in the top three bits.
type Type uint8

const (
	TypeEmpty Type = iota
	TypeMov
	TypeFix
	TypeSpl
	TypeIf
	TypeJob
	TypeReserved6
	TypeReserved7
)

var typeNames = map[Type]string{
	TypeEmpty: "empty",
	TypeMov:   "mov",
	TypeFix:   "fix",
	TypeSpl:   "spl",
	TypeIf:    "if",
	TypeJob:   "job",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("unused%d", uint8(t))
}

// ParseType maps an instruction name ("mov", "fix", ...) to its Type.
func ParseType(s string) (Type, error) {
	for t, name := range typeNames {
		if name == s {
			return t, nil
		}
	}
	return TypeEmpty, fmt.Errorf("unknown atom type %q", s)
}

// New returns an atom of type t with every other field zero.
func New(t Type) Atom { return Empty.WithType(t) }

func (a Atom) Type() Type { return Type((a & typeMask) >> typeShift) }

// IsAtom reports whether the cell holds an atom (type != empty).
func (a Atom) IsAtom() bool { return a&typeMask != 0 }

func (a Atom) WithType(t Type) Atom {
	return a&^typeMask | (Atom(t)<<typeShift)&typeMask
}

func (a Atom) VMDir() Dir { return Dir((a & vmDirMask) >> vmDirShift) }

func (a Atom) WithVMDir(d Dir) Atom {
	return a&^vmDirMask | (Atom(d)<<vmDirShift)&vmDirMask
}

func (a Atom) HasVMBond() bool       { return a&vmBondMask != 0 }
func (a Atom) WithVMBond() Atom      { return a | vmBondMask }
func (a Atom) WithoutVMBond() Atom   { return a &^ vmBondMask }
func (a Atom) Dir1() Dir             { return Dir((a & dir1Mask) >> dir1Shift) }
func (a Atom) HasDir1Bond() bool     { return a&dir1BondMask != 0 }
func (a Atom) WithDir1Bond() Atom    { return a | dir1BondMask }
func (a Atom) WithoutDir1Bond() Atom { return a &^ dir1BondMask }
func (a Atom) Dir2() Dir             { return Dir((a & dir2Mask) >> dir2Shift) }
func (a Atom) HasDir2Bond() bool     { return a&dir2BondMask != 0 }
func (a Atom) WithDir2Bond() Atom    { return a | dir2BondMask }
func (a Atom) WithoutDir2Bond() Atom { return a &^ dir2BondMask }

func (a Atom) WithDir1(d Dir) Atom {
	return a&^dir1Mask | (Atom(d)<<dir1Shift)&dir1Mask
}

func (a Atom) WithDir2(d Dir) Atom {
	return a&^dir2Mask | (Atom(d)<<dir2Shift)&dir2Mask
}

func (a Atom) String() string {
	if !a.IsAtom() {
		return "empty"
	}
	return fmt.Sprintf("%s{vm:%s/%t d1:%s/%t d2:%s/%t}",
		a.Type(), a.VMDir(), a.HasVMBond(), a.Dir1(), a.HasDir1Bond(), a.Dir2(), a.HasDir2Bond())
}

package ddr

import (
	"fmt"
	"strconv"
	"strings"
)

// AddrField names one field the address-mapping string distributes bits
// to.
type AddrField int

const (
	FieldRow AddrField = iota
	FieldCol
	FieldRank
	FieldBank
)

func parseField(s string) (AddrField, error) {
	switch strings.ToLower(s) {
	case "row":
		return FieldRow, nil
	case "col":
		return FieldCol, nil
	case "rank":
		return FieldRank, nil
	case "bank":
		return FieldBank, nil
	default:
		return 0, fmt.Errorf("ddr: unknown address-mapping field %q", s)
	}
}

// bitRange is one colon-separated component of the mapping string: a
// field assigned `width` bits starting at the next available shift,
// derived once at init (spec §4.3: "the shift/mask for each field is
// derived once at init from a colon-separated configuration string").
type bitRange struct {
	field AddrField
	shift uint
	mask  uint64
}

// AddressMapping decodes a line address into (row, col, rank, bank)
// using a configurable bit-field permutation, with row occupying the
// high bits per spec.
type AddressMapping struct {
	ranges []bitRange
}

// NewAddressMapping parses a configuration string of the form
// "row:14:col:10:bank:3:rank:1" (field name followed by its bit width,
// repeated; fields nearer the end of the string occupy the low bits of
// the address, so whichever field is listed first occupies the highest
// bits. Every field, the first included, is masked to its stated width;
// address bits above the sum of all widths are ignored).
func NewAddressMapping(spec string) (*AddressMapping, error) {
	parts := strings.Split(spec, ":")
	if len(parts)%2 != 0 {
		return nil, fmt.Errorf("ddr: address-mapping string %q must alternate field:width pairs", spec)
	}
	type raw struct {
		field AddrField
		width uint
	}
	var raws []raw
	for i := 0; i < len(parts); i += 2 {
		f, err := parseField(parts[i])
		if err != nil {
			return nil, err
		}
		w, err := strconv.Atoi(parts[i+1])
		if err != nil || w <= 0 {
			return nil, fmt.Errorf("ddr: invalid bit width %q for field %q", parts[i+1], parts[i])
		}
		raws = append(raws, raw{f, uint(w)})
	}

	// Assign shifts from the low bits upward in reverse listing order, so
	// the first-listed field ends up occupying the highest bits (row
	// "occupies the high bits" when listed first, per spec §4.3).
	var shift uint
	ranges := make([]bitRange, len(raws))
	for i := len(raws) - 1; i >= 0; i-- {
		r := raws[i]
		ranges[i] = bitRange{field: r.field, shift: shift, mask: (uint64(1) << r.width) - 1}
		shift += r.width
	}
	return &AddressMapping{ranges: ranges}, nil
}

// Loc is a decoded (row, rank, bank, col) address.
type Loc struct {
	Row, Rank, Bank, Col uint64
}

// Decode applies the mapping to a line address.
func (m *AddressMapping) Decode(lineAddr uint64) Loc {
	var loc Loc
	for _, r := range m.ranges {
		v := (lineAddr >> r.shift) & r.mask
		switch r.field {
		case FieldRow:
			loc.Row = v
		case FieldCol:
			loc.Col = v
		case FieldRank:
			loc.Rank = v
		case FieldBank:
			loc.Bank = v
		}
	}
	return loc
}

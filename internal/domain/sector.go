package domain

import (
	"fmt"
	"strings"
)

// Sector is a business-line partition scoping mail labels and storage.
type Sector string

const (
	SectorCHR Sector = "CHR"
	SectorGMS Sector = "GMS"
	SectorRHF Sector = "RHF"
	SectorIND Sector = "IND"
)

// Sectors lists every sector in processing order.
var Sectors = []Sector{SectorCHR, SectorGMS, SectorRHF, SectorIND}

// ParseSector resolves a case-insensitive sector key.
func ParseSector(s string) (Sector, error) {
	candidate := Sector(strings.ToUpper(strings.TrimSpace(s)))
	if candidate.Valid() {
		return candidate, nil
	}
	return "", fmt.Errorf("unknown sector %q", s)
}

// Valid reports whether s is one of the known sectors.
func (s Sector) Valid() bool {
	for _, known := range Sectors {
		if s == known {
			return true
		}
	}
	return false
}

// Partition returns the storage partition backing the sector.
func (s Sector) Partition() string {
	return "sector_tickets_" + strings.ToLower(string(s))
}

func (s Sector) String() string { return string(s) }

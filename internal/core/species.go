package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// SpeciesWhitelist is an immutable set of accepted species codes. The zero
// value accepts nothing.
type SpeciesWhitelist struct {
	codes map[string]struct{}
}

// NewSpeciesWhitelist builds a whitelist from codes, trimmed and upper-cased.
func NewSpeciesWhitelist(codes ...string) SpeciesWhitelist {
	w := SpeciesWhitelist{codes: make(map[string]struct{}, len(codes))}
	for _, c := range codes {
		w.codes[strings.ToUpper(strings.TrimSpace(c))] = struct{}{}
	}
	return w
}

// Contains reports whether code is accepted.
func (w SpeciesWhitelist) Contains(code string) bool {
	_, ok := w.codes[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}

// Len returns the number of accepted codes.
func (w SpeciesWhitelist) Len() int { return len(w.codes) }

// friSpecies is the closed list of Forest Resource Inventory species codes.
var friSpecies = NewSpeciesWhitelist(strings.Fields(`
	AB AW AX BD BE BF BG BN BW BY CB CD CE CH CR CW EW EX HE HI IW LA LO
	MH MR MS MX OC OH OR OW OX PB PD PJ PL PO PR PS PT PW PX SB SW SX WB WI AL
	AQ AP AG BC BP GB BB CAT CC CM CP CS CT ER EU HK HT HL HB HM HP HS HC KK
	LE LJ BL LL LB GT MB MF MM MT MN MP AM EMA MO OBL OB OCH OP OS OSW PA PN
	PP PC PH PE RED SS SC SK SN SR SY TP HAZ`)...)

// FRISpecies returns the Forest Resource Inventory whitelist used for
// species catalogs.
func FRISpecies() SpeciesWhitelist { return friSpecies }

// IsFRISpecies reports whether code is an accepted FRI species code.
func IsFRISpecies(code string) bool {
	return friSpecies.Contains(code)
}

// SpeciesEntry is one row of a species catalog file.
type SpeciesEntry struct {
	Code  string
	Group string
}

// SpeciesCatalog is an immutable species code to group mapping.
// It is safe for concurrent use.
type SpeciesCatalog struct {
	groups map[string]string
	codes  []string
}

// NewSpeciesCatalog validates entries against whitelist and builds a
// catalog. Codes and groups are trimmed and upper-cased. Every problem is
// reported in one joined error.
func NewSpeciesCatalog(entries []SpeciesEntry, whitelist SpeciesWhitelist) (*SpeciesCatalog, error) {
	c := &SpeciesCatalog{groups: make(map[string]string, len(entries))}
	var errs []error

	for i, e := range entries {
		code := strings.ToUpper(strings.TrimSpace(e.Code))
		group := strings.ToUpper(strings.TrimSpace(e.Group))
		field := fmt.Sprintf("entry %d", i+1)

		switch {
		case code == "" || group == "":
			errs = append(errs, ValidationError{
				Field:   field,
				Value:   code + "," + group,
				Message: "species code and group must not be empty",
				Err:     ErrInvalidSpecies,
			})
			continue
		case !whitelist.Contains(code):
			errs = append(errs, ValidationError{
				Field:   field,
				Value:   code,
				Message: "not an accepted species code",
				Err:     ErrInvalidSpecies,
			})
			continue
		}

		if _, dup := c.groups[code]; dup {
			errs = append(errs, ValidationError{
				Field:   field,
				Value:   code,
				Message: "species code listed more than once",
				Err:     ErrDuplicateSpecies,
			})
			continue
		}

		c.groups[code] = group
		c.codes = append(c.codes, code)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	sort.Strings(c.codes)
	return c, nil
}

// Contains reports whether code is in the catalog.
func (c *SpeciesCatalog) Contains(code string) bool {
	_, ok := c.groups[code]
	return ok
}

// Group returns the group of a species code.
func (c *SpeciesCatalog) Group(code string) (string, bool) {
	g, ok := c.groups[code]
	return g, ok
}

// Codes returns all species codes, sorted.
func (c *SpeciesCatalog) Codes() []string {
	out := make([]string, len(c.codes))
	copy(out, c.codes)
	return out
}

// Groups returns each group with its member species, members sorted.
func (c *SpeciesCatalog) Groups() map[string][]string {
	out := make(map[string][]string)
	for _, code := range c.codes {
		g := c.groups[code]
		out[g] = append(out[g], code)
	}
	return out
}

// Len returns the number of species in the catalog.
func (c *SpeciesCatalog) Len() int {
	return len(c.codes)
}

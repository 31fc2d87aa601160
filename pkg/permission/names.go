package permission

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownFlag is returned by Parse for names that do not map to a flag.
var ErrUnknownFlag = errors.New("permission.unknown_flag")

var flagNames = []struct {
	flag Mask
	name string
}{
	{Login, "login"},
	{Create, "create"},
	{Delete, "delete"},
	{Update, "update"},
	{Read, "read"},
	{Owner, "owner"},
	{Full, "full"},
	{Editor, "editor"},
	{Private, "private"},
}

var compositeNames = map[string]Mask{
	"none":                      None,
	"all":                       All,
	"create_update_delete":      CreateUpdateDelete,
	"create_read_update_delete": CreateReadUpdateDelete,
	"read_update":               ReadUpdate,
	"read_update_delete":        ReadUpdateDelete,
	"login_read":                LoginRead,
}

// Names returns the flag names set in m, lowest bit first.
func (m Mask) Names() []string {
	names := make([]string, 0, len(flagNames))
	for _, f := range flagNames {
		if m&f.flag != 0 {
			names = append(names, f.name)
		}
	}
	return names
}

// String renders m as its flag names, lowest bit first: "update|read". Bits
// without a name are printed in hex.
func (m Mask) String() string {
	if m == None {
		return "none"
	}
	names := m.Names()
	if rest := m &^ All; rest != 0 {
		names = append(names, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(names, "|")
}

// Parse converts a "|" or "," separated list of flag or composite names into a Mask.
// Names are case-insensitive; surrounding whitespace is ignored. A field may
// also be a decimal bit value, so "24" and "update|read" parse alike. Decimal
// values carrying bits outside All are rejected.
func Parse(s string) (Mask, error) {
	var m Mask
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' })
	if len(fields) == 0 {
		return None, fmt.Errorf("%w: empty mask", ErrUnknownFlag)
	}
	for _, field := range fields {
		name := strings.ToLower(strings.TrimSpace(field))
		if c, ok := compositeNames[name]; ok {
			m |= c
			continue
		}
		if n, err := strconv.ParseUint(name, 10, 32); err == nil {
			if Mask(n)&^All != 0 {
				return None, fmt.Errorf("%w: undefined bits in %q", ErrUnknownFlag, name)
			}
			m |= Mask(n)
			continue
		}
		flag, ok := lookupFlag(name)
		if !ok {
			return None, fmt.Errorf("%w: %q", ErrUnknownFlag, name)
		}
		m |= flag
	}
	return m, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Mask {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

func lookupFlag(name string) (Mask, bool) {
	for _, f := range flagNames {
		if f.name == name {
			return f.flag, true
		}
	}
	return None, false
}

// MarshalText renders m with String.
func (m Mask) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses text with Parse.
func (m *Mask) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

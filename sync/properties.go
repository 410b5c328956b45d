package sync

import (
	"slices"
	"strconv"
	"strings"
)

// AllProperties requests every property of a case, unfiltered.
const AllProperties = "all"

// Offsets at which repeated property groups start counting. Destination
// forms do not agree on a single convention so each group keeps its own.
const (
	CoEmigrantIndexOffset         = 1
	ExtractBeneficiaryIndexOffset = 1
	AddressLineIndexOffset        = 1
	ChildIndexOffset              = 1
)

// Properties is a partial name to value lookup over case properties.
// Callers must not assume any key is present.
type Properties map[string]string

func (p Properties) Get(name string) (string, bool) {
	v, exists := p[name]
	return v, exists
}

// Value returns the named property or the empty string.
func (p Properties) Value(name string) string {
	return p[name]
}

// ExtractProperties flattens the case properties into a lookup, keeping only
// the wanted names unless AllProperties is among them.
func ExtractProperties(c Case, wanted ...string) Properties {
	all := slices.Contains(wanted, AllProperties)
	result := make(Properties)
	for _, property := range c.Properties() {
		if all || slices.Contains(wanted, property.Name) {
			result[property.Name] = property.Value
		}
	}
	return result
}

// IndexedGroups walks PREFIX.N.FIELD groups from offset upwards and stops at
// the first index with no fields at all.
func IndexedGroups(props Properties, prefix string, offset int) []Properties {
	var result []Properties
	for n := offset; ; n++ {
		p := prefix + "." + strconv.Itoa(n) + "."
		group := make(Properties)
		for name, v := range props {
			if field, found := strings.CutPrefix(name, p); found && field != "" {
				group[field] = v
			}
		}
		if len(group) == 0 {
			return result
		}
		result = append(result, group)
	}
}

// SingleGroup returns the unindexed PREFIX.FIELD group, if any.
func SingleGroup(props Properties, prefix string) (Properties, bool) {
	group := make(Properties)
	for name, v := range props {
		field, found := strings.CutPrefix(name, prefix+".")
		if !found || field == "" {
			continue
		}
		head, _, _ := strings.Cut(field, ".")
		if _, err := strconv.Atoi(head); err == nil {
			continue
		}
		group[field] = v
	}
	return group, len(group) > 0
}

// SuffixGroups splits properties whose name ends in a non-zero digit into
// per-instance groups keyed by the name without that digit. Everything else
// is returned unchanged in flat. Groups are ordered by digit.
func SuffixGroups(props Properties, offset int) (flat Properties, groups []Properties) {
	flat = make(Properties)
	byIndex := make(map[int]Properties)
	for name, v := range props {
		d := suffixDigit(name)
		if d == 0 {
			flat[name] = v
			continue
		}
		i := d - offset
		if byIndex[i] == nil {
			byIndex[i] = make(Properties)
		}
		byIndex[i][name[:len(name)-1]] = v
	}
	indexes := make([]int, 0, len(byIndex))
	for i := range byIndex {
		indexes = append(indexes, i)
	}
	slices.Sort(indexes)
	for _, i := range indexes {
		groups = append(groups, byIndex[i])
	}
	return flat, groups
}

func suffixDigit(name string) int {
	if name == "" {
		return 0
	}
	c := name[len(name)-1]
	if c < '1' || c > '9' {
		return 0
	}
	return int(c - '0')
}

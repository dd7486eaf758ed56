// Package sequence derives the next free asset business code from the codes
// already present in the registry. There is no stored counter, so manual
// edits, deletions, and imports never desynchronize it.
package sequence

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Kitoverdie1/uph-mem-system/pkg/registry"
)

// Kind is an asset code family.
type Kind string

const (
	KindEquipment Kind = "EQ"
	KindGeneral   Kind = "GN"
)

// suffixWidth is the minimum number of digits in a generated code.
const suffixWidth = 3

var prefixes = map[Kind]string{
	KindEquipment: "LAB-AS-EQ-A",
	KindGeneral:   "LAB-AS-GN-A",
}

var patterns = map[Kind]*regexp.Regexp{
	KindEquipment: regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(prefixes[KindEquipment]) + `(\d+)$`),
	KindGeneral:   regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(prefixes[KindGeneral]) + `(\d+)$`),
}

// ErrInvalidKind is returned for a kind outside the known families.
var ErrInvalidKind = errors.New("kind must be EQ or GN")

// ParseKind accepts a kind in any case. Empty input selects KindEquipment.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	if k == "" {
		return KindEquipment, nil
	}
	if _, ok := prefixes[k]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
	return k, nil
}

// Prefix returns the code prefix for k.
func Prefix(k Kind) string {
	return prefixes[k]
}

// NextCode returns the prefix for kind followed by one more than the highest
// numeric suffix among asset codes of that kind, zero-padded to three digits.
// Unknown kinds fall back to KindEquipment.
func NextCode(doc *registry.Document, kind Kind) string {
	prefix, ok := prefixes[kind]
	if !ok {
		kind = KindEquipment
		prefix = prefixes[kind]
	}
	re := patterns[kind]

	var maxNum uint64
	for _, asset := range doc.Assets {
		m := re.FindStringSubmatch(asset.Code())
		if m == nil {
			continue
		}
		n, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil {
			continue
		}
		if n > maxNum {
			maxNum = n
		}
	}
	return prefix + pad(maxNum+1)
}

// pad zero-pads n to suffixWidth digits without ever truncating.
func pad(n uint64) string {
	s := strconv.FormatUint(n, 10)
	if len(s) >= suffixWidth {
		return s
	}
	return strings.Repeat("0", suffixWidth-len(s)) + s
}

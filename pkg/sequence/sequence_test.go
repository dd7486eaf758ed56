package sequence

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/Kitoverdie1/uph-mem-system/pkg/registry"
)

func docWithCodes(codes ...string) *registry.Document {
	doc := registry.NewDocument()
	for _, c := range codes {
		doc.Assets = append(doc.Assets, registry.RecordFrom(registry.FieldCode, c))
	}
	return doc
}

func TestNextCode(t *testing.T) {
	tests := []struct {
		name  string
		codes []string
		kind  Kind
		want  string
	}{
		{"empty collection", nil, KindEquipment, "LAB-AS-EQ-A001"},
		{"max plus one", []string{"LAB-AS-EQ-A007", "LAB-AS-EQ-A012", "LAB-AS-EQ-A003"}, KindEquipment, "LAB-AS-EQ-A013"},
		{"kinds are independent", []string{"LAB-AS-EQ-A050", "LAB-AS-GN-A002"}, KindGeneral, "LAB-AS-GN-A003"},
		{"case insensitive match", []string{"lab-as-eq-a009"}, KindEquipment, "LAB-AS-EQ-A010"},
		{"non matching ignored", []string{"LAB-AS-EQ-A00X", "X-LAB-AS-EQ-A900", "LAB-AS-EQ-A"}, KindEquipment, "LAB-AS-EQ-A001"},
		{"width grows past three digits", []string{"LAB-AS-EQ-A999"}, KindEquipment, "LAB-AS-EQ-A1000"},
		{"unknown kind falls back", []string{"LAB-AS-EQ-A004"}, Kind("ZZ"), "LAB-AS-EQ-A005"},
		{"surrounding spaces trimmed", []string{"  LAB-AS-GN-A041 "}, KindGeneral, "LAB-AS-GN-A042"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextCode(docWithCodes(tt.codes...), tt.kind))
		})
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("gn")
	require.NoError(t, err)
	assert.Equal(t, KindGeneral, k)

	k, err = ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindEquipment, k)

	_, err = ParseKind("XX")
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestNextCode_NeverCollides(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		nums := rapid.SliceOf(rapid.IntRange(0, 5000)).Draw(t, "nums")
		codes := make([]string, 0, len(nums))
		for _, n := range nums {
			codes = append(codes, fmt.Sprintf("LAB-AS-EQ-A%03d", n))
		}
		doc := docWithCodes(codes...)

		next := NextCode(doc, KindEquipment)
		for _, c := range codes {
			if c == next {
				t.Fatalf("next code %s already used", next)
			}
		}

		doc.Assets = append(doc.Assets, registry.RecordFrom(registry.FieldCode, next))
		if again := NextCode(doc, KindEquipment); again == next {
			t.Fatalf("sequencer did not advance past %s", next)
		}
	})
}

package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Spok95/panel-bom/internal/domain/catalog"
)

func TestPredicate_Match(t *testing.T) {
	attrs := catalog.Attrs(
		"rated_current", "12",
		"coil_voltage", "230VAC",
		"width", "600,5",
		"note", "",
	)

	tests := []struct {
		name string
		p    Predicate
		want bool
	}{
		{"geq equal", Geq("rated_current", 12), true},
		{"geq below", Geq("rated_current", 12.5), false},
		{"leq", Leq("rated_current", 12), true},
		{"gt strict", Gt("rated_current", 12), false},
		{"gt", Gt("rated_current", 11.9), true},
		{"eq numeric", Eq("rated_current", "12.0"), true},
		{"eq text case-insensitive", Eq("coil_voltage", "230vac"), true},
		{"eq text mismatch", Eq("coil_voltage", "24VDC"), false},
		{"comma decimal", Geq("width", 600.5), true},
		{"non numeric never matches numeric op", Geq("coil_voltage", 1), false},
		{"empty value never matches numeric op", Leq("note", 1), false},
		{"missing attribute", Geq("depth", 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.Match(attrs))
		})
	}
}

func TestPredicate_Validate(t *testing.T) {
	assert.NoError(t, Geq("a", 1).Validate())
	assert.NoError(t, Eq("a", "x").Validate())
	assert.Error(t, Predicate{Key: "", Op: OpEq}.Validate())
	assert.Error(t, Predicate{Key: "a", Op: OpGeq, Value: "abc"}.Validate())
	assert.Error(t, Predicate{Key: "a", Op: "ne", Value: "1"}.Validate())
}

func TestPredicate_String(t *testing.T) {
	assert.Equal(t, "rated_current >= 9.5", Geq("rated_current", 9.5).String())
	assert.Equal(t, "coil_voltage = 24", Eq("coil_voltage", 24).String())
}

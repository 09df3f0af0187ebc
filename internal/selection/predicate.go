package selection

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/Spok95/panel-bom/internal/domain/catalog"
)

type Op string

const (
	OpEq  Op = "eq"
	OpGeq Op = "geq"
	OpLeq Op = "leq"
	OpGt  Op = "gt"
)

const epsilon = 1e-9

// Predicate: одно условие на атрибут компонента.
type Predicate struct {
	Key   string `json:"key"`
	Op    Op     `json:"op"`
	Value string `json:"value"`
}

func Eq(key string, v any) Predicate { return Predicate{Key: key, Op: OpEq, Value: cast.ToString(v)} }

func Geq(key string, v float64) Predicate { return Predicate{Key: key, Op: OpGeq, Value: formatNum(v)} }

func Leq(key string, v float64) Predicate { return Predicate{Key: key, Op: OpLeq, Value: formatNum(v)} }

func Gt(key string, v float64) Predicate { return Predicate{Key: key, Op: OpGt, Value: formatNum(v)} }

// Match проверяет условие на атрибутах одного компонента. Отсутствующий
// атрибут или неприводимое к числу значение не совпадают.
func (p Predicate) Match(attrs catalog.Attributes) bool {
	raw, ok := attrs.Get(p.Key)
	if !ok {
		return false
	}
	want, wantNum := toFloat(p.Value)

	if p.Op == OpEq {
		if got, gotNum := toFloat(raw); gotNum && wantNum {
			return math.Abs(got-want) <= epsilon
		}
		return strings.EqualFold(strings.TrimSpace(raw), strings.TrimSpace(p.Value))
	}

	got, gotNum := toFloat(raw)
	if !gotNum || !wantNum {
		return false
	}
	switch p.Op {
	case OpGeq:
		return got >= want-epsilon
	case OpLeq:
		return got <= want+epsilon
	case OpGt:
		return got > want+epsilon
	}
	return false
}

func (p Predicate) Validate() error {
	if strings.TrimSpace(p.Key) == "" {
		return fmt.Errorf("predicate without attribute key")
	}
	switch p.Op {
	case OpEq:
		return nil
	case OpGeq, OpLeq, OpGt:
		if _, ok := toFloat(p.Value); !ok {
			return fmt.Errorf("predicate %s: value %q is not a number", p, p.Value)
		}
		return nil
	}
	return fmt.Errorf("predicate on %q: unsupported operator %q", p.Key, p.Op)
}

func (p Predicate) String() string {
	sym := map[Op]string{OpEq: "=", OpGeq: ">=", OpLeq: "<=", OpGt: ">"}[p.Op]
	if sym == "" {
		sym = string(p.Op)
	}
	return fmt.Sprintf("%s %s %s", p.Key, sym, p.Value)
}

func toFloat(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0, false
	}
	f, err := cast.ToFloat64E(s)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func formatNum(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

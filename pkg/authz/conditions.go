package authz

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/lnkday/authcore/pkg/principal"
)

// RequestContext carries the attribute roots a conditional permission may
// reference: the authenticated user, the concrete resource being touched,
// and the request's params, query, and body. Absent roots stay nil; a
// condition referencing a root the deployment never populates is a policy
// bug, not a user error.
type RequestContext struct {
	User     map[string]interface{}
	Resource map[string]interface{}
	Params   map[string]interface{}
	Query    map[string]interface{}
	Body     map[string]interface{}
}

// UserAttributes builds the "user" root from a principal.
func UserAttributes(p *principal.Principal) map[string]interface{} {
	if p == nil {
		return nil
	}
	return map[string]interface{}{
		"id":           p.ID,
		"email":        p.Email,
		"type":         string(p.Type),
		"role":         string(p.Role),
		"teamId":       p.Scope.TeamID,
		"customRoleId": p.CustomRoleID,
	}
}

// EvaluateConditions checks every condition of a conditional permission
// against the request context. Conditions are AND-combined: the first
// failure denies. A reference to an undefined root fails closed with
// POLICY_MISCONFIGURED.
func EvaluateConditions(cp *ConditionalPermission, rc *RequestContext) *Error {
	if cp == nil {
		return nil
	}
	if rc == nil {
		rc = &RequestContext{}
	}
	for _, cond := range cp.Conditions {
		if err := evaluateCondition(cond, rc); err != nil {
			return err
		}
	}
	return nil
}

func evaluateCondition(cond Condition, rc *RequestContext) *Error {
	actual, err := rc.lookup(cond.Field)
	if err != nil {
		return err
	}

	expected := cond.Value
	if ref, ok := variableReference(expected); ok {
		expected, err = rc.lookup(ref)
		if err != nil {
			return err
		}
	}

	ok, evalErr := compare(cond.Operator, actual, expected)
	if evalErr != nil {
		return Misconfigured(fmt.Sprintf("condition on %q: %v", cond.Field, evalErr))
	}
	if !ok {
		return ConditionNotMet(&ConditionFailure{
			Field:    cond.Field,
			Operator: string(cond.Operator),
			Expected: expected,
			Actual:   actual,
		})
	}
	return nil
}

// variableReference unwraps a "${path}" value reference.
func variableReference(v interface{}) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return s[2 : len(s)-1], true
	}
	return "", false
}

// lookup walks a dotted path from its named root. A missing intermediate
// or leaf resolves to nil (the condition then fails); an unknown root is
// a misconfiguration.
func (rc *RequestContext) lookup(path string) (interface{}, *Error) {
	rootName, rest, _ := strings.Cut(path, ".")

	var root map[string]interface{}
	switch rootName {
	case "user":
		root = rc.User
	case "resource":
		root = rc.Resource
	case "params":
		root = rc.Params
	case "query":
		root = rc.Query
	case "body":
		root = rc.Body
	default:
		return nil, Misconfigured(fmt.Sprintf("condition references undefined root %q", rootName))
	}

	if rest == "" {
		return root, nil
	}

	var current interface{} = root
	for _, segment := range strings.Split(rest, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, nil
		}
		current, ok = m[segment]
		if !ok {
			return nil, nil
		}
	}
	return current, nil
}

func compare(op Operator, actual, expected interface{}) (bool, error) {
	switch op {
	case OpEq:
		return valuesEqual(actual, expected), nil
	case OpNe:
		return !valuesEqual(actual, expected), nil
	case OpIn:
		return valueInList(actual, expected)
	case OpNin:
		in, err := valueInList(actual, expected)
		return !in, err
	case OpGt, OpGte, OpLt, OpLte:
		return compareOrdered(op, actual, expected)
	default:
		return false, fmt.Errorf("unknown operator %q", op)
	}
}

// valuesEqual compares two values, coercing numeric types so that a JSON
// float64 matches a Go int.
func valuesEqual(a, b interface{}) bool {
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}
	return reflect.DeepEqual(a, b)
}

func valueInList(actual, expected interface{}) (bool, error) {
	list := reflect.ValueOf(expected)
	if !list.IsValid() || (list.Kind() != reflect.Slice && list.Kind() != reflect.Array) {
		return false, fmt.Errorf("in/nin requires a list value, got %T", expected)
	}
	for i := 0; i < list.Len(); i++ {
		if valuesEqual(actual, list.Index(i).Interface()) {
			return true, nil
		}
	}
	return false, nil
}

func compareOrdered(op Operator, actual, expected interface{}) (bool, error) {
	af, aok := asFloat(actual)
	ef, eok := asFloat(expected)
	if !aok || !eok {
		// Fall back to lexicographic comparison for strings.
		as, asok := actual.(string)
		es, esok := expected.(string)
		if !asok || !esok {
			return false, fmt.Errorf("%s requires comparable values, got %T and %T", op, actual, expected)
		}
		return orderedResult(op, strings.Compare(as, es)), nil
	}
	switch {
	case af < ef:
		return orderedResult(op, -1), nil
	case af > ef:
		return orderedResult(op, 1), nil
	default:
		return orderedResult(op, 0), nil
	}
}

func orderedResult(op Operator, cmp int) bool {
	switch op {
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	}
	return false
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

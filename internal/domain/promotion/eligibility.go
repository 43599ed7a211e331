package promotion

import (
	"github.com/go-faster/errors"
	"github.com/google/cel-go/cel"
)

// eligibilityEnv declares the variables an eligibility expression may use.
var eligibilityEnv = mustEnv()

func mustEnv() *cel.Env {
	env, err := cel.NewEnv(
		cel.Variable("subtotal", cel.DoubleType),
		cel.Variable("item_count", cel.IntType),
		cel.Variable("shipping_method", cel.StringType),
	)
	if err != nil {
		panic(err)
	}
	return env
}

// compileEligibility compiles a CEL expression into a reusable program.
func compileEligibility(expr string) (cel.Program, error) {
	ast, issues := eligibilityEnv.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Wrap(issues.Err(), "compile")
	}
	prg, err := eligibilityEnv.Program(ast)
	if err != nil {
		return nil, errors.Wrap(err, "program")
	}
	return prg, nil
}

// evalEligibility runs a compiled eligibility program against the order facts.
func evalEligibility(prg cel.Program, f Facts) (bool, error) {
	out, _, err := prg.Eval(map[string]any{
		"subtotal":        f.Subtotal.InexactFloat64(),
		"item_count":      int64(f.ItemCount),
		"shipping_method": f.ShippingMethod,
	})
	if err != nil {
		return false, errors.Wrap(err, "eval")
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, errors.Errorf("eligibility result is %T, not bool", out.Value())
	}
	return ok, nil
}

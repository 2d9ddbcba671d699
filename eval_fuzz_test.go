package numgrade_test

import (
	"errors"
	"testing"

	"github.com/quillathe/numgrade"
)

func FuzzEval(f *testing.F) {
	f.Add("x")
	f.Add("sin(x)^2 + cos(x)^2")
	f.Add("[[1, 2], [3, 4]]^-1 * [x, 1]")
	f.Add("1/(x - x)")
	f.Add("min(x, 2, 3) + max(1, x)")
	f.Add("10^400 - 10^400")
	f.Fuzz(func(t *testing.T, s string) {
		_, err := numgrade.EvalString(s, numgrade.SetVar("x", numgrade.Real(0.5)))
		if err == nil {
			return
		}
		var ierr numgrade.InputError
		var eerr numgrade.EvalError
		if !errors.As(err, &ierr) && !errors.As(err, &eerr) {
			t.Fatalf("evaluating %q gave %v, which is neither an input nor an evaluation error", s, err)
		}
	})
}

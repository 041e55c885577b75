package valid_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tailcall-oss/gateway/internal/valid"
)

func TestValidationErrorDisplay(t *testing.T) {
	v := valid.FailWith[struct{}](valid.Cause{Message: "1", Trace: []string{"a", "b"}})
	v = valid.And(v, valid.FailWith[struct{}](valid.Cause{Message: "2"}))
	v = valid.And(v, valid.FailWith[struct{}](valid.Cause{Message: "3"}))

	_, err := v.ToResult()
	require.Error(t, err)
	require.Equal(t, "Validation Error\n• 1 [a, b]\n• 2\n• 3\n", err.Error())
}

func TestAndIsAssociativeUpToCauseOrder(t *testing.T) {
	a := valid.Fail[struct{}]("a")
	b := valid.Fail[struct{}]("b")
	c := valid.Fail[struct{}]("c")

	left := valid.And(valid.And(a, b), c)
	right := valid.And(a, valid.And(b, c))

	require.Equal(t, left.Causes(), right.Causes())
}

func TestFromIterNeverShortCircuits(t *testing.T) {
	items := []int{1, -1, 2, -2, 3}
	result := valid.FromIter(items, func(n int) valid.Valid[int] {
		if n < 0 {
			return valid.Failf[int]("negative: %d", n)
		}
		return valid.Succeed(n)
	})

	require.False(t, result.IsSucceed())
	require.Len(t, result.Causes(), 2)
	require.Equal(t, "negative: -1", result.Causes()[0].Message)
	require.Equal(t, "negative: -2", result.Causes()[1].Message)
}

func TestTraceIsPrependedInOrder(t *testing.T) {
	v := valid.Fail[struct{}]("broken")
	v = v.Trace("mergeType")
	v = v.Trace("preset")

	require.Equal(t, []string{"preset", "mergeType"}, v.Causes()[0].Trace)
}

func TestAndThenShortCircuitsOnlyItsOwnStep(t *testing.T) {
	ok := valid.Succeed(2)
	doubled := valid.AndThen(ok, func(n int) valid.Valid[int] { return valid.Succeed(n * 2) })
	require.True(t, doubled.IsSucceed())

	failed := valid.Fail[int]("bad")
	stillFailed := valid.AndThen(failed, func(n int) valid.Valid[int] {
		t.Fatal("AndThen must not invoke f when the input already failed")
		return valid.Succeed(n)
	})
	require.False(t, stillFailed.IsSucceed())
	require.Equal(t, "bad", stillFailed.Causes()[0].Message)
}

func TestFromOption(t *testing.T) {
	n := 5
	require.True(t, valid.FromOption(&n, "missing").IsSucceed())
	require.False(t, valid.FromOption[int](nil, "missing").IsSucceed())
}

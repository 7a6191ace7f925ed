package fn

import (
	"context"
	"errors"
	"testing"
)

// --- Result ---

func TestOkUnwrap(t *testing.T) {
	r := Ok(42)
	v, err := r.Unwrap()
	if err != nil || v != 42 {
		t.Fatalf("Ok(42).Unwrap() = %v, %v", v, err)
	}
	if !r.IsOk() || r.IsErr() {
		t.Fatal("Ok should be ok")
	}
}

func TestErrZeroValue(t *testing.T) {
	r := Err[string](errors.New("x"))
	v, _ := r.Unwrap()
	if v != "" {
		t.Fatal("Err value should be zero")
	}
	if r.IsOk() {
		t.Fatal("Err should not be ok")
	}
}

func TestUnwrapOr(t *testing.T) {
	if got := Err[int](errors.New("x")).UnwrapOr(7); got != 7 {
		t.Fatalf("UnwrapOr on Err = %d, want 7", got)
	}
	if got := Ok(3).UnwrapOr(7); got != 3 {
		t.Fatalf("UnwrapOr on Ok = %d, want 3", got)
	}
}

func TestMustPanicsOnErr(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Must on Err should panic")
		}
	}()
	Err[int](errors.New("boom")).Must()
}

func TestMapResultChangeType(t *testing.T) {
	r := MapResult(Err[int](errors.New("boom")), func(v int) string { return "x" })
	if r.IsOk() {
		t.Fatal("MapResult on Err should stay Err")
	}
	_, err := r.Unwrap()
	if err.Error() != "boom" {
		t.Fatal("error should propagate through MapResult")
	}
	s := MapResult(Ok(2), func(v int) string { return "ok" })
	if s.Must() != "ok" {
		t.Fatal("MapResult on Ok should transform")
	}
}

func TestFromPair(t *testing.T) {
	if FromPair(1, errors.New("e")).IsOk() {
		t.Fatal("FromPair with error should be Err")
	}
	if FromPair(1, nil).Must() != 1 {
		t.Fatal("FromPair without error should be Ok")
	}
}

func TestCollect(t *testing.T) {
	r := Collect([]Result[int]{Ok(1), Ok(2)})
	vs := r.Must()
	if len(vs) != 2 || vs[0] != 1 || vs[1] != 2 {
		t.Fatalf("Collect = %v", vs)
	}
	r = Collect([]Result[int]{Ok(1), Err[int](errors.New("only"))})
	if _, err := r.Unwrap(); err == nil || err.Error() != "only" {
		t.Fatal("Collect should return first error")
	}
}

func TestPartition(t *testing.T) {
	vals, errs := Partition([]Result[int]{Ok(1), Err[int](errors.New("a")), Ok(3)})
	if len(vals) != 2 || vals[0] != 1 || vals[1] != 3 {
		t.Fatalf("Partition vals = %v", vals)
	}
	if len(errs) != 1 || errs[0].Error() != "a" {
		t.Fatalf("Partition errs = %v", errs)
	}
}

// --- Pipeline ---

func TestPipelinePassThrough(t *testing.T) {
	p := Pipeline[int]()
	if p(context.Background(), 42).Must() != 42 {
		t.Fatal("Pipeline with no stages should pass through")
	}
}

func TestPipelineShortCircuits(t *testing.T) {
	called := false
	fail := Stage[int, int](func(_ context.Context, _ int) Result[int] { return Err[int](errors.New("fail")) })
	track := Stage[int, int](func(_ context.Context, v int) Result[int] {
		called = true
		return Ok(v)
	})
	p := Pipeline(fail, track)
	if p(context.Background(), 1).IsOk() {
		t.Fatal("Pipeline should short-circuit on error")
	}
	if called {
		t.Fatal("second stage should not run after error")
	}
}

func TestThenComposes(t *testing.T) {
	double := Stage[int, int](func(_ context.Context, v int) Result[int] { return Ok(v * 2) })
	toStr := Stage[int, string](func(_ context.Context, v int) Result[string] { return Errf[string]("%d", v) })
	composed := Then(double, toStr)
	_, err := composed(context.Background(), 3).Unwrap()
	if err == nil || err.Error() != "6" {
		t.Fatalf("Then should feed first's output into second, got %v", err)
	}
}

func TestMapStageAndTap(t *testing.T) {
	var seen int
	tap := TapStage(func(_ context.Context, v int) { seen = v })
	square := MapStage(func(v int) int { return v * v })
	p := Pipeline(tap, square)
	if got := p(context.Background(), 4).Must(); got != 16 {
		t.Fatalf("pipeline = %d, want 16", got)
	}
	if seen != 4 {
		t.Fatalf("tap saw %d, want 4", seen)
	}
}

func TestTracedStagePropagatesError(t *testing.T) {
	fail := Stage[int, int](func(_ context.Context, _ int) Result[int] { return Err[int](errors.New("inner")) })
	traced := TracedStage("test", fail)
	_, err := traced(context.Background(), 1).Unwrap()
	if err == nil || err.Error() != "inner" {
		t.Fatal("TracedStage should pass through the stage error")
	}
}

// --- Parallel ---

func TestParMapResultOrder(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	out := ParMapResult(items, 2, func(v int) Result[int] { return Ok(v * 10) })
	for i, r := range out {
		if r.Must() != items[i]*10 {
			t.Fatalf("out[%d] = %v", i, r.Must())
		}
	}
}

func TestParMapResultEmpty(t *testing.T) {
	out := ParMapResult(nil, 4, func(v int) Result[int] { return Ok(v) })
	if len(out) != 0 {
		t.Fatal("empty input should give empty output")
	}
}

func TestParMapResultMixed(t *testing.T) {
	out := ParMapResult([]int{1, 2, 3}, 0, func(v int) Result[int] {
		if v == 2 {
			return Err[int](errors.New("two"))
		}
		return Ok(v)
	})
	vals, errs := Partition(out)
	if len(vals) != 2 || len(errs) != 1 {
		t.Fatalf("vals=%v errs=%v", vals, errs)
	}
}

func TestFanOutResult(t *testing.T) {
	r := FanOutResult(
		func() Result[int] { return Ok(1) },
		func() Result[int] { return Ok(2) },
	)
	vs := r.Must()
	if vs[0] != 1 || vs[1] != 2 {
		t.Fatalf("FanOutResult = %v", vs)
	}
}

// --- Slice helpers ---

func TestMapFilterReduce(t *testing.T) {
	doubled := Map([]int{1, 2, 3}, func(v int) int { return v * 2 })
	if doubled[2] != 6 {
		t.Fatalf("Map = %v", doubled)
	}
	evens := Filter([]int{1, 2, 3, 4}, func(v int) bool { return v%2 == 0 })
	if len(evens) != 2 {
		t.Fatalf("Filter = %v", evens)
	}
	sum := Reduce([]int{1, 2, 3}, 0, func(acc, v int) int { return acc + v })
	if sum != 6 {
		t.Fatalf("Reduce = %d", sum)
	}
	if Reduce([]int{}, 10, func(acc, v int) int { return acc + v }) != 10 {
		t.Fatal("Reduce empty should return init")
	}
}

func TestGroupBy(t *testing.T) {
	g := GroupBy([]string{"al", "st", "au"}, func(s string) byte { return s[0] })
	if len(g['a']) != 2 || len(g['s']) != 1 {
		t.Fatalf("GroupBy = %v", g)
	}
	if len(GroupBy([]int{}, func(v int) int { return v })) != 0 {
		t.Fatal("GroupBy empty should return empty map")
	}
}

func TestUniqueBy(t *testing.T) {
	type pair struct{ k, v int }
	out := UniqueBy([]pair{{1, 1}, {1, 2}, {2, 3}}, func(p pair) int { return p.k })
	if len(out) != 2 || out[0].v != 1 {
		t.Fatalf("UniqueBy = %v", out)
	}
}

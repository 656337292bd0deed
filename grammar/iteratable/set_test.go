package iteratable

import "testing"

func TestSetAddContains(t *testing.T) {
	S := NewSet(0)
	S.Add("a")
	S.Add("b")
	S.Add("a")
	if S.Size() != 2 {
		t.Errorf("expected set of size 2, got %d", S.Size())
	}
	if !S.Contains("b") || S.Contains("c") {
		t.Errorf("membership broken")
	}
}

func TestSetWorkQueue(t *testing.T) {
	S := NewSet(0)
	S.Add(1)
	S.IterateOnce()
	var visited []int
	for S.Next() {
		n := S.Item().(int)
		visited = append(visited, n)
		if n < 4 {
			S.Add(n + 1) // added items must be visited, too
		}
	}
	if len(visited) != 4 {
		t.Errorf("expected 4 visited items, got %v", visited)
	}
}

func TestSetDifferenceSubset(t *testing.T) {
	S := NewSet(0)
	for _, x := range []int{1, 2, 3, 4, 5} {
		S.Add(x)
	}
	D := NewSet(0)
	D.Add(2)
	D.Add(4)
	S.Difference(D)
	if S.Size() != 3 || S.Contains(2) || S.Contains(4) {
		t.Errorf("difference broken: %v", S.Values())
	}
	S.Subset(func(x interface{}) bool { return x.(int) > 1 })
	if S.Size() != 2 || S.Contains(1) {
		t.Errorf("subset broken: %v", S.Values())
	}
}

func TestSetEquals(t *testing.T) {
	A := NewSet(0)
	B := NewSet(0)
	A.Add("x")
	A.Add("y")
	B.Add("y")
	B.Add("x")
	if !A.Equals(B) {
		t.Errorf("sets with equal content should be equal regardless of order")
	}
	B.Add("z")
	if A.Equals(B) {
		t.Errorf("sets of different size should not be equal")
	}
}

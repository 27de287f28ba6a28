package user

import "testing"

func TestLevel(t *testing.T) {
	tests := []struct {
		xp   int
		want int
	}{
		{0, 1},
		{1, 1},
		{499, 1},
		{500, 2},
		{999, 2},
		{1000, 3},
		{1499, 3},
		{1500, 4},
		{1999, 4},
		{2000, 5},
		{2999, 5},
		{3000, 6},
		{4000, 7},
		{12000, 15},
	}
	for _, tt := range tests {
		if got := Level(tt.xp); got != tt.want {
			t.Errorf("Level(%d) = %d; want %d", tt.xp, got, tt.want)
		}
	}
}

func TestLevelNonDecreasing(t *testing.T) {
	prev := Level(0)
	for xp := 1; xp <= 5000; xp++ {
		lvl := Level(xp)
		if lvl < prev {
			t.Fatalf("Level(%d) = %d decreased from Level(%d) = %d", xp, lvl, xp-1, prev)
		}
		prev = lvl
	}
}

package services

import "testing"

func TestAssignRanks(t *testing.T) {
	tests := []struct {
		name     string
		averages []float64
		want     []uint
	}{
		{
			name:     "tie shares rank and next rank skips",
			averages: []float64{18, 15, 15, 10},
			want:     []uint{1, 2, 2, 4},
		},
		{
			name:     "no ties",
			averages: []float64{9, 14, 12},
			want:     []uint{1, 2, 3},
		},
		{
			name:     "all tied",
			averages: []float64{11, 11, 11},
			want:     []uint{1, 1, 1},
		},
		{
			name:     "triple tie at the top",
			averages: []float64{16, 16, 16, 12, 12, 8},
			want:     []uint{1, 1, 1, 4, 4, 6},
		},
		{
			name:     "single student",
			averages: []float64{7.5},
			want:     []uint{1},
		},
		{
			name:     "empty class",
			averages: nil,
			want:     nil,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			entries := make([]RankedStudent, 0, len(tc.averages))
			for i, avg := range tc.averages {
				entries = append(entries, RankedStudent{StudentID: uint(i + 1), Average: avg})
			}

			ranked := AssignRanks(entries)
			if len(ranked) != len(tc.want) {
				t.Fatalf("expected %d entries, got %d", len(tc.want), len(ranked))
			}
			for i, want := range tc.want {
				if ranked[i].Rank != want {
					t.Fatalf("position %d: expected rank %d, got %d (average %v)",
						i, want, ranked[i].Rank, ranked[i].Average)
				}
			}
		})
	}
}

func TestAssignRanksSortsDescending(t *testing.T) {
	entries := []RankedStudent{
		{StudentID: 1, Average: 10},
		{StudentID: 2, Average: 18},
		{StudentID: 3, Average: 14},
	}
	ranked := AssignRanks(entries)

	wantOrder := []uint{2, 3, 1}
	for i, id := range wantOrder {
		if ranked[i].StudentID != id {
			t.Fatalf("position %d: expected student %d, got %d", i, id, ranked[i].StudentID)
		}
	}
}

func TestAssignRanksStableForTies(t *testing.T) {
	// Tied students keep their incoming (alphabetical) order.
	entries := []RankedStudent{
		{StudentID: 1, Student: "Abanda Jean", Average: 15},
		{StudentID: 2, Student: "Biya Marie", Average: 15},
	}
	ranked := AssignRanks(entries)
	if ranked[0].StudentID != 1 || ranked[1].StudentID != 2 {
		t.Fatalf("tied students were reordered: %v, %v", ranked[0].Student, ranked[1].Student)
	}
	if ranked[0].Rank != 1 || ranked[1].Rank != 1 {
		t.Fatalf("expected shared rank 1, got %d and %d", ranked[0].Rank, ranked[1].Rank)
	}
}

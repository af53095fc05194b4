package services

import "testing"

func TestWeightedAverage(t *testing.T) {
	tests := []struct {
		name    string
		entries []WeightedEntry
		want    float64
		wantNil bool
	}{
		{
			name: "two subjects with different coefficients",
			entries: []WeightedEntry{
				{Value: 15, Weight: 2},
				{Value: 10, Weight: 3},
			},
			want: 12,
		},
		{
			name: "uneven weights round to two decimals",
			entries: []WeightedEntry{
				{Value: 12, Weight: 4},
				{Value: 14, Weight: 2},
				{Value: 8, Weight: 1},
			},
			want: 12,
		},
		{
			name: "single entry",
			entries: []WeightedEntry{
				{Value: 13.333, Weight: 5},
			},
			want: 13.33,
		},
		{
			name:    "no entries",
			entries: nil,
			wantNil: true,
		},
		{
			name: "zero total weight",
			entries: []WeightedEntry{
				{Value: 15, Weight: 0},
			},
			wantNil: true,
		},
		{
			name: "classic report card example",
			entries: []WeightedEntry{
				{Value: 15, Weight: 3},
				{Value: 10, Weight: 1},
			},
			want: 13.75,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := WeightedAverage(tc.entries)
			if tc.wantNil {
				if got != nil {
					t.Fatalf("expected nil average, got %v", *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("expected %v, got nil", tc.want)
			}
			if *got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, *got)
			}
		})
	}
}

func TestWeightedAverageSkipsNothingItself(t *testing.T) {
	// Callers are responsible for dropping nil levels before calling; a zero
	// value entry still counts.
	got := WeightedAverage([]WeightedEntry{{Value: 0, Weight: 2}, {Value: 10, Weight: 2}})
	if got == nil || *got != 5 {
		t.Fatalf("expected 5, got %v", got)
	}
}

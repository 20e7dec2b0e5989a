package match

import (
	"errors"
	"testing"
)

func TestWobble(t *testing.T) {
	tests := []struct {
		name      string
		read      string
		w         Window
		fn        DistanceFunc
		wantOff   int
		wantFound bool
	}{
		{
			name:      "earliest offset wins",
			read:      "NNCATGNN",
			w:         Window{Ref: "CATG", MaxWobble: 5},
			wantOff:   2,
			wantFound: true,
		},
		{
			name:      "earliest acceptable beats better score",
			read:      "CATTCATG",
			w:         Window{Ref: "CATG", MaxWobble: 4, MaxMismatch: 1},
			wantOff:   0,
			wantFound: true,
		},
		{
			name:      "anchor after wobble",
			read:      "NNNGGGTACCTAG",
			w:         Window{Ref: "GGGTAC", MaxWobble: 3},
			wantOff:   3,
			wantFound: true,
		},
		{
			name:      "outside wobble window",
			read:      "NNNNGGGTAC",
			w:         Window{Ref: "GGGTAC", MaxWobble: 3},
			wantFound: false,
		},
		{
			name:      "base offset is absolute",
			read:      "CATGNNCATG",
			w:         Window{Ref: "CATG", BaseOffset: 2, MaxWobble: 5},
			wantOff:   6,
			wantFound: true,
		},
		{
			name:      "offset is not relative to base",
			read:      "NNNNCATGNN",
			w:         Window{Ref: "CATG", BaseOffset: 2, MaxWobble: 3},
			wantOff:   4,
			wantFound: true,
		},
		{
			name:      "window runs off read end",
			read:      "NNCAT",
			w:         Window{Ref: "CATG", MaxWobble: 5},
			wantFound: false,
		},
		{
			name:      "blind metric",
			read:      "NCCCG",
			w:         Window{Ref: "TTTT", MaxWobble: 2},
			fn:        Blind('T', 'C'),
			wantFound: false,
		},
		{
			name:      "blind metric shifted",
			read:      "GCCCC",
			w:         Window{Ref: "TTTT", MaxWobble: 2},
			fn:        Blind('T', 'C'),
			wantOff:   1,
			wantFound: true,
		},
		{
			name:      "negative base offset",
			read:      "CATG",
			w:         Window{Ref: "CATG", BaseOffset: -1, MaxWobble: 3},
			wantFound: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			off, found, err := Wobble(tt.read, tt.w, tt.fn)
			if err != nil {
				t.Fatalf("Wobble() error = %v", err)
			}
			if found != tt.wantFound {
				t.Fatalf("Wobble() found = %v, want %v", found, tt.wantFound)
			}
			if found && off != tt.wantOff {
				t.Errorf("Wobble() offset = %d, want %d", off, tt.wantOff)
			}
		})
	}
}

func TestWobbleDistanceError(t *testing.T) {
	boom := errors.New("boom")
	_, _, err := Wobble("ACGT", Window{Ref: "AC"}, func(string, string) (int, error) {
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Wobble() error = %v, want %v", err, boom)
	}
}

package topology

import (
	"fmt"
	"testing"

	"github.com/bsaid97/go-ladm-topology/layer"
)

// grid returns the WKT of the unit-10 squares of a 3x3 grid, skipping the
// cells listed in skip as "col,row".
func grid(skip ...string) []string {
	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipped[s] = true
	}
	wkts := make([]string, 0, 9)
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			if skipped[fmt.Sprintf("%d,%d", col, row)] {
				continue
			}
			x, y := col*10, row*10
			wkts = append(wkts, fmt.Sprintf("POLYGON ((%d %d, %d %d, %d %d, %d %d, %d %d))",
				x, y, x+10, y, x+10, y+10, x, y+10, x, y))
		}
	}
	return wkts
}

func TestGaps(t *testing.T) {
	tests := []struct {
		name         string
		wkts         []string
		includeRoads bool
		expected     int
		area         float64
	}{
		{"full mosaic", grid(), false, 0, 0},
		{"full mosaic with roads", grid(), true, 0, 0},
		{"missing centre", grid("1,1"), false, 1, 100},
		{"missing centre with roads", grid("1,1"), true, 1, 100},
		{"missing edge cell", grid("1,0"), false, 0, 0},
		{"missing edge cell with roads", grid("1,0"), true, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			polygons := newLayer(t, "plots", layer.KindPolygon, tt.wkts...)
			gaps, issues := testEngine().Gaps(polygons, tt.includeRoads)
			if len(issues) != 0 {
				t.Fatalf("expected no issues, got %v", issues)
			}
			if len(gaps) != tt.expected {
				t.Fatalf("expected %d gaps, got %d", tt.expected, len(gaps))
			}
			if tt.expected == 0 {
				if gaps != nil {
					t.Errorf("expected nil gaps, got %v", gaps)
				}
				return
			}
			if area := gaps[0].Area(); area != tt.area {
				t.Errorf("expected gap area %v, got %v", tt.area, area)
			}
		})
	}
}

func TestGapsEmptyLayer(t *testing.T) {
	gaps, _ := testEngine().Gaps(layer.New("plots", layer.KindPolygon), false)
	if gaps != nil {
		t.Errorf("expected nil, got %v", gaps)
	}
}

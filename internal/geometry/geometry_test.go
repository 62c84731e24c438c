package geometry

import (
	"math"
	"testing"
)

const eps = 1e-9

func near(a, b float64) bool { return math.Abs(a-b) <= eps*math.Max(1, math.Abs(a)) }

func TestFitScale(t *testing.T) {
	tests := []struct {
		name                string
		iw, ih, cw, ch, pad float64
		want                float64
	}{
		{"fits without scaling", 400, 200, 800, 600, 20, 1},
		{"width bound", 2000, 500, 1020, 1000, 10, 0.5},
		{"height bound", 500, 1200, 1000, 620, 10, 0.5},
		{"zero image", 0, 500, 1000, 1000, 0, 1},
		{"zero container", 500, 500, 0, 1000, 0, 1},
		{"nan", math.NaN(), 500, 1000, 1000, 0, 1},
		{"padding larger than container", 2000, 2000, 100, 100, 80, 0.05},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FitScale(tt.iw, tt.ih, tt.cw, tt.ch, tt.pad)
			if !near(got, tt.want) {
				t.Fatalf("FitScale = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScreenImageRoundTrip(t *testing.T) {
	origins := []Point{{0, 0}, {12.5, -3}, {300, 41.25}}
	scales := []float64{0.01, 0.25, 0.5, 1, 1.7, 3}
	points := []Point{{0, 0}, {1, 1}, {123.456, 789.01}, {-50, 20}, {1e5, 3}}

	for _, o := range origins {
		for _, s := range scales {
			for _, p := range points {
				got := ImageToScreen(ScreenToImage(p, o, s), o, s)
				if !near(got.X, p.X) || !near(got.Y, p.Y) {
					t.Errorf("round trip of %v (origin %v, scale %v) = %v", p, o, s, got)
				}
			}
		}
	}
}

func TestClampIdempotent(t *testing.T) {
	boxes := []Box{
		{X: -10, Y: -10, Width: 50, Height: 20},
		{X: 990, Y: 590, Width: 50, Height: 20},
		{X: 10, Y: 10, Width: 2000, Height: 20},
		{X: 500, Y: 300, Width: 40, Height: 40},
	}
	dims := [][2]float64{{1000, 600}, {30, 30}, {0, 0}}

	for _, b := range boxes {
		for _, d := range dims {
			once := Clamp(b.X, b.Y, b.Width, b.Height, d[0], d[1])
			twice := Clamp(once.X, once.Y, b.Width, b.Height, d[0], d[1])
			if once != twice {
				t.Errorf("Clamp not idempotent for %v in %v: %v then %v", b, d, once, twice)
			}

			cb := ClampBox(b, d[0], d[1])
			if again := ClampBox(cb, d[0], d[1]); again != cb {
				t.Errorf("ClampBox not idempotent for %v in %v: %v then %v", b, d, cb, again)
			}
		}
	}
}

func TestClampKeepsBoxInside(t *testing.T) {
	p := Clamp(980, -5, 50, 20, 1000, 600)
	if p.X != 950 || p.Y != 0 {
		t.Fatalf("Clamp = %v, want {950 0}", p)
	}

	b := ClampBox(Box{X: 10, Y: 10, Width: 1200, Height: 20}, 1000, 600)
	if b.X != 0 || b.Width != 1000 {
		t.Fatalf("ClampBox = %+v", b)
	}
}

func TestFromCornersNormalizes(t *testing.T) {
	b := FromCorners(Point{X: 60, Y: 10}, Point{X: 10, Y: 30})
	want := Box{X: 10, Y: 10, Width: 50, Height: 20}
	if b != want {
		t.Fatalf("FromCorners = %+v, want %+v", b, want)
	}
}

func TestCornerOpposite(t *testing.T) {
	b := Box{X: 1, Y: 2, Width: 3, Height: 4}
	for _, c := range Corners {
		if c.Opposite().Opposite() != c {
			t.Errorf("%v opposite twice = %v", c, c.Opposite().Opposite())
		}
		p, q := b.Corner(c), b.Corner(c.Opposite())
		if FromCorners(p, q) != b {
			t.Errorf("%v and its opposite do not span the box", c)
		}
	}
}

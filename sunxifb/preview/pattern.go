package preview

const (
	checkerboardTileSize = 8
	stripeWidth          = 4
	diagonalTileSize     = 8
	maxLuma              = 235
	minLuma              = 16
	neutralChroma        = 128

	stripeAnimationSpeed   = 2
	diagonalAnimationSpeed = 4
)

// Pattern selects a generated test image.
type Pattern int

const (
	Checkerboard Pattern = iota
	Gradient
	Stripes
	Diagonal
)

// PatternCount is the number of cycling patterns.
const PatternCount = 4

func (p Pattern) String() string {
	switch p {
	case Checkerboard:
		return "Checkerboard"
	case Gradient:
		return "Gradient"
	case Stripes:
		return "Stripes"
	case Diagonal:
		return "Diagonal"
	}
	return "Unknown"
}

// TestFrame renders one animated I420 test frame: luma carries the
// pattern, both chroma planes stay neutral grey. The returned buffer is
// width×height×3/2 bytes in standard plane order.
func TestFrame(p Pattern, width, height, frame int) []byte {
	buf := make([]byte, width*height*3/2)
	luma := buf[:width*height]
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			luma[y*width+x] = lumaAt(p, x, y, width, frame)
		}
	}
	chroma := buf[width*height:]
	for i := range chroma {
		chroma[i] = neutralChroma
	}
	return buf
}

func lumaAt(p Pattern, x, y, width, frame int) byte {
	switch p {
	case Checkerboard:
		if ((x/checkerboardTileSize)+(y/checkerboardTileSize))%2 == 0 {
			return maxLuma
		}
		return minLuma
	case Gradient:
		return byte(minLuma + x*(maxLuma-minLuma)/width)
	case Stripes:
		if ((x+frame*stripeAnimationSpeed)/stripeWidth)%2 == 0 {
			return maxLuma
		}
		return minLuma
	case Diagonal:
		if ((x+y+frame*diagonalAnimationSpeed)/diagonalTileSize)%2 == 0 {
			return maxLuma
		}
		return minLuma
	}
	return minLuma
}

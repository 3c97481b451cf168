package camera

import (
	"image"
	"image/color"
	"testing"
)

func solidGray(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func TestAbsDiff(t *testing.T) {
	if got := absDiff(10, 20); got != 10 {
		t.Errorf("absDiff(10,20) = %d, want 10", got)
	}
	if got := absDiff(20, 10); got != 10 {
		t.Errorf("absDiff(20,10) = %d, want 10", got)
	}
	if got := absDiff(5, 5); got != 0 {
		t.Errorf("absDiff(5,5) = %d, want 0", got)
	}
}

func TestClip(t *testing.T) {
	if got := clip(-5, 0, 10); got != 0 {
		t.Errorf("clip(-5,0,10) = %d, want 0", got)
	}
	if got := clip(15, 0, 10); got != 10 {
		t.Errorf("clip(15,0,10) = %d, want 10", got)
	}
	if got := clip(5, 0, 10); got != 5 {
		t.Errorf("clip(5,0,10) = %d, want 5", got)
	}
}

func TestMotionMaskStaticFrameIsEmpty(t *testing.T) {
	a := solidGray(20, 20, 100)
	b := solidGray(20, 20, 100)
	c := solidGray(20, 20, 100)

	mask := motionMask(a, b, c)
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			if mask.GrayAt(x, y).Y != 0 {
				t.Fatalf("expected no motion at (%d,%d) for identical frames", x, y)
			}
		}
	}
}

func TestMotionMaskDetectsLargeChange(t *testing.T) {
	a := solidGray(20, 20, 20)
	b := solidGray(20, 20, 20)
	c := solidGray(20, 20, 220)

	mask := motionMask(a, b, c)
	var any uint8
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			any |= mask.GrayAt(x, y).Y
		}
	}
	if any == 0 {
		t.Error("expected motionMask to flag a large brightness swing")
	}
}

func TestErodeRemovesIsolatedPixel(t *testing.T) {
	mask := image.NewGray(image.Rect(0, 0, 10, 10))
	mask.SetGray(5, 5, color.Gray{Y: 255})

	out := erode(mask, 2)
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			if out.GrayAt(x, y).Y == 255 {
				t.Fatalf("erode should remove an isolated pixel, found survivor at (%d,%d)", x, y)
			}
		}
	}
}

func TestErodeKeepsSolidBlock(t *testing.T) {
	mask := image.NewGray(image.Rect(0, 0, 10, 10))
	for y := 2; y < 8; y++ {
		for x := 2; x < 8; x++ {
			mask.SetGray(x, y, color.Gray{Y: 255})
		}
	}

	out := erode(mask, 2)
	if out.GrayAt(3, 3).Y != 255 {
		t.Error("expected the interior of a solid block to survive erosion")
	}
}

func TestStddevZeroForUniformMask(t *testing.T) {
	mask := solidGray(10, 10, 0)
	grayMask := image.NewGray(mask.Bounds())
	copy(grayMask.Pix, mask.Pix)

	if got := stddev(grayMask); got != 0 {
		t.Errorf("stddev of a uniform mask = %v, want 0", got)
	}
}

func TestDetectMotionRejectsHighDeviation(t *testing.T) {
	mask := image.NewGray(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			if (x+y)%2 == 0 {
				mask.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}

	_, _, rejected := detectMotion(mask, 1)
	if !rejected {
		t.Error("expected a noisy checkerboard mask to be rejected at a tight deviation threshold")
	}
}

func TestDetectMotionFindsBoundingBox(t *testing.T) {
	mask := image.NewGray(image.Rect(0, 0, 100, 100))
	for y := 40; y < 60; y++ {
		for x := 40; x < 60; x++ {
			mask.SetGray(x, y, color.Gray{Y: 255})
		}
	}

	changes, bbox, rejected := detectMotion(mask, 100)
	if rejected {
		t.Fatal("expected the frame not to be rejected")
	}
	if changes == 0 {
		t.Fatal("expected changes > 0 for a populated region")
	}
	if bbox.Min.X > 40 || bbox.Max.X < 59 || bbox.Min.Y > 40 || bbox.Max.Y < 59 {
		t.Errorf("bbox %v does not cover the populated region", bbox)
	}
}

func TestDetectMotionNoChangesWhenMaskEmpty(t *testing.T) {
	mask := image.NewGray(image.Rect(0, 0, 20, 20))
	changes, _, rejected := detectMotion(mask, 100)
	if rejected {
		t.Fatal("an all-zero mask should not be rejected as noise")
	}
	if changes != 0 {
		t.Errorf("changes = %d, want 0 for an empty mask", changes)
	}
}

func TestRingBufferEvictsOldestPastCapacity(t *testing.T) {
	r := newRingBuffer(2)
	r.push(frameAt(1))
	r.push(frameAt(2))
	r.push(frameAt(3))

	items := r.drain()
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if items[0].At.Unix() != 2 || items[1].At.Unix() != 3 {
		t.Errorf("items = %+v, want frames 2 and 3", items)
	}
}

func TestRingBufferDrainClearsBuffer(t *testing.T) {
	r := newRingBuffer(4)
	r.push(frameAt(1))
	_ = r.drain()

	if len(r.items) != 0 {
		t.Error("expected drain to empty the buffer")
	}
}

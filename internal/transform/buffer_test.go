package transform

import (
	"sync"
	"testing"

	"github.com/vovakirdan/rollback-engine/internal/maths"
)

func TestDefaultTransformIsZero(t *testing.T) {
	var tr Transform2
	if !tr.Pos.IsZero() || !tr.Scale.IsZero() || !tr.Rotation.IsZero() {
		t.Errorf("zero value = %s, expected all zeros", tr)
	}
}

func TestTranslate(t *testing.T) {
	tr := At(maths.V2(1, 2)).Translate(maths.V2(3, -4))
	if tr.Pos != maths.V2(4, -2) {
		t.Errorf("Pos = %s, expected (4, -2)", tr.Pos)
	}
	if tr.Scale != maths.V2(1, 1) {
		t.Errorf("Scale = %s, expected unit", tr.Scale)
	}
}

func TestToPose(t *testing.T) {
	p := ToPose(Transform2{Pos: maths.NewVector2(maths.MustParse("1.5"), maths.FromInt(-2))})
	if p.X != 1.5 || p.Y != -2 {
		t.Errorf("pose = %+v", p)
	}
}

func TestBufferPublishCopies(t *testing.T) {
	b := NewBuffer()
	items := []Item{{Entity: 1, Pose: Pose{X: 1}}}
	b.Publish(Frame{Tick: 3, Items: items})

	// Mutating the caller's slice must not leak into the buffer.
	items[0].Pose.X = 99

	f, v := b.Read()
	if v != 1 {
		t.Errorf("version = %d, expected 1", v)
	}
	if f.Tick != 3 || f.Items[0].Pose.X != 1 {
		t.Errorf("frame = %+v", f)
	}

	// Nor must mutating what Read returned.
	f.Items[0].Pose.X = 42
	again, _ := b.Read()
	if again.Items[0].Pose.X != 1 {
		t.Error("Read returned shared storage")
	}
}

func TestBufferConcurrentReaders(t *testing.T) {
	b := NewBuffer()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := int64(1); i <= 200; i++ {
			b.Publish(Frame{Tick: i, Items: []Item{{Entity: uint32(i), Pose: Pose{X: float64(i)}}}})
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				f, _ := b.Read()
				// Each frame is internally consistent.
				if len(f.Items) == 1 && int64(f.Items[0].Entity) != f.Tick {
					t.Errorf("torn frame: tick %d entity %d", f.Tick, f.Items[0].Entity)
					return
				}
			}
		}()
	}
	wg.Wait()
}

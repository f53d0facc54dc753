package frames

import (
	"fmt"
	"sync/atomic"
	"time"
)

var frameCounter uint64

// Frame is the base interface for every message exchanged on the
// supervisor's channels. Carrier readers and the model-session reader only
// produce frames; the supervisor is the only component that acts on them.
type Frame interface {
	ID() uint64
	Name() string
	PTS() time.Time
	String() string
}

// BaseFrame provides common frame functionality
type BaseFrame struct {
	id   uint64
	name string
	pts  time.Time
}

func NewBaseFrame(name string) *BaseFrame {
	return &BaseFrame{
		id:   atomic.AddUint64(&frameCounter, 1),
		name: name,
		pts:  time.Now(),
	}
}

func (f *BaseFrame) ID() uint64 {
	return f.id
}

func (f *BaseFrame) Name() string {
	return f.name
}

func (f *BaseFrame) PTS() time.Time {
	return f.pts
}

func (f *BaseFrame) String() string {
	return fmt.Sprintf("%s[id=%d, pts=%v]", f.name, f.id, f.pts.Format("15:04:05.000"))
}

// FrameCategory distinguishes media frames from call-control frames.
// Control frames may overtake buffered media on the outbound path
// (interruption handling drains media but never control).
type FrameCategory int

const (
	ControlCategory FrameCategory = iota
	MediaCategory
)

func (c FrameCategory) String() string {
	switch c {
	case ControlCategory:
		return "control"
	case MediaCategory:
		return "media"
	default:
		return "unknown"
	}
}

// Categorizable frames can report their category
type Categorizable interface {
	Category() FrameCategory
}

package keepalive

import "sync"

// Pointer moves the on-screen pointer.
type Pointer interface {
	Position() (x, y int)
	Move(x, y int) error
	// Bounds returns the size of the screen the pointer is on.
	Bounds() (width, height int)
}

// VirtualPointer is an in-memory Pointer on a fixed-size screen.
type VirtualPointer struct {
	mu            sync.Mutex
	x, y          int
	width, height int
}

// NewVirtualPointer creates a pointer at the origin of a width x height screen.
func NewVirtualPointer(width, height int) *VirtualPointer {
	return &VirtualPointer{width: width, height: height}
}

func (p *VirtualPointer) Position() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.x, p.y
}

func (p *VirtualPointer) Move(x, y int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.x, p.y = x, y
	return nil
}

func (p *VirtualPointer) Bounds() (int, int) {
	return p.width, p.height
}

// nextPosition steps diagonally by one, alternating direction with the
// parity of x, and returns to the origin at the screen edge.
func nextPosition(x, y, width, height int) (int, int) {
	if x < width-1 && y < height-1 {
		step := 1
		if x%2 != 0 {
			step = -1
		}
		return x + step, y + step
	}
	return 0, 0
}

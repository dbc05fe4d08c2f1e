package plugin

import "sync"

// Default dashboard placement for plugins whose descriptor does not set one.
const (
	DefaultDashboardRow      = 1
	DefaultDashboardColumn   = 1
	DefaultDashboardPosition = 100
)

// DashboardSettings stores the placement fields of Renderer and implements
// DashboardConfigurable. Embed it and add DashboardData to get a Renderer.
// Call ResetDashboard from the constructor to apply the default placement.
type DashboardSettings struct {
	mu       sync.RWMutex
	name     string
	enabled  bool
	row      int
	column   int
	position int
}

// ResetDashboard sets the panel name and restores the default placement:
// disabled, row 1, column 1, position 100.
func (d *DashboardSettings) ResetDashboard(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.name = name
	d.enabled = false
	d.row = DefaultDashboardRow
	d.column = DefaultDashboardColumn
	d.position = DefaultDashboardPosition
}

func (d *DashboardSettings) DashboardName() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.name
}

func (d *DashboardSettings) DashboardEnabled() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.enabled
}

func (d *DashboardSettings) DashboardRow() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.row
}

func (d *DashboardSettings) DashboardColumn() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.column
}

func (d *DashboardSettings) DashboardPosition() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.position
}

// SetDashboardName changes the panel title.
func (d *DashboardSettings) SetDashboardName(name string) {
	d.mu.Lock()
	d.name = name
	d.mu.Unlock()
}

func (d *DashboardSettings) SetDashboardEnabled(enabled bool) {
	d.mu.Lock()
	d.enabled = enabled
	d.mu.Unlock()
}

func (d *DashboardSettings) SetDashboardRow(row int) {
	d.mu.Lock()
	d.row = row
	d.mu.Unlock()
}

func (d *DashboardSettings) SetDashboardColumn(column int) {
	d.mu.Lock()
	d.column = column
	d.mu.Unlock()
}

func (d *DashboardSettings) SetDashboardPosition(position int) {
	d.mu.Lock()
	d.position = position
	d.mu.Unlock()
}

package dashboard

import (
	"fmt"
	"sort"

	"github.com/funproject/fun/internal/log"
	"github.com/funproject/fun/internal/plugin"
)

// Cell is one renderer placed in a column.
type Cell struct {
	Column   int
	Renderer plugin.Renderer
}

// Row is one grid row with its cells ordered by column.
type Row struct {
	Index int
	Cells []Cell
}

// Grid is the frame layout, rows ordered by index.
type Grid []Row

// BuildGrid places every enabled renderer at its (row, column). Rows and
// columns are sorted ascending. When two renderers claim the same cell the
// one with the lower position wins; on equal positions the later one in
// renderers wins. A renderer that panics while reporting its placement is
// left out.
func BuildGrid(renderers []plugin.Renderer) Grid {
	type claim struct {
		renderer plugin.Renderer
		position int
	}
	cells := make(map[int]map[int]claim)
	for _, r := range renderers {
		if r == nil {
			continue
		}
		pl, err := placementOf(r)
		if err != nil {
			log.ErrorErr(log.CatDashboard, "Skipping dashboard renderer", err, "plugin", safeName(r))
			continue
		}
		if !pl.enabled {
			continue
		}
		cols, ok := cells[pl.row]
		if !ok {
			cols = make(map[int]claim)
			cells[pl.row] = cols
		}
		if cur, taken := cols[pl.column]; taken && cur.position < pl.position {
			continue
		}
		cols[pl.column] = claim{renderer: r, position: pl.position}
	}

	grid := make(Grid, 0, len(cells))
	for idx, cols := range cells {
		row := Row{Index: idx, Cells: make([]Cell, 0, len(cols))}
		for c, cl := range cols {
			row.Cells = append(row.Cells, Cell{Column: c, Renderer: cl.renderer})
		}
		sort.Slice(row.Cells, func(i, j int) bool { return row.Cells[i].Column < row.Cells[j].Column })
		grid = append(grid, row)
	}
	sort.Slice(grid, func(i, j int) bool { return grid[i].Index < grid[j].Index })
	return grid
}

// Enabled reports whether r wants a panel. A renderer that panics is treated
// as disabled.
func Enabled(r plugin.Renderer) bool {
	pl, err := placementOf(r)
	return err == nil && pl.enabled
}

type placement struct {
	enabled  bool
	row      int
	column   int
	position int
}

func placementOf(r plugin.Renderer) (pl placement, err error) {
	defer func() {
		if p := recover(); p != nil {
			pl = placement{}
			err = fmt.Errorf("dashboard placement panic: %v", p)
		}
	}()
	pl.enabled = r.DashboardEnabled()
	if !pl.enabled {
		return pl, nil
	}
	pl.row, pl.column, pl.position = r.DashboardRow(), r.DashboardColumn(), r.DashboardPosition()
	return pl, nil
}

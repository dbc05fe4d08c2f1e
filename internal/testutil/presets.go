package testutil

// ClockScript is a Lua plugin with a "tick" action and a dashboard panel.
const ClockScript = `
local ticks = 0

plugin = {
  name = "Clock",
  actions = {
    tick = function() ticks = ticks + 1 end,
  },
  dashboard = function()
    return {
      {"Time", fun.clock()},
      {"Ticks", tostring(ticks)},
    }
  end,
}
`

// WithClockPlugin adds the Lua clock plugin in dir: enabled by -cl/--clock,
// F5 bound to "tick", panel in row 1, column 3.
func (b *Builder) WithClockPlugin(dir string) *Builder {
	b.t.Helper()
	return b.
		WithPlugin(dir, "Clock",
			Class("lua:clock.lua"),
			Description("Shows the time"),
			Enabler("cl", "clock", "Show the clock"),
			Shortcut("F5", "tick"),
			Panel(1, 3, 30)).
		WithFile(dir+"/clock.lua", ClockScript)
}

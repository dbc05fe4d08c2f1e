package testutil

// descriptorData is the on-disk shape of a plugin.yaml.
type descriptorData struct {
	Name        string         `yaml:"name,omitempty"`
	PluginClass string         `yaml:"pluginClass,omitempty"`
	Description string         `yaml:"description,omitempty"`
	Option      []optionData   `yaml:"option,omitempty"`
	Params      []optionData   `yaml:"params,omitempty"`
	Shortcuts   []shortcutData `yaml:"shortcuts,omitempty"`
	Dashboard   *dashboardData `yaml:"dashboard,omitempty"`
}

type optionData struct {
	ShortOpt     string `yaml:"shortOpt"`
	LongOpt      string `yaml:"longOpt"`
	HasArguments bool   `yaml:"hasArguments,omitempty"`
	Description  string `yaml:"description,omitempty"`
}

type shortcutData struct {
	Key    string `yaml:"key"`
	Action string `yaml:"action"`
}

type dashboardData struct {
	Enabled  bool `yaml:"enabled"`
	Row      int  `yaml:"row"`
	Column   int  `yaml:"column"`
	Position int  `yaml:"position"`
}

// DescriptorOption configures a descriptor.
type DescriptorOption func(*descriptorData)

// Class sets pluginClass.
func Class(typeID string) DescriptorOption {
	return func(d *descriptorData) { d.PluginClass = typeID }
}

// Description sets the description.
func Description(text string) DescriptorOption {
	return func(d *descriptorData) { d.Description = text }
}

// Enabler adds an option that starts the plugin.
func Enabler(short, long, description string) DescriptorOption {
	return func(d *descriptorData) {
		d.Option = append(d.Option, optionData{ShortOpt: short, LongOpt: long, Description: description})
	}
}

// Param adds a parameter. hasArg marks it as taking a value.
func Param(short, long string, hasArg bool, description string) DescriptorOption {
	return func(d *descriptorData) {
		d.Params = append(d.Params, optionData{ShortOpt: short, LongOpt: long, HasArguments: hasArg, Description: description})
	}
}

// Shortcut binds key to action.
func Shortcut(key, action string) DescriptorOption {
	return func(d *descriptorData) {
		d.Shortcuts = append(d.Shortcuts, shortcutData{Key: key, Action: action})
	}
}

// Panel enables the dashboard panel at the given placement.
func Panel(row, column, position int) DescriptorOption {
	return func(d *descriptorData) {
		d.Dashboard = &dashboardData{Enabled: true, Row: row, Column: column, Position: position}
	}
}

// Package sym defines canonical symbols for hireflow subsystems.
// Symbols are attached to log lines as a structured field so logs can be
// filtered per subsystem without parsing messages.
package sym

// Subsystem symbols.
const (
	Pulse      = "꩜" // automation scheduler (auto-publish, auto-expire)
	PulseOpen  = "✿" // graceful startup
	PulseClose = "❀" // graceful shutdown
	DB         = "⊔" // database/storage layer
	SO         = "⟶" // applied workflow transition
	BY         = "⌬" // actors, permission decisions, access-denial telemetry
	AT         = "✦" // time-driven eligibility (scheduled/expiry dates)
	AM         = "≡" // configuration
)

// entry binds a glyph to the subsystem name used in CLI output and docs.
type entry struct {
	glyph       string
	name        string
	description string
}

var registry = []entry{
	{Pulse, "pulse", "Automation scheduler"},
	{PulseOpen, "pulse-open", "Graceful startup"},
	{PulseClose, "pulse-close", "Graceful shutdown"},
	{DB, "db", "Database/storage layer"},
	{SO, "so", "Applied workflow transition"},
	{BY, "by", "Actor and permission decisions"},
	{AT, "at", "Time-driven eligibility"},
	{AM, "am", "Configuration"},
}

// NameToSymbol maps subsystem names to glyphs.
var NameToSymbol = map[string]string{}

// SymbolToName maps glyphs to subsystem names.
var SymbolToName = map[string]string{}

// Descriptions maps glyphs to a human-readable description.
var Descriptions = map[string]string{}

func init() {
	for _, e := range registry {
		NameToSymbol[e.name] = e.glyph
		SymbolToName[e.glyph] = e.name
		Descriptions[e.glyph] = e.description
	}
}

// FromName returns the glyph for a subsystem name, or "" if unknown.
func FromName(name string) string {
	return NameToSymbol[name]
}

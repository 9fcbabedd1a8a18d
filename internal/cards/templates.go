package cards

import "strings"

// BuiltInTemplatePrefix namespaces the ids of templates shipped with the app.
// Stored decks reference these ids, so they must never change.
const BuiltInTemplatePrefix = "BUILT_IN_TEMPLATE:"

// Ids of the built-in templates.
var (
	TemplateBlankID       = BuiltInTemplateID("blank")
	TemplatePlayingCardID = BuiltInTemplateID("playing-card")
	TemplateCardBackID    = BuiltInTemplateID("card-back")
)

// BuiltInTemplateID returns the namespaced id of a built-in template.
func BuiltInTemplateID(name string) string {
	return BuiltInTemplatePrefix + name
}

// IsBuiltInTemplateID reports whether id is in the built-in namespace.
func IsBuiltInTemplateID(id string) bool {
	return strings.HasPrefix(id, BuiltInTemplatePrefix)
}

// BuiltInTemplateIDs returns the ids of every built-in template.
func BuiltInTemplateIDs() []string {
	return []string{TemplateBlankID, TemplatePlayingCardID, TemplateCardBackID}
}

// BuiltInTemplates returns fresh copies of every built-in template.
func BuiltInTemplates() []*Template {
	return []*Template{
		{
			ID:          TemplateBlankID,
			Name:        "Blank",
			Schema:      map[string]SchemaItem{},
			SchemaOrder: []string{},
			Markup:      `<div class="card"></div>`,
		},
		{
			ID:   TemplatePlayingCardID,
			Name: "Playing Card",
			Schema: map[string]SchemaItem{
				"value": {ID: "value", Name: "Value", Type: DataTypeText, DefaultValue: TextValue("A")},
				"suit":  {ID: "suit", Name: "Suit", Type: DataTypeText, DefaultValue: TextValue("♠")},
				"color": {ID: "color", Name: "Color", Type: DataTypeColor, DefaultValue: Value{Type: DataTypeColor, Value: "#000000"}},
			},
			SchemaOrder: []string{"value", "suit", "color"},
			Markup:      `<div class="card" style="color: {{color}}"><span class="value">{{value}}</span><span class="suit">{{suit}}</span></div>`,
		},
		{
			ID:   TemplateCardBackID,
			Name: "Card Back",
			Schema: map[string]SchemaItem{
				"background": {ID: "background", Name: "Background", Type: DataTypeColor, DefaultValue: Value{Type: DataTypeColor, Value: "#1e3a8a"}},
			},
			SchemaOrder: []string{"background"},
			Markup:      `<div class="card back" style="background: {{background}}"></div>`,
		},
	}
}

// SeedBuiltInTemplates makes sure every built-in template is present in t,
// restoring any that are missing. Existing entries are left untouched.
func SeedBuiltInTemplates(t *Table[*Template]) {
	for _, tpl := range BuiltInTemplates() {
		if !t.Has(tpl.ID) {
			t.Upsert(tpl)
		}
	}
}

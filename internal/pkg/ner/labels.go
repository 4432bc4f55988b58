package ner

// Entity labels.
const (
	LabelPerson    = "PERSON"
	LabelNORP      = "NORP"
	LabelFacility  = "FAC"
	LabelOrg       = "ORG"
	LabelGPE       = "GPE"
	LabelLoc       = "LOC"
	LabelProduct   = "PRODUCT"
	LabelEvent     = "EVENT"
	LabelWorkOfArt = "WORK_OF_ART"
	LabelLaw       = "LAW"
	LabelLanguage  = "LANGUAGE"
	LabelDate      = "DATE"
	LabelTime      = "TIME"
	LabelPercent   = "PERCENT"
	LabelMoney     = "MONEY"
	LabelQuantity  = "QUANTITY"
	LabelOrdinal   = "ORDINAL"
	LabelCardinal  = "CARDINAL"
	LabelEmail     = "EMAIL"
	LabelURL       = "URL"
)

var descriptions = map[string]string{
	LabelPerson:    "People, including fictional",
	LabelNORP:      "Nationalities or religious or political groups",
	LabelFacility:  "Buildings, airports, highways, bridges, etc.",
	LabelOrg:       "Companies, agencies, institutions, etc.",
	LabelGPE:       "Countries, cities, states",
	LabelLoc:       "Non-GPE locations, mountain ranges, bodies of water",
	LabelProduct:   "Objects, vehicles, foods, etc. (not services)",
	LabelEvent:     "Named hurricanes, battles, wars, sports events, etc.",
	LabelWorkOfArt: "Titles of books, songs, etc.",
	LabelLaw:       "Named documents made into laws.",
	LabelLanguage:  "Any named language",
	LabelDate:      "Absolute or relative dates or periods",
	LabelTime:      "Times smaller than a day",
	LabelPercent:   `Percentage, including "%"`,
	LabelMoney:     "Monetary values, including unit",
	LabelQuantity:  "Measurements, as of weight or distance",
	LabelOrdinal:   `"first", "second", etc.`,
	LabelCardinal:  "Numerals that do not fall under another type",
	LabelEmail:     "Email address",
	LabelURL:       "Web address",
}

// Explain returns the description of label, or "" for unknown labels.
func Explain(label string) string {
	return descriptions[label]
}

func describe(labels ...string) map[string]string {
	out := make(map[string]string, len(labels))
	for _, l := range labels {
		out[l] = Explain(l)
	}
	return out
}

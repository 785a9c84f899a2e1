package document

// Type discriminates the document kinds. The single-letter codes are
// stored in the documents table and in both ends of an association row.
type Type string

const (
	TypeWaypoint    Type = "w"
	TypeRoute       Type = "r"
	TypeOuting      Type = "o"
	TypeArea        Type = "a"
	TypeMap         Type = "m"
	TypeImage       Type = "i"
	TypeArticle     Type = "c"
	TypeBook        Type = "b"
	TypeUserProfile Type = "u"
	TypeXreport     Type = "x"
)

func (t Type) Valid() bool {
	switch t {
	case TypeWaypoint, TypeRoute, TypeOuting, TypeArea, TypeMap,
		TypeImage, TypeArticle, TypeBook, TypeUserProfile, TypeXreport:
		return true
	}
	return false
}

type Quality string

const (
	QualityEmpty  Quality = "empty"
	QualityDraft  Quality = "draft"
	QualityMedium Quality = "medium"
	QualityFine   Quality = "fine"
	QualityGreat  Quality = "great"
)

func (q Quality) Valid() bool {
	switch q {
	case QualityEmpty, QualityDraft, QualityMedium, QualityFine, QualityGreat:
		return true
	}
	return false
}

// Document is the shared base record plus the typed figure fields,
// locales and geometry loaded with it. Version counts figure edits only;
// locales and geometry carry their own counters.
type Document struct {
	ID          int64
	Type        Type
	Version     int64
	Protected   bool
	Quality     Quality
	RedirectsTo *int64

	Figures  Figures
	Locales  []Locale
	Geometry *Geometry
}

// Langs supported for document locales.
var Langs = []string{"ca", "de", "en", "es", "eu", "fr", "it", "sl", "zh"}

func ValidLang(lang string) bool {
	for _, l := range Langs {
		if l == lang {
			return true
		}
	}
	return false
}

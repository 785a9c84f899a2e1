package document

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Figures holds the typed scalar/array attributes of one document kind,
// excluding locale text and geometry. Values are persisted as one JSON
// column and decoded back into the kind's struct.
type Figures interface {
	Kind() Type
}

type WaypointFigures struct {
	WaypointType string `json:"waypoint_type,omitempty"`
	Elevation    *int64 `json:"elevation,omitempty"`
	Prominence   *int64 `json:"prominence,omitempty"`
}

func (WaypointFigures) Kind() Type { return TypeWaypoint }

type RouteFigures struct {
	Activities     []string `json:"activities,omitempty"`
	MainWaypointID *int64   `json:"main_waypoint_id,omitempty"`
	ElevationMax   *int64   `json:"elevation_max,omitempty"`
	HeightDiffUp   *int64   `json:"height_diff_up,omitempty"`
}

func (RouteFigures) Kind() Type { return TypeRoute }

type OutingFigures struct {
	Activities   []string `json:"activities,omitempty"`
	DateStart    string   `json:"date_start,omitempty"`
	DateEnd      string   `json:"date_end,omitempty"`
	ElevationMax *int64   `json:"elevation_max,omitempty"`
}

func (OutingFigures) Kind() Type { return TypeOuting }

type AreaFigures struct {
	AreaType string `json:"area_type,omitempty"`
}

func (AreaFigures) Kind() Type { return TypeArea }

type MapFigures struct {
	Editor string `json:"editor,omitempty"`
	Scale  string `json:"scale,omitempty"`
	Code   string `json:"code,omitempty"`
}

func (MapFigures) Kind() Type { return TypeMap }

type ImageFigures struct {
	ImageType string `json:"image_type,omitempty"`
	FileSize  *int64 `json:"file_size,omitempty"`
	Width     *int64 `json:"width,omitempty"`
	Height    *int64 `json:"height,omitempty"`
}

func (ImageFigures) Kind() Type { return TypeImage }

type ArticleFigures struct {
	ArticleType string   `json:"article_type,omitempty"`
	Categories  []string `json:"categories,omitempty"`
}

func (ArticleFigures) Kind() Type { return TypeArticle }

type BookFigures struct {
	Author     string   `json:"author,omitempty"`
	Editor     string   `json:"editor,omitempty"`
	ISBN       string   `json:"isbn,omitempty"`
	Activities []string `json:"activities,omitempty"`
}

func (BookFigures) Kind() Type { return TypeBook }

type UserProfileFigures struct {
	Categories []string `json:"categories,omitempty"`
}

func (UserProfileFigures) Kind() Type { return TypeUserProfile }

type XreportFigures struct {
	EventType    string `json:"event_type,omitempty"`
	Severity     string `json:"severity,omitempty"`
	Participants *int64 `json:"nb_participants,omitempty"`
	Date         string `json:"date,omitempty"`
}

func (XreportFigures) Kind() Type { return TypeXreport }

// EmptyFigures returns the zero figure struct for a document type.
func EmptyFigures(t Type) (Figures, error) {
	switch t {
	case TypeWaypoint:
		return WaypointFigures{}, nil
	case TypeRoute:
		return RouteFigures{}, nil
	case TypeOuting:
		return OutingFigures{}, nil
	case TypeArea:
		return AreaFigures{}, nil
	case TypeMap:
		return MapFigures{}, nil
	case TypeImage:
		return ImageFigures{}, nil
	case TypeArticle:
		return ArticleFigures{}, nil
	case TypeBook:
		return BookFigures{}, nil
	case TypeUserProfile:
		return UserProfileFigures{}, nil
	case TypeXreport:
		return XreportFigures{}, nil
	}
	return nil, fmt.Errorf("unknown document type %q", t)
}

// EncodeFigures renders the figure struct to the JSON stored in the
// documents table. A nil value encodes as the kind's zero struct so the
// column is never NULL.
func EncodeFigures(t Type, f Figures) (string, error) {
	if f == nil {
		var err error
		f, err = EmptyFigures(t)
		if err != nil {
			return "", err
		}
	}
	if f.Kind() != t {
		return "", fmt.Errorf("figures of kind %q on document of type %q", f.Kind(), t)
	}
	raw, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("encode figures: %w", err)
	}
	return string(raw), nil
}

// DecodeFigures parses a stored figures column back into the typed struct.
func DecodeFigures(t Type, raw string) (Figures, error) {
	switch t {
	case TypeWaypoint:
		var f WaypointFigures
		return f, json.Unmarshal([]byte(raw), &f)
	case TypeRoute:
		var f RouteFigures
		return f, json.Unmarshal([]byte(raw), &f)
	case TypeOuting:
		var f OutingFigures
		return f, json.Unmarshal([]byte(raw), &f)
	case TypeArea:
		var f AreaFigures
		return f, json.Unmarshal([]byte(raw), &f)
	case TypeMap:
		var f MapFigures
		return f, json.Unmarshal([]byte(raw), &f)
	case TypeImage:
		var f ImageFigures
		return f, json.Unmarshal([]byte(raw), &f)
	case TypeArticle:
		var f ArticleFigures
		return f, json.Unmarshal([]byte(raw), &f)
	case TypeBook:
		var f BookFigures
		return f, json.Unmarshal([]byte(raw), &f)
	case TypeUserProfile:
		var f UserProfileFigures
		return f, json.Unmarshal([]byte(raw), &f)
	case TypeXreport:
		var f XreportFigures
		return f, json.Unmarshal([]byte(raw), &f)
	}
	return nil, fmt.Errorf("unknown document type %q", t)
}

// FiguresEqual reports whether two figure values of the same kind carry
// the same field values. Marshaling is deterministic for a given struct
// type, so byte equality of the encodings is field equality.
func FiguresEqual(a, b Figures) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	ra, err := json.Marshal(a)
	if err != nil {
		return false
	}
	rb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ra, rb)
}

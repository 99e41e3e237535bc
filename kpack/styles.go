package kpack

import (
	"encoding/json"
	"fmt"
	"image/color"
	"strings"
)

// StyleSheet is a parsed style file: the class dictionary and the global
// thresholds a converted pack is written with.
type StyleSheet struct {
	Classes              *ClassDictionary
	MainMip              float64
	TileMip              float64
	DefaultPrecisionCoef int
}

type styleRecord struct {
	MainMip                  float64 `json:"main_mip"`
	TileMip                  float64 `json:"tile_mip"`
	DefaultCoorPrecisionCoef int     `json:"default_coor_precision_coef"`

	ID                string  `json:"id"`
	Type              string  `json:"type"`
	Style             string  `json:"style"`
	Layer             int     `json:"layer"`
	WidthMM           float64 `json:"width_mm"`
	Pen               []int   `json:"pen"`
	Brush             []int   `json:"brush"`
	TextColor         []int   `json:"tcolor"`
	MinMip            float64 `json:"min_mip"`
	MaxMip            float64 `json:"max_mip"`
	CoorPrecisionCoef int     `json:"coor_precision_coef"`
}

// ParseStyles reads a style file: a JSON array where each record either sets
// one of main_mip, tile_mip and default_coor_precision_coef, or defines a
// class. Classes without their own coor_precision_coef get the default.
func ParseStyles(data []byte) (*StyleSheet, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing styles: %w", err)
	}
	sheet := &StyleSheet{DefaultPrecisionCoef: DefaultPrecisionCoef}
	var records []ClassRecord
	for i, msg := range raw {
		var r styleRecord
		if err := json.Unmarshal(msg, &r); err != nil {
			return nil, fmt.Errorf("style record %d: %w", i, err)
		}
		switch {
		case r.MainMip > 0:
			sheet.MainMip = r.MainMip
			continue
		case r.TileMip > 0:
			sheet.TileMip = r.TileMip
			continue
		case r.DefaultCoorPrecisionCoef > 0:
			sheet.DefaultPrecisionCoef = r.DefaultCoorPrecisionCoef
			continue
		case r.ID == "":
			continue
		}
		cl, err := r.class()
		if err != nil {
			return nil, fmt.Errorf("style %q: %w", r.ID, err)
		}
		records = append(records, cl)
	}
	for i := range records {
		if records[i].PrecisionCoef == 0 {
			records[i].PrecisionCoef = int32(sheet.DefaultPrecisionCoef)
		}
	}
	classes, err := NewClassDictionary(records)
	if err != nil {
		return nil, err
	}
	sheet.Classes = classes
	return sheet, nil
}

func (r styleRecord) class() (ClassRecord, error) {
	cl := ClassRecord{
		ID:            r.ID,
		WidthMM:       float32(r.WidthMM),
		MinMip:        r.MinMip,
		MaxMip:        r.MaxMip,
		PrecisionCoef: int32(r.CoorPrecisionCoef),
		Pen:           styleColor(r.Pen),
		Brush:         styleColor(r.Brush),
		TextColor:     styleColor(r.TextColor),
	}
	if r.Layer < 0 || r.Layer > 255 {
		return cl, fmt.Errorf("layer %d out of range", r.Layer)
	}
	cl.Layer = uint8(r.Layer)

	if r.Type != "" {
		t, ok := parseShapeType(r.Type)
		if !ok {
			return cl, fmt.Errorf("unrecognized type %q", r.Type)
		}
		cl.Type = t
	}
	if r.Style != "" {
		s, ok := parseLineStyle(r.Style)
		if !ok {
			return cl, fmt.Errorf("unrecognized style %q", r.Style)
		}
		cl.Style = s
	}
	return cl, nil
}

func parseShapeType(s string) (ShapeType, bool) {
	for t := ShapeNone; t <= ShapeMarker; t++ {
		if strings.EqualFold(s, t.String()) {
			return t, true
		}
	}
	return ShapeNone, false
}

func parseLineStyle(s string) (LineStyle, bool) {
	for st := StyleSolid; st <= StyleDots; st++ {
		if strings.EqualFold(s, st.String()) {
			return st, true
		}
	}
	return StyleSolid, false
}

// styleColor converts [r, g, b] or [r, g, b, a]; alpha defaults to opaque.
func styleColor(v []int) color.RGBA {
	c := color.RGBA{A: 255}
	if len(v) >= 3 {
		c.R, c.G, c.B = clampByte(v[0]), clampByte(v[1]), clampByte(v[2])
	}
	if len(v) == 4 {
		c.A = clampByte(v[3])
	}
	return c
}

func clampByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

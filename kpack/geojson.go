package kpack

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Reserved feature properties. Every other property becomes an attribute.
const (
	NameProperty  = "name"
	ClassProperty = "class"
)

// Feature returns the object as a GeoJSON feature. The geometry follows the
// class type: points and markers become (multi)points, lines become
// (multi)line strings and polygons become (multi)polygons with each inner
// ring placed in the first outer ring that contains it.
func (o *MapObject) Feature(classes *ClassDictionary) *geojson.Feature {
	cl, _ := classes.At(o.ClassIdx)
	f := geojson.NewFeature(o.geometry(cl.Type))
	f.Properties[NameProperty] = o.Name
	f.Properties[ClassProperty] = cl.ID
	for k, v := range o.Attributes {
		f.Properties[k] = string(v)
	}
	return f
}

func (o *MapObject) geometry(t ShapeType) orb.Geometry {
	switch t {
	case ShapePoint, ShapeMarker:
		var mp orb.MultiPoint
		for _, p := range o.Polygons {
			for _, c := range p.Points {
				mp = append(mp, c.Point())
			}
		}
		if len(mp) == 1 {
			return mp[0]
		}
		return mp
	case ShapePolygon:
		mp := o.multiPolygon()
		if len(mp) == 1 {
			return mp[0]
		}
		return mp
	default:
		var mls orb.MultiLineString
		for _, p := range o.Polygons {
			mls = append(mls, p.LineString())
		}
		if len(mls) == 1 {
			return mls[0]
		}
		return mls
	}
}

func (o *MapObject) multiPolygon() orb.MultiPolygon {
	inner := make(map[int]bool, len(o.InnerPolygonIdx))
	for _, idx := range o.InnerPolygonIdx {
		inner[idx] = true
	}
	var mp orb.MultiPolygon
	for i, p := range o.Polygons {
		if !inner[i] {
			mp = append(mp, orb.Polygon{p.Ring()})
		}
	}
	for _, idx := range o.InnerPolygonIdx {
		if idx < 0 || idx >= len(o.Polygons) || len(mp) == 0 {
			continue
		}
		ring := o.Polygons[idx].Ring()
		host := 0
		for j := range mp {
			if len(ring) > 0 && planar.RingContains(mp[j][0], ring[0]) {
				host = j
				break
			}
		}
		mp[host] = append(mp[host], ring)
	}
	return mp
}

// FeatureCollection returns the objects as a GeoJSON feature collection.
func FeatureCollection(objs []MapObject, classes *ClassDictionary) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i := range objs {
		fc.Append(objs[i].Feature(classes))
	}
	return fc
}

// ObjectFromFeature converts a GeoJSON feature to an object. The class
// property must name a class in classes. Polygons are stored with zero
// precision so they take the precision of their class.
func ObjectFromFeature(f *geojson.Feature, classes *ClassDictionary) (MapObject, error) {
	var obj MapObject
	id, ok := f.Properties[ClassProperty].(string)
	if !ok {
		return obj, fmt.Errorf("feature has no %q property", ClassProperty)
	}
	idx, ok := classes.IndexByID(id)
	if !ok {
		return obj, fmt.Errorf("unknown class %q", id)
	}
	obj.ClassIdx = idx
	obj.Name, _ = f.Properties[NameProperty].(string)

	if err := obj.setGeometry(f.Geometry); err != nil {
		return obj, err
	}
	for k, v := range f.Properties {
		if k == NameProperty || k == ClassProperty {
			continue
		}
		b, err := attributeValue(v)
		if err != nil {
			return obj, fmt.Errorf("property %q: %w", k, err)
		}
		if obj.Attributes == nil {
			obj.Attributes = make(map[string][]byte)
		}
		obj.Attributes[k] = b
	}
	obj.UpdateFrame()
	return obj, nil
}

func attributeValue(v interface{}) ([]byte, error) {
	if s, ok := v.(string); ok {
		return []byte(s), nil
	}
	return json.Marshal(v)
}

func polygonFromPoints(pts []orb.Point) Polygon {
	p := Polygon{Points: make([]GeoCoor, len(pts))}
	for i, pt := range pts {
		p.Points[i] = GeoCoorFromPoint(pt)
	}
	return p
}

func (o *MapObject) addPolygon(pg orb.Polygon) {
	for i, ring := range pg {
		if i > 0 {
			o.InnerPolygonIdx = append(o.InnerPolygonIdx, len(o.Polygons))
		}
		o.Polygons = append(o.Polygons, polygonFromPoints(ring))
	}
}

func (o *MapObject) setGeometry(g orb.Geometry) error {
	switch g := g.(type) {
	case orb.Point:
		o.Polygons = []Polygon{polygonFromPoints([]orb.Point{g})}
	case orb.MultiPoint:
		o.Polygons = []Polygon{polygonFromPoints(g)}
	case orb.LineString:
		o.Polygons = []Polygon{polygonFromPoints(g)}
	case orb.MultiLineString:
		for _, ls := range g {
			o.Polygons = append(o.Polygons, polygonFromPoints(ls))
		}
	case orb.Polygon:
		o.addPolygon(g)
	case orb.MultiPolygon:
		for _, pg := range g {
			o.addPolygon(pg)
		}
	case nil:
		return fmt.Errorf("feature has no geometry")
	default:
		return fmt.Errorf("unsupported geometry %s", g.GeoJSONType())
	}
	return nil
}

// ReadFeatures parses a GeoJSON feature collection into objects.
func ReadFeatures(data []byte, classes *ClassDictionary) ([]MapObject, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing features: %w", err)
	}
	objs := make([]MapObject, 0, len(fc.Features))
	for i, f := range fc.Features {
		obj, err := ObjectFromFeature(f, classes)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		objs = append(objs, obj)
	}
	return objs, nil
}

// ReadBorders parses a GeoJSON feature collection and returns the outer
// rings of its polygon and multipolygon features. Other geometries are
// skipped.
func ReadBorders(data []byte) ([]Polygon, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing borders: %w", err)
	}
	var borders []Polygon
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			if len(g) > 0 {
				borders = append(borders, polygonFromPoints(g[0]))
			}
		case orb.MultiPolygon:
			for _, pg := range g {
				if len(pg) > 0 {
					borders = append(borders, polygonFromPoints(pg[0]))
				}
			}
		}
	}
	return borders, nil
}

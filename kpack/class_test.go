package kpack

import (
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassDictionary(t *testing.T) {
	d, err := NewClassDictionary([]ClassRecord{{ID: "a"}, {ID: "b", MaxMip: 3}})
	assert.Nil(t, err)
	assert.Equal(t, 2, d.Len())

	idx, ok := d.IndexByID("b")
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
	_, ok = d.IndexByID("c")
	assert.False(t, ok)

	cl, ok := d.At(1)
	assert.True(t, ok)
	assert.Equal(t, 3.0, cl.MaxMip)
	_, ok = d.At(2)
	assert.False(t, ok)
	_, ok = d.At(-1)
	assert.False(t, ok)

	records := d.Records()
	records[0].ID = "changed"
	cl, _ = d.At(0)
	assert.Equal(t, "a", cl.ID)
}

func TestNilClassDictionary(t *testing.T) {
	var d *ClassDictionary
	assert.Equal(t, 0, d.Len())
	_, ok := d.At(0)
	assert.False(t, ok)
	_, ok = d.IndexByID("a")
	assert.False(t, ok)
	assert.Nil(t, d.Records())
}

func TestClassDictionaryRejectsBadIDs(t *testing.T) {
	_, err := NewClassDictionary([]ClassRecord{{ID: "a"}, {ID: "a"}})
	assert.ErrorIs(t, err, ErrMisuse)
	assert.Contains(t, err.Error(), "already been defined")

	_, err = NewClassDictionary([]ClassRecord{{ID: ""}})
	assert.ErrorIs(t, err, ErrMisuse)

	_, err = NewClassDictionary([]ClassRecord{{ID: strings.Repeat("x", MaxClassIDLen+1)}})
	assert.ErrorIs(t, err, ErrMisuse)

	_, err = NewClassDictionary([]ClassRecord{{ID: "a\x00b"}})
	assert.ErrorIs(t, err, ErrMisuse)
}

func TestInMain(t *testing.T) {
	assert.True(t, ClassRecord{MaxMip: 0}.InMain(10))
	assert.True(t, ClassRecord{MaxMip: 20}.InMain(10))
	assert.False(t, ClassRecord{MaxMip: 10}.InMain(10))
	assert.False(t, ClassRecord{MaxMip: 5}.InMain(10))
}

func TestSerializeClass(t *testing.T) {
	cl := ClassRecord{
		ID:            strings.Repeat("r", MaxClassIDLen),
		Type:          ShapeLine,
		Style:         StyleDots,
		Layer:         7,
		WidthMM:       0.25,
		MinMip:        1.5,
		MaxMip:        300,
		PrecisionCoef: 10000,
		Pen:           color.RGBA{R: 1, G: 2, B: 3, A: 4},
		Brush:         color.RGBA{R: 5, G: 6, B: 7, A: 8},
		TextColor:     color.RGBA{R: 9, G: 10, B: 11, A: 12},
	}
	b := serializeClass(cl)
	assert.Len(t, b, ClassRecordLenBytes)
	assert.Equal(t, cl, deserializeClass(b))

	short := ClassRecord{ID: "road"}
	assert.Equal(t, short, deserializeClass(serializeClass(short)))
}

func TestClassCoef(t *testing.T) {
	assert.Equal(t, DefaultPrecisionCoef, ClassRecord{}.coef())
	assert.Equal(t, 100, ClassRecord{PrecisionCoef: 100}.coef())
}

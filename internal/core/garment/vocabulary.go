package garment

import (
	"fmt"
	"slices"
)

type Color string

const (
	ColorBlack      Color = "black"
	ColorWhite      Color = "white"
	ColorRed        Color = "red"
	ColorGreen      Color = "green"
	ColorBlue       Color = "blue"
	ColorYellow     Color = "yellow"
	ColorBrown      Color = "brown"
	ColorOrange     Color = "orange"
	ColorPurple     Color = "purple"
	ColorPink       Color = "pink"
	ColorGray       Color = "gray"
	ColorBeige      Color = "beige"
	ColorMetallic   Color = "metallic"
	ColorMulticolor Color = "multicolor"
)

type Trend string

const (
	TrendAthletic    Trend = "athletic"
	TrendCasual      Trend = "casual"
	TrendFormal      Trend = "formal"
	TrendStreetwear  Trend = "streetwear"
	TrendVintage     Trend = "vintage"
	TrendClassic     Trend = "classic"
	TrendTraditional Trend = "traditional"
)

type Category string

const (
	CategoryMens   Category = "men's"
	CategoryWomens Category = "women's"
	CategoryKids   Category = "kid's"
	CategoryUnisex Category = "unisex"
)

type Price string

const (
	PriceBudget   Price = "budget"
	PriceMidRange Price = "mid-range"
	PricePremium  Price = "premium"
)

var (
	Colors = []Color{
		ColorBlack, ColorWhite, ColorRed, ColorGreen, ColorBlue, ColorYellow, ColorBrown,
		ColorOrange, ColorPurple, ColorPink, ColorGray, ColorBeige, ColorMetallic, ColorMulticolor,
	}
	Trends = []Trend{
		TrendAthletic, TrendCasual, TrendFormal, TrendStreetwear, TrendVintage, TrendClassic, TrendTraditional,
	}
	Categories = []Category{CategoryMens, CategoryWomens, CategoryKids, CategoryUnisex}
	Prices     = []Price{PriceBudget, PriceMidRange, PricePremium}
)

func (c Color) Valid() bool    { return slices.Contains(Colors, c) }
func (t Trend) Valid() bool    { return slices.Contains(Trends, t) }
func (c Category) Valid() bool { return slices.Contains(Categories, c) }
func (p Price) Valid() bool    { return slices.Contains(Prices, p) }

// field names as they appear in the response schema and in result tables
const (
	FieldColor    = "color"
	FieldTrend    = "trend"
	FieldCategory = "category"
	FieldPrice    = "price"
)

var Fields = []string{FieldColor, FieldTrend, FieldCategory, FieldPrice}

func allowedValues(field string) ([]string, error) {
	switch field {
	case FieldColor:
		return toStrings(Colors), nil
	case FieldTrend:
		return toStrings(Trends), nil
	case FieldCategory:
		return toStrings(Categories), nil
	case FieldPrice:
		return toStrings(Prices), nil
	default:
		return nil, fmt.Errorf("unknown garment field %q", field)
	}
}

func toStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

package offdata

import "strings"

// Product is the normalized, agent-friendly view of an Open Food Facts
// record. Upstream records carry hundreds of fields; only the ones the
// tools expose survive normalization.
type Product struct {
	Barcode         string     `json:"barcode"`
	Name            string     `json:"product_name"`
	Brands          string     `json:"brands,omitempty"`
	Categories      []string   `json:"categories,omitempty"`
	Quantity        string     `json:"quantity,omitempty"`
	NutriScore      string     `json:"nutriscore,omitempty"`
	NovaGroup       int        `json:"nova_group,omitempty"`
	IngredientsText string     `json:"ingredients_text,omitempty"`
	Allergens       []string   `json:"allergens,omitempty"`
	Traces          []string   `json:"traces,omitempty"`
	Nutriments      Nutriments `json:"nutriments"`
	ImageURL        string     `json:"image_url,omitempty"`
}

// Nutriments is the per-100g subset the agent reasons about.
type Nutriments struct {
	EnergyKcal    float64 `json:"energy_kcal_100g,omitempty"`
	Fat           float64 `json:"fat_100g,omitempty"`
	SaturatedFat  float64 `json:"saturated_fat_100g,omitempty"`
	Carbohydrates float64 `json:"carbohydrates_100g,omitempty"`
	Sugars        float64 `json:"sugars_100g,omitempty"`
	Proteins      float64 `json:"proteins_100g,omitempty"`
	Salt          float64 `json:"salt_100g,omitempty"`
	Fiber         float64 `json:"fiber_100g,omitempty"`
}

// Page is one page of search or browse results.
type Page struct {
	Products []Product `json:"products"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
	Count    int       `json:"count"`
}

// rawProduct mirrors the upstream record shape for the fields we keep.
type rawProduct struct {
	Code            string  `json:"code"`
	ProductName     string  `json:"product_name"`
	Brands          string  `json:"brands"`
	Categories      string  `json:"categories"`
	Quantity        string  `json:"quantity"`
	NutriScoreGrade string  `json:"nutriscore_grade"`
	NovaGroup       int     `json:"nova_group"`
	IngredientsText string  `json:"ingredients_text"`
	Allergens       string  `json:"allergens"`
	Traces          string  `json:"traces"`
	ImageURL        string  `json:"image_url"`
	Nutriments      rawNuts `json:"nutriments"`
}

type rawNuts struct {
	EnergyKcal    float64 `json:"energy-kcal_100g"`
	Fat           float64 `json:"fat_100g"`
	SaturatedFat  float64 `json:"saturated-fat_100g"`
	Carbohydrates float64 `json:"carbohydrates_100g"`
	Sugars        float64 `json:"sugars_100g"`
	Proteins      float64 `json:"proteins_100g"`
	Salt          float64 `json:"salt_100g"`
	Fiber         float64 `json:"fiber_100g"`
}

func normalize(raw rawProduct) Product {
	return Product{
		Barcode:         raw.Code,
		Name:            raw.ProductName,
		Brands:          raw.Brands,
		Categories:      splitTags(raw.Categories),
		Quantity:        raw.Quantity,
		NutriScore:      strings.ToUpper(raw.NutriScoreGrade),
		NovaGroup:       raw.NovaGroup,
		IngredientsText: raw.IngredientsText,
		Allergens:       splitTags(raw.Allergens),
		Traces:          splitTags(raw.Traces),
		ImageURL:        raw.ImageURL,
		Nutriments: Nutriments{
			EnergyKcal:    raw.Nutriments.EnergyKcal,
			Fat:           raw.Nutriments.Fat,
			SaturatedFat:  raw.Nutriments.SaturatedFat,
			Carbohydrates: raw.Nutriments.Carbohydrates,
			Sugars:        raw.Nutriments.Sugars,
			Proteins:      raw.Nutriments.Proteins,
			Salt:          raw.Nutriments.Salt,
			Fiber:         raw.Nutriments.Fiber,
		},
	}
}

// splitTags turns the upstream comma-separated tag strings (often with
// "en:" language prefixes) into a clean slice.
func splitTags(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		tag := strings.TrimSpace(part)
		if i := strings.Index(tag, ":"); i >= 0 && i <= 3 {
			tag = tag[i+1:]
		}
		if tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

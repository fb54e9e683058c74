package medication

import (
	"fmt"
	"strings"
)

// Medicine is a purchasable catalog item. Only InStock changes after creation.
type Medicine struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	GenericName   string   `json:"genericName"`
	Price         float64  `json:"price"`
	OriginalPrice *float64 `json:"originalPrice,omitempty"`
	Manufacturer  string   `json:"manufacturer"`
	Description   string   `json:"description"`
	Prescription  bool     `json:"prescription"`
	InStock       bool     `json:"inStock"`
	Rating        float64  `json:"rating"`
	Category      string   `json:"category"`
}

// Discounted reports whether the medicine is sold below its original price.
func (m Medicine) Discounted() bool {
	return m.OriginalPrice != nil && *m.OriginalPrice > m.Price
}

// NewMedicine is a catalog entry before an id has been assigned.
type NewMedicine struct {
	Name          string   `json:"name"`
	GenericName   string   `json:"genericName"`
	Price         float64  `json:"price"`
	OriginalPrice *float64 `json:"originalPrice,omitempty"`
	Manufacturer  string   `json:"manufacturer"`
	Description   string   `json:"description"`
	Prescription  bool     `json:"prescription"`
	InStock       bool     `json:"inStock"`
	Rating        float64  `json:"rating"`
	Category      string   `json:"category"`
}

func (nm *NewMedicine) validate() error {
	if strings.TrimSpace(nm.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if nm.Price < 0 {
		return fmt.Errorf("price must not be negative")
	}
	if nm.OriginalPrice != nil && *nm.OriginalPrice < 0 {
		return fmt.Errorf("originalPrice must not be negative")
	}
	if nm.Rating < 0 || nm.Rating > 5 {
		return fmt.Errorf("rating must be between 0 and 5")
	}
	return nil
}

// Filter returns the medicines whose name, generic name or category contains
// query, ignoring case. An empty query returns items unchanged.
func Filter(items []Medicine, query string) []Medicine {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return items
	}
	out := make([]Medicine, 0, len(items))
	for _, m := range items {
		if strings.Contains(strings.ToLower(m.Name), q) ||
			strings.Contains(strings.ToLower(m.GenericName), q) ||
			strings.Contains(strings.ToLower(m.Category), q) {
			out = append(out, m)
		}
	}
	return out
}

// Categories lists the distinct categories in catalog order.
func Categories(items []Medicine) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, m := range items {
		if m.Category == "" || seen[m.Category] {
			continue
		}
		seen[m.Category] = true
		out = append(out, m.Category)
	}
	return out
}

func price(v float64) *float64 { return &v }

// SeedCatalog is the default catalog written on first access.
func SeedCatalog() []Medicine {
	return []Medicine{
		{ID: "1", Name: "Paracetamol 500mg", GenericName: "Acetaminophen", Price: 25, OriginalPrice: price(30),
			Manufacturer: "HealthCorp", Description: "Pain reliever and fever reducer",
			InStock: true, Rating: 4.5, Category: "Pain Relief"},
		{ID: "2", Name: "Amoxicillin 250mg", GenericName: "Amoxicillin", Price: 120,
			Manufacturer: "MediPharm", Description: "Antibiotic for bacterial infections",
			Prescription: true, InStock: true, Rating: 4.7, Category: "Antibiotics"},
		{ID: "3", Name: "Ibuprofen 400mg", GenericName: "Ibuprofen", Price: 35,
			Manufacturer: "PainAway Labs", Description: "Anti-inflammatory pain reliever",
			InStock: true, Rating: 4.4, Category: "Pain Relief"},
		{ID: "4", Name: "Cetirizine 10mg", GenericName: "Cetirizine Hydrochloride", Price: 40,
			Manufacturer: "AllerCare", Description: "Antihistamine for allergy relief",
			InStock: true, Rating: 4.3, Category: "Allergy"},
		{ID: "5", Name: "Omeprazole 20mg", GenericName: "Omeprazole", Price: 85,
			Manufacturer: "GastroHealth", Description: "Reduces stomach acid production",
			Prescription: true, InStock: true, Rating: 4.6, Category: "Digestive Health"},
		{ID: "6", Name: "Metformin 500mg", GenericName: "Metformin Hydrochloride", Price: 60,
			Manufacturer: "DiaCare", Description: "Blood sugar control for type 2 diabetes",
			Prescription: true, InStock: true, Rating: 4.5, Category: "Diabetes"},
		{ID: "7", Name: "Vitamin D3 1000IU", GenericName: "Cholecalciferol", Price: 150, OriginalPrice: price(180),
			Manufacturer: "NutriLife", Description: "Supports bone and immune health",
			InStock: true, Rating: 4.8, Category: "Vitamins"},
		{ID: "8", Name: "Azithromycin 500mg", GenericName: "Azithromycin", Price: 180,
			Manufacturer: "MediPharm", Description: "Macrolide antibiotic",
			Prescription: true, InStock: true, Rating: 4.6, Category: "Antibiotics"},
		{ID: "9", Name: "Loratadine 10mg", GenericName: "Loratadine", Price: 55,
			Manufacturer: "AllerCare", Description: "Non-drowsy allergy relief",
			InStock: true, Rating: 4.2, Category: "Allergy"},
		{ID: "10", Name: "Atorvastatin 10mg", GenericName: "Atorvastatin Calcium", Price: 140,
			Manufacturer: "CardioMed", Description: "Lowers cholesterol",
			Prescription: true, InStock: false, Rating: 4.5, Category: "Cardiovascular"},
		{ID: "11", Name: "Multivitamin Tablets", GenericName: "Multivitamin", Price: 220,
			Manufacturer: "NutriLife", Description: "Daily essential vitamins and minerals",
			InStock: true, Rating: 4.4, Category: "Vitamins"},
		{ID: "12", Name: "Cough Syrup 100ml", GenericName: "Dextromethorphan", Price: 95,
			Manufacturer: "RespiCare", Description: "Relief from dry cough",
			InStock: true, Rating: 4.1, Category: "Cold & Flu"},
	}
}

package medication

import (
	"reflect"
	"testing"
)

func TestFilter(t *testing.T) {
	items := SeedCatalog()

	tests := []struct {
		query string
		want  []string
	}{
		{"", nil},
		{"PARACETAMOL", []string{"1"}},
		{"acetaminophen", []string{"1"}},
		{"allergy", []string{"4", "9"}},
		{"10mg", []string{"4", "9", "10"}},
		{"zzz", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := Filter(items, tt.query)
			if tt.want == nil {
				if len(got) != len(items) {
					t.Errorf("empty query should return everything, got %d", len(got))
				}
				return
			}
			ids := []string{}
			for _, m := range got {
				ids = append(ids, m.ID)
			}
			if !reflect.DeepEqual(ids, tt.want) {
				t.Errorf("Filter(%q) = %v, want %v", tt.query, ids, tt.want)
			}
		})
	}
}

func TestCategories(t *testing.T) {
	got := Categories(SeedCatalog())
	want := []string{"Pain Relief", "Antibiotics", "Allergy", "Digestive Health", "Diabetes", "Vitamins", "Cardiovascular", "Cold & Flu"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Categories() = %v, want %v", got, want)
	}
	if got := Categories(nil); len(got) != 0 {
		t.Errorf("expected no categories, got %v", got)
	}
}

func TestSeedCatalog(t *testing.T) {
	items := SeedCatalog()
	if len(items) != 12 {
		t.Fatalf("expected 12 medicines, got %d", len(items))
	}
	seen := map[string]bool{}
	for _, m := range items {
		if seen[m.ID] {
			t.Errorf("duplicate id %s", m.ID)
		}
		seen[m.ID] = true
		if m.Price < 0 {
			t.Errorf("%s has negative price", m.ID)
		}
	}
	if !items[0].Discounted() || items[1].Discounted() {
		t.Error("unexpected discount flags")
	}
}

func TestNewMedicine_Validate(t *testing.T) {
	neg := -1.0
	tests := []struct {
		name    string
		nm      NewMedicine
		wantErr bool
	}{
		{"valid", NewMedicine{Name: "Aspirin", Price: 10, Rating: 4}, false},
		{"missing name", NewMedicine{Price: 10}, true},
		{"negative price", NewMedicine{Name: "A", Price: -5}, true},
		{"negative original", NewMedicine{Name: "A", Price: 5, OriginalPrice: &neg}, true},
		{"rating too high", NewMedicine{Name: "A", Rating: 6}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.nm.validate(); (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

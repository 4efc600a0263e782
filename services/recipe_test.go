package services

import (
	"testing"

	"pizza-fulfillment/models"
)

func TestCombineRequirements(t *testing.T) {
	reqs := []models.MaterialRequirement{
		{MaterialID: 1, MaterialName: "Bột mì", Quantity: dec("0.5")},
		{MaterialID: 2, MaterialName: "Phô mai", Quantity: dec("0.2")},
		{MaterialID: 1, MaterialName: "Bột mì", Quantity: dec("0.25")},
		{MaterialID: 3, MaterialName: "Tôm tươi", Quantity: dec("1")},
		{MaterialID: 2, MaterialName: "Phô mai", Quantity: dec("0.1")},
	}

	combined := CombineRequirements(reqs)
	if len(combined) != 3 {
		t.Fatalf("combined %d materials, want 3", len(combined))
	}

	want := []struct {
		materialID int64
		quantity   string
	}{
		{1, "0.75"},
		{2, "0.3"},
		{3, "1"},
	}
	for i, w := range want {
		if combined[i].MaterialID != w.materialID {
			t.Errorf("combined[%d].MaterialID = %d, want %d", i, combined[i].MaterialID, w.materialID)
		}
		if !combined[i].Quantity.Equal(dec(w.quantity)) {
			t.Errorf("combined[%d].Quantity = %s, want %s", i, combined[i].Quantity, w.quantity)
		}
	}
}

func TestCombineRequirementsSumEqualsParts(t *testing.T) {
	// Two lines referencing the same material must combine to the sum of
	// their independent requirements.
	a := models.MaterialRequirement{MaterialID: 7, Quantity: dec("0.4")}
	b := models.MaterialRequirement{MaterialID: 7, Quantity: dec("0.6")}
	combined := CombineRequirements([]models.MaterialRequirement{a, b})
	if len(combined) != 1 {
		t.Fatalf("combined %d materials, want 1", len(combined))
	}
	if !combined[0].Quantity.Equal(a.Quantity.Add(b.Quantity)) {
		t.Errorf("combined quantity %s, want %s", combined[0].Quantity, a.Quantity.Add(b.Quantity))
	}
}

func TestCombineRequirementsEmpty(t *testing.T) {
	if got := CombineRequirements(nil); len(got) != 0 {
		t.Errorf("combining nothing should yield nothing, got %v", got)
	}
}

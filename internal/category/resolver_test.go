package category

import (
	"testing"

	"github.com/lindqvist/kvitto/internal/model"
)

func TestStatusOf_CommonCategory(t *testing.T) {
	status := StatusOf([]string{"mejeri", "mejeri", ""})

	if status.Common != "mejeri" {
		t.Errorf("Common = %q, want %q", status.Common, "mejeri")
	}
	if len(status.Distinct) != 1 || status.Distinct[0] != "mejeri" {
		t.Errorf("Distinct = %v, want [mejeri]", status.Distinct)
	}
	if status.Mixed {
		t.Error("Mixed = true, want false")
	}
}

func TestStatusOf_Mixed(t *testing.T) {
	status := StatusOf([]string{"mejeri", "drycker"})

	if status.Common != "" {
		t.Errorf("Common = %q, want empty", status.Common)
	}
	if len(status.Distinct) != 2 {
		t.Errorf("Distinct = %v, want two entries", status.Distinct)
	}
	if !status.Mixed {
		t.Error("Mixed = false, want true")
	}
}

func TestStatusOf_NoCategories(t *testing.T) {
	status := StatusOf([]string{"", ""})

	if status.Common != "" || status.Mixed || len(status.Distinct) != 0 {
		t.Errorf("empty input gave %+v, want zero status", status)
	}
}

func TestEffective_UserMappingWins(t *testing.T) {
	user := &model.ProductMapping{Category: "mejeri"}
	global := &model.GlobalProductMapping{Category: "drycker"}

	if got := Effective(user, global, nil); got != "mejeri" {
		t.Errorf("Effective = %q, want user category", got)
	}
}

func TestEffective_OverrideBeatsGlobal(t *testing.T) {
	global := &model.GlobalProductMapping{Category: "drycker"}
	override := &model.UserGlobalOverride{OverrideCategory: "mejeri"}

	if got := Effective(nil, global, override); got != "mejeri" {
		t.Errorf("Effective = %q, want override category", got)
	}
}

func TestEffective_GlobalDefault(t *testing.T) {
	global := &model.GlobalProductMapping{Category: "drycker"}

	if got := Effective(nil, global, nil); got != "drycker" {
		t.Errorf("Effective = %q, want global category", got)
	}
}

func TestEffective_NothingKnown(t *testing.T) {
	if got := Effective(nil, nil, nil); got != "" {
		t.Errorf("Effective = %q, want empty", got)
	}
}

package visit

import "testing"

func TestParseToothDx(t *testing.T) {
	dx, err := ParseToothDx(`{"16":["Caries","Fractura"]}`)
	if err != nil {
		t.Fatal(err)
	}
	if len(dx["16"]) != 2 || dx["16"][1] != "Fractura" {
		t.Errorf("unexpected map %v", dx)
	}

	for _, raw := range []string{"", "   ", "null"} {
		dx, err := ParseToothDx(raw)
		if err != nil || dx == nil || len(dx) != 0 {
			t.Errorf("ParseToothDx(%q) = %v, %v; want empty map", raw, dx, err)
		}
	}

	dx, err = ParseToothDx("{broken")
	if err == nil {
		t.Error("expected error for malformed input")
	}
	if dx == nil || len(dx) != 0 {
		t.Errorf("expected empty map on error, got %v", dx)
	}
}

func TestToothDx_JSONCanonical(t *testing.T) {
	a := ToothDx{"48": {"Caries"}, "11": {"Fractura"}}
	b := ToothDx{"11": {"Fractura"}, "48": {"Caries"}}
	if a.JSON() != b.JSON() {
		t.Errorf("expected identical encodings, got %s vs %s", a.JSON(), b.JSON())
	}
	if a.JSON() != `{"11":["Fractura"],"48":["Caries"]}` {
		t.Errorf("unexpected encoding %s", a.JSON())
	}
	var nilDx ToothDx
	if !nilDx.Equal(ToothDx{}) {
		t.Error("nil and empty maps must compare equal")
	}
	if nilDx.StoredJSON() != nil {
		t.Error("empty map must store as NULL")
	}
}

func TestToothDx_CloneIsDeep(t *testing.T) {
	a := ToothDx{"16": {"Caries"}}
	b := a.Clone()
	b["16"][0] = "Sano"
	if a["16"][0] != "Caries" {
		t.Error("clone must not share label slices")
	}
}

func TestToothDx_DiagnosisText(t *testing.T) {
	dx := ToothDx{"21": {"Caries"}, "3": {}, "11": {"Fractura", "Caries"}, "x": {"Nota"}}
	want := "Diente 11: Fractura, Caries\nDiente 21: Caries\nDiente x: Nota"
	if got := dx.DiagnosisText(); got != want {
		t.Errorf("DiagnosisText() = %q, want %q", got, want)
	}
}

func TestFullDiagnosis(t *testing.T) {
	if got := FullDiagnosis("Diente 11: Caries", "  control en 3 meses "); got != "Diente 11: Caries\n\ncontrol en 3 meses" {
		t.Errorf("unexpected %q", got)
	}
	if got := FullDiagnosis("", "  "); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}

func TestItem_SetQuantity(t *testing.T) {
	it := Item{Name: "Curación", UnitPrice: 25}
	it.SetQuantity(2)
	if !it.IsActive || it.Subtotal != 50 {
		t.Errorf("expected active with subtotal 50, got %+v", it)
	}
	it.SetQuantity(-1)
	if it.IsActive || it.Quantity != 0 || it.Subtotal != 0 {
		t.Errorf("expected cleared line, got %+v", it)
	}
	it.SetQuantity(3)
	it.SetUnitPrice(10)
	if it.Subtotal != 30 {
		t.Errorf("expected subtotal 30, got %v", it.Subtotal)
	}
}

package fields

import "testing"

func TestCatalogLabels(t *testing.T) {
	c := NewCatalog([]Field{
		{Name: Email, Label: "Эл. почта", LabelEN: "Email"},
		{Name: Company, Label: "Компания"},
		{Name: Email, Label: "duplicate"},
		{Name: ""},
	})

	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	if got := c.Label(Email, "ru"); got != "Эл. почта" {
		t.Errorf("Label(email, ru) = %q", got)
	}
	if got := c.Label(Email, "en"); got != "Email" {
		t.Errorf("Label(email, en) = %q", got)
	}
	if got := c.Label(Company, "en"); got != "Компания" {
		t.Errorf("Label(company, en) = %q, want fallback to primary label", got)
	}
	if got := c.Label("middle_name", "en"); got != "middle_name" {
		t.Errorf("unknown field label = %q, want raw identifier", got)
	}
	if !c.Available() {
		t.Error("loaded catalog reported unavailable")
	}
}

func TestPendingCatalog(t *testing.T) {
	c := Pending()
	if !c.Available() {
		t.Error("pending catalog reported unavailable")
	}
	if c.Loaded() {
		t.Error("pending catalog reported loaded")
	}
	if got := c.Label(Email, "ru"); got != Email {
		t.Errorf("Label = %q, want raw identifier", got)
	}
	if !NewCatalog(nil).Loaded() {
		t.Error("empty loaded catalog reported not loaded")
	}
}

func TestUnavailableCatalog(t *testing.T) {
	c := Unavailable()
	if c.Available() {
		t.Fatal("Unavailable().Available() = true")
	}
	if c.Contains(Email) {
		t.Error("empty catalog contains email")
	}
	if got := c.Label(Email, "ru"); got != Email {
		t.Errorf("Label = %q, want raw identifier", got)
	}

	var nilCat *Catalog
	if got := nilCat.Label(Phone, "en"); got != Phone {
		t.Errorf("nil catalog Label = %q", got)
	}
}

package rules

import (
	"errors"
	"sync"
	"testing"
)

func TestInMemoryCatalogAddAndGet(t *testing.T) {
	catalog := NewInMemoryCatalog()

	if err := catalog.Add(validPanel()); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	p, err := catalog.Get(UricAcid)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if p.Name != "Uric Acid" {
		t.Errorf("Name = %q, want %q", p.Name, "Uric Acid")
	}
}

func TestInMemoryCatalogAddDuplicate(t *testing.T) {
	catalog := NewInMemoryCatalog()

	if err := catalog.Add(validPanel()); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if err := catalog.Add(validPanel()); err == nil {
		t.Error("Add() with duplicate kind should fail")
	}
}

func TestInMemoryCatalogAddInvalid(t *testing.T) {
	catalog := NewInMemoryCatalog()

	p := validPanel()
	p.Rules = nil
	if err := catalog.Add(p); err == nil {
		t.Error("Add() with invalid panel should fail")
	}
	if panels, _ := catalog.List(); len(panels) != 0 {
		t.Errorf("List() returned %d panels after failed Add", len(panels))
	}
}

func TestInMemoryCatalogGetUnknown(t *testing.T) {
	catalog, err := NewDefaultCatalog()
	if err != nil {
		t.Fatalf("NewDefaultCatalog() failed: %v", err)
	}

	_, err = catalog.Get(TestKind(42))
	if !errors.Is(err, ErrUnknownTest) {
		t.Errorf("Get(42) error = %v, want ErrUnknownTest", err)
	}
}

func TestDefaultCatalogList(t *testing.T) {
	catalog, err := NewDefaultCatalog()
	if err != nil {
		t.Fatalf("NewDefaultCatalog() failed: %v", err)
	}
	panels, err := catalog.List()
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(panels) != 6 {
		t.Fatalf("List() returned %d panels, want 6", len(panels))
	}
	for i, p := range panels {
		if p.Kind != Kinds[i] {
			t.Errorf("panels[%d].Kind = %s, want %s", i, p.Kind, Kinds[i])
		}
		if p.Name != p.Kind.String() {
			t.Errorf("panels[%d].Name = %q, want %q", i, p.Name, p.Kind.String())
		}
	}
}

func TestNewCatalogRejectsInvalidPanels(t *testing.T) {
	broken := DefaultPanels()[0]
	broken.Fields = nil

	testCases := []struct {
		name   string
		panels []*Panel
	}{
		{"invalid panel", []*Panel{broken}},
		{"duplicate kind", []*Panel{DefaultPanels()[1], DefaultPanels()[1]}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if c, err := NewCatalog(tc.panels...); err == nil {
				t.Errorf("NewCatalog() = %v, want error", c)
			}
		})
	}
}

func TestInMemoryCatalogConcurrentAccess(t *testing.T) {
	catalog := NewInMemoryCatalog()
	var wg sync.WaitGroup

	for _, p := range DefaultPanels() {
		wg.Add(2)
		go func(p *Panel) {
			defer wg.Done()
			if err := catalog.Add(p); err != nil {
				t.Errorf("Add(%s) failed: %v", p.Kind, err)
			}
		}(p)
		go func() {
			defer wg.Done()
			_, _ = catalog.List()
		}()
	}
	wg.Wait()

	panels, _ := catalog.List()
	if len(panels) != 6 {
		t.Errorf("List() returned %d panels, want 6", len(panels))
	}
}

func TestTestKind(t *testing.T) {
	if !CompleteBloodCount.Valid() || TestKind(0).Valid() || TestKind(7).Valid() {
		t.Error("Valid() should accept exactly 1 through 6")
	}
	if got := TestKind(99).String(); got != "TestKind(99)" {
		t.Errorf("String() = %q, want %q", got, "TestKind(99)")
	}
	if got := KidneyHealth.String(); got != "Kidney Health" {
		t.Errorf("String() = %q, want %q", got, "Kidney Health")
	}
}

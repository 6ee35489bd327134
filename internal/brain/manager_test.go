package brain

import (
	"context"
	"testing"
)

// fakeProvider is a text-only test provider.
type fakeProvider struct {
	name      string
	available bool
	content   string
}

func (f *fakeProvider) Name() string    { return f.name }
func (f *fakeProvider) Available() bool { return f.available }
func (f *fakeProvider) Generate(ctx context.Context, req Request) (Response, error) {
	return Response{Content: f.content, Model: f.name}, nil
}

// fakeStructured adds JSON capability.
type fakeStructured struct {
	fakeProvider
	jsonContent string
}

func (f *fakeStructured) GenerateJSON(ctx context.Context, req Request) (string, error) {
	return f.jsonContent, nil
}

func TestGetAvailableFallsBackInOrder(t *testing.T) {
	pm := NewProviderManager()
	pm.AddProvider(&fakeProvider{name: "first", available: false})
	pm.AddProvider(&fakeProvider{name: "second", available: true})
	pm.AddProvider(&fakeProvider{name: "third", available: true})

	p := pm.GetAvailable()
	if p == nil || p.Name() != "second" {
		t.Fatalf("GetAvailable = %v, want second", p)
	}
}

func TestGetAvailablePrefersPreferred(t *testing.T) {
	pm := NewProviderManager()
	pm.AddProvider(&fakeProvider{name: "first", available: true})
	pm.AddProvider(&fakeProvider{name: "second", available: true})
	pm.SetPreferred("second")

	p := pm.GetAvailable()
	if p == nil || p.Name() != "second" {
		t.Fatalf("GetAvailable = %v, want second", p)
	}
}

func TestGetAvailableIgnoresUnavailablePreferred(t *testing.T) {
	pm := NewProviderManager()
	pm.AddProvider(&fakeProvider{name: "first", available: true})
	pm.AddProvider(&fakeProvider{name: "second", available: false})
	pm.SetPreferred("second")

	p := pm.GetAvailable()
	if p == nil || p.Name() != "first" {
		t.Fatalf("GetAvailable = %v, want first", p)
	}
}

func TestGetAvailableNoneConfigured(t *testing.T) {
	pm := NewProviderManager()
	pm.AddProvider(&fakeProvider{name: "down", available: false})

	if p := pm.GetAvailable(); p != nil {
		t.Fatalf("GetAvailable = %v, want nil", p)
	}
}

func TestGetStructuredSkipsTextOnlyProviders(t *testing.T) {
	pm := NewProviderManager()
	pm.AddProvider(&fakeProvider{name: "textonly", available: true})
	pm.AddProvider(&fakeStructured{fakeProvider: fakeProvider{name: "json", available: true}})

	sp := pm.GetStructured()
	if sp == nil || sp.Name() != "json" {
		t.Fatalf("GetStructured = %v, want json", sp)
	}
}

func TestGetStructuredNilWhenOnlyTextProviders(t *testing.T) {
	pm := NewProviderManager()
	pm.AddProvider(&fakeProvider{name: "textonly", available: true})

	if sp := pm.GetStructured(); sp != nil {
		t.Fatalf("GetStructured = %v, want nil", sp)
	}
}

func TestListAvailable(t *testing.T) {
	pm := NewProviderManager()
	pm.AddProvider(&fakeProvider{name: "a", available: true})
	pm.AddProvider(&fakeProvider{name: "b", available: false})
	pm.AddProvider(&fakeProvider{name: "c", available: true})

	names := pm.ListAvailable()
	if len(names) != 2 || names[0] != "a" || names[1] != "c" {
		t.Fatalf("ListAvailable = %v, want [a c]", names)
	}
}

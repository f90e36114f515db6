package store_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jacentio/tablestore/backend/memtable"
	"github.com/jacentio/tablestore/store"
)

func namedDescriptor(table string) store.Descriptor {
	d := accountDescriptor()
	d.TableName = func() string { return table }
	return d
}

func TestNewRegistry(t *testing.T) {
	r := store.NewRegistry()
	if r == nil {
		t.Fatal("expected non-nil Registry")
	}
	if len(r.Tables()) != 0 {
		t.Errorf("expected empty registry, got %v", r.Tables())
	}
}

func TestDefine_RegistersModel(t *testing.T) {
	client := store.New(memtable.New(memtable.Options{}), store.Config{})

	accounts, err := client.Define(namedDescriptor("accounts"))
	if err != nil {
		t.Fatalf("Define failed: %v", err)
	}

	m, ok := client.Registry().Lookup("accounts")
	if !ok {
		t.Fatal("expected model to be registered")
	}
	if m != accounts {
		t.Error("expected Lookup to return the defined model")
	}
	if !client.Registry().Has("accounts") {
		t.Error("expected Has to report the table")
	}
	if client.Registry().Has("orders") {
		t.Error("expected Has to be false for an undefined table")
	}
}

func TestDefine_Duplicate(t *testing.T) {
	client := store.New(memtable.New(memtable.Options{}), store.Config{})

	if _, err := client.Define(namedDescriptor("accounts")); err != nil {
		t.Fatalf("Define failed: %v", err)
	}
	_, err := client.Define(namedDescriptor("accounts"))
	if !errors.Is(err, store.ErrAlreadyDefined) {
		t.Errorf("expected ErrAlreadyDefined, got %v", err)
	}
}

func TestDefine_Invalid(t *testing.T) {
	client := store.New(memtable.New(memtable.Options{}), store.Config{})

	tests := []struct {
		name string
		d    store.Descriptor
	}{
		{"empty table name", namedDescriptor("")},
		{"missing key function", store.Descriptor{TableName: func() string { return "x" }}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := client.Define(tt.d); !errors.Is(err, store.ErrInvalidDescriptor) {
				t.Errorf("expected ErrInvalidDescriptor, got %v", err)
			}
		})
	}
	if len(client.Registry().Tables()) != 0 {
		t.Error("expected invalid descriptors not to be registered")
	}
}

func TestMustDefine_Panics(t *testing.T) {
	client := store.New(memtable.New(memtable.Options{}), store.Config{})

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected MustDefine to panic")
		}
	}()
	client.MustDefine(store.Descriptor{})
}

func TestRegistry_TablesInDefinitionOrder(t *testing.T) {
	client := store.New(memtable.New(memtable.Options{}), store.Config{})

	for _, table := range []string{"orders", "accounts", "invoices"} {
		client.MustDefine(namedDescriptor(table))
	}

	if diff := cmp.Diff([]string{"orders", "accounts", "invoices"}, client.Registry().Tables()); diff != "" {
		t.Errorf("tables mismatch (-want +got):\n%s", diff)
	}

	tables := client.Registry().Tables()
	tables[0] = "mutated"
	if client.Registry().Tables()[0] != "orders" {
		t.Error("expected Tables to return a copy")
	}
}

func TestModel_TableName(t *testing.T) {
	client := store.New(memtable.New(memtable.Options{}), store.Config{})
	m := client.MustDefine(namedDescriptor("accounts"))

	if m.TableName() != "accounts" {
		t.Errorf("expected 'accounts', got %q", m.TableName())
	}
}

package utils

import "testing"

type source struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Extra string `json:"extra"`
}

type target struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestConvertStruct(t *testing.T) {
	got, err := ConvertStruct[source, target](source{Name: "a", Count: 2, Extra: "dropped"})
	if err != nil {
		t.Fatalf("ConvertStruct: %v", err)
	}

	if got.Name != "a" || got.Count != 2 {
		t.Errorf("got %+v", got)
	}
}

func TestConvertStructMismatchedTypes(t *testing.T) {
	type wrong struct {
		Name int `json:"name"`
	}

	if _, err := ConvertStruct[source, wrong](source{Name: "a"}); err == nil {
		t.Error("expected an error for a string into an int field")
	}
}

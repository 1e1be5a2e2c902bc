package main

import (
	"reflect"
	"testing"

	"databox/internal/databox"
)

func TestParseOnOff(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"on", true, false},
		{"ON", true, false},
		{"yes", true, false},
		{"off", false, false},
		{"false", false, false},
		{"maybe", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseOnOff(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseOnOff() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseOnOff() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestColumnDisplay(t *testing.T) {
	ten, two := 10, 2
	c := databox.Column{
		Name:       "price",
		Type:       databox.TypeDecimal,
		Length:     &ten,
		Scale:      &two,
		Required:   true,
		ForeignKey: &databox.ForeignKey{Table: "items", Column: "id"},
	}
	if got := columnType(c); got != "decimal(10,2)" {
		t.Errorf("columnType() = %q", got)
	}
	if got := columnFlags(c); !reflect.DeepEqual(got, []string{"required", "fk=items.id"}) {
		t.Errorf("columnFlags() = %v", got)
	}
	if got := columnType(databox.Column{Type: databox.TypeText}); got != "text" {
		t.Errorf("columnType() = %q", got)
	}
}

func TestMaskToken(t *testing.T) {
	if got := maskToken("short"); got != "short" {
		t.Errorf("maskToken(short) = %q", got)
	}
	if got := maskToken("eyJhbGciOiJIUzI1NiJ9.payload"); got != "eyJhbGciOiJI..." {
		t.Errorf("maskToken() = %q", got)
	}
}

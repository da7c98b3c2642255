package fields

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"
)

func TestLookupPriority(t *testing.T) {
	p := Payload{"numero": "123"}
	v, ok := Lookup(p, Aliases{"to", "numero"})
	if !ok || v != "123" {
		t.Fatalf("Lookup = %v, %v; want 123, true", v, ok)
	}

	p = Payload{"numero": "123", "to": "456"}
	if got := String(p, Aliases{"to", "numero"}, ""); got != "456" {
		t.Errorf("String = %q, want first alias value 456", got)
	}
}

func TestLookupSkipsNil(t *testing.T) {
	p := Payload{"to": nil, "number": "789"}
	if got := String(p, Recipient, ""); got != "789" {
		t.Errorf("String = %q, want 789 (nil must be skipped)", got)
	}
}

func TestLookupKeepsEmptyString(t *testing.T) {
	p := Payload{"to": "", "number": "789"}
	if got := String(p, Recipient, "fallback"); got != "" {
		t.Errorf("String = %q, want empty string from first present alias", got)
	}
}

func TestFallback(t *testing.T) {
	if got := String(Payload{}, Filename, "image.png"); got != "image.png" {
		t.Errorf("String = %q, want fallback", got)
	}
	if got := String(nil, Caption, "none"); got != "none" {
		t.Errorf("String on nil payload = %q, want fallback", got)
	}
	if _, ok := Lookup(Payload{"other": "x"}, Recipient); ok {
		t.Error("Lookup matched an unrelated key")
	}
}

func TestStringRendersNumbers(t *testing.T) {
	dec := json.NewDecoder(strings.NewReader(`{"to": 11987654321, "flag": true, "obj": {"a": 1}}`))
	dec.UseNumber()
	var p Payload
	if err := dec.Decode(&p); err != nil {
		t.Fatal(err)
	}
	if got := String(p, Aliases{"to"}, ""); got != "11987654321" {
		t.Errorf("number = %q, want 11987654321", got)
	}
	if got := String(p, Aliases{"flag"}, ""); got != "true" {
		t.Errorf("bool = %q, want true", got)
	}
	if got := String(p, Aliases{"obj"}, "fb"); got != "fb" {
		t.Errorf("object = %q, want fallback", got)
	}
	if got := String(Payload{"n": 5511.0}, Aliases{"n"}, ""); got != "5511" {
		t.Errorf("float = %q, want 5511", got)
	}
}

func TestFromValuesAndHeader(t *testing.T) {
	q := FromValues(url.Values{"numero": {"1", "2"}, "empty": {}})
	if q["numero"] != "1" {
		t.Errorf("numero = %v, want first value", q["numero"])
	}
	if _, ok := q["empty"]; ok {
		t.Error("key without values should be absent")
	}

	h := http.Header{}
	h.Set("Conta", "acme")
	hp := FromHeader(h)
	if got := String(hp, AccountHeader, ""); got != "acme" {
		t.Errorf("header conta = %q, want acme", got)
	}
}

package tool

import "testing"

func TestSchemaRequiredExcludesOptional(t *testing.T) {
	s := Schema(
		Param{Name: "message", Type: "string"},
		Param{Name: "timeout", Type: "number", Optional: true},
	)

	if s.Type != "object" {
		t.Fatalf("Type = %q, want object", s.Type)
	}
	if len(s.Properties) != 2 {
		t.Fatalf("Properties = %v, want 2 entries", s.Properties)
	}
	if len(s.Required) != 1 || s.Required[0] != "message" {
		t.Errorf("Required = %v, want [message]", s.Required)
	}
}

func TestSchemaHidesHiddenParams(t *testing.T) {
	s := Schema(
		Param{Name: "message", Type: "string"},
		Param{Name: "secure_token", Type: "string", Hidden: true},
	)

	if _, ok := s.Properties["secure_token"]; ok {
		t.Error("hidden param must not appear in Properties")
	}
	for _, name := range s.Required {
		if name == "secure_token" {
			t.Error("hidden param must not appear in Required")
		}
	}
}

func TestTextResponse(t *testing.T) {
	content, err := TextResponse("hello")
	if err != nil {
		t.Fatalf("TextResponse() error = %v", err)
	}
	if content.Text != "hello" {
		t.Errorf("Text = %q, want hello", content.Text)
	}
}

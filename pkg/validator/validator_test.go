package validator

import "testing"

type sampleRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=user collaborator admin"`
}

func TestValidateStructPasses(t *testing.T) {
	req := sampleRequest{Email: "agent@example.com", Role: "collaborator"}
	if err := ValidateStruct(&req); err != nil {
		t.Fatalf("expected validation to pass, got %v", err)
	}
}

func TestValidateStructCollectsFailures(t *testing.T) {
	req := sampleRequest{Email: "not-an-email", Role: "owner"}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation failure")
	}

	failures, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(failures) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(failures))
	}

	// Field names come from json tags, not struct field names.
	if failures[0].Field != "email" {
		t.Fatalf("expected field name from json tag, got %s", failures[0].Field)
	}
}

func TestValidationErrorsMessage(t *testing.T) {
	errs := ValidationErrors{
		{Field: "role", Tag: "oneof", Param: "user collaborator admin"},
	}
	if errs.Error() != "role failed on oneof=user collaborator admin" {
		t.Fatalf("unexpected message: %s", errs.Error())
	}
}

// Watchpost - Watch Session Analytics for Video Players
// Copyright 2026 Watchpost contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package validation

import (
	"strings"
	"testing"
)

type ingestFixture struct {
	VideoID   string  `validate:"required,max=64"`
	ViewerID  string  `validate:"required,max=64"`
	EventType string  `validate:"required,oneof=play pause seek progress ended"`
	Position  float64 `validate:"gte=0"`
}

func TestValidateStructPasses(t *testing.T) {
	req := ingestFixture{
		VideoID:   "dQw4w9WgXcQ",
		ViewerID:  "viewer-1",
		EventType: "play",
		Position:  12.5,
	}
	if verr := ValidateStruct(&req); verr != nil {
		t.Errorf("expected valid struct, got %v", verr)
	}
}

func TestValidateStructSingleFailure(t *testing.T) {
	req := ingestFixture{
		VideoID:   "dQw4w9WgXcQ",
		ViewerID:  "viewer-1",
		EventType: "rewind",
		Position:  0,
	}

	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("expected validation error for unknown event type")
	}

	apiErr := verr.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %q, want VALIDATION_ERROR", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "EventType must be one of") {
		t.Errorf("unexpected message: %q", apiErr.Message)
	}
	if apiErr.Details["field"] != "EventType" {
		t.Errorf("Details[field] = %v, want EventType", apiErr.Details["field"])
	}
}

func TestValidateStructMultipleFailures(t *testing.T) {
	req := ingestFixture{Position: -1}

	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("expected validation errors")
	}
	if len(verr.Errors()) != 4 {
		t.Errorf("got %d errors, want 4", len(verr.Errors()))
	}

	apiErr := verr.ToAPIError()
	fields, ok := apiErr.Details["fields"].([]map[string]interface{})
	if !ok {
		t.Fatalf("Details[fields] has unexpected type %T", apiErr.Details["fields"])
	}
	if len(fields) != 4 {
		t.Errorf("got %d detail fields, want 4", len(fields))
	}
}

func TestTranslatedMessages(t *testing.T) {
	type fixture struct {
		Name  string `validate:"required"`
		Limit int    `validate:"gte=1,lte=100"`
	}

	verr := ValidateStruct(&fixture{Limit: 500})
	if verr == nil {
		t.Fatal("expected validation errors")
	}

	msg := verr.Error()
	if !strings.Contains(msg, "Name is required") {
		t.Errorf("missing required message: %q", msg)
	}
	if !strings.Contains(msg, "Limit must be less than or equal to 100") {
		t.Errorf("missing lte message: %q", msg)
	}
}

// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package validation

import (
	"strings"
	"testing"
)

type testUpdate struct {
	DayID     *string `json:"dayId" validate:"required,opaqueid,max=16"`
	PatternID *string `json:"patternId,omitempty" validate:"omitempty,opaqueid,max=16"`
}

type testNotification struct {
	Type   string `json:"type" validate:"required,eventtype"`
	TripID string `json:"tripId" validate:"required"`
}

func strPtr(s string) *string { return &s }

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()
	if v1 == nil {
		t.Fatal("GetValidator() returned nil")
	}
	if v1 != v2 {
		t.Error("GetValidator() should return the same instance")
	}
}

func TestValidateStruct_PresenceUpdate(t *testing.T) {
	tests := []struct {
		name      string
		input     testUpdate
		wantField string
		wantTag   string
	}{
		{"day only", testUpdate{DayID: strPtr("day-1")}, "", ""},
		{"day and pattern", testUpdate{DayID: strPtr("day-1"), PatternID: strPtr("pat-2")}, "", ""},
		{"missing day", testUpdate{}, "dayId", "required"},
		{"blank day", testUpdate{DayID: strPtr("   ")}, "dayId", "opaqueid"},
		{"control char", testUpdate{DayID: strPtr("day\x00")}, "dayId", "opaqueid"},
		{"day too long", testUpdate{DayID: strPtr(strings.Repeat("d", 17))}, "dayId", "max"},
		{"pattern too long", testUpdate{DayID: strPtr("d"), PatternID: strPtr(strings.Repeat("p", 17))}, "patternId", "max"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := ValidateStruct(&tt.input)
			if tt.wantField == "" {
				if verr != nil {
					t.Fatalf("ValidateStruct() = %v, want nil", verr)
				}
				return
			}
			if verr == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}
			errs := verr.Errors()
			if len(errs) != 1 {
				t.Fatalf("got %d errors, want 1: %v", len(errs), verr)
			}
			if errs[0].Field() != tt.wantField || errs[0].Tag() != tt.wantTag {
				t.Errorf("error = %s/%s, want %s/%s", errs[0].Field(), errs[0].Tag(), tt.wantField, tt.wantTag)
			}
		})
	}
}

func TestValidateStruct_EventType(t *testing.T) {
	valid := []string{"day:created", "schedule:reordered", "trip:updated", "bookmark_list:deleted"}
	for _, typ := range valid {
		if verr := ValidateStruct(&testNotification{Type: typ, TripID: "t"}); verr != nil {
			t.Errorf("%q rejected: %v", typ, verr)
		}
	}
	invalid := []string{"presence", "Day:created", "day:", ":created", "day:created:now", "day created"}
	for _, typ := range invalid {
		if verr := ValidateStruct(&testNotification{Type: typ, TripID: "t"}); verr == nil {
			t.Errorf("%q accepted, want eventtype error", typ)
		}
	}
}

func TestRequestValidationError_ToAPIError(t *testing.T) {
	t.Run("single field", func(t *testing.T) {
		verr := ValidateStruct(&testUpdate{})
		apiErr := verr.ToAPIError()
		if apiErr.Code != "VALIDATION_ERROR" {
			t.Errorf("Code = %q", apiErr.Code)
		}
		if apiErr.Message != "dayId is required" {
			t.Errorf("Message = %q", apiErr.Message)
		}
		if apiErr.Details["field"] != "dayId" {
			t.Errorf("Details = %v", apiErr.Details)
		}
	})

	t.Run("multiple fields", func(t *testing.T) {
		verr := ValidateStruct(&testNotification{})
		apiErr := verr.ToAPIError()
		fields, ok := apiErr.Details["fields"].([]map[string]interface{})
		if !ok || len(fields) != 2 {
			t.Fatalf("Details[fields] = %#v, want 2 entries", apiErr.Details["fields"])
		}
		if !strings.Contains(apiErr.Message, "type is required") || !strings.Contains(apiErr.Message, "tripId is required") {
			t.Errorf("Message = %q", apiErr.Message)
		}
	})

	t.Run("empty", func(t *testing.T) {
		apiErr := (&RequestValidationError{}).ToAPIError()
		if apiErr.Message != "Validation failed" {
			t.Errorf("Message = %q", apiErr.Message)
		}
	})
}

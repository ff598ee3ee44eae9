package filter

import (
	"reflect"
	"testing"

	apperrors "github.com/instaagents/discovery/internal/platform/errors"
)

func TestParseConversationFilter_StageEquals(t *testing.T) {
	cond, err := ParseConversationFilter(`stage = "propose"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "stage = ?" {
		t.Errorf("expected 'stage = ?', got %q", cond.Clause)
	}
	if len(cond.Params) != 1 {
		t.Fatalf("expected 1 param, got %d", len(cond.Params))
	}
	if cond.Params[0] != "propose" {
		t.Errorf("expected 'propose', got %v", cond.Params[0])
	}
}

func TestParseConversationFilter_Empty(t *testing.T) {
	cond, err := ParseConversationFilter(" ")
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "" || cond.Params != nil {
		t.Fatalf("expected empty condition, got %+v", cond)
	}
}

func TestParseConversationFilter_AndOr(t *testing.T) {
	cond, err := ParseConversationFilter(`stage = "complete" AND source = "widget"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "(stage = ? AND source = ?)" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
	if !reflect.DeepEqual(cond.Params, []any{"complete", "widget"}) {
		t.Fatalf("Params = %v", cond.Params)
	}

	cond, err = ParseConversationFilter(`tier = "growth" OR tier = "enterprise"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "(tier = ? OR tier = ?)" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
}

func TestParseConversationFilter_BoolAndTimestamp(t *testing.T) {
	cond, err := ParseConversationFilter(`calendly_shown = true`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "calendly_shown = ?" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
	if cond.Params[0] != true {
		t.Fatalf("Params = %v", cond.Params)
	}

	cond, err = ParseConversationFilter(`created_at >= timestamp("2026-05-01T00:00:00Z")`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "created_at >= ?" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
	if cond.Params[0] != int64(1777593600000) {
		t.Fatalf("timestamp param = %v", cond.Params[0])
	}
}

func TestParseConversationFilter_InvalidField(t *testing.T) {
	_, err := ParseConversationFilter(`unknown = "x"`)
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
	if apperrors.CodeOf(err) != apperrors.CodeFilterInvalid {
		t.Fatalf("expected filter invalid code, got %v", apperrors.CodeOf(err))
	}
}

func TestParseConversationFilter_InvalidValueFunc(t *testing.T) {
	_, err := ParseConversationFilter(`created_at = duration("1h")`)
	if err == nil {
		t.Fatal("expected error for unsupported value function")
	}
}

func TestParseConversationFilter_InvalidTimestamp(t *testing.T) {
	_, err := ParseConversationFilter(`created_at = timestamp("not-a-time")`)
	if err == nil {
		t.Fatal("expected error for invalid timestamp")
	}
	if apperrors.CodeOf(err) != apperrors.CodeFilterInvalid {
		t.Fatalf("expected filter invalid code, got %v", apperrors.CodeOf(err))
	}
}

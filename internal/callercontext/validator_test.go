package callercontext

import (
	"strings"
	"testing"

	"github.com/stakpak/agent-core/pkg/models"
)

func TestValidate_TooManyItems(t *testing.T) {
	items := make([]models.CallerContextInput, 33)
	for i := range items {
		items[i] = models.CallerContextInput{Name: "n", Content: "c"}
	}
	err := Validate(items)
	if err == nil {
		t.Fatal("expected error for 33 items")
	}
	if !strings.Contains(err.Error(), "32") {
		t.Fatalf("expected error to name limit 32, got: %v", err)
	}
}

func TestValidate_TotalContentLimit(t *testing.T) {
	items := make([]models.CallerContextInput, 11)
	for i := range items {
		items[i] = models.CallerContextInput{Name: "n", Content: strings.Repeat("x", 50_000)}
	}
	err := Validate(items)
	if err == nil {
		t.Fatal("expected error for total content over limit")
	}
	if !strings.Contains(err.Error(), "500000") {
		t.Fatalf("expected error to name total limit, got: %v", err)
	}
}

func TestValidate_NameTooLong(t *testing.T) {
	items := []models.CallerContextInput{{Name: strings.Repeat("n", 257), Content: "c"}}
	if err := Validate(items); err == nil {
		t.Fatal("expected error for name over 256 chars")
	}
}

func TestValidate_ContentTooLong(t *testing.T) {
	items := []models.CallerContextInput{{Name: "n", Content: strings.Repeat("c", 50_001)}}
	if err := Validate(items); err == nil {
		t.Fatal("expected error for content over 50000 chars")
	}
}

func TestValidate_AcceptsWithinLimits(t *testing.T) {
	items := []models.CallerContextInput{{Name: "n", Content: "c"}}
	if err := Validate(items); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestToContextFiles_DropsEmptyAfterTrim(t *testing.T) {
	items := []models.CallerContextInput{
		{Name: "  ", Content: "hello"},
		{Name: "ok", Content: "   "},
		{Name: "valid", Content: "content"},
	}
	files := ToContextFiles(items)
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(files))
	}
	if files[0].Name != "valid" {
		t.Fatalf("expected 'valid' to survive, got %s", files[0].Name)
	}
	if files[0].Priority != models.PriorityCallerSupplied {
		t.Fatalf("expected CallerSupplied priority")
	}
}

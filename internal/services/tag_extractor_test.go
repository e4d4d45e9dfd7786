// internal/services/tag_extractor_test.go
package services

import (
	"reflect"
	"testing"

	"github.com/Corphon/BoardroomMCP/internal/models"
)

func boardPersonas() []*models.Persona {
	return []*models.Persona{
		{ID: "pm", Name: "Product Manager", IsActive: true},
		{ID: "developer", Name: "Lead Developer", IsActive: true},
		{ID: "marketing", Name: "Marketing Lead", IsActive: true},
	}
}

func TestExtractMentionsAtToken(t *testing.T) {
	extractor := NewTagExtractorService()

	got := extractor.ExtractMentions("@developer can this scale?", boardPersonas())
	want := []string{"developer"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractMentions() = %v, want %v", got, want)
	}
}

func TestExtractMentionsRequireAtToken(t *testing.T) {
	extractor := NewTagExtractorService()

	roster := append(boardPersonas(), &models.Persona{ID: "ux", Name: "UX Researcher", IsActive: true})

	// 不带 @ 的提及不算点名，哪怕消息里出现了角色名称或ID的子串
	cases := []string{
		"I'd like the Marketing Lead to weigh in",
		"the shipment of new equipment arrives at 3pm",
		"this is a luxury feature",
	}
	for _, msg := range cases {
		if got := extractor.ExtractMentions(msg, roster); len(got) != 0 {
			t.Errorf("ExtractMentions(%q) = %v, want empty without @", msg, got)
		}
	}
}

func TestExtractMentionsOrderAndDedup(t *testing.T) {
	extractor := NewTagExtractorService()

	// developer 先出现，pm 其后；重复点名只记一次
	got := extractor.ExtractMentions("@developer and @pm, then @developer again", boardPersonas())
	want := []string{"developer", "pm"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractMentions() = %v, want %v", got, want)
	}
}

func TestExtractMentionsUnknownTagIgnored(t *testing.T) {
	extractor := NewTagExtractorService()

	if got := extractor.ExtractMentions("@ceo what do you think?", boardPersonas()); got != nil {
		t.Errorf("ExtractMentions() = %v, want nil for unknown tag", got)
	}
}

func TestExtractMentionsCaseInsensitive(t *testing.T) {
	extractor := NewTagExtractorService()

	got := extractor.ExtractMentions("@Developer please review", boardPersonas())
	want := []string{"developer"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractMentions() = %v, want %v", got, want)
	}
}

func TestExtractMentionsPartialToken(t *testing.T) {
	extractor := NewTagExtractorService()

	// @dev 是 "developer" 的子串，缩写点名也能命中
	got := extractor.ExtractMentions("@dev is this feasible?", boardPersonas())
	want := []string{"developer"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractMentions() = %v, want %v", got, want)
	}
}

func TestExtractMentionsEmptyInputs(t *testing.T) {
	extractor := NewTagExtractorService()

	if got := extractor.ExtractMentions("", boardPersonas()); got != nil {
		t.Errorf("ExtractMentions(empty message) = %v, want nil", got)
	}
	if got := extractor.ExtractMentions("@pm hello", nil); got != nil {
		t.Errorf("ExtractMentions(no personas) = %v, want nil", got)
	}
}

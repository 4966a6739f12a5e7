package ai

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/hray3182/chronoparse/internal/models"
)

func TestBuildSystemPrompt(t *testing.T) {
	pc := models.ParseContext{
		CurrentTime: "2025-01-15T10:00:00+08:00",
		Timezone:    "Asia/Shanghai",
		Locale:      "zh-CN",
	}
	opts := models.ParseOptions{DefaultDurationMinutes: 45, MaxEvents: 7}

	got := BuildSystemPrompt(pc, opts)
	for _, want := range []string{
		"2025-01-15T10:00:00+08:00",
		"Wednesday",
		"Asia/Shanghai",
		"zh-CN",
		"+08:00",
		"45 分钟",
		"最多输出 7 个事件",
		"evt_<时间戳>_<序号>",
		"work、personal、health、other",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(got, "过去时间") {
		t.Error("past-event rule must only appear when allowed")
	}

	if again := BuildSystemPrompt(pc, opts); again != got {
		t.Error("prompt is not deterministic")
	}

	opts.AllowPastEvents = true
	if !strings.Contains(BuildSystemPrompt(pc, opts), "过去时间") {
		t.Error("allow_past_events must add the past-event rule")
	}
}

func TestBuildSystemPromptDefaults(t *testing.T) {
	got := BuildSystemPrompt(models.ParseContext{CurrentTime: "2025-01-15T10:00:00-05:00", Timezone: "America/New_York"}, models.ParseOptions{})
	for _, want := range []string{"-05:00", models.DefaultLocale, "60 分钟", "最多输出 10 个事件"} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestDegradedPromptCarriesSchema(t *testing.T) {
	got := appendSchemaInstructions("base")
	if !strings.HasPrefix(got, "base") {
		t.Error("degraded prompt must extend the base prompt")
	}
	if !strings.Contains(got, string(EventSchema)) || !strings.Contains(got, schemaDescription) {
		t.Error("degraded prompt must include the schema and its description")
	}
}

func TestEventSchemaIsStrict(t *testing.T) {
	var schema struct {
		AdditionalProperties bool     `json:"additionalProperties"`
		Required             []string `json:"required"`
		Properties           struct {
			Events struct {
				Items struct {
					Properties           map[string]json.RawMessage `json:"properties"`
					Required             []string                   `json:"required"`
					AdditionalProperties bool                       `json:"additionalProperties"`
				} `json:"items"`
			} `json:"events"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(EventSchema, &schema); err != nil {
		t.Fatalf("schema is not valid JSON: %v", err)
	}
	if schema.AdditionalProperties || len(schema.Required) != 1 || schema.Required[0] != "events" {
		t.Errorf("top level = %+v", schema)
	}

	items := schema.Properties.Events.Items
	if items.AdditionalProperties {
		t.Error("event items must forbid additional properties")
	}
	required := map[string]bool{}
	for _, r := range items.Required {
		required[r] = true
	}
	for name := range items.Properties {
		if !required[name] {
			t.Errorf("property %q is declared but not required", name)
		}
	}
}

package ai

import (
	"fmt"
	"strings"

	"github.com/hray3182/chronoparse/internal/models"
	"github.com/hray3182/chronoparse/internal/timecheck"
)

const systemPromptTemplate = `你是一个日程解析助手，负责把用户的自然语言描述转换为日历事件 (FullCalendar 兼容格式)。

当前时间: %s
当前星期: %s
用户时区: %s
用户语言: %s

规则:
1. 以当前时间和用户时区为基准，计算「明天」、「下周一」、「3 小时后」等相对时间的具体日期时间。
2. 所有时间必须是 ISO 8601 格式 YYYY-MM-DDTHH:MM:SS±HH:MM，并且必须带显式的 UTC 偏移 (例如 %s)，禁止使用 Z 或省略偏移。
3. 未说明结束时间时，结束时间 = 开始时间 + %d 分钟，并把 "end" 加入 metadata.inferredFields。
4. 全天事件设置 allDay = true，start 为当天 00:00:00，end 为次日 00:00:00，均带偏移。
5. end 必须严格晚于 start。
6. 最多输出 %d 个事件，按开始时间排序。
7. id 格式: evt_<时间戳>_<序号>，序号从 0 开始，同一次响应内不得重复。
8. title 简洁明确，不能为空；extendedProps.category 只能是 work、personal、health、other 之一。
9. 重复事件使用 recurrence: freq 为 DAILY、WEEKLY、MONTHLY、YEARLY 之一；byDay 只能包含 MO、TU、WE、TH、FR、SA、SU。用户没有明确说明结束日期或次数时，until 和 count 都设为 null，不要自行限制次数。
10. 没有的可选字段设为 null。
11. metadata.confidence 为 0 到 1 之间的置信度；metadata.sourceText 为该事件对应的原文片段；metadata.inferredFields 列出原文没有明确给出、由你推断的字段名。
12. 输入中没有可识别的日程时，返回 {"events": []}。
13. 只输出 JSON，不要输出任何解释文字或 Markdown。`

// BuildSystemPrompt renders the system prompt for one request. It performs no
// I/O and is deterministic for a given context and options.
func BuildSystemPrompt(pc models.ParseContext, opts models.ParseOptions) string {
	weekday := "未知"
	offset := "+00:00"
	if t, err := timecheck.ParseISO8601WithOffset(pc.CurrentTime); err == nil {
		weekday = t.Weekday().String()
		offset = t.Format("-07:00")
	}

	locale := pc.Locale
	if locale == "" {
		locale = models.DefaultLocale
	}
	duration := opts.DefaultDurationMinutes
	if duration <= 0 {
		duration = models.DefaultDurationMinutes
	}
	maxEvents := opts.MaxEvents
	if maxEvents <= 0 {
		maxEvents = models.DefaultMaxEvents
	}

	prompt := fmt.Sprintf(systemPromptTemplate,
		pc.CurrentTime, weekday, pc.Timezone, locale,
		offset, duration, maxEvents,
	)
	if opts.AllowPastEvents {
		prompt += "\n14. 用户允许创建过去时间的事件，不要把过去的时间自动顺延到未来。"
	}
	return prompt
}

// appendSchemaInstructions is the degraded-mode prompt: the schema travels as
// text because the endpoint will not enforce it.
func appendSchemaInstructions(prompt string) string {
	var sb strings.Builder
	sb.WriteString(prompt)
	sb.WriteString("\n\n输出必须是一个 JSON 对象，严格符合以下 JSON Schema:\n")
	sb.Write(EventSchema)
	sb.WriteString("\n\n")
	sb.WriteString(schemaDescription)
	return sb.String()
}

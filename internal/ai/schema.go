package ai

import "encoding/json"

// SchemaName is the json_schema name sent with structured requests.
const SchemaName = "calendar_events"

// EventSchema is the structured-output contract. Strict engines require every
// declared property to be listed in "required", so optional values are typed
// as nullable and optional objects are either complete or null.
var EventSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"events": {
			"type": "array",
			"description": "Parsed calendar events",
			"items": {
				"type": "object",
				"properties": {
					"id": {
						"type": "string",
						"description": "Unique identifier, format evt_<timestamp>_<index>"
					},
					"title": {
						"type": "string",
						"description": "Event title"
					},
					"start": {
						"type": "string",
						"description": "ISO 8601 start time with explicit UTC offset",
						"pattern": "^\\d{4}-\\d{2}-\\d{2}T\\d{2}:\\d{2}:\\d{2}[+-]\\d{2}:\\d{2}$"
					},
					"end": {
						"type": "string",
						"description": "ISO 8601 end time with explicit UTC offset",
						"pattern": "^\\d{4}-\\d{2}-\\d{2}T\\d{2}:\\d{2}:\\d{2}[+-]\\d{2}:\\d{2}$"
					},
					"allDay": {
						"type": "boolean",
						"description": "Whether this is an all-day event"
					},
					"description": {
						"type": ["string", "null"],
						"description": "Detailed description"
					},
					"location": {
						"type": ["string", "null"],
						"description": "Location"
					},
					"backgroundColor": {
						"type": ["string", "null"],
						"description": "Background color, hex such as #3788d8"
					},
					"borderColor": {
						"type": ["string", "null"],
						"description": "Border color, hex"
					},
					"textColor": {
						"type": ["string", "null"],
						"description": "Text color, hex"
					},
					"extendedProps": {
						"type": ["object", "null"],
						"properties": {
							"description": {"type": ["string", "null"]},
							"location": {"type": ["string", "null"]},
							"category": {
								"type": ["string", "null"],
								"enum": ["work", "personal", "health", "other", null]
							},
							"timezone": {
								"type": ["string", "null"],
								"description": "IANA timezone identifier such as Asia/Shanghai"
							},
							"priority": {
								"type": ["string", "null"],
								"description": "high, medium or low"
							}
						},
						"required": ["description", "location", "category", "timezone", "priority"],
						"additionalProperties": false
					},
					"recurrence": {
						"type": ["object", "null"],
						"properties": {
							"freq": {
								"type": "string",
								"enum": ["DAILY", "WEEKLY", "MONTHLY", "YEARLY"]
							},
							"interval": {
								"type": ["integer", "null"],
								"minimum": 1
							},
							"byDay": {
								"type": ["array", "null"],
								"items": {
									"type": "string",
									"enum": ["MO", "TU", "WE", "TH", "FR", "SA", "SU"]
								}
							},
							"until": {
								"type": ["string", "null"],
								"description": "ISO 8601 end date, null when not stated"
							},
							"count": {
								"type": ["integer", "null"],
								"minimum": 1,
								"description": "Number of occurrences, null when not stated"
							}
						},
						"required": ["freq", "interval", "byDay", "until", "count"],
						"additionalProperties": false
					},
					"metadata": {
						"type": "object",
						"properties": {
							"confidence": {
								"type": "number",
								"minimum": 0,
								"maximum": 1
							},
							"sourceText": {
								"type": "string",
								"description": "The span of input this event came from"
							},
							"inferredFields": {
								"type": "array",
								"items": {"type": "string"},
								"description": "Fields filled in without explicit support in the text"
							}
						},
						"required": ["confidence", "sourceText", "inferredFields"],
						"additionalProperties": false
					}
				},
				"required": ["id", "title", "start", "end", "allDay", "description", "location", "backgroundColor", "borderColor", "textColor", "extendedProps", "recurrence", "metadata"],
				"additionalProperties": false
			}
		}
	},
	"required": ["events"],
	"additionalProperties": false
}`)

// schemaDescription restates the contract in prose for degraded mode, where
// the schema above is advisory only.
const schemaDescription = `字段说明:
- 顶层只有一个字段 events (数组)。
- 每个事件必须包含: id, title, start, end, allDay, metadata。
- start / end: YYYY-MM-DDTHH:MM:SS±HH:MM，必须带 UTC 偏移。
- metadata 必须包含 confidence (0-1 的数字), sourceText (字符串), inferredFields (字符串数组)。
- description, location, backgroundColor, borderColor, textColor, extendedProps, recurrence 可以为 null。
- recurrence 不为 null 时必须包含 freq。`

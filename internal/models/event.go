package models

type Category string

const (
	CategoryWork     Category = "work"
	CategoryPersonal Category = "personal"
	CategoryHealth   Category = "health"
	CategoryOther    Category = "other"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryWork, CategoryPersonal, CategoryHealth, CategoryOther:
		return true
	}
	return false
}

type Frequency string

const (
	FreqDaily   Frequency = "DAILY"
	FreqWeekly  Frequency = "WEEKLY"
	FreqMonthly Frequency = "MONTHLY"
	FreqYearly  Frequency = "YEARLY"
)

func (f Frequency) Valid() bool {
	switch f {
	case FreqDaily, FreqWeekly, FreqMonthly, FreqYearly:
		return true
	}
	return false
}

type Weekday string

const (
	Monday    Weekday = "MO"
	Tuesday   Weekday = "TU"
	Wednesday Weekday = "WE"
	Thursday  Weekday = "TH"
	Friday    Weekday = "FR"
	Saturday  Weekday = "SA"
	Sunday    Weekday = "SU"
)

func (d Weekday) Valid() bool {
	switch d {
	case Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday:
		return true
	}
	return false
}

// CalendarEvent is the canonical, validated event handed back to callers.
// Optional object fields are nil when the model left them unset, whichever
// of the two upstream representations it used.
type CalendarEvent struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Start           string         `json:"start"` // ISO 8601 with numeric offset
	End             string         `json:"end"`
	AllDay          bool           `json:"allDay"`
	Description     *string        `json:"description,omitempty"`
	Location        *string        `json:"location,omitempty"`
	BackgroundColor *string        `json:"backgroundColor,omitempty"`
	BorderColor     *string        `json:"borderColor,omitempty"`
	TextColor       *string        `json:"textColor,omitempty"`
	ExtendedProps   *ExtendedProps `json:"extendedProps,omitempty"`
	Recurrence      *Recurrence    `json:"recurrence,omitempty"`
	Metadata        EventMetadata  `json:"metadata"`
}

type ExtendedProps struct {
	Description *string  `json:"description,omitempty"`
	Location    *string  `json:"location,omitempty"`
	Category    Category `json:"category,omitempty"`
	Timezone    string   `json:"timezone,omitempty"`
	Priority    string   `json:"priority,omitempty"`
}

// Recurrence mirrors the RFC 5545 subset the model may emit. Until and Count
// are independent; both empty means the series never ends.
type Recurrence struct {
	Freq     Frequency `json:"freq"`
	Interval int       `json:"interval,omitempty"`
	ByDay    []Weekday `json:"byDay,omitempty"`
	Until    string    `json:"until,omitempty"`
	Count    int       `json:"count,omitempty"`
}

// IsUnbounded returns true if the series has neither an end date nor a count
func (r *Recurrence) IsUnbounded() bool {
	return r.Until == "" && r.Count == 0
}

type EventMetadata struct {
	Confidence     float64  `json:"confidence"`
	SourceText     string   `json:"sourceText"`
	InferredFields []string `json:"inferredFields"`
}

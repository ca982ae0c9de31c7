package envelope

// Payload is the typed view of an envelope's data, selected by kind×type.
// Exactly one of the variant types in this file implements it.
type Payload interface {
	payload()
}

// Status fields shared by full and delta snapshots.
type Status struct {
	Enabled *bool
	TPS     *float64
	// Fields is the raw data map; full-only checks and merges operate on it.
	Fields map[string]any
}

// StatusFull replaces all known state for a scope.
type StatusFull struct{ Status }

// StatusDelta overlays a partial update on an existing full snapshot.
type StatusDelta struct{ Status }

// Outcome reports the result of a command.
type Outcome struct {
	Status    string
	Code      string
	Retryable *bool
	Fields    map[string]any
}

// Alert is a kind=event notification.
type Alert struct {
	Level   string
	Code    string
	Message string
	Fields  map[string]any
}

// Signal is a control command broadcast by the orchestrator.
type Signal struct {
	Args map[string]any
}

// Metric is any kind=metric envelope that is not a status snapshot.
type Metric struct {
	Fields map[string]any
}

func (StatusFull) payload()  {}
func (StatusDelta) payload() {}
func (Outcome) payload()     {}
func (Alert) payload()       {}
func (Signal) payload()      {}
func (Metric) payload()      {}

func payloadFor(kind Kind, typ string, data map[string]any) Payload {
	switch kind {
	case KindMetric:
		switch typ {
		case TypeStatusFull:
			return StatusFull{statusOf(data)}
		case TypeStatusDelta:
			return StatusDelta{statusOf(data)}
		default:
			return Metric{Fields: data}
		}
	case KindOutcome:
		return Outcome{
			Status:    stringField(data, "status"),
			Code:      stringField(data, "code"),
			Retryable: boolField(data, "retryable"),
			Fields:    data,
		}
	case KindEvent:
		return Alert{
			Level:   stringField(data, "level"),
			Code:    stringField(data, "code"),
			Message: stringField(data, "message"),
			Fields:  data,
		}
	case KindSignal:
		return Signal{Args: data}
	default:
		return nil
	}
}

func statusOf(data map[string]any) Status {
	return Status{
		Enabled: boolField(data, "enabled"),
		TPS:     floatField(data, "tps"),
		Fields:  data,
	}
}

func stringField(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}

func boolField(data map[string]any, key string) *bool {
	if b, ok := data[key].(bool); ok {
		return &b
	}
	return nil
}

func floatField(data map[string]any, key string) *float64 {
	if f, ok := data[key].(float64); ok {
		return &f
	}
	return nil
}

package entity

import "github.com/shopspring/decimal"

// Scenario is the social situation an expense belongs to.
type Scenario string

const (
	ScenarioUnknown     Scenario = ""
	ScenarioRodizio     Scenario = "rodizio"
	ScenarioHappyHour   Scenario = "happy_hour"
	ScenarioChurrasco   Scenario = "churrasco"
	ScenarioAniversario Scenario = "aniversario"
	ScenarioVaquinha    Scenario = "vaquinha"
	ScenarioViagem      Scenario = "viagem"
	ScenarioRestaurante Scenario = "restaurante"
)

// ParseScenario accepts a tag as sent by clients; unrecognized tags map to ScenarioUnknown.
func ParseScenario(s string) Scenario {
	switch sc := Scenario(s); sc {
	case ScenarioRodizio, ScenarioHappyHour, ScenarioChurrasco, ScenarioAniversario,
		ScenarioVaquinha, ScenarioViagem, ScenarioRestaurante:
		return sc
	}
	return ScenarioUnknown
}

// Method is the policy used to split a total between participants.
type Method string

const (
	MethodUnknown       Method = ""
	MethodEqual         Method = "equal"
	MethodByConsumption Method = "by_consumption"
	MethodHostPays      Method = "host_pays"
	MethodVaquinha      Method = "vaquinha"
	MethodByFamily      Method = "by_family"
)

func ParseMethod(s string) Method {
	switch m := Method(s); m {
	case MethodEqual, MethodByConsumption, MethodHostPays, MethodVaquinha, MethodByFamily:
		return m
	}
	return MethodUnknown
}

// CulturalContext carries optional hints about where and with whom the expense happened.
type CulturalContext struct {
	Region       string `json:"region,omitempty"`
	ScenarioHint string `json:"scenario_hint,omitempty"`
	GroupType    string `json:"group_type,omitempty"`
	TimeOfDay    string `json:"time_of_day,omitempty"`
}

type Preferences struct {
	Formality         string `json:"formality,omitempty"`
	PaymentPreference string `json:"payment_preference,omitempty"`
}

// Family is a group of participants that is treated as a single unit by MethodByFamily.
type Family struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// SplitInputs are the side constraints some methods need and free text cannot provide.
type SplitInputs struct {
	Host        string                     `json:"host,omitempty"`
	Consumption map[string]decimal.Decimal `json:"consumption,omitempty"`
	Families    []Family                   `json:"families,omitempty"`
}

// InterpretRequest is the inbound call of the interpretation engine. The locale is always pt-BR.
type InterpretRequest struct {
	RequestID    string          `json:"request_id,omitempty"`
	Text         string          `json:"text"`
	Participants []string        `json:"participants,omitempty"`
	Context      CulturalContext `json:"cultural_context"`
	Preferences  Preferences     `json:"preferences"`
	Split        SplitInputs     `json:"split"`
}

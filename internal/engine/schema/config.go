// Package schema holds the §6 configuration document shapes (database
// schema and simulation config) plus the column resolver (C3) that maps
// semantic roles onto concrete column names.
package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GeneratorConfig describes how an attribute's initial value is produced
// at entity-creation time, grounded on db_parser.Generator plus the
// formula field entity_manager.py reads off foreign_key generators.
// Exactly the fields relevant to Type are populated; the rest are zero.
type GeneratorConfig struct {
	Type         string        `yaml:"type"`
	Method       string        `yaml:"method,omitempty"`       // faker: dotted method path, e.g. "person.fullName"
	Template     string        `yaml:"template,omitempty"`     // template: may contain "{id}" for the row index
	Formula      string        `yaml:"formula,omitempty"`      // foreign_key: optional formula selecting a parent index
	Distribution FormulaOrSpec `yaml:"distribution,omitempty"` // distribution: draw shape
	Values       []any         `yaml:"values,omitempty"`       // choice: weighted value pool
	Weights      []float64     `yaml:"weights,omitempty"`
}

// AttributeConfig describes one column of a declared table. Type is the
// column's semantic role (pk, entity_id, event_id, resource_id,
// event_type) or a SQL-ish scalar type, optionally parameterised
// (decimal(10,2)).
type AttributeConfig struct {
	Name      string           `yaml:"name"`
	Type      string           `yaml:"type"`
	Generator *GeneratorConfig `yaml:"generator,omitempty"`
	Ref       string           `yaml:"ref,omitempty"`
}

// TableConfig describes one declared table (entity, resource, event, or
// bridge table).
type TableConfig struct {
	Name       string            `yaml:"name"`
	Type       string            `yaml:"type"`
	Attributes []AttributeConfig `yaml:"attributes"`
	Rows       int               `yaml:"rows,omitempty"`
}

// DatabaseConfig is the top-level §6 "Database config" document.
type DatabaseConfig struct {
	Entities []TableConfig `yaml:"entities"`
}

// LoadDatabaseConfig reads and unmarshals a database config YAML file.
// It does no semantic validation — that's the Column Resolver's job at
// first use.
func LoadDatabaseConfig(path string) (*DatabaseConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: read database config %s: %w", path, err)
	}
	var cfg DatabaseConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("schema: parse database config %s: %w", path, err)
	}
	return &cfg, nil
}

// ResourceRequirement is one entry of an event step's resource_requirements.
type ResourceRequirement struct {
	ResourceTable string    `yaml:"resource_table"`
	Value         string    `yaml:"value"`
	Count         CountSpec `yaml:"count,omitempty"`
	Queue         string    `yaml:"queue,omitempty"`
}

// EventConfig is the event_config payload of an Event step.
type EventConfig struct {
	Name                string                `yaml:"name"`
	Duration            FormulaOrSpec         `yaml:"duration"`
	ResourceRequirements []ResourceRequirement `yaml:"resource_requirements"`
}

// DecideCondition is one outcome condition within a decide_config.
type DecideCondition struct {
	ConditionType string   `yaml:"condition_type"`
	Probability   *float64 `yaml:"probability,omitempty"`
	Expression    string   `yaml:"expression,omitempty"`
}

// DecideOutcome is one outcome of a decide_config.
type DecideOutcome struct {
	NextStepID string            `yaml:"next_step_id"`
	Conditions []DecideCondition `yaml:"conditions"`
}

// DecideConfig is the decide_config payload of a Decide step.
type DecideConfig struct {
	DecisionType string          `yaml:"decision_type"`
	Outcomes     []DecideOutcome `yaml:"outcomes"`
}

// AssignConfig is the assign_config payload of an Assign step.
type AssignConfig struct {
	Table      string `yaml:"table"`
	Column     string `yaml:"column"`
	Expression string `yaml:"expression"`
}

// CreateConfig is the create_config payload of a Create step.
type CreateConfig struct {
	EntityTable     string        `yaml:"entity_table"`
	InterarrivalTime FormulaOrSpec `yaml:"interarrival_time"`
	InitialStep     string        `yaml:"initial_step"`
	MaxEntities     MaxEntities   `yaml:"max_entities,omitempty"`
}

// ReleaseConfig is the release_config payload of a Release step — not
// explicitly itemized in the §6 grammar (which only names create/event/
// decide/assign), but §4.9 requires it; its shape (optional explicit
// resource_table list, else "release everything held by this entity") is
// grounded on resource_manager.release_resources in original_source.
type ReleaseConfig struct {
	ResourceTables []string `yaml:"resource_tables,omitempty"`
}

// Step is one node of a flow's step graph. Exactly one of the *Config
// fields is populated, selected by Kind.
type Step struct {
	StepID  string `yaml:"step_id"`
	Kind    string `yaml:"kind"`
	NextStep string `yaml:"next_step,omitempty"`

	CreateConfig  *CreateConfig  `yaml:"create_config,omitempty"`
	EventConfig   *EventConfig   `yaml:"event_config,omitempty"`
	DecideConfig  *DecideConfig  `yaml:"decide_config,omitempty"`
	AssignConfig  *AssignConfig  `yaml:"assign_config,omitempty"`
	ReleaseConfig *ReleaseConfig `yaml:"release_config,omitempty"`
}

// Flow is one event_flows entry.
type Flow struct {
	FlowID string `yaml:"flow_id"`
	Steps  []Step `yaml:"steps"`
}

// QueueConfig declares one named queue's discipline.
type QueueConfig struct {
	Name       string `yaml:"name"`
	Discipline string `yaml:"discipline"` // FIFO, LIFO, LowAttribute, HighAttribute
	PriorityExpr string `yaml:"priority_expression,omitempty"`
}

// TableSpecification optionally overrides the entity/resource/event table
// the Orchestrator would otherwise infer by scanning DatabaseConfig for the
// sole table of each Type — grounded on entity_manager.py's
// get_table_names/resource_manager.py's event_table resolution, both of
// which prefer an explicit table_specification before falling back to a
// type scan.
type TableSpecification struct {
	EntityTable   string `yaml:"entity_table,omitempty"`
	ResourceTable string `yaml:"resource_table,omitempty"`
	EventTable    string `yaml:"event_table,omitempty"`
}

// EventSimulationConfig is the event_simulation payload.
type EventSimulationConfig struct {
	TableSpecification *TableSpecification `yaml:"table_specification,omitempty"`
	Queues             []QueueConfig       `yaml:"queues,omitempty"`
	EventFlows         struct {
		Flows []Flow `yaml:"flows"`
	} `yaml:"event_flows"`
}

// TerminatingConditions carries the §4.11 termination formula.
type TerminatingConditions struct {
	Formula string `yaml:"formula,omitempty"`
}

// SimulationConfig is the top-level §6 "Simulation config" document.
type SimulationConfig struct {
	DurationDays          float64                `yaml:"duration_days"`
	StartDate             string                 `yaml:"start_date"`
	BaseTimeUnit          string                 `yaml:"base_time_unit"`
	RandomSeed            *int64                 `yaml:"random_seed,omitempty"`
	TerminatingConditions TerminatingConditions   `yaml:"terminating_conditions"`
	EventSimulation       EventSimulationConfig  `yaml:"event_simulation"`
}

// LoadSimulationConfig reads and unmarshals a simulation config YAML file.
func LoadSimulationConfig(path string) (*SimulationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: read simulation config %s: %w", path, err)
	}
	var cfg SimulationConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("schema: parse simulation config %s: %w", path, err)
	}
	return &cfg, nil
}

// Package errors provides the simulation engine's structured error taxonomy (spec §7).
package errors

import (
	"errors"
	"fmt"
)

// Category groups an ErrorCode into one of the four §7 error classes.
type Category string

const (
	CategoryConfig     Category = "configuration" // surfaced before the run starts, never recovered
	CategorySampling   Category = "sampling"       // aborts the single sample / the calling step
	CategoryStore      Category = "persistence"    // aborts the single operation unless fatal
	CategoryAllocation Category = "allocation"     // partial allocation unwound, no leak
)

// ErrorCode identifies a specific failure within a Category.
type ErrorCode string

const (
	ErrCodeMissingRoleColumn      ErrorCode = "CFG_MISSING_ROLE_COLUMN"
	ErrCodeUnknownStepKind        ErrorCode = "CFG_UNKNOWN_STEP_KIND"
	ErrCodeUnparseableFormula     ErrorCode = "CFG_UNPARSEABLE_FORMULA"
	ErrCodeDiscArityMismatch      ErrorCode = "CFG_DISC_ARITY_MISMATCH"
	ErrCodeUnknownTable           ErrorCode = "CFG_UNKNOWN_TABLE"
	ErrCodeUnknownDistribution    ErrorCode = "CFG_UNKNOWN_DISTRIBUTION"
	ErrCodeUnknownGenerator       ErrorCode = "CFG_UNKNOWN_GENERATOR"
	ErrCodeMissingForeignKeyRef   ErrorCode = "CFG_MISSING_FK_REF"
	ErrCodeNoResourceTypeColumn   ErrorCode = "CFG_NO_RESOURCE_TYPE_COLUMN"
	ErrCodeUnparseableTermination ErrorCode = "CFG_UNPARSEABLE_TERMINATION"
	ErrCodeAmbiguousTableSpec     ErrorCode = "CFG_AMBIGUOUS_TABLE_SPEC"

	ErrCodeSamplingOutOfRange ErrorCode = "SAMPLE_OUT_OF_RANGE"
	ErrCodeSamplingBadParams  ErrorCode = "SAMPLE_BAD_PARAMS"

	ErrCodeStoreWrite  ErrorCode = "STORE_WRITE_FAILED"
	ErrCodeStoreRead   ErrorCode = "STORE_READ_FAILED"
	ErrCodeStoreFatal  ErrorCode = "STORE_FATAL_WRITE"

	ErrCodeAllocationInterrupted ErrorCode = "ALLOC_INTERRUPTED"
	ErrCodeAllocationNotFound    ErrorCode = "ALLOC_NOT_FOUND"
)

// SimError is a structured error carrying a category, code, message,
// optional details, and an optional wrapped cause.
type SimError struct {
	Category Category
	Code     ErrorCode
	Message  string
	Where    string // the offending config element, step id, table, etc.
	Details  map[string]any
	Err      error
}

func (e *SimError) Error() string {
	where := ""
	if e.Where != "" {
		where = fmt.Sprintf(" (%s)", e.Where)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s/%s] %s%s: %v", e.Category, e.Code, e.Message, where, e.Err)
	}
	return fmt.Sprintf("[%s/%s] %s%s", e.Category, e.Code, e.Message, where)
}

func (e *SimError) Unwrap() error { return e.Err }

// WithDetail attaches a key/value pair for diagnostics.
func (e *SimError) WithDetail(key string, value any) *SimError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func new(category Category, code ErrorCode, where, message string) *SimError {
	return &SimError{Category: category, Code: code, Where: where, Message: message}
}

func wrap(category Category, code ErrorCode, where, message string, err error) *SimError {
	return &SimError{Category: category, Code: code, Where: where, Message: message, Err: err}
}

// Configuration errors — §7 category 1. Surfaced before the run starts.

func MissingRoleColumn(table, role string) *SimError {
	return new(CategoryConfig, ErrCodeMissingRoleColumn, table,
		fmt.Sprintf("table %q has no column with role %q", table, role)).
		WithDetail("role", role)
}

func UnknownStepKind(stepID, kind string) *SimError {
	return new(CategoryConfig, ErrCodeUnknownStepKind, stepID,
		fmt.Sprintf("step %q has unknown kind %q", stepID, kind))
}

func UnparseableFormula(formula string, err error) *SimError {
	return wrap(CategoryConfig, ErrCodeUnparseableFormula, formula, "could not parse formula", err)
}

func DiscArityMismatch(formula string, gotArgs int) *SimError {
	return new(CategoryConfig, ErrCodeDiscArityMismatch, formula,
		"DISC requires an even number of arguments").WithDetail("args", gotArgs)
}

func UnknownTable(table string) *SimError {
	return new(CategoryConfig, ErrCodeUnknownTable, table, "table not found in configuration")
}

func UnknownDistribution(name string) *SimError {
	return new(CategoryConfig, ErrCodeUnknownDistribution, name, "unsupported distribution")
}

func UnknownGenerator(attr, kind string) *SimError {
	return new(CategoryConfig, ErrCodeUnknownGenerator, attr,
		fmt.Sprintf("unsupported generator type %q", kind))
}

func MissingForeignKeyRef(attr string) *SimError {
	return new(CategoryConfig, ErrCodeMissingForeignKeyRef, attr, "foreign_key generator missing ref")
}

func UnparseableTermination(formula string, err error) *SimError {
	return wrap(CategoryConfig, ErrCodeUnparseableTermination, formula, "could not parse termination formula", err)
}

func ResourceTypeColumnNotFound(table string) *SimError {
	return new(CategoryConfig, ErrCodeNoResourceTypeColumn, table,
		"could not find a resource type column (role/type/resource_type/category/skill/position)")
}

// AmbiguousTableSpec reports that kind's table could not be resolved: no
// table_specification override was given, and the database config has
// zero or more than one table of Type == kind for the Orchestrator to
// fall back to.
func AmbiguousTableSpec(kind string, matches []string) *SimError {
	return new(CategoryConfig, ErrCodeAmbiguousTableSpec, kind,
		fmt.Sprintf("cannot resolve the %s table: found %d candidates %v and no table_specification override", kind, len(matches), matches)).
		WithDetail("matches", matches)
}

// Sampling errors — §7 category 2. Abort the single sample.

func SamplingOutOfRange(spec string, err error) *SimError {
	return wrap(CategorySampling, ErrCodeSamplingOutOfRange, spec, "distribution parameters out of range", err)
}

func SamplingBadParams(spec string, err error) *SimError {
	return wrap(CategorySampling, ErrCodeSamplingBadParams, spec, "invalid distribution parameters", err)
}

// Persistence errors — §7 category 3.

func StoreWriteFailed(where string, err error) *SimError {
	return wrap(CategoryStore, ErrCodeStoreWrite, where, "write failed", err)
}

func StoreReadFailed(where string, err error) *SimError {
	return wrap(CategoryStore, ErrCodeStoreRead, where, "read failed", err)
}

// StoreFatal marks a persistence error as fatal (resource-pool seed load,
// etc.) — causes orchestrator abort with cleanup, per §7.
func StoreFatal(where string, err error) *SimError {
	return wrap(CategoryStore, ErrCodeStoreFatal, where, "fatal write failed", err)
}

// Allocation errors — §7 category 4.

func AllocationInterrupted(allocationKey string, err error) *SimError {
	return wrap(CategoryAllocation, ErrCodeAllocationInterrupted, allocationKey, "allocation interrupted", err)
}

func AllocationNotFound(allocationKey string) *SimError {
	return new(CategoryAllocation, ErrCodeAllocationNotFound, allocationKey, "no allocation for key")
}

// IsFatal reports whether err should abort the whole orchestrator run
// rather than just the operation/step that raised it.
func IsFatal(err error) bool {
	var se *SimError
	if errors.As(err, &se) {
		return se.Category == CategoryConfig || se.Code == ErrCodeStoreFatal
	}
	return false
}

// As extracts a *SimError from an error chain.
func As(err error) (*SimError, bool) {
	var se *SimError
	ok := errors.As(err, &se)
	return se, ok
}

package domain

import (
	"encoding/json"
	"fmt"
)

// StepKind identifies a transformation operation. The set is closed: the
// executor switches exhaustively on the kind, so adding a kind means
// touching validation and execution together.
type StepKind string

// Supported transformation step kinds.
const (
	StepDropMissing  StepKind = "drop_missing"
	StepImpute       StepKind = "impute"
	StepScale        StepKind = "scale"
	StepOneHot       StepKind = "one_hot"
	StepLabelEncode  StepKind = "label_encode"
	StepTypeCast     StepKind = "type_cast"
	StepDropColumns  StepKind = "drop_columns"
	StepRenameColumn StepKind = "rename_column"
)

// Impute methods.
const (
	ImputeMean     = "mean"
	ImputeMedian   = "median"
	ImputeMode     = "mode"
	ImputeConstant = "constant"
)

// Scale methods.
const (
	ScaleMinMax   = "minmax"
	ScaleStandard = "standard"
)

// Step is a single transformation operation. Steps are pure data: they
// carry parameters, never execution logic. Kind-specific fields are left
// zero for kinds that do not use them.
type Step struct {
	Kind StepKind `json:"kind"`

	// Columns are the target columns. Optional for drop_missing (empty
	// means "all columns"); required for every other kind.
	Columns []string `json:"columns,omitempty"`

	// Method selects the impute or scale variant.
	Method string `json:"method,omitempty"`

	// Value is the fill value for impute with method=constant.
	Value string `json:"value,omitempty"`

	// Threshold is the acceptable estimated row-loss fraction for
	// drop_missing. Zero means "use the engine default".
	Threshold float64 `json:"threshold,omitempty"`

	// TargetType is the destination type for type_cast.
	TargetType ColumnType `json:"target_type,omitempty"`

	// NewName is the destination name for rename_column.
	NewName string `json:"new_name,omitempty"`
}

// Validate checks kind-specific parameter well-formedness. It knows nothing
// about any schema; schema-dependent checks live in the validation engine.
func (s Step) Validate() error {
	switch s.Kind {
	case StepDropMissing:
		if s.Threshold < 0 || s.Threshold > 1 {
			return ErrValidation("drop_missing: threshold must be in [0,1], got %v", s.Threshold)
		}
	case StepImpute:
		if len(s.Columns) == 0 {
			return ErrValidation("impute: columns are required")
		}
		switch s.Method {
		case ImputeMean, ImputeMedian, ImputeMode, ImputeConstant:
		case "":
			return ErrValidation("impute: method is required")
		default:
			return ErrValidation("impute: unknown method %q", s.Method)
		}
		if s.Method == ImputeConstant && s.Value == "" {
			return ErrValidation("impute: value is required for method=constant")
		}
	case StepScale:
		if len(s.Columns) == 0 {
			return ErrValidation("scale: columns are required")
		}
		switch s.Method {
		case ScaleMinMax, ScaleStandard, "":
		default:
			return ErrValidation("scale: unknown method %q", s.Method)
		}
	case StepOneHot, StepLabelEncode:
		if len(s.Columns) == 0 {
			return ErrValidation("%s: columns are required", s.Kind)
		}
	case StepTypeCast:
		if len(s.Columns) == 0 {
			return ErrValidation("type_cast: columns are required")
		}
		if !ValidColumnType(s.TargetType) {
			return ErrValidation("type_cast: unknown target type %q", s.TargetType)
		}
	case StepDropColumns:
		if len(s.Columns) == 0 {
			return ErrValidation("drop_columns: columns are required")
		}
	case StepRenameColumn:
		if len(s.Columns) != 1 {
			return ErrValidation("rename_column: exactly one column is required")
		}
		if s.NewName == "" {
			return ErrValidation("rename_column: new_name is required")
		}
	case "":
		return ErrValidation("step kind is required")
	default:
		return ErrValidation("unknown step kind %q", s.Kind)
	}
	return nil
}

// ScaleMethod returns the effective scale method, defaulting to minmax.
func (s Step) ScaleMethod() string {
	if s.Method == "" {
		return ScaleMinMax
	}
	return s.Method
}

// String renders a short human-readable form for logs and diffs.
func (s Step) String() string {
	if len(s.Columns) == 0 {
		return string(s.Kind)
	}
	return fmt.Sprintf("%s(%v)", s.Kind, s.Columns)
}

// EncodeSteps serializes an ordered step sequence for storage.
func EncodeSteps(steps []Step) (string, error) {
	b, err := json.Marshal(steps)
	if err != nil {
		return "", fmt.Errorf("encode steps: %w", err)
	}
	return string(b), nil
}

// DecodeSteps deserializes a stored step sequence.
func DecodeSteps(raw string) ([]Step, error) {
	var steps []Step
	if err := json.Unmarshal([]byte(raw), &steps); err != nil {
		return nil, fmt.Errorf("decode steps: %w", err)
	}
	return steps, nil
}

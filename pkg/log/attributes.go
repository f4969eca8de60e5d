// Package log defines standard attribute keys for imputation, inference and
// scoring operations.
//
// The keys follow a hierarchical naming convention (e.g. "model.name",
// "data.samples") so that log lines from the preprocessing stages, the
// prediction service and the stream scorer can be filtered the same way.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of model or pipeline stage.
	// Examples: "IntensityImputer", "StandardScaler", "LogisticRegression"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "fit_transform", "score"
	OperationKey = "ml.operation"

	// ComponentKey identifies which component or package is performing the operation.
	// Examples: "preprocessing", "pipeline", "inference", "stream"
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of model lifecycle.
	PhaseKey = "ml.phase"

	// StepKey names a pipeline step.
	StepKey = "pipeline.step"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) in the dataset.
	FeaturesKey = "data.features"

	// ColumnKey names a single column of a frame.
	ColumnKey = "data.column"

	// BatchSizeKey indicates the size of processing batches.
	BatchSizeKey = "data.batch_size"
)

// Imputation
const (
	// ImputerGroupsKey is the number of magnitude groups with a defined median.
	ImputerGroupsKey = "imputer.groups"

	// ImputerGlobalMedianKey is the fitted global median (NaN when undefined).
	ImputerGlobalMedianKey = "imputer.global_median"

	// ImputerImputedKey is the number of rows filled during a transform.
	ImputerImputedKey = "imputer.imputed"

	// ImputerFallbackKey is the number of rows filled from the global median or constant.
	ImputerFallbackKey = "imputer.fallback"
)

// Earthquake and prediction context
const (
	MagnitudeKey   = "quake.magnitude"
	DepthKey       = "quake.depth_km"
	LatitudeKey    = "quake.latitude"
	LongitudeKey   = "quake.longitude"
	PredLabelKey   = "preds.label"
	ConfidenceKey  = "preds.confidence"
	ArtifactKey    = "model.artifact"
	DurationMsKey  = "perf.duration_ms"
	IterationKey   = "training.iteration"
	AccuracyKey    = "metrics.accuracy"
	KafkaTopicKey  = "kafka.topic"
	KafkaOffsetKey = "kafka.offset"
)

// Error and Warning Context
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	ErrorCodeKey = "error.code"

	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// SuggestionKey provides helpful suggestions for resolving issues.
	SuggestionKey = "error.suggestion"
)

// Standard attribute values.
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationScore        = "score"

	PhaseTraining      = "training"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"

	ErrorNotFitted     = "NOT_FITTED"
	ErrorMissingColumn = "MISSING_COLUMN"
	ErrorEmptyData     = "EMPTY_DATA"
	ErrorInvalidInput  = "INVALID_INPUT"
	ErrorImputation    = "IMPUTATION_FAILURE"
)

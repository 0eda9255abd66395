package metrics

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Operation names used as label values
const (
	OpRecord   = "record"
	OpHistory  = "history"
	OpLookup   = "lookup"
	OpSeed     = "seed"
	OpAnalyze  = "analyze"
	OpStore    = "store_image"
	OpPublish  = "publish"
	OpValidate = "validate"
)

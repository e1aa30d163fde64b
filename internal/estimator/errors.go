package estimator

import "errors"

var (
	ErrNegativeLambda     = errors.New("ridge penalty must not be negative")
	ErrTargetLenMismatch  = errors.New("target length does not match training rows")
	ErrNoTrainingMatrix   = errors.New("no training matrix")
	ErrNoTargetMatrix     = errors.New("no target matrix")
	ErrNoDesignMatrix     = errors.New("no design matrix for inference")
	ErrFeatureLenMismatch = errors.New("number of features does not match number of model coefficients")
	ErrSingularMatrix     = errors.New("normal equations are singular")
	ErrNotFitted          = errors.New("model has not been fitted")
	ErrInsufficientData   = errors.New("not enough labelled rows to train")
	ErrModelNotFound      = errors.New("persisted model not found")
)

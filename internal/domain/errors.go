package domain

import "errors"

var (
	// ErrPaintingNotFound signals a missing catalog entry.
	ErrPaintingNotFound = errors.New("painting not found")
	// ErrInvalidInput signals a request that fails validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidImage signals an image that cannot be decoded or is empty.
	ErrInvalidImage = errors.New("invalid image")
	// ErrImageTooLarge signals an image exceeding the configured upload limit.
	ErrImageTooLarge = errors.New("image too large")
	// ErrExtractorNotReady signals that the feature extractor has not finished loading.
	ErrExtractorNotReady = errors.New("feature extractor not ready")
	// ErrExtraction signals a feature extractor failure.
	ErrExtraction = errors.New("feature extraction failed")
	// ErrVectorDimMismatch signals a vector whose length differs from the extractor dimensionality.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrDescriptionProviderError signals a text-generation provider failure.
	ErrDescriptionProviderError = errors.New("description provider error")
	// ErrDescriptionBudgetExceeded signals that the description token budget is spent.
	ErrDescriptionBudgetExceeded = errors.New("description token budget exceeded")
	// ErrNoImageSource signals a painting without a reference image URL.
	ErrNoImageSource = errors.New("painting has no reference image")
)

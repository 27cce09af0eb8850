// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrEngineUnavailable means no usable engine module could be obtained.
	ErrEngineUnavailable = errors.New("engine unavailable")
	ErrUnsupported       = errors.New("engine module does not support this runtime")
	ErrAlreadyAttached   = errors.New("engine: handle already attached")
	ErrNotAttached       = errors.New("engine: handle not attached")
	ErrTornDown          = errors.New("engine: handle torn down")
)

// UnavailableError carries the reason the engine library could not be loaded.
// errors.Is(err, ErrEngineUnavailable) holds for every UnavailableError.
type UnavailableError struct {
	Version string
	Cause   error
}

func (e *UnavailableError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("engine %s unavailable", e.Version)
	}
	return fmt.Sprintf("engine %s unavailable: %v", e.Version, e.Cause)
}

func (e *UnavailableError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrEngineUnavailable}
	}
	return []error{ErrEngineUnavailable, e.Cause}
}

// ErrorType is the engine's raw error category.
type ErrorType string

const (
	ErrorTypeNetwork ErrorType = "network"
	ErrorTypeMedia   ErrorType = "media"
	ErrorTypeMux     ErrorType = "mux"
	ErrorTypeKey     ErrorType = "key"
	ErrorTypeOther   ErrorType = "other"
)

// Raw error details reported by the HLS engine.
const (
	DetailManifestLoad    = "manifestLoadError"
	DetailManifestParsing = "manifestParsingError"
	DetailLevelLoad       = "levelLoadError"
	DetailFragLoad        = "fragLoadError"
	DetailFragParsing     = "fragParsingError"
	DetailBufferAppend    = "bufferAppendError"
	DetailBufferFlush     = "bufferFlushError"
	DetailKeySystem       = "keySystemError"
)

// RawError is an error as the engine reports it, before classification.
type RawError struct {
	Type    ErrorType
	Details string
	Fatal   bool
	Err     error
}

func (e RawError) Error() string {
	kind := "non-fatal"
	if e.Fatal {
		kind = "fatal"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s error %s: %v", kind, e.Type, e.Details, e.Err)
	}
	return fmt.Sprintf("%s %s error %s", kind, e.Type, e.Details)
}

// FaultClass is the closed taxonomy sessions react to.
type FaultClass uint8

const (
	NonFatal FaultClass = iota
	NetworkFault
	MediaFault
	OtherFatalFault
)

func (c FaultClass) String() string {
	switch c {
	case NonFatal:
		return "NonFatal"
	case NetworkFault:
		return "NetworkFault"
	case MediaFault:
		return "MediaFault"
	default:
		return "OtherFatalFault"
	}
}

// Classify maps a raw engine error into the fault taxonomy. Unknown fatal
// errors are OtherFatalFault.
func Classify(raw RawError) FaultClass {
	if !raw.Fatal {
		return NonFatal
	}
	switch raw.Type {
	case ErrorTypeNetwork:
		return NetworkFault
	case ErrorTypeMedia:
		return MediaFault
	default:
		return OtherFatalFault
	}
}

// Fault is what OnFault callbacks receive.
type Fault struct {
	Class FaultClass
	Raw   RawError
}

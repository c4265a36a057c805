// Package ocr abstracts text recognition over small binarized regions.
// The production engine shells out to tesseract; tests substitute an
// EngineFunc returning canned strings.
package ocr

import (
	"context"

	"github.com/saw4405/splat-replay/internal/vision"
)

// PageSegMode selects the page-segmentation strategy of the engine.
type PageSegMode int

const (
	PSMAuto PageSegMode = iota
	PSMSingleColumn
	PSMSingleLine
	PSMSingleWord
	PSMSingleBlock
	PSMSingleChar
)

// tesseractCode maps the mode to tesseract's --psm argument.
func (m PageSegMode) tesseractCode() string {
	switch m {
	case PSMSingleColumn:
		return "4"
	case PSMSingleLine:
		return "7"
	case PSMSingleWord:
		return "8"
	case PSMSingleBlock:
		return "6"
	case PSMSingleChar:
		return "10"
	default:
		return "3"
	}
}

func (m PageSegMode) String() string {
	switch m {
	case PSMAuto:
		return "auto"
	case PSMSingleColumn:
		return "single_column"
	case PSMSingleLine:
		return "single_line"
	case PSMSingleWord:
		return "single_word"
	case PSMSingleBlock:
		return "single_block"
	case PSMSingleChar:
		return "single_char"
	}
	return "unknown"
}

// Engine recognizes text in a grayscale image. An empty string with a
// nil error means the engine saw nothing; errors mean the engine itself
// failed. Callers treat both as a per-frame miss.
type Engine interface {
	RecognizeText(ctx context.Context, img *vision.Gray, psm PageSegMode, whitelist string) (string, error)
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, img *vision.Gray, psm PageSegMode, whitelist string) (string, error)

// RecognizeText calls f.
func (f EngineFunc) RecognizeText(ctx context.Context, img *vision.Gray, psm PageSegMode, whitelist string) (string, error) {
	return f(ctx, img, psm, whitelist)
}

package transforms

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"go.uber.org/zap"

	"github.com/temirov/reposquash/internal/squash"
)

const (
	mapstructureTagNameConstant      = "mapstructure"
	unknownTypeTemplateConstant      = "%w: %q"
	unknownTypeMessageConstant       = "unknown transformation type"
	decodeOptionsErrorTemplate       = "unable to decode %s transformation options: %w"
	buildTransformationErrorTemplate = "transformation %d (%s): %w"
)

// ErrUnknownType indicates a transformation type that has no constructor.
var ErrUnknownType = errors.New(unknownTypeMessageConstant)

// Definition declares one transformation as written in a migration file.
type Definition struct {
	Type string         `yaml:"type"`
	With map[string]any `yaml:"with"`
}

// Build constructs the transformation described by definition.
func Build(logger *zap.Logger, definition Definition) (squash.Transformation, error) {
	transformationType := strings.ToLower(strings.TrimSpace(definition.Type))
	switch transformationType {
	case ReplaceTypeConstant:
		var options ReplaceOptions
		if decodeError := decodeOptions(definition.With, &options); decodeError != nil {
			return nil, fmt.Errorf(decodeOptionsErrorTemplate, transformationType, decodeError)
		}
		return NewReplace(logger, options)
	case MoveTypeConstant:
		var options MoveOptions
		if decodeError := decodeOptions(definition.With, &options); decodeError != nil {
			return nil, fmt.Errorf(decodeOptionsErrorTemplate, transformationType, decodeError)
		}
		return NewMove(logger, options)
	case RemoveTypeConstant:
		var options RemoveOptions
		if decodeError := decodeOptions(definition.With, &options); decodeError != nil {
			return nil, fmt.Errorf(decodeOptionsErrorTemplate, transformationType, decodeError)
		}
		return NewRemove(logger, options)
	default:
		return nil, fmt.Errorf(unknownTypeTemplateConstant, ErrUnknownType, definition.Type)
	}
}

// BuildPipeline constructs every transformation in order and wraps them in a squash pipeline.
func BuildPipeline(logger *zap.Logger, definitions []Definition) (*squash.Pipeline, error) {
	transformations := make([]squash.Transformation, 0, len(definitions))
	for definitionIndex, definition := range definitions {
		transformation, buildError := Build(logger, definition)
		if buildError != nil {
			return nil, fmt.Errorf(buildTransformationErrorTemplate, definitionIndex+1, definition.Type, buildError)
		}
		transformations = append(transformations, transformation)
	}
	return squash.NewPipeline(logger, transformations...), nil
}

func decodeOptions(options map[string]any, target any) error {
	decoder, decoderError := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          mapstructureTagNameConstant,
		Result:           target,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if decoderError != nil {
		return decoderError
	}
	return decoder.Decode(options)
}

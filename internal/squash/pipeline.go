package squash

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

const (
	transformationStartedMessageConstant   = "Applying transformation"
	transformationCompletedMessageConstant = "Transformation applied"
	logFieldTransformationConstant         = "transformation"
	logFieldPositionConstant               = "position"
	logFieldDirectoryConstant              = "directory"
)

// Pipeline applies transformations sequentially in their configured order.
type Pipeline struct {
	logger          *zap.Logger
	transformations []Transformation
}

// NewPipeline constructs a Pipeline. Nil transformations are skipped.
func NewPipeline(logger *zap.Logger, transformations ...Transformation) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	retained := make([]Transformation, 0, len(transformations))
	for _, transformation := range transformations {
		if transformation == nil {
			continue
		}
		retained = append(retained, transformation)
	}
	return &Pipeline{logger: logger, transformations: retained}
}

// Names lists the transformation names in execution order.
func (pipeline *Pipeline) Names() []string {
	if pipeline == nil {
		return nil
	}
	names := make([]string, 0, len(pipeline.transformations))
	for _, transformation := range pipeline.transformations {
		names = append(names, transformation.Name())
	}
	return names
}

// Len reports the number of transformations.
func (pipeline *Pipeline) Len() int {
	if pipeline == nil {
		return 0
	}
	return len(pipeline.transformations)
}

// Apply runs every transformation against directory and stops at the first failure.
func (pipeline *Pipeline) Apply(executionContext context.Context, directory string) error {
	if pipeline == nil {
		return nil
	}

	for transformationIndex, transformation := range pipeline.transformations {
		pipeline.logger.Debug(
			transformationStartedMessageConstant,
			zap.String(logFieldTransformationConstant, transformation.Name()),
			zap.Int(logFieldPositionConstant, transformationIndex),
			zap.String(logFieldDirectoryConstant, directory),
		)

		if applyError := transformation.Apply(executionContext, directory); applyError != nil {
			var transformationError TransformationError
			if errors.As(applyError, &transformationError) {
				return applyError
			}
			return TransformationError{Transformation: transformation.Name(), Cause: applyError}
		}

		pipeline.logger.Debug(
			transformationCompletedMessageConstant,
			zap.String(logFieldTransformationConstant, transformation.Name()),
			zap.Int(logFieldPositionConstant, transformationIndex),
		)
	}

	return nil
}

package level

import (
	"context"
	"fmt"
	"strings"
)

const (
	MaxDimension = 40
	tileStart    = '4'
	tileExit     = '3'
	allowedTiles = "0123456789ABCDEFGHIJ"
)

// PublishValidator decides whether a level may be published.
type PublishValidator interface {
	ValidateForPublishing(ctx context.Context, lvl *Level, userID, gameID string) error
}

// PublishValidatorFunc adapts a function to PublishValidator.
type PublishValidatorFunc func(ctx context.Context, lvl *Level, userID, gameID string) error

func (f PublishValidatorFunc) ValidateForPublishing(ctx context.Context, lvl *Level, userID, gameID string) error {
	return f(ctx, lvl, userID, gameID)
}

// StructuralValidator checks the level grid without solving it: size
// limits, tile alphabet, exactly one start, at least one exit and a
// positive least-moves count recorded by the editor's solver.
type StructuralValidator struct{}

// ValidateForPublishing returns an error wrapping ErrValidation whose
// message names the first problem found.
func (StructuralValidator) ValidateForPublishing(ctx context.Context, lvl *Level, userID, gameID string) error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(lvl.Name) == "" {
		return fail("name is required")
	}
	if gameID != "" && lvl.GameID != gameID {
		return fail("level belongs to a different game")
	}
	if lvl.Height < 1 || lvl.Height > MaxDimension || lvl.Width < 1 || lvl.Width > MaxDimension {
		return fail("dimensions must be between 1 and %d", MaxDimension)
	}
	if len(lvl.Data) != lvl.Height {
		return fail("expected %d rows, got %d", lvl.Height, len(lvl.Data))
	}

	starts, exits := 0, 0
	for y, row := range lvl.Data {
		if len(row) != lvl.Width {
			return fail("row %d has width %d, expected %d", y+1, len(row), lvl.Width)
		}
		for _, c := range row {
			if !strings.ContainsRune(allowedTiles, c) {
				return fail("row %d contains unknown tile %q", y+1, c)
			}
			switch c {
			case tileStart:
				starts++
			case tileExit:
				exits++
			}
		}
	}
	if starts != 1 {
		return fail("level must have exactly one start")
	}
	if exits == 0 {
		return fail("level must have at least one exit")
	}
	if lvl.LeastMoves <= 0 {
		return fail("level must be solved before publishing")
	}
	return nil
}

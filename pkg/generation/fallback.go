package generation

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/xob0t/StoryStencil/pkg/errors"
)

// Fallback tries Primary and, when it fails, Secondary.
type Fallback struct {
	Primary   Backend
	Secondary Backend
	Logger    *log.Logger
}

func (f Fallback) Name() string {
	return f.Primary.Name() + "+" + f.Secondary.Name()
}

func (f Fallback) Generate(ctx context.Context, req Request) (Result, error) {
	res, err := f.Primary.Generate(ctx, req)
	if err == nil {
		return res, nil
	}

	logger := f.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Warn("generation failed, falling back", "primary", f.Primary.Name(), "secondary", f.Secondary.Name(), "err", err)

	res, err2 := f.Secondary.Generate(ctx, req)
	if err2 != nil {
		return Result{}, errors.Wrap(errors.ErrCodeGeneration, err2, "%s failed after %s: %v", f.Secondary.Name(), f.Primary.Name(), err)
	}
	res.FallbackUsed = true
	return res, nil
}

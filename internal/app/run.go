package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/playparse/internal/inventory"
	"github.com/vk/playparse/internal/playbook"
)

// Run executes one parse pass over the configured sources and renders the
// result to the app's output writer. In syntax-check mode any error-severity
// diagnostic makes Run return a non-nil error.
func (a *App) Run(ctx context.Context) error {
	ctx = a.baseContext(ctx)
	var diags hcl.Diagnostics
	res := &result{}

	if a.config.PlaybookPath != "" {
		pb, pbDiags, err := playbook.Parse(ctx, playbook.Options{
			Path:            a.config.PlaybookPath,
			Loader:          a.loader,
			MaxIncludeDepth: a.config.MaxIncludeDepth,
		})
		if err != nil {
			return fmt.Errorf("parsing playbook %s: %w", a.config.PlaybookPath, err)
		}
		diags = append(diags, pbDiags...)
		res.Playbook = pb
	}

	if a.config.InventoryPath != "" {
		src, err := a.loader.Load(ctx, a.config.InventoryPath)
		if err != nil {
			return fmt.Errorf("loading inventory %s: %w", a.config.InventoryPath, err)
		}
		inv, invDiags := inventory.Parse(ctx, src.Bytes, src.ID)
		diags = append(diags, invDiags...)
		res.Inventory = renderInventory(inv)
	}

	res.Diagnostics = renderDiags(diags)
	if err := a.writeResult(res); err != nil {
		return err
	}

	errCount := len(diags.Errs())
	a.logger.Info("parse finished",
		slog.Int("diagnostics", len(diags)),
		slog.Int("errors", errCount))

	if a.config.SyntaxCheck && diags.HasErrors() {
		return fmt.Errorf("syntax check failed with %d error(s)", errCount)
	}
	return nil
}

package printspec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/printmill/printmill/internal/printspec"
)

func TestDPILimitingAxis(t *testing.T) {
	// 3000x1500 over 10x10in: height limits at 150.
	assert.InDelta(t, 150, printspec.DPI(3000, 1500, 10, 10), 1e-9)
	// Square image over square area.
	assert.InDelta(t, 300, printspec.DPI(3000, 3000, 10, 10), 1e-9)
	// Width limits.
	assert.InDelta(t, 100, printspec.DPI(1000, 4000, 10, 10), 1e-9)
}

func TestCheckPrintRequirementsTooSmall(t *testing.T) {
	res := printspec.CheckPrintRequirements(1000, 1000, 10, 10, 150)

	assert.False(t, res.Valid)
	assert.InDelta(t, 1500, res.Required.Width, 1e-9)
	assert.InDelta(t, 1500, res.Required.Height, 1e-9)
	assert.InDelta(t, 150, res.Required.DPI, 1e-9)
	assert.InDelta(t, 1000, res.Uploaded.Width, 1e-9)
	assert.InDelta(t, 100, res.Uploaded.DPI, 1e-9)
}

func TestCheckPrintRequirementsExactBoundaryPasses(t *testing.T) {
	res := printspec.CheckPrintRequirements(1500, 1500, 10, 10, 150)

	assert.True(t, res.Valid)
	assert.InDelta(t, 150, res.Uploaded.DPI, 1e-9)
}

func TestCheckPrintRequirementsOnePixelShortFails(t *testing.T) {
	assert.False(t, printspec.CheckPrintRequirements(1499, 1500, 10, 10, 150).Valid)
	assert.False(t, printspec.CheckPrintRequirements(1500, 1499, 10, 10, 150).Valid)
}

func TestCheckPrintRequirementsMonotonic(t *testing.T) {
	base := printspec.CheckPrintRequirements(1500, 1500, 10, 10, 150)
	bigger := printspec.CheckPrintRequirements(2000, 2400, 10, 10, 150)

	assert.True(t, base.Valid)
	assert.True(t, bigger.Valid)
	assert.GreaterOrEqual(t, bigger.Uploaded.DPI, base.Uploaded.DPI)
}

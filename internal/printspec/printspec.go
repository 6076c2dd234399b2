// Package printspec computes print-quality requirements for uploaded
// artwork. All functions are pure.
package printspec

// Dimensions describes an image or requirement in pixels plus effective DPI.
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	DPI    float64 `json:"dpi"`
}

// Result reports whether an image satisfies a product's print requirements.
type Result struct {
	Valid    bool       `json:"valid"`
	Uploaded Dimensions `json:"uploaded"`
	Required Dimensions `json:"required"`
}

// DPI derives the effective print resolution of an image laid over a print
// area measured in inches. The limiting axis wins.
func DPI(imageWidth, imageHeight, printWidth, printHeight float64) float64 {
	dpiWidth := imageWidth / printWidth
	dpiHeight := imageHeight / printHeight
	if dpiWidth < dpiHeight {
		return dpiWidth
	}
	return dpiHeight
}

// CheckPrintRequirements validates an image against a print area and minimum
// DPI. The boundary is inclusive: an image at exactly the required pixel
// count passes.
func CheckPrintRequirements(imageWidth, imageHeight, printWidth, printHeight, minDPI float64) Result {
	requiredWidth := printWidth * minDPI
	requiredHeight := printHeight * minDPI

	return Result{
		Valid: imageWidth >= requiredWidth && imageHeight >= requiredHeight,
		Uploaded: Dimensions{
			Width:  imageWidth,
			Height: imageHeight,
			DPI:    DPI(imageWidth, imageHeight, printWidth, printHeight),
		},
		Required: Dimensions{
			Width:  requiredWidth,
			Height: requiredHeight,
			DPI:    minDPI,
		},
	}
}

package formatter

import (
	"fmt"
	"strings"
)

const (
	filledBlock = "█"
	emptyBlock  = "░"
)

// ProbabilityBar renders a stage's win probability like ████░░░░  45%.
// Stages without a probability render an empty dim bar.
func ProbabilityBar(probability *int, width int) string {
	width = max(width, 2)
	if probability == nil {
		return StyleDim.Render(strings.Repeat(emptyBlock, width)) + "   --"
	}
	pct := min(max(*probability, 0), 100)
	filled := pct * width / 100

	style := StyleGreen
	switch {
	case pct < 33:
		style = StyleRed
	case pct < 66:
		style = StyleYellow
	}
	bar := style.Render(strings.Repeat(filledBlock, filled)) + StyleDim.Render(strings.Repeat(emptyBlock, width-filled))
	return fmt.Sprintf("%s %3d%%", bar, pct)
}

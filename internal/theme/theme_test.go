package theme

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"

	"github.com/nhle/tasknotes/internal/model"
)

func TestCategoryStyle(t *testing.T) {
	assert.Equal(t, ColorGray, CategoryStyle("purple").GetForeground())
	assert.Equal(t, ColorGray, CategoryStyle("").GetForeground())
	assert.Equal(t, lipgloss.Color("#8B5CF6"), CategoryStyle("#8B5CF6").GetForeground())
}

func TestStatusAndPriorityStyles(t *testing.T) {
	assert.Equal(t, ColorGreen, StatusStyle(model.StatusDone).GetForeground())
	assert.Equal(t, ColorGray, StatusStyle("archived").GetForeground())
	assert.Equal(t, ColorRed, PriorityStyle(model.PriorityHigh).GetForeground())
	assert.Equal(t, ColorMagenta, ConnectionStyle("disabled").GetForeground())
}

package formatter

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRelativeDateFrom(t *testing.T) {
	now := time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input time.Time
		want  string
	}{
		{"today", now, "Today"},
		{"tomorrow", now.Add(24 * time.Hour), "Tomorrow"},
		{"yesterday", now.Add(-24 * time.Hour), "Yesterday"},
		{"3 days future", now.Add(3 * 24 * time.Hour), "In 3d"},
		{"3 days past", now.Add(-3 * 24 * time.Hour), "3d ago"},
		{"3 weeks future", now.Add(21 * 24 * time.Hour), "In 3w"},
		{"3 months future", now.Add(90 * 24 * time.Hour), "In 3mo"},
		{"3 months past", now.Add(-90 * 24 * time.Hour), "3mo ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RelativeDateFrom(tt.input, now))
		})
	}
}

func TestMoney(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0.00"},
		{"150", "150.00"},
		{"1500", "1,500.00"},
		{"1234567.891", "1,234,567.89"},
		{"-2500.5", "-2,500.50"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Money(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestMoneyPtrAndPercent(t *testing.T) {
	assert.Equal(t, "--", MoneyPtr(nil))
	d := decimal.NewFromInt(42)
	assert.Equal(t, "42.00", MoneyPtr(&d))

	assert.Equal(t, "--", Percent(nil))
	p := 75
	assert.Equal(t, "75%", Percent(&p))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "Padar…", Truncate("Padaria Central", 6))
	assert.Equal(t, "", Truncate("anything", 0))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45m", FormatDuration(45*time.Minute))
	assert.Equal(t, "5h", FormatDuration(5*time.Hour))
	assert.Equal(t, "2d", FormatDuration(48*time.Hour))
	assert.Equal(t, "3d 4h", FormatDuration(76*time.Hour))
}

func TestProbabilityBar(t *testing.T) {
	p := 50
	bar := ProbabilityBar(&p, 10)
	assert.Contains(t, bar, " 50%")
	assert.Contains(t, bar, filledBlock)
	assert.Contains(t, bar, emptyBlock)

	over := 150
	assert.Contains(t, ProbabilityBar(&over, 4), "100%")
	assert.Contains(t, ProbabilityBar(nil, 4), "--")
}

func TestRenderTable_AlignRight(t *testing.T) {
	out := RenderTable([]string{"NAME", "VALUE"}, [][]string{
		{"a", "1.00"},
		{"b", "1,000.00"},
	}, AlignRight(1))

	assert.Contains(t, out, "a         1.00\n")
	assert.Contains(t, out, "b     1,000.00\n")
}

func TestRenderTable_Empty(t *testing.T) {
	assert.Empty(t, RenderTable(nil, nil))
}

package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAdCopy(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	require.NoError(t, err)

	report, err := engine.CheckAdCopy(ctx, []CopyInput{
		{Index: 0, Tone: "friendly", Length: "short", Text: "국내 1위 텀블러, 보온 완벽!"},
		{Index: 1, Tone: "formal", Length: "short", Text: "하루 종일 따뜻함을 지켜드립니다."},
	}, []string{"최고", "국내 1위", "완벽"})
	require.NoError(t, err)

	assert.Equal(t, DecisionReview, report.Decision)
	assert.Equal(t, []Issue{
		{Tone: "friendly", Length: "short", Word: "국내 1위"},
		{Tone: "friendly", Length: "short", Word: "완벽"},
	}, report.Issues)
}

func TestCheckAdCopyPass(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	require.NoError(t, err)

	report, err := engine.CheckAdCopy(ctx, []CopyInput{{Tone: "humor", Length: "long", Text: "Best Choice 아님"}}, []string{"best"})
	require.NoError(t, err)
	assert.Equal(t, DecisionReview, report.Decision, "matching is case-insensitive")

	report, err = engine.CheckAdCopy(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DecisionPass, report.Decision)
	assert.Empty(t, report.Issues)
}

func TestNewEngineInvalidPolicy(t *testing.T) {
	_, err := NewEngine(context.Background(), "package ad_compliance\nresult = {")
	assert.Error(t, err)
}

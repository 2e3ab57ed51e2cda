package agents

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/marketing/internal/adapter/llm"
	"github.com/xiaot623/gogo/marketing/internal/domain"
	"github.com/xiaot623/gogo/marketing/policy"
)

func TestParseAdBrief(t *testing.T) {
	brief, ok := ParseAdBrief(`"그린컵" 텀블러 광고를 친근하게 짧게 써줘`)
	require.True(t, ok)
	assert.Equal(t, "그린컵", brief.ProductName)
	assert.Equal(t, []string{"friendly"}, brief.TonePreferences)
	assert.Equal(t, []string{"short"}, brief.LengthPreferences)

	brief, ok = ParseAdBrief("캠핑 랜턴에 대한 광고 문구 만들어줘")
	require.True(t, ok)
	assert.Equal(t, "캠핑 랜턴", brief.ProductName)
	assert.Empty(t, brief.TonePreferences)

	_, ok = ParseAdBrief("광고 문구 더 만들어줘")
	assert.False(t, ok, "filler words are not a product")

	_, ok = ParseAdBrief("안녕하세요")
	assert.False(t, ok)
}

func TestExtractCopies(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		want  []string
	}{
		{"array", `[{"copy":"A 문구"},{"copy":"B 문구"}]`, []string{"A 문구", "B 문구"}},
		{"fenced object", "```json\n{\"copies\":[{\"copy\":\"하나\"}]}\n```", []string{"하나"}},
		{"loose field", `결과: "copy": "느슨한 문구"`, []string{"느슨한 문구"}},
		{"list", "1. 첫 번째\n2) 두 번째\n- 세 번째", []string{"첫 번째", "두 번째", "세 번째"}},
		{"mock", llm.MockPrefix + " Received your message", nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, ExtractCopies(c.reply))
		})
	}
}

func TestLocalCompliance(t *testing.T) {
	got := localCompliance([]AdCopy{
		{Text: "최고의 선택", Tone: "formal", Length: "short"},
		{Text: "따뜻한 하루", Tone: "friendly", Length: "short"},
	}, []string{"최고", "완벽"})
	assert.Equal(t, policy.DecisionReview, got.Decision)
	assert.Equal(t, []policy.Issue{{Index: 0, Tone: "formal", Length: "short", Word: "최고"}}, got.Issues)

	clean := localCompliance([]AdCopy{{Text: "따뜻한 하루"}}, []string{"최고"})
	assert.Equal(t, policy.DecisionPass, clean.Decision)
	assert.Empty(t, clean.Issues)
}

func TestTemplateCopies(t *testing.T) {
	got := templateCopies(AdBrief{ProductName: "텀블러", KeyFeatures: []string{"보온 12시간"}}, "friendly", "short", 3)
	assert.Equal(t, []string{"텀블러, 오늘부터 함께해요.", "매일이 가벼워지는 텀블러.", "텀블러, 보온 12시간까지 챙겼습니다."}, got)

	generic := templateCopies(AdBrief{ProductName: "텀블러"}, "casual", "long", 2)
	assert.Len(t, generic, 2)
	assert.True(t, strings.HasPrefix(generic[0], "텀블러는"))
}

func TestAdCopyPipelineFlagsForbiddenWords(t *testing.T) {
	env := newTestEnv(t, scripted(map[string]string{
		"카피라이터": `[{"copy":"국내 1위 텀블러"},{"copy":"따뜻함을 지키는 텀블러"}]`,
	}))
	ctx := context.Background()

	res := env.run(t, domain.TaskAdCopy, "", "친환경 텀블러 광고 문구 만들어줘")
	require.True(t, res.Success, res.Errors)

	data, ok := res.ResultData.(*AdResult)
	require.True(t, ok)
	assert.Equal(t, "친환경 텀블러", data.ProductName)
	assert.Equal(t, 18, data.TotalVariations)
	assert.Equal(t, DefaultTones, data.Tones)
	assert.False(t, data.CompliancePassed)
	assert.Equal(t, policy.DecisionReview, data.Compliance.Decision)
	assert.Equal(t, 9, data.Compliance.Failed)
	assert.Equal(t, 9, data.Compliance.Passed)
	assert.False(t, data.AdCopies[0].Compliant)
	assert.True(t, data.AdCopies[1].Compliant)

	assert.Contains(t, res.ReplyText, "✍️ **친환경 텀블러 광고 문구 제안**")
	assert.Contains(t, res.ReplyText, "✅ 규제 검수 통과: 9개 / ⚠️ 보완 필요: 9개")
	assert.Contains(t, res.ReplyText, "- 친근함 / 짧게: 국내 1위")
	assert.Contains(t, res.ReplyText, "추가 보완 필요 항목 6개")
	assert.Empty(t, res.DownloadURL)

	docs, err := env.deps.Runner.Store.SearchRagDocs(ctx, "친환경 텀블러", domain.RagCategoryAd, 20)
	require.NoError(t, err)
	assert.Len(t, docs, 9)
	for _, doc := range docs {
		assert.Contains(t, doc.Content, "[친환경 텀블러]")
	}

	// A follow-up without a product reuses the recorded brief.
	more := env.run(t, domain.TaskAdCopy, res.SessionID, "더 만들어줘")
	require.True(t, more.Success, more.Errors)
	assert.Equal(t, res.SessionID, more.SessionID)
	assert.Contains(t, more.ReplyText, "🔁 추가 요청을 반영해 새로운 문구를 제안합니다.")
	assert.Equal(t, "친환경 텀블러", more.ResultData.(*AdResult).ProductName)
}

func TestAdCopyPipelineUsesTemplatesWithMockLLM(t *testing.T) {
	env := newTestEnv(t, llm.NewMockClient())
	res := env.run(t, domain.TaskAdCopy, "", `"그린컵" 광고를 공식적인 톤으로 써줘`)
	require.True(t, res.Success, res.Errors)

	data := res.ResultData.(*AdResult)
	assert.Equal(t, []string{"formal"}, data.Tones)
	assert.Equal(t, 6, data.TotalVariations)
	assert.True(t, data.CompliancePassed)
	for _, c := range data.AdCopies {
		assert.True(t, c.Template)
		assert.Contains(t, c.Text, "그린컵")
	}
	assert.Contains(t, res.ReplyText, "**톤: 공식적**")
}

func TestAdCopyPipelineGuidanceWithoutProduct(t *testing.T) {
	env := newTestEnv(t, llm.NewMockClient())
	res := env.run(t, domain.TaskAdCopy, "", "안녕하세요")

	assert.False(t, res.Success)
	assert.Contains(t, res.ReplyText, "제품이나 서비스 정보를 찾을 수 없습니다.")
	assert.Equal(t, []string{"제품명을 식별하지 못했습니다."}, res.Errors)
}

package agents

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var trendStopwords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"최근", "요즘", "지난", "이번", "다음", "개월", "달", "월", "주", "일", "년", "주간", "개월간",
		"분기", "반년", "트렌드", "trend", "분석", "알려줘", "해주세요", "해줘", "데이터", "시장",
		"어떻게", "요청", "보고", "정보", "관련", "대한", "입니다", "주세요", "please", "tell", "show",
		"about", "analysis", "정리", "해줘요", "알려주세요",
	} {
		trendStopwords[w] = struct{}{}
	}
}

const periodExpr = `(?:최근|요즘|지난|이번|다음)\s*(?:\d+\s*)?(?:년|개월|달|월|주|일|주간|개월간|분기|반년)?`

var (
	quotedKeyword  = regexp.MustCompile(`["“”'‘’]([^"“”'‘’]{2,})["“”'‘’]`)
	hashtagKeyword = regexp.MustCompile(`#([A-Za-z0-9가-힣]+)`)
	periodPhrase   = regexp.MustCompile(`(?i)` + periodExpr)
	keywordRules   = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?P<keyword>[가-힣A-Za-z0-9&\s]+?)\s*(?:트렌드|trend)\s*(?:분석|알려줘|데이터|현황|보고|파악)?`),
		regexp.MustCompile(`(?i)(?P<keyword>[가-힣A-Za-z0-9&\s]+?)\s*(?:시장|수요)\s*(?:전망|분석|어떻게|추이)`),
		regexp.MustCompile(`(?i)(?P<keyword>[가-힣A-Za-z0-9&\s]+?)\s*(?:에 대한|관련)\s*(?:트렌드|분석)`),
	}
	tokenSplit = regexp.MustCompile(`[,\s]+`)
	whitespace = regexp.MustCompile(`\s+`)

	cleanPeriod   = regexp.MustCompile(`(?i)\s*` + periodExpr)
	cleanAnalysis = regexp.MustCompile(`(?i)(?:트렌드|trend|분석|시장|데이터|전망|추이|현황|보고|파악)(?:\s+|$)`)
	cleanPrefix   = regexp.MustCompile(`^(?:대한|관련|국내|해외)\s+`)
	cleanSuffix   = regexp.MustCompile(`\s+(?:관련|대한|에 대한)$`)
	cleanParticle = regexp.MustCompile(`(의|을|를|이|가|은|는|와|과|에서|으로|에|로)$`)
)

// ExtractTrendKeyword finds the analysis keyword with quoted text, hashtags,
// phrase rules and finally the first meaningful tokens. It returns "" when
// nothing usable is found.
func ExtractTrendKeyword(message string) string {
	text := strings.TrimSpace(message)
	if text == "" {
		return ""
	}

	for _, m := range quotedKeyword.FindAllStringSubmatch(text, -1) {
		if kw := cleanKeyword(m[1]); kw != "" {
			return kw
		}
	}
	if m := hashtagKeyword.FindStringSubmatch(text); m != nil {
		if kw := cleanKeyword(m[1]); kw != "" {
			return kw
		}
	}

	stripped := periodPhrase.ReplaceAllString(text, "")
	for _, re := range keywordRules {
		m := re.FindStringSubmatch(stripped)
		if m == nil {
			continue
		}
		if kw := cleanKeyword(m[re.SubexpIndex("keyword")]); kw != "" {
			return kw
		}
	}

	var meaningful []string
	for _, tok := range tokenSplit.Split(text, -1) {
		if tok != "" && meaningfulToken(tok) {
			meaningful = append(meaningful, tok)
		}
	}
	if len(meaningful) > 2 {
		meaningful = meaningful[:2]
	}
	if len(meaningful) > 0 {
		return cleanKeyword(strings.Join(meaningful, " "))
	}
	return ""
}

func cleanKeyword(raw string) string {
	s := whitespace.ReplaceAllString(strings.TrimSpace(raw), " ")
	s = cleanPeriod.ReplaceAllString(s, "")
	s = cleanAnalysis.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = cleanPrefix.ReplaceAllString(s, "")
	s = cleanSuffix.ReplaceAllString(s, "")
	s = cleanParticle.ReplaceAllString(s, "")
	s = strings.Trim(s, ` "'()[]`)

	if len([]rune(s)) < 2 {
		return ""
	}
	if _, stop := trendStopwords[strings.ToLower(s)]; stop {
		return ""
	}
	return s
}

func meaningfulToken(tok string) bool {
	s := strings.Trim(tok, ` "'()[]{}.,!?`)
	if s == "" {
		return false
	}
	lower := strings.ToLower(s)
	if _, stop := trendStopwords[lower]; stop {
		return false
	}
	if strings.Contains(lower, "트렌드") || strings.Contains(lower, "trend") || strings.Contains(lower, "분석") {
		return false
	}
	if r := []rune(s); len(r) == 1 && (r[0] < '0' || r[0] > '9') {
		return false
	}
	return true
}

// TimeWindow is the analysis period.
type TimeWindow struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	TimeUnit  string `json:"time_unit"`
	Days      int    `json:"days"`
}

const defaultWindowDays = 180

var (
	kst = time.FixedZone("KST", 9*60*60)

	windowRules = []struct {
		re   *regexp.Regexp
		days func(n int) int
	}{
		{regexp.MustCompile(`(\d+)\s*(?:일|일간|일동안|days?)`), func(n int) int { return max(1, n) }},
		{regexp.MustCompile(`(\d+)\s*(?:주|주간|weeks?)`), func(n int) int { return n * 7 }},
		{regexp.MustCompile(`(\d+)\s*(?:개월|달|months?)`), func(n int) int { return n * 30 }},
		{regexp.MustCompile(`(\d+)\s*(?:년|years?)`), func(n int) int { return n * 365 }},
	}
)

// ResolveTimeWindow reads the period from message. Search data ends
// yesterday in Korean time; the default is 180 days by week.
func ResolveTimeWindow(message string, now time.Time) TimeWindow {
	yesterday := now.In(kst).AddDate(0, 0, -1)
	window := func(days int, unit string) TimeWindow {
		return TimeWindow{
			StartDate: yesterday.AddDate(0, 0, -days).Format("2006-01-02"),
			EndDate:   yesterday.Format("2006-01-02"),
			TimeUnit:  unit,
			Days:      days,
		}
	}

	text := strings.ToLower(message)
	days := 0
	for _, rule := range windowRules {
		if m := rule.re.FindStringSubmatch(text); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				days = rule.days(n)
				break
			}
		}
	}
	if days == 0 {
		condensed := strings.ReplaceAll(text, " ", "")
		switch {
		case strings.Contains(text, "분기"):
			days = 90
		case strings.Contains(text, "반년"):
			days = 180
		case strings.Contains(condensed, "일년"):
			days = 365
		}
	}
	if days == 0 {
		return window(defaultWindowDays, "week")
	}

	days = min(max(days, 7), 3650)
	unit := "date"
	if days > 120 {
		unit = "week"
	}
	if days > 730 {
		unit = "month"
	}
	return window(days, unit)
}

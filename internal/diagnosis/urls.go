package diagnosis

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/yolo-japan/lineassist/internal/models"
)

// SiteBase is the job site root all generated links point at.
const SiteBase = "https://www.yolo-japan.com"

const (
	utmSource       = "line"
	utmMedium       = "chatbot"
	defaultCampaign = "yolo_bot"
)

// LinkItem is one job search link shown to the user after the diagnosis.
type LinkItem struct {
	Label       string
	URL         string
	Description string
}

// AddUTMParams appends the standard tracking parameters to rawURL. An empty
// campaign uses the default bot campaign. Unparseable URLs are returned as is.
func AddUTMParams(rawURL, campaign string) string {
	if campaign == "" {
		campaign = defaultCampaign
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set("utm_source", utmSource)
	q.Set("utm_medium", utmMedium)
	q.Set("utm_campaign", campaign)
	u.RawQuery = q.Encode()
	return u.String()
}

// langPath maps a user language to the site's path segment. The site serves
// traditional Chinese under zh-TW; anything unknown falls back to English.
func langPath(lang string) string {
	switch lang {
	case "ja", "en", "ko", "vi":
		return lang
	case "zh":
		return "zh-TW"
	default:
		return "en"
	}
}

// BuildSearchURL builds a job search link for the given answers, tagged with
// the per language diagnosis campaign.
func BuildSearchURL(answers models.DiagnosisAnswers, lang string) string {
	q := url.Values{}
	if answers.Prefecture != "" {
		q.Add("area[]", answers.Prefecture)
	}
	if p := levelURLParam(answers.JapaneseLevel); p != "" {
		q.Add("japaneseLevel[]", p)
	}
	switch answers.WorkStyle {
	case "fulltime", "parttime":
		q.Add("workStyle[]", answers.WorkStyle)
	case "both":
		q.Add("workStyle[]", "fulltime")
		q.Add("workStyle[]", "parttime")
	}
	for _, key := range strings.Split(answers.Industry, ",") {
		if ind, ok := IndustryByKey(strings.TrimSpace(key)); ok {
			q.Add("industries[]", strconv.Itoa(ind.ID))
		}
	}
	q.Add("order", "salary")

	base := fmt.Sprintf("%s/%s/recruit/job?%s", SiteBase, langPath(lang), q.Encode())
	return AddUTMParams(base, "line_chatbot_diagnosis_"+lang)
}

// BuildURLsByLevel returns up to three search links around the user's Japanese
// level, ordered easiest first. The window is clamped to the level scale, so
// an N1 user gets N3, N2 and N1 while a user without Japanese gets the
// no-Japanese, N5 and N4 links. Returns nil when the level is missing.
func BuildURLsByLevel(answers models.DiagnosisAnswers, lang string) []LinkItem {
	idx := LevelIndex(answers.JapaneseLevel)
	if idx < 0 {
		return nil
	}

	lo, hi := idx-1, idx+1
	if lo < 0 {
		lo, hi = 0, 2
	}
	if hi > len(JapaneseLevels)-1 {
		hi = len(JapaneseLevels) - 1
		lo = hi - 2
	}

	items := make([]LinkItem, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		level := JapaneseLevels[i]
		shifted := answers
		shifted.JapaneseLevel = level.Code
		items = append(items, LinkItem{
			Label:       levelLinkLabel(level.Code, lang),
			URL:         BuildSearchURL(shifted, lang),
			Description: levelLinkDescription(i-idx, answers.JapaneseLevel, level.Code, lang),
		})
	}
	return items
}

// BuildSiteURL links to the plain job search for users leaving bot mode.
func BuildSiteURL(lang string) string {
	return AddUTMParams(fmt.Sprintf("%s/%s/recruit/job", SiteBase, langPath(lang)), "line_chatbot_site_mode")
}

// BuildInquiryURL links to the contact form, tagged with the contact campaign.
func BuildInquiryURL(lang string) string {
	return AddUTMParams(fmt.Sprintf("%s/%s/inquiry/input", SiteBase, langPath(lang)), "contact")
}

// BuildFeatureURL links to the themed feature listings. Tagged with
// medium=feature so funnel analysis can tell the entry points apart.
func BuildFeatureURL(lang string) string {
	u, _ := url.Parse(fmt.Sprintf("%s/%s/recruit/feature/theme", SiteBase, langPath(lang)))
	q := u.Query()
	q.Set("utm_source", utmSource)
	q.Set("utm_medium", "feature")
	q.Set("utm_campaign", "line_feature_features")
	u.RawQuery = q.Encode()
	return u.String()
}

// BuildAutochatURL links to the job search from free AI chat, tagged with
// medium=autochat.
func BuildAutochatURL(lang string) string {
	u, _ := url.Parse(fmt.Sprintf("%s/%s/recruit/job", SiteBase, langPath(lang)))
	q := u.Query()
	q.Set("utm_source", utmSource)
	q.Set("utm_medium", "autochat")
	q.Set("utm_campaign", "line_autochat_ai_chat")
	u.RawQuery = q.Encode()
	return u.String()
}

var levelLinkLabels = map[string]models.LocalizedText{
	"no_japanese": {
		"ja": "日本語不要の求人", "en": "Jobs without Japanese", "ko": "일본어 불필요 구인",
		"zh": "无需日语的工作", "vi": "Công việc không cần tiếng Nhật",
	},
	"n5": {"ja": "N5レベルの求人", "en": "N5 Level Jobs", "ko": "N5 수준 구인", "zh": "N5水平工作", "vi": "Công việc N5"},
	"n4": {"ja": "N4レベルの求人", "en": "N4 Level Jobs", "ko": "N4 수준 구인", "zh": "N4水平工作", "vi": "Công việc N4"},
	"n3": {"ja": "N3レベルの求人", "en": "N3 Level Jobs", "ko": "N3 수준 구인", "zh": "N3水平工作", "vi": "Công việc N3"},
	"n2": {"ja": "N2レベルの求人", "en": "N2 Level Jobs", "ko": "N2 수준 구인", "zh": "N2水平工作", "vi": "Công việc N2"},
	"n1": {"ja": "N1レベルの求人", "en": "N1 Level Jobs", "ko": "N1 수준 구인", "zh": "N1水平工作", "vi": "Công việc N1"},
}

func levelLinkLabel(code, lang string) string {
	if lt, ok := levelLinkLabels[code]; ok {
		return lt.Resolve(lang)
	}
	return "Jobs"
}

var (
	descMatch = models.LocalizedText{
		"ja": "【あなたの条件に合う求人】",
		"en": "【Jobs matching your conditions】",
		"ko": "【당신의 조건에 맞는 구인】",
		"zh": "【符合您条件的工作】",
		"vi": "【Công việc phù hợp với điều kiện của bạn】",
	}
	descAbove = models.LocalizedText{
		"ja": "【とりあえず見るだけでもOK】\n気になったら応募してみよう",
		"en": "【Just checking is OK】\nApply if interested",
		"ko": "【일단 보기만 해도 OK】\n관심 있으면 지원해보세요",
		"zh": "【先看看也可以】\n感兴趣的话可以申请",
		"vi": "【Chỉ xem cũng được】\nNếu quan tâm thì nộp đơn",
	}
	descBelow = models.LocalizedText{
		"ja": "【もう少し日本語が簡単な求人】",
		"en": "【Jobs with easier Japanese】",
		"ko": "【조금 더 쉬운 일본어 구인】",
		"zh": "【日语更简单的工作】",
		"vi": "【Công việc tiếng Nhật dễ hơn】",
	}
	descBelowNoJapanese = models.LocalizedText{
		"ja": "【日本語に自信がない方向け】\n通訳サポートのある職場も",
		"en": "【For those not confident in Japanese】\nWorkplaces with interpreter support",
		"ko": "【일본어에 자신 없는 분들을 위해】\n통역 지원이 있는 직장도",
		"zh": "【日语不自信的人】\n有翻译支持的职场",
		"vi": "【Dành cho người không tự tin tiếng Nhật】\nCó nơi làm việc hỗ trợ thông dịch",
	}
	descTwoBelow = models.LocalizedText{
		"ja": "【幅広い選択肢から選べる】\n日常会話レベルでもOK",
		"en": "【Wide range of choices】\nDaily conversation level OK",
		"ko": "【폭넓은 선택지에서 선택】\n일상회화 수준도 OK",
		"zh": "【可从广泛选择中选择】\n日常会话水平也可以",
		"vi": "【Có thể chọn từ nhiều lựa chọn】\nTrình độ hội thoại hàng ngày cũng OK",
	}
	descOneBelowTop = models.LocalizedText{
		"ja": "【こちらもチェック】\nビジネス会話レベル",
		"en": "【Check this too】\nBusiness conversation level",
		"ko": "【이것도 확인】\n비즈니스 회화 수준",
		"zh": "【也可以看看这个】\n商务会话水平",
		"vi": "【Kiểm tra cái này】\nTrình độ hội thoại kinh doanh",
	}
)

// levelLinkDescription picks the blurb for a link based on how far its level
// sits from the user's own. offset is link level minus user level. N1 users
// get dedicated blurbs for the two easier links since there is nothing above.
func levelLinkDescription(offset int, userLevel, code, lang string) string {
	switch {
	case offset == 0:
		return descMatch.Resolve(lang)
	case offset > 0:
		return descAbove.Resolve(lang)
	case offset == -2:
		return descTwoBelow.Resolve(lang)
	case userLevel == "n1":
		return descOneBelowTop.Resolve(lang)
	case code == "no_japanese":
		return descBelowNoJapanese.Resolve(lang)
	default:
		return descBelow.Resolve(lang)
	}
}

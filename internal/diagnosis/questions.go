package diagnosis

import (
	"fmt"

	"github.com/yolo-japan/lineassist/internal/models"
)

var introText = models.LocalizedText{
	"ja": "それでは診断を開始します！📋",
	"en": "Let's start the diagnosis! 📋",
	"ko": "진단을 시작합니다! 📋",
	"zh": "开始诊断！📋",
	"vi": "Bắt đầu chẩn đoán! 📋",
}

var resultTitle = models.LocalizedText{
	"ja": "診断が完了しました！\nあなたにぴったりのお仕事はこちら",
	"en": "Diagnosis completed!\nJobs that match you",
	"ko": "진단이 완료되었습니다!\n당신에게 맞는 일자리는 아래",
	"zh": "诊断已完成！\n适合您的工作如下",
	"vi": "Hoàn tất chẩn đoán!\nCông việc phù hợp với bạn",
}

var progressFormats = models.LocalizedText{
	"ja": "【残り%d問】",
	"en": "【%d left】",
	"ko": "【%d개 남음】",
	"zh": "【还剩%d题】",
	"vi": "【Còn %d câu】",
}

// progressPrefix shows how many questions remain, counting the current one.
func progressPrefix(question int, lang string) string {
	return fmt.Sprintf(progressFormats.Resolve(lang), finalQuestion-question+1)
}

var (
	questionTexts = map[int]models.LocalizedText{
		1: {"ja": "日本に住んでいますか？", "en": "Do you live in Japan?", "ko": "일본에 살고 있습니까?", "zh": "您住在日本吗？", "vi": "Bạn có sống ở Nhật Bản không?"},
		2: {"ja": "性別を教えてください", "en": "Gender?", "ko": "성별을 알려주세요", "zh": "请告诉我您的性别", "vi": "Giới tính?"},
		3: {"ja": "どのくらい急ぎですか？", "en": "How urgent?", "ko": "얼마나 급하신가요?", "zh": "有多紧急？", "vi": "Mức độ khẩn cấp?"},
		4: {"ja": "お探しの都道府県は？", "en": "Which prefecture?", "ko": "원하는 현은?", "zh": "您想找哪个都道府县？", "vi": "Tỉnh nào?"},
		5: {"ja": "日本語レベルは？", "en": "Japanese level?", "ko": "일본어 수준은?", "zh": "日语水平？", "vi": "Trình độ tiếng Nhật?"},
		7: {"ja": "雇用形態は？", "en": "Employment type?", "ko": "고용 형태는?", "zh": "雇佣形式？", "vi": "Hình thức làm việc?"},
	}

	labelYes         = models.LocalizedText{"ja": "はい", "en": "Yes", "ko": "예", "zh": "是", "vi": "Có"}
	labelNo          = models.LocalizedText{"ja": "いいえ", "en": "No", "ko": "아니오", "zh": "否", "vi": "Không"}
	labelMale        = models.LocalizedText{"ja": "男性", "en": "Male", "ko": "남성", "zh": "男", "vi": "Nam"}
	labelFemale      = models.LocalizedText{"ja": "女性", "en": "Female", "ko": "여성", "zh": "女", "vi": "Nữ"}
	labelOther       = models.LocalizedText{"ja": "その他", "en": "Other", "ko": "기타", "zh": "其他", "vi": "Khác"}
	labelNow         = models.LocalizedText{"ja": "今すぐ", "en": "Now", "ko": "즉시", "zh": "立即", "vi": "Ngay"}
	labelTwoWeeks    = models.LocalizedText{"ja": "1〜2週間", "en": "1-2 weeks", "ko": "1-2주", "zh": "1-2周", "vi": "1-2 tuần"}
	labelNotUrgent   = models.LocalizedText{"ja": "急ぎでない", "en": "Not urgent", "ko": "급하지 않음", "zh": "不急", "vi": "Không gấp"}
	labelOtherRegion = models.LocalizedText{"ja": "ここにない地方", "en": "Other region", "ko": "다른 지역", "zh": "其他地区", "vi": "Khu vực khác"}
	labelNone        = models.LocalizedText{"ja": "なし", "en": "None", "ko": "없음", "zh": "无", "vi": "Không"}

	regionQuestionText = models.LocalizedText{
		"ja": "地方を選んでください", "en": "Select region", "ko": "지역을 선택하세요", "zh": "选择地区", "vi": "Chọn khu vực",
	}
	prefectureQuestionText = models.LocalizedText{
		"ja": "どの都道府県ですか？", "en": "Which prefecture?", "ko": "어느 현입니까?", "zh": "哪个都道府县？", "vi": "Tỉnh nào?",
	}
	industryFirstText = models.LocalizedText{
		"ja": "希望業界は？", "en": "Preferred industry?", "ko": "희망 업종은?", "zh": "希望行业？", "vi": "Ngành mong muốn?",
	}
	industryMoreText = models.LocalizedText{
		"ja": "他に希望業界はありますか？", "en": "Any other industry?", "ko": "다른 희망 업종은?", "zh": "还有其他希望行业吗？", "vi": "Có ngành nào khác không?",
	}
)

func choice(label models.LocalizedText, lang, value string) models.QuickReplyItem {
	return models.MessageAction(models.TruncateLabel(label.Resolve(lang)), value)
}

// mainQuestion returns the text and choices for questions 1-5 and 7. Question
// 6 and the location sub steps are rendered separately.
func mainQuestion(q int, lang string) (string, []models.QuickReplyItem, bool) {
	text, ok := questionTexts[q]
	if !ok {
		return "", nil, false
	}

	var items []models.QuickReplyItem
	switch q {
	case 1:
		items = []models.QuickReplyItem{choice(labelYes, lang, "yes"), choice(labelNo, lang, "no")}
	case 2:
		items = []models.QuickReplyItem{
			choice(labelMale, lang, "male"),
			choice(labelFemale, lang, "female"),
			choice(labelOther, lang, "other"),
		}
	case 3:
		items = []models.QuickReplyItem{
			choice(labelNow, lang, "immediate"),
			choice(labelTwoWeeks, lang, "within_2weeks"),
			choice(labelNotUrgent, lang, "not_urgent"),
		}
	case 4:
		for _, pref := range MajorPrefectures {
			items = append(items, choice(pref.Label, lang, pref.Code))
		}
		items = append(items, choice(labelOtherRegion, lang, AnswerOtherRegion))
	case 5:
		for _, lv := range JapaneseLevels {
			items = append(items, choice(lv.Label, lang, lv.Code))
		}
	case 7:
		for _, ws := range WorkStyles {
			items = append(items, choice(ws.Label, lang, ws.Key))
		}
	default:
		return "", nil, false
	}
	return text.Resolve(lang), items, true
}

// regionQuestion renders the drill down step without a progress prefix since
// it continues the same location question.
func regionQuestion(lang string) models.Message {
	items := make([]models.QuickReplyItem, 0, len(Regions))
	for _, r := range Regions {
		items = append(items, choice(r.Label, lang, r.Code))
	}
	return models.NewQuickReplyMessage(regionQuestionText.Resolve(lang), items)
}

func prefectureQuestion(region, lang string) models.Message {
	prefs, ok := PrefecturesByRegion[region]
	if !ok {
		prefs = PrefecturesByRegion["kanto"]
	}
	if len(prefs) > models.MaxQuickReplyItems {
		prefs = prefs[:models.MaxQuickReplyItems]
	}
	items := make([]models.QuickReplyItem, 0, len(prefs))
	for _, p := range prefs {
		items = append(items, choice(p.Label, lang, p.Code))
	}
	return models.NewQuickReplyMessage(prefectureQuestionText.Resolve(lang), items)
}

// industryQuestion offers the industries not yet picked plus a "none" escape.
// The progress prefix only appears before the first pick.
func industryQuestion(diag *models.DiagnosisState, lang string) models.Message {
	picked := make(map[string]bool, len(diag.SelectedIndustries))
	for _, key := range diag.SelectedIndustries {
		picked[key] = true
	}

	var items []models.QuickReplyItem
	for _, ind := range Industries {
		if picked[ind.Key] {
			continue
		}
		items = append(items, choice(ind.Label, lang, ind.Key))
	}
	items = append(items, choice(labelNone, lang, AnswerNone))

	text := industryFirstText.Resolve(lang)
	if len(diag.SelectedIndustries) == 0 {
		text = progressPrefix(6, lang) + "\n" + text
	} else {
		text = industryMoreText.Resolve(lang)
	}
	return models.NewQuickReplyMessage(text, items)
}

// resultMessage packs the diagnosis links into a flex bubble. A flex message
// keeps the chat free of URL previews that a plain text link would trigger.
func resultMessage(title string, links []LinkItem) models.Message {
	contents := make([]map[string]any, 0, len(links))
	for _, item := range links {
		label := item.Label
		if runes := []rune(label); len(runes) > 20 {
			label = string(runes[:17]) + "..."
		}
		box := []map[string]any{}
		if item.Description != "" {
			box = append(box, map[string]any{
				"type": "text", "text": item.Description, "size": "xs", "color": "#666666", "wrap": true,
			})
		}
		button := map[string]any{
			"type":   "button",
			"action": map[string]any{"type": "uri", "label": label, "uri": item.URL},
			"style":  "primary",
			"color":  "#d10a1c",
			"height": "sm",
			"margin": "none",
		}
		if item.Description != "" {
			button["margin"] = "sm"
		}
		box = append(box, button)
		contents = append(contents, map[string]any{
			"type": "box", "layout": "vertical", "contents": box, "margin": "lg",
		})
	}

	return models.Message{
		Type:    models.MessageTypeFlex,
		AltText: title,
		Contents: map[string]any{
			"type": "bubble",
			"size": "mega",
			"header": map[string]any{
				"type":   "box",
				"layout": "vertical",
				"contents": []map[string]any{
					{"type": "text", "text": "✨", "size": "xxl", "align": "center"},
					{"type": "text", "text": title, "weight": "bold", "size": "lg", "color": "#1DB446", "align": "center", "wrap": true, "margin": "md"},
				},
				"paddingAll":      "20px",
				"backgroundColor": "#FFFFFF",
			},
			"body": map[string]any{
				"type": "box", "layout": "vertical", "contents": contents, "paddingAll": "20px", "spacing": "md",
			},
		},
	}
}

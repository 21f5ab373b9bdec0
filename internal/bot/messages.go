package bot

import (
	"fmt"

	"github.com/yolo-japan/lineassist/internal/diagnosis"
	"github.com/yolo-japan/lineassist/internal/models"
)

// languageByFlag maps the flag quick-reply texts to language codes. Only the
// exact flag-prefixed strings count as a language selection so ordinary
// messages containing a language name pass through.
var languageByFlag = map[string]string{
	"🇯🇵 日本語":       "ja",
	"🇬🇧 English":    "en",
	"🇰🇷 한국어":        "ko",
	"🇨🇳 中文":         "zh",
	"🇻🇳 Tiếng Việt": "vi",
}

// languageOrder fixes the quick-reply button order of the picker.
var languageOrder = []string{"🇯🇵 日本語", "🇬🇧 English", "🇰🇷 한국어", "🇨🇳 中文", "🇻🇳 Tiếng Việt"}

func languageItems() []models.QuickReplyItem {
	items := make([]models.QuickReplyItem, 0, len(languageOrder))
	for _, flag := range languageOrder {
		items = append(items, models.MessageAction(flag, flag))
	}
	return items
}

func welcomeMessage() models.Message {
	return models.NewQuickReplyMessage(
		"Welcome to YOLO JAPAN! 🎉\n\nPlease select your language:\n言語を選択してください",
		languageItems(),
	)
}

func languagePickerMessage() models.Message {
	return models.NewQuickReplyMessage(
		"Please select your language / 言語を選択してください:",
		languageItems(),
	)
}

// languageConfirmations are written in the language just chosen, so this map
// is keyed directly instead of going through LocalizedText resolution.
var languageConfirmations = map[string]string{
	"ja": "言語を日本語に設定しました ✅\n\n「しごとをさがす」から求人検索を始められます。",
	"en": "Language set to English ✅\n\nYou can start job search from \"Find Job\".",
	"ko": "언어를 한국어로 설정했습니다 ✅\n\n\"일자리 찾기\"에서 구직 검색을 시작할 수 있습니다.",
	"zh": "语言已设置为中文 ✅\n\n您可以从\"找工作\"开始求职搜索。",
	"vi": "Đã đặt ngôn ngữ thành Tiếng Việt ✅\n\nBạn có thể bắt đầu tìm việc từ \"Tìm việc\".",
}

func languageConfirmation(lang string) string {
	if msg, ok := languageConfirmations[lang]; ok {
		return msg
	}
	return languageConfirmations["en"]
}

var (
	greetingText = models.LocalizedText{
		"ja": "こんにちは!YOLO JAPANです✨",
		"en": "Hello! This is YOLO JAPAN✨",
		"ko": "안녕하세요! YOLO JAPAN입니다✨",
		"zh": "你好!这里是YOLO JAPAN✨",
		"vi": "Xin chào! Đây là YOLO JAPAN✨",
	}
	greetingPrompt = models.LocalizedText{
		"ja": "今日はどのようなお手伝いができますか?\n\n例えば...\n📌 仕事を探している\n📌 お問い合わせしたい",
		"en": "How can I help you today?\n\nFor example...\n📌 Looking for a job\n📌 Contact us",
		"ko": "오늘은 무엇을 도와드릴까요?\n\n예를 들어...\n📌 일자리 찾기\n📌 문의하기",
		"zh": "今天需要什么帮助?\n\n例如...\n📌 找工作\n📌 联系我们",
		"vi": "Hôm nay tôi có thể giúp gì cho bạn?\n\nVí dụ...\n📌 Tìm việc làm\n📌 Liên hệ",
	}
	greetingJobLabel = models.LocalizedText{
		"ja": "🔍 仕事を探す", "en": "🔍 Find Job", "ko": "🔍 일자리 찾기", "zh": "🔍 找工作", "vi": "🔍 Tìm việc",
	}
	greetingJobText = models.LocalizedText{
		"ja": "仕事を探しています", "en": "I'm looking for a job", "ko": "일자리를 찾고 있습니다",
		"zh": "我在找工作", "vi": "Tôi đang tìm việc",
	}
	greetingContactLabel = models.LocalizedText{
		"ja": "📩 お問い合わせ", "en": "📩 Contact", "ko": "📩 문의", "zh": "📩 联系", "vi": "📩 Liên hệ",
	}
	greetingContactText = models.LocalizedText{
		"ja": "お問い合わせ", "en": "Contact", "ko": "문의하기", "zh": "联系我们", "vi": "Liên hệ",
	}
)

// greetingMessages is the two-part greeting reply: a hello plus a prompt with
// the job-search and contact shortcuts.
func greetingMessages(lang string) []models.Message {
	prompt := models.NewQuickReplyMessage(greetingPrompt.Resolve(lang), []models.QuickReplyItem{
		models.MessageAction(greetingJobLabel.Resolve(lang), greetingJobText.Resolve(lang)),
		models.MessageAction(greetingContactLabel.Resolve(lang), greetingContactText.Resolve(lang)),
	})
	return []models.Message{models.NewTextMessage(greetingText.Resolve(lang)), prompt}
}

var contactTemplates = models.LocalizedText{
	"ja": "お問い合わせはこちらから↓\n%s",
	"en": "Contact us here↓\n%s",
	"ko": "문의는 여기에서↓\n%s",
	"zh": "請在此處聯繫我們↓\n%s",
	"vi": "Liên hệ với chúng tôi tại đây↓\n%s",
}

func contactMessage(lang string) models.Message {
	return models.NewTextMessage(fmt.Sprintf(contactTemplates.Resolve(lang), diagnosis.BuildInquiryURL(lang)))
}

var (
	methodQuestion = models.LocalizedText{
		"ja": "お仕事探しですね！\nどちらの方法で探しますか？",
		"en": "Looking for a job!\nHow would you like to search?",
		"ko": "일자리를 찾고 계시네요!\n어떻게 찾으시겠어요?",
		"zh": "找工作！\n您想如何搜索？",
		"vi": "Tìm việc!\nBạn muốn tìm như thế nào?",
	}
	methodDiagnosisLabel = models.LocalizedText{
		"ja": "🤖 AI診断(30秒)", "en": "🤖 AI (30sec)", "ko": "🤖 AI (30초)", "zh": "🤖 AI（30秒）", "vi": "🤖 AI (30s)",
	}
	methodSiteLabel = models.LocalizedText{
		"ja": "🔍 サイトで探す", "en": "🔍 On website", "ko": "🔍 웹사이트", "zh": "🔍 网站搜索", "vi": "🔍 Trang web",
	}
)

// jobSearchMethodMessage asks whether to run the diagnosis or jump straight to
// the site. Both options send menu button payloads so the next turn routes
// through the button handling.
func jobSearchMethodMessage(lang string) models.Message {
	return models.NewQuickReplyMessage(methodQuestion.Resolve(lang), []models.QuickReplyItem{
		models.MessageAction(methodDiagnosisLabel.Resolve(lang), ButtonAIMode),
		models.MessageAction(methodSiteLabel.Resolve(lang), ButtonSiteModeAutochat),
	})
}

var siteLinkTemplates = models.LocalizedText{
	"ja": "こちらからお仕事を探せます：\n%s",
	"en": "You can search for jobs here:\n%s",
	"ko": "여기에서 일자리를 찾을 수 있습니다:\n%s",
	"zh": "您可以在这里搜索工作：\n%s",
	"vi": "Bạn có thể tìm công việc tại đây:\n%s",
}

var featureLinkTemplates = models.LocalizedText{
	"ja": "おすすめの求人特集はこちら：\n%s",
	"en": "Featured jobs here:\n%s",
	"ko": "추천 특집:\n%s",
	"zh": "推荐特辑：\n%s",
	"vi": "Đặc sản đề xuất:\n%s",
}

func siteLinkMessage(lang, siteURL string) models.Message {
	return models.NewTextMessage(fmt.Sprintf(siteLinkTemplates.Resolve(lang), siteURL))
}

func featureLinkMessage(lang string) models.Message {
	return models.NewTextMessage(fmt.Sprintf(featureLinkTemplates.Resolve(lang), diagnosis.BuildFeatureURL(lang)))
}

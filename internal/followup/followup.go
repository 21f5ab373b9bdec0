// Package followup implements the short check-in conversation that runs after
// a diagnosis: whether the user applied, how many times, and what got in the
// way. It ends by handing the conversation to free AI chat.
package followup

import (
	"fmt"
	"log/slog"
	"net/url"

	"github.com/yolo-japan/lineassist/internal/models"
)

// Quick reply payloads. These arrive back as plain message text.
const (
	AnswerYes        = "FOLLOWUP_YES"
	AnswerNo         = "FOLLOWUP_NO"
	AnswerNotYet     = "FOLLOWUP_NOT_YET"
	AnswerCount1     = "FOLLOWUP_COUNT_1"
	AnswerCount2To3  = "FOLLOWUP_COUNT_2_3"
	AnswerCount4Plus = "FOLLOWUP_COUNT_4+"
	AnswerNoMatch    = "FOLLOWUP_TROUBLE_NO_MATCH"
	AnswerLanguage   = "FOLLOWUP_TROUBLE_LANGUAGE"
	AnswerHowTo      = "FOLLOWUP_TROUBLE_HOW_TO"
	AnswerTroubleNot = "FOLLOWUP_TROUBLE_NOT_YET"
	AnswerDone       = "FOLLOWUP_DONE"
)

// liffID routes site links through the LINE front-end framework so they open
// in the external browser instead of the in-app webview.
const liffID = "2006973060-cAgpaZ0y"

var messages = map[string]models.LocalizedText{
	"entry_question": {
		"ja": "求人ページ閲覧後にお答えください😌\n応募はできましたか？",
		"en": "Please answer after viewing the job page 😌\nDid you apply?",
		"ko": "구인 페이지를 본 후 답해주세요 😌\n지원하셨나요?",
		"zh": "请在查看招聘页面后回答 😌\n您申请了吗？",
		"vi": "Vui lòng trả lời sau khi xem trang việc làm 😌\nBạn đã ứng tuyển chưa?",
	},
	"ask_applied": {
		"ja": "応募（おうぼ）できましたか？",
		"en": "Did you apply for any jobs?",
		"ko": "지원하셨나요?",
		"zh": "您申请了吗？",
		"vi": "Bạn đã ứng tuyển chưa?",
	},
	"ask_count": {
		"ja": "何件（なんけん）応募（おうぼ）しましたか？",
		"en": "How many jobs did you apply for?",
		"ko": "몇 개에 지원하셨나요?",
		"zh": "您申请了几份工作？",
		"vi": "Bạn đã ứng tuyển bao nhiêu công việc?",
	},
	"ask_trouble": {
		"ja": "何（なに）かお困（こま）りですか？",
		"en": "Is there anything troubling you?",
		"ko": "어려운 점이 있으신가요?",
		"zh": "有什么困难吗？",
		"vi": "Bạn có gặp khó khăn gì không?",
	},
	"encourage_1": {
		"ja": "1件（けん）応募（おうぼ）ですね！\n\n複数（ふくすう）の仕事（しごと）に応募すると、採用（さいよう）されやすくなります。\n平均（へいきん）5件（けん）応募で採用率（さいようりつ）が大（おお）きくアップします✨\n\nもっと応募してみませんか？",
		"en": "You applied for 1 job!\n\nApplying to multiple jobs increases your chances. On average, 5 applications greatly improve your success rate ✨\n\nWould you like to apply for more?",
		"ko": "1개에 지원하셨네요!\n\n여러 곳에 지원하면 채용 확률이 높아집니다. 평균 5곳 지원으로 성공률이 크게 올라갑니다 ✨\n\n더 지원해 보시겠어요?",
		"zh": "您申请了1份工作！\n\n申请多个工作可以提高成功率。平均申请5份工作会大大提高成功率 ✨\n\n要不要再申请更多？",
		"vi": "Bạn đã ứng tuyển 1 công việc!\n\nỨng tuyển nhiều công việc sẽ tăng cơ hội được nhận. Trung bình 5 đơn ứng tuyển sẽ tăng đáng kể tỷ lệ thành công ✨\n\nBạn có muốn ứng tuyển thêm không?",
	},
	"encourage_2_3": {
		"ja": "いい調子（ちょうし）です！2〜3件応募ですね。\n\nもう少（すこ）し増（ふ）やすと採用（さいよう）確率（かくりつ）がさらにアップします💪\n平均5件応募で結果が出やすくなります！",
		"en": "Good progress! You applied for 2-3 jobs.\n\nA few more applications will further increase your chances 💪\nOn average, 5 applications lead to better results!",
		"ko": "잘하고 계세요! 2-3개에 지원하셨네요.\n\n조금 더 지원하면 채용 확률이 더 올라갑니다 💪\n평균 5곳 지원하면 결과가 좋습니다!",
		"zh": "做得好！您申请了2-3份工作。\n\n再多申请一些会进一步提高成功率 💪\n平均5份申请效果最好！",
		"vi": "Tuyệt vời! Bạn đã ứng tuyển 2-3 công việc.\n\nỨng tuyển thêm vài nơi sẽ tăng thêm cơ hội 💪\nTrung bình 5 đơn sẽ có kết quả tốt hơn!",
	},
	"encourage_4_plus": {
		"ja": "素晴（すば）らしい！4件（けん）以上（いじょう）応募（おうぼ）ですね🎉\n\n採用（さいよう）の連絡（れんらく）を待（ま）ちましょう。\n良（よ）い結果（けっか）が届（とど）くことを祈（いの）っています！",
		"en": "Excellent! You applied for 4 or more jobs 🎉\n\nLet's wait for the hiring response.\nWishing you good results!",
		"ko": "훌륭해요! 4개 이상 지원하셨네요 🎉\n\n채용 연락을 기다려 봐요.\n좋은 결과가 있기를 바랍니다!",
		"zh": "太棒了！您申请了4份以上的工作 🎉\n\n让我们等待招聘回复。\n祝您好运！",
		"vi": "Tuyệt vời! Bạn đã ứng tuyển 4 công việc trở lên 🎉\n\nHãy chờ phản hồi từ nhà tuyển dụng.\nChúc bạn có kết quả tốt!",
	},
	"trouble_no_match": {
		"ja": "希望（きぼう）に合（あ）う仕事（しごと）が見（み）つからないのですね。\n\n条件（じょうけん）を少（すこ）し広（ひろ）げて探（さが）してみると、良（よ）い仕事（しごと）が見（み）つかることがあります！\n\nもう一度（いちど）サイトで探（さが）してみませんか？",
		"en": "You couldn't find jobs matching your preferences.\n\nTry broadening your search criteria - you might find better opportunities!\n\nWould you like to search again?",
		"ko": "원하는 조건에 맞는 일자리를 못 찾으셨군요.\n\n조건을 조금 넓혀서 찾아보면 좋은 일자리를 찾을 수 있어요!\n\n다시 찾아보시겠어요?",
		"zh": "没有找到符合您条件的工作。\n\n试着放宽搜索条件，可能会找到更好的机会！\n\n要不要再搜索一次？",
		"vi": "Bạn chưa tìm được công việc phù hợp.\n\nHãy thử mở rộng tiêu chí tìm kiếm - bạn có thể tìm được cơ hội tốt hơn!\n\nBạn có muốn tìm kiếm lại không?",
	},
	"trouble_language": {
		"ja": "日本語（にほんご）が不安（ふあん）なのですね。\n\n日本語が少（すこ）しできれば大丈夫（だいじょうぶ）な仕事（しごと）もたくさんあります！\n「日本語不要（ふよう）」で検索（けんさく）してみてください。\n\n外国語（がいこくご）が活（い）かせる仕事（しごと）もあります。",
		"en": "You're worried about Japanese.\n\nMany jobs only require basic Japanese! Try searching for \"No Japanese required\".\n\nThere are also jobs where you can use your native language.",
		"ko": "일본어가 걱정되시는군요.\n\n기초 일본어만 있으면 되는 일자리도 많아요! \"일본어 불필요\"로 검색해 보세요.\n\n모국어를 활용할 수 있는 일자리도 있어요.",
		"zh": "您担心日语问题。\n\n很多工作只需要基础日语！试着搜索\"不需要日语\"。\n\n也有可以使用母语的工作。",
		"vi": "Bạn lo lắng về tiếng Nhật.\n\nNhiều công việc chỉ cần tiếng Nhật cơ bản! Hãy thử tìm kiếm \"Không yêu cầu tiếng Nhật\".\n\nCũng có những công việc bạn có thể sử dụng tiếng mẹ đẻ.",
	},
	"trouble_how_to": {
		"ja": "応募（おうぼ）方法（ほうほう）がわからないのですね。\n\n【応募（おうぼ）の方法（ほうほう）】\n1. 気（き）になる仕事（しごと）をタップ\n2. 「応募（おうぼ）する」ボタンを押（お）す\n3. 必要（ひつよう）な情報（じょうほう）を入力（にゅうりょく）\n\n簡単（かんたん）に応募できます！やってみてください。",
		"en": "You don't know how to apply.\n\n【How to Apply】\n1. Tap on a job you're interested in\n2. Press the \"Apply\" button\n3. Fill in the required information\n\nIt's easy! Give it a try.",
		"ko": "지원 방법을 모르시는군요.\n\n【지원 방법】\n1. 관심 있는 일자리 탭하기\n2. \"지원하기\" 버튼 누르기\n3. 필요한 정보 입력하기\n\n쉬워요! 해보세요.",
		"zh": "您不知道如何申请。\n\n【申请方法】\n1. 点击您感兴趣的工作\n2. 按\"申请\"按钮\n3. 填写必要信息\n\n很简单！试试看。",
		"vi": "Bạn không biết cách ứng tuyển.\n\n【Cách ứng tuyển】\n1. Nhấn vào công việc bạn quan tâm\n2. Nhấn nút \"Ứng tuyển\"\n3. Điền thông tin cần thiết\n\nRất đơn giản! Hãy thử nhé.",
	},
	"trouble_not_yet": {
		"ja": "まだ見（み）ていないのですね。\n\n良（よ）い仕事（しごと）はすぐに埋（う）まってしまうことがあります。\n早（はや）めにチェックしてみてください！",
		"en": "You haven't checked yet.\n\nGood jobs can fill up quickly. Try checking soon!",
		"ko": "아직 안 보셨군요.\n\n좋은 일자리는 금방 마감될 수 있어요. 빨리 확인해 보세요!",
		"zh": "您还没有看。\n\n好工作可能很快就招满了。请尽早查看！",
		"vi": "Bạn chưa xem.\n\nNhững công việc tốt có thể hết nhanh. Hãy kiểm tra sớm nhé!",
	},
	"complete": {
		"ja": "お仕事（しごと）探（さが）しを応援（おうえん）しています！\n何（なに）かあればいつでもメッセージしてください😊",
		"en": "We're supporting your job search!\nFeel free to message us anytime 😊",
		"ko": "구직 활동을 응원합니다!\n언제든지 메시지해 주세요 😊",
		"zh": "我们支持您找工作！\n随时给我们发消息 😊",
		"vi": "Chúng tôi hỗ trợ bạn tìm việc!\nHãy nhắn tin cho chúng tôi bất cứ lúc nào 😊",
	},
}

var labels = map[string]models.LocalizedText{
	"yes":         {"ja": "はい", "en": "Yes", "ko": "네", "zh": "是的", "vi": "Có"},
	"no":          {"ja": "いいえ", "en": "No", "ko": "아니오", "zh": "没有", "vi": "Không"},
	"not_yet":     {"ja": "まだ見ていない", "en": "Not yet", "ko": "아직", "zh": "还没", "vi": "Chưa"},
	"count_1":     {"ja": "1件", "en": "1 job", "ko": "1개", "zh": "1份", "vi": "1"},
	"count_2_3":   {"ja": "2〜3件", "en": "2-3 jobs", "ko": "2-3개", "zh": "2-3份", "vi": "2-3"},
	"count_4":     {"ja": "4件以上", "en": "4+ jobs", "ko": "4개 이상", "zh": "4份以上", "vi": "4+"},
	"no_match":    {"ja": "希望に合わない", "en": "No match", "ko": "조건 안 맞음", "zh": "不符合", "vi": "Không phù hợp"},
	"language":    {"ja": "日本語が不安", "en": "Language worry", "ko": "일본어 걱정", "zh": "语言担心", "vi": "Lo về tiếng Nhật"},
	"how_to":      {"ja": "応募方法がわからない", "en": "Don't know how", "ko": "방법 모름", "zh": "不知道怎么申请", "vi": "Không biết cách"},
	"search_more": {"ja": "サイトで探す", "en": "Search site", "ko": "사이트 검색", "zh": "搜索网站", "vi": "Tìm trên web"},
	"done":        {"ja": "大丈夫です", "en": "I'm good", "ko": "괜찮아요", "zh": "没事了", "vi": "Tôi ổn"},
}

func message(key, lang string) string {
	return messages[key].Resolve(lang)
}

func label(key, lang string) string {
	return models.TruncateLabel(labels[key].Resolve(lang))
}

// externalBrowserURL wraps target so LINE opens it outside the in-app webview.
func externalBrowserURL(target string) string {
	return fmt.Sprintf("https://liff.line.me/%s#url=%s", liffID, url.QueryEscape(target))
}

// recruitURL is the plain job search link offered when nudging the user back
// to the site mid followup.
func recruitURL(lang string) string {
	path := "en"
	switch lang {
	case "ja", "ko", "zh", "vi":
		path = lang
	}
	return fmt.Sprintf("https://www.yolo-japan.com/%s/recruit?utm_source=line&utm_medium=followup", path)
}

// Machine drives the followup question sequence. It is stateless; callers
// persist the conversation state between turns.
type Machine struct{}

func NewMachine() *Machine {
	return &Machine{}
}

// EntryPrompt renders the question appended to the diagnosis result message.
// The diagnosis hands off with the state already at the ask_applied step; the
// entry variant offers only yes/no, matching the result card it follows.
func (m *Machine) EntryPrompt(lang string) models.Message {
	return models.NewQuickReplyMessage(message("entry_question", lang), []models.QuickReplyItem{
		models.MessageAction(label("yes", lang), AnswerYes),
		models.MessageAction(label("no", lang), AnswerNo),
	})
}

// Prompt renders the ask_applied question used when the step repeats
// mid-sequence.
func (m *Machine) Prompt(lang string) models.Message {
	return models.NewQuickReplyMessage(message("ask_applied", lang), []models.QuickReplyItem{
		models.MessageAction(label("yes", lang), AnswerYes),
		models.MessageAction(label("no", lang), AnswerNo),
		models.MessageAction(label("not_yet", lang), AnswerNotYet),
	})
}

// Start resets the state to the beginning of the followup and returns the
// opening question.
func (m *Machine) Start(state *models.ConversationState) models.Message {
	state.Mode = models.ModeFollowup
	state.Diagnosis = nil
	state.Flow = nil
	state.Followup = &models.FollowupState{Step: models.StepAskApplied}
	return m.Prompt(state.Lang)
}

// Advance applies the user's answer to the current followup step. done is
// true once the sequence ends; the state is then switched to AI chat mode.
func (m *Machine) Advance(userID string, state *models.ConversationState, text string) (msgs []models.Message, done bool, err error) {
	if state == nil || state.Mode != models.ModeFollowup || state.Followup == nil {
		return nil, false, models.ErrInvalidState
	}
	fu := state.Followup
	lang := state.Lang

	slog.Debug("followup.Advance", "user_id", userID, "step", fu.Step, "text", text)

	switch fu.Step {
	case models.StepAskApplied:
		return m.advanceApplied(state, text, lang)
	case models.StepAskCount:
		return m.advanceCount(state, text, lang)
	case models.StepAskTrouble:
		return m.advanceTrouble(state, text, lang)
	default:
		return m.finish(state, lang), true, nil
	}
}

func (m *Machine) advanceApplied(state *models.ConversationState, text, lang string) ([]models.Message, bool, error) {
	fu := state.Followup
	switch text {
	case AnswerYes:
		fu.Answers.HasApplied = "yes"
		fu.Step = models.StepAskCount
		msg := models.NewQuickReplyMessage(message("ask_count", lang), []models.QuickReplyItem{
			models.MessageAction(label("count_1", lang), AnswerCount1),
			models.MessageAction(label("count_2_3", lang), AnswerCount2To3),
			models.MessageAction(label("count_4", lang), AnswerCount4Plus),
		})
		return []models.Message{msg}, false, nil

	case AnswerNo, AnswerNotYet:
		if text == AnswerNo {
			fu.Answers.HasApplied = "no"
		} else {
			fu.Answers.HasApplied = "not_yet"
		}
		fu.Step = models.StepAskTrouble
		msg := models.NewQuickReplyMessage(message("ask_trouble", lang), []models.QuickReplyItem{
			models.MessageAction(label("no_match", lang), AnswerNoMatch),
			models.MessageAction(label("language", lang), AnswerLanguage),
			models.MessageAction(label("how_to", lang), AnswerHowTo),
			models.MessageAction(label("not_yet", lang), AnswerTroubleNot),
		})
		return []models.Message{msg}, false, nil
	}

	// Free text at this step gets the question again.
	return []models.Message{m.Prompt(lang)}, false, nil
}

func (m *Machine) advanceCount(state *models.ConversationState, text, lang string) ([]models.Message, bool, error) {
	fu := state.Followup

	key, count := "encourage_1", "1"
	switch text {
	case AnswerCount2To3:
		key, count = "encourage_2_3", "2-3"
	case AnswerCount4Plus:
		key, count = "encourage_4_plus", "4+"
	}
	fu.Answers.ApplicationCount = count

	if count == "4+" {
		// Nothing left to nudge; wrap up in the same turn.
		encourage := models.NewTextMessage(message(key, lang))
		msgs := append([]models.Message{encourage}, m.finish(state, lang)...)
		return msgs, true, nil
	}

	fu.Step = models.StepComplete
	return []models.Message{m.nudgeMessage(key, lang)}, false, nil
}

func (m *Machine) advanceTrouble(state *models.ConversationState, text, lang string) ([]models.Message, bool, error) {
	fu := state.Followup

	key, trouble := "trouble_not_yet", "not_yet"
	switch text {
	case AnswerNoMatch:
		key, trouble = "trouble_no_match", "no_match"
	case AnswerLanguage:
		key, trouble = "trouble_language", "language"
	case AnswerHowTo:
		key, trouble = "trouble_how_to", "how_to"
	}
	fu.Answers.Trouble = trouble
	fu.Step = models.StepComplete

	return []models.Message{m.nudgeMessage(key, lang)}, false, nil
}

// nudgeMessage pairs advice with a site link and an opt-out button.
func (m *Machine) nudgeMessage(key, lang string) models.Message {
	return models.NewQuickReplyMessage(message(key, lang), []models.QuickReplyItem{
		models.URIAction(label("search_more", lang), externalBrowserURL(recruitURL(lang))),
		models.MessageAction(label("done", lang), AnswerDone),
	})
}

// finish moves the conversation to free AI chat and thanks the user. Only the
// step is cleared; the collected answers stay on the record for analytics.
func (m *Machine) finish(state *models.ConversationState, lang string) []models.Message {
	state.Mode = models.ModeAIChat
	state.Followup.Step = ""
	return []models.Message{models.NewTextMessage(message("complete", lang))}
}

// Package diagnosis implements the seven question job diagnosis conversation.
// It walks a user through residency, gender, urgency, location, Japanese level,
// industries and work style, then produces ranked job search links for the
// collected answers.
package diagnosis

import "github.com/yolo-japan/lineassist/internal/models"

// Industry is one selectable industry with its site search id.
type Industry struct {
	Key   string
	ID    int
	Label models.LocalizedText
}

// Industries lists the selectable industries in display order.
var Industries = []Industry{
	{Key: "food", ID: 2, Label: models.LocalizedText{
		"ja": "🍴 飲食", "en": "🍴 Food", "ko": "🍴 식음료", "zh": "🍴 餐饮", "vi": "🍴 Ẩm thực",
	}},
	{Key: "building_maintenance", ID: 14, Label: models.LocalizedText{
		"ja": "🧹 清掃・ビルメンテ", "en": "🧹 Cleaning", "ko": "🧹 청소", "zh": "🧹 清洁", "vi": "🧹 Vệ sinh",
	}},
	{Key: "hotel_ryokan", ID: 16, Label: models.LocalizedText{
		"ja": "🏨 ホテル", "en": "🏨 Hotel", "ko": "🏨 호텔", "zh": "🏨 酒店", "vi": "🏨 Khách sạn",
	}},
	{Key: "retail_service", ID: 1, Label: models.LocalizedText{
		"ja": "🛍️ 販売・サービス", "en": "🛍️ Retail", "ko": "🛍️ 소매", "zh": "🛍️ 零售", "vi": "🛍️ Bán lẻ",
	}},
	{Key: "logistics_driver", ID: 4, Label: models.LocalizedText{
		"ja": "🚚 物流・ドライバー", "en": "🚚 Logistics", "ko": "🚚 물류", "zh": "🚚 物流", "vi": "🚚 Logistics",
	}},
}

// IndustryByKey returns the industry for key, false when unknown.
func IndustryByKey(key string) (Industry, bool) {
	for _, ind := range Industries {
		if ind.Key == key {
			return ind, true
		}
	}
	return Industry{}, false
}

// JapaneseLevel is one JLPT style proficiency step. URLParam is the value the
// job site expects; "no_japanese" maps to the site's pseudo level n6.
type JapaneseLevel struct {
	Code     string
	URLParam string
	Label    models.LocalizedText
}

// JapaneseLevels is ordered from easiest to hardest.
var JapaneseLevels = []JapaneseLevel{
	{Code: "no_japanese", URLParam: "n6", Label: models.LocalizedText{
		"ja": "話せない", "en": "Cannot speak", "ko": "못 함", "zh": "不会说", "vi": "Không nói được",
	}},
	{Code: "n5", URLParam: "n5", Label: models.LocalizedText{"ja": "N5"}},
	{Code: "n4", URLParam: "n4", Label: models.LocalizedText{"ja": "N4"}},
	{Code: "n3", URLParam: "n3", Label: models.LocalizedText{"ja": "N3"}},
	{Code: "n2", URLParam: "n2", Label: models.LocalizedText{"ja": "N2"}},
	{Code: "n1", URLParam: "n1", Label: models.LocalizedText{"ja": "N1"}},
}

// LevelIndex returns the position of code in JapaneseLevels, -1 when unknown.
func LevelIndex(code string) int {
	for i, lv := range JapaneseLevels {
		if lv.Code == code {
			return i
		}
	}
	return -1
}

func levelURLParam(code string) string {
	if i := LevelIndex(code); i >= 0 {
		return JapaneseLevels[i].URLParam
	}
	return ""
}

// WorkStyle is one employment type choice.
type WorkStyle struct {
	Key   string
	Label models.LocalizedText
}

// WorkStyles lists the employment type choices in display order.
var WorkStyles = []WorkStyle{
	{Key: "fulltime", Label: models.LocalizedText{
		"ja": "正社員", "en": "Full-time", "ko": "정규직", "zh": "全职", "vi": "Toàn thời gian",
	}},
	{Key: "parttime", Label: models.LocalizedText{
		"ja": "アルバイト・パート", "en": "Part-time", "ko": "아르바이트", "zh": "兼职", "vi": "Bán thời gian",
	}},
	{Key: "both", Label: models.LocalizedText{
		"ja": "どちらも", "en": "Both", "ko": "둘 다", "zh": "都可以", "vi": "Cả hai",
	}},
}

// Prefecture is one selectable prefecture.
type Prefecture struct {
	Code   string
	Region string
	Label  models.LocalizedText
}

// MajorPrefectures are offered directly on the location question before the
// region drill down.
var MajorPrefectures = []Prefecture{
	{Code: "tokyo", Region: "kanto", Label: models.LocalizedText{"ja": "東京都", "en": "Tokyo", "ko": "도쿄", "zh": "东京", "vi": "Tokyo"}},
	{Code: "osaka", Region: "kansai", Label: models.LocalizedText{"ja": "大阪府", "en": "Osaka", "ko": "오사카", "zh": "大阪", "vi": "Osaka"}},
	{Code: "kyoto", Region: "kansai", Label: models.LocalizedText{"ja": "京都府", "en": "Kyoto", "ko": "교토", "zh": "京都", "vi": "Kyoto"}},
	{Code: "saitama", Region: "kanto", Label: models.LocalizedText{"ja": "埼玉県", "en": "Saitama", "ko": "사이타마", "zh": "埼玉", "vi": "Saitama"}},
	{Code: "kanagawa", Region: "kanto", Label: models.LocalizedText{"ja": "神奈川県", "en": "Kanagawa", "ko": "가나가와", "zh": "神奈川", "vi": "Kanagawa"}},
	{Code: "chiba", Region: "kanto", Label: models.LocalizedText{"ja": "千葉県", "en": "Chiba", "ko": "지바", "zh": "千叶", "vi": "Chiba"}},
}

// Region is one region of Japan used for the location drill down.
type Region struct {
	Code  string
	Label models.LocalizedText
}

// Regions lists all regions north to south.
var Regions = []Region{
	{Code: "hokkaido", Label: models.LocalizedText{"ja": "北海道", "en": "Hokkaido", "ko": "홋카이도", "zh": "北海道", "vi": "Hokkaido"}},
	{Code: "tohoku", Label: models.LocalizedText{"ja": "東北", "en": "Tohoku", "ko": "도호쿠", "zh": "东北", "vi": "Tohoku"}},
	{Code: "kanto", Label: models.LocalizedText{"ja": "関東", "en": "Kanto", "ko": "간토", "zh": "关东", "vi": "Kanto"}},
	{Code: "chubu", Label: models.LocalizedText{"ja": "中部", "en": "Chubu", "ko": "주부", "zh": "中部", "vi": "Chubu"}},
	{Code: "kansai", Label: models.LocalizedText{"ja": "関西", "en": "Kansai", "ko": "간사이", "zh": "关西", "vi": "Kansai"}},
	{Code: "chugoku", Label: models.LocalizedText{"ja": "中国", "en": "Chugoku", "ko": "주고쿠", "zh": "中国地区", "vi": "Chugoku"}},
	{Code: "shikoku", Label: models.LocalizedText{"ja": "四国", "en": "Shikoku", "ko": "시코쿠", "zh": "四国", "vi": "Shikoku"}},
	{Code: "kyushu", Label: models.LocalizedText{"ja": "九州・沖縄", "en": "Kyushu/Okinawa", "ko": "규슈/오키나와", "zh": "九州/冲绳", "vi": "Kyushu/Okinawa"}},
}

// PrefecturesByRegion maps a region code to its prefectures.
var PrefecturesByRegion = map[string][]Prefecture{
	"hokkaido": {
		{Code: "hokkaido", Label: models.LocalizedText{"ja": "北海道", "en": "Hokkaido", "ko": "홋카이도", "zh": "北海道", "vi": "Hokkaido"}},
	},
	"tohoku": {
		{Code: "aomori", Label: models.LocalizedText{"ja": "青森県", "en": "Aomori", "ko": "아오모리", "zh": "青森", "vi": "Aomori"}},
		{Code: "iwate", Label: models.LocalizedText{"ja": "岩手県", "en": "Iwate", "ko": "이와테", "zh": "岩手", "vi": "Iwate"}},
		{Code: "miyagi", Label: models.LocalizedText{"ja": "宮城県", "en": "Miyagi", "ko": "미야기", "zh": "宫城", "vi": "Miyagi"}},
		{Code: "akita", Label: models.LocalizedText{"ja": "秋田県", "en": "Akita", "ko": "아키타", "zh": "秋田", "vi": "Akita"}},
		{Code: "yamagata", Label: models.LocalizedText{"ja": "山形県", "en": "Yamagata", "ko": "야마가타", "zh": "山形", "vi": "Yamagata"}},
		{Code: "fukushima", Label: models.LocalizedText{"ja": "福島県", "en": "Fukushima", "ko": "후쿠시마", "zh": "福岛", "vi": "Fukushima"}},
	},
	"kanto": {
		{Code: "tokyo", Label: models.LocalizedText{"ja": "東京都", "en": "Tokyo", "ko": "도쿄", "zh": "东京", "vi": "Tokyo"}},
		{Code: "kanagawa", Label: models.LocalizedText{"ja": "神奈川県", "en": "Kanagawa", "ko": "가나가와", "zh": "神奈川", "vi": "Kanagawa"}},
		{Code: "saitama", Label: models.LocalizedText{"ja": "埼玉県", "en": "Saitama", "ko": "사이타마", "zh": "埼玉", "vi": "Saitama"}},
		{Code: "chiba", Label: models.LocalizedText{"ja": "千葉県", "en": "Chiba", "ko": "지바", "zh": "千叶", "vi": "Chiba"}},
		{Code: "ibaraki", Label: models.LocalizedText{"ja": "茨城県", "en": "Ibaraki", "ko": "이바라키", "zh": "茨城", "vi": "Ibaraki"}},
		{Code: "tochigi", Label: models.LocalizedText{"ja": "栃木県", "en": "Tochigi", "ko": "도치기", "zh": "栃木", "vi": "Tochigi"}},
		{Code: "gunma", Label: models.LocalizedText{"ja": "群馬県", "en": "Gunma", "ko": "군마", "zh": "群马", "vi": "Gunma"}},
	},
	"chubu": {
		{Code: "aichi", Label: models.LocalizedText{"ja": "愛知県", "en": "Aichi", "ko": "아이치", "zh": "爱知", "vi": "Aichi"}},
		{Code: "shizuoka", Label: models.LocalizedText{"ja": "静岡県", "en": "Shizuoka", "ko": "시즈오카", "zh": "静冈", "vi": "Shizuoka"}},
		{Code: "gifu", Label: models.LocalizedText{"ja": "岐阜県", "en": "Gifu", "ko": "기후", "zh": "岐阜", "vi": "Gifu"}},
		{Code: "niigata", Label: models.LocalizedText{"ja": "新潟県", "en": "Niigata", "ko": "니가타", "zh": "新潟", "vi": "Niigata"}},
		{Code: "nagano", Label: models.LocalizedText{"ja": "長野県", "en": "Nagano", "ko": "나가노", "zh": "长野", "vi": "Nagano"}},
		{Code: "yamanashi", Label: models.LocalizedText{"ja": "山梨県", "en": "Yamanashi", "ko": "야마나시", "zh": "山梨", "vi": "Yamanashi"}},
		{Code: "ishikawa", Label: models.LocalizedText{"ja": "石川県", "en": "Ishikawa", "ko": "이시카와", "zh": "石川", "vi": "Ishikawa"}},
		{Code: "toyama", Label: models.LocalizedText{"ja": "富山県", "en": "Toyama", "ko": "도야마", "zh": "富山", "vi": "Toyama"}},
		{Code: "fukui", Label: models.LocalizedText{"ja": "福井県", "en": "Fukui", "ko": "후쿠이", "zh": "福井", "vi": "Fukui"}},
	},
	"kansai": {
		{Code: "osaka", Label: models.LocalizedText{"ja": "大阪府", "en": "Osaka", "ko": "오사카", "zh": "大阪", "vi": "Osaka"}},
		{Code: "kyoto", Label: models.LocalizedText{"ja": "京都府", "en": "Kyoto", "ko": "교토", "zh": "京都", "vi": "Kyoto"}},
		{Code: "hyogo", Label: models.LocalizedText{"ja": "兵庫県", "en": "Hyogo", "ko": "효고", "zh": "兵库", "vi": "Hyogo"}},
		{Code: "nara", Label: models.LocalizedText{"ja": "奈良県", "en": "Nara", "ko": "나라", "zh": "奈良", "vi": "Nara"}},
		{Code: "shiga", Label: models.LocalizedText{"ja": "滋賀県", "en": "Shiga", "ko": "시가", "zh": "滋贺", "vi": "Shiga"}},
		{Code: "wakayama", Label: models.LocalizedText{"ja": "和歌山県", "en": "Wakayama", "ko": "와카야마", "zh": "和歌山", "vi": "Wakayama"}},
	},
	"chugoku": {
		{Code: "hiroshima", Label: models.LocalizedText{"ja": "広島県", "en": "Hiroshima", "ko": "히로시마", "zh": "广岛", "vi": "Hiroshima"}},
		{Code: "okayama", Label: models.LocalizedText{"ja": "岡山県", "en": "Okayama", "ko": "오카야마", "zh": "冈山", "vi": "Okayama"}},
		{Code: "yamaguchi", Label: models.LocalizedText{"ja": "山口県", "en": "Yamaguchi", "ko": "야마구치", "zh": "山口", "vi": "Yamaguchi"}},
		{Code: "tottori", Label: models.LocalizedText{"ja": "鳥取県", "en": "Tottori", "ko": "돗토리", "zh": "鸟取", "vi": "Tottori"}},
		{Code: "shimane", Label: models.LocalizedText{"ja": "島根県", "en": "Shimane", "ko": "시마네", "zh": "岛根", "vi": "Shimane"}},
	},
	"shikoku": {
		{Code: "kagawa", Label: models.LocalizedText{"ja": "香川県", "en": "Kagawa", "ko": "가가와", "zh": "香川", "vi": "Kagawa"}},
		{Code: "ehime", Label: models.LocalizedText{"ja": "愛媛県", "en": "Ehime", "ko": "에히메", "zh": "爱媛", "vi": "Ehime"}},
		{Code: "kochi", Label: models.LocalizedText{"ja": "高知県", "en": "Kochi", "ko": "고치", "zh": "高知", "vi": "Kochi"}},
		{Code: "tokushima", Label: models.LocalizedText{"ja": "徳島県", "en": "Tokushima", "ko": "도쿠시마", "zh": "德岛", "vi": "Tokushima"}},
	},
	"kyushu": {
		{Code: "fukuoka", Label: models.LocalizedText{"ja": "福岡県", "en": "Fukuoka", "ko": "후쿠오카", "zh": "福冈", "vi": "Fukuoka"}},
		{Code: "saga", Label: models.LocalizedText{"ja": "佐賀県", "en": "Saga", "ko": "사가", "zh": "佐贺", "vi": "Saga"}},
		{Code: "nagasaki", Label: models.LocalizedText{"ja": "長崎県", "en": "Nagasaki", "ko": "나가사키", "zh": "长崎", "vi": "Nagasaki"}},
		{Code: "kumamoto", Label: models.LocalizedText{"ja": "熊本県", "en": "Kumamoto", "ko": "구마모토", "zh": "熊本", "vi": "Kumamoto"}},
		{Code: "oita", Label: models.LocalizedText{"ja": "大分県", "en": "Oita", "ko": "오이타", "zh": "大分", "vi": "Oita"}},
		{Code: "miyazaki", Label: models.LocalizedText{"ja": "宮崎県", "en": "Miyazaki", "ko": "미야자키", "zh": "宫崎", "vi": "Miyazaki"}},
		{Code: "kagoshima", Label: models.LocalizedText{"ja": "鹿児島県", "en": "Kagoshima", "ko": "가고시마", "zh": "鹿儿岛", "vi": "Kagoshima"}},
		{Code: "okinawa", Label: models.LocalizedText{"ja": "沖縄県", "en": "Okinawa", "ko": "오키나와", "zh": "冲绳", "vi": "Okinawa"}},
	},
}

// RegionOf returns the region code for a prefecture code. Unknown codes fall
// back to kanto so a malformed answer still yields a usable search link.
func RegionOf(prefecture string) string {
	for region, prefs := range PrefecturesByRegion {
		for _, p := range prefs {
			if p.Code == prefecture {
				return region
			}
		}
	}
	return "kanto"
}

package intent

import "testing"

func TestDetectJobSearch(t *testing.T) {
	cases := []string{
		"仕事を探しています",
		"バイトしたい",
		"I'm looking for a job",
		"JOB please",
		"일자리 있나요",
		"我想找工作",
		"tìm việc làm",
	}
	for _, msg := range cases {
		d := Detect(msg, "ja")
		if d.Intent != IntentJobSearch {
			t.Errorf("%q: expected job_search, got %s", msg, d.Intent)
		}
		if d.Action != ActionStartDiagnosis {
			t.Errorf("%q: expected start_diagnosis_immediately, got %s", msg, d.Action)
		}
	}
}

func TestDetectJobSearchBeatsGreeting(t *testing.T) {
	// a message containing both family signals resolves to the higher family
	d := Detect("こんにちは、仕事を探しています", "ja")
	if d.Intent != IntentJobSearch {
		t.Errorf("expected job_search to win, got %s", d.Intent)
	}
}

func TestDetectGreeting(t *testing.T) {
	cases := []string{"こんにちは", "Hello", "안녕하세요", "你好", "xin chào"}
	for _, msg := range cases {
		d := Detect(msg, "ja")
		if d.Intent != IntentGreeting {
			t.Errorf("%q: expected greeting, got %s", msg, d.Intent)
		}
		if d.Action != ActionGreet {
			t.Errorf("%q: expected greet action, got %s", msg, d.Action)
		}
	}

	// greetings only match whole messages
	if d := Detect("hello can you help with my resume", "en"); d.Intent == IntentGreeting {
		t.Errorf("partial greeting should not classify as greeting")
	}
}

func TestDetectContact(t *testing.T) {
	cases := []string{"質問があります", "I have a question", "tư vấn cho tôi"}
	for _, msg := range cases {
		d := Detect(msg, "ja")
		if d.Intent != IntentContact {
			t.Errorf("%q: expected contact, got %s", msg, d.Intent)
		}
	}
}

func TestDetectUnknown(t *testing.T) {
	d := Detect("今日の天気はどうですか", "ja")
	if d.Intent != IntentUnknown {
		t.Errorf("expected unknown, got %s", d.Intent)
	}
	if d.Action != ActionUseOpenAI {
		t.Errorf("expected use_openai action, got %s", d.Action)
	}
	if d.Trigger != "" {
		t.Errorf("unknown should carry no trigger, got %q", d.Trigger)
	}
}

func TestExtractJobConditions(t *testing.T) {
	c := ExtractJobConditions("東京でN3レベルの仕事、今すぐ働きたい")
	if c.Location != "tokyo" {
		t.Errorf("expected tokyo, got %q", c.Location)
	}
	if c.JapaneseLevel != "n3" {
		t.Errorf("expected n3, got %q", c.JapaneseLevel)
	}
	if c.Urgency != "immediate" {
		t.Errorf("expected immediate, got %q", c.Urgency)
	}

	c = ExtractJobConditions("日本語ができない人でも大丈夫な求人")
	if c.JapaneseLevel != "no_japanese" {
		t.Errorf("expected no_japanese, got %q", c.JapaneseLevel)
	}

	c = ExtractJobConditions("work anywhere")
	if c.Location != "" || c.JapaneseLevel != "" || c.Urgency != "" {
		t.Errorf("expected empty conditions, got %+v", c)
	}
}

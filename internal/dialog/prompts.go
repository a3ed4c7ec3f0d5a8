package dialog

import "fmt"

// catalog holds the user-facing strings for one conversation language.
type catalog struct {
	askQuestion        string
	transcriptEcho     string
	askReplyMode       string
	unknownMode        string
	noPendingQuestion  string
	recognitionFailed  string
	answerFailed       string
	answerStandIn      string
	synthesisFailed    string
	synthesisTextIntro string
	answerFormat       string
	cancelled          string
}

var catalogs = map[Language]catalog{
	LanguageBengali: {
		askQuestion:        "দারুণ! এবার তোমার প্রশ্নটি লিখে পাঠাও, অথবা ভয়েস মেসেজে বলো। 🎤",
		transcriptEcho:     "তোমার প্রশ্ন শুনলাম: %s",
		askReplyMode:       "উত্তরটা কীভাবে পেতে চাও?",
		unknownMode:        "দয়া করে নিচের বোতাম থেকে একটি বেছে নাও।",
		noPendingQuestion:  "আগে একটি প্রশ্ন পাঠাও, তারপর উত্তরের ধরন বেছে নিও।",
		recognitionFailed:  "দুঃখিত, ভয়েস মেসেজটা বুঝতে পারিনি। আরেকবার চেষ্টা করবে? 🙏",
		answerFailed:       "দুঃখিত, এই মুহূর্তে উত্তর দিতে পারছি না। একটু পরে আবার চেষ্টা করো। 🙏",
		answerStandIn:      "দুঃখিত, এই মুহূর্তে উত্তর তৈরি করা যায়নি।",
		synthesisFailed:    "ভয়েস তৈরি করা গেল না, তাই লিখে দিলাম:",
		synthesisTextIntro: "ভয়েস তৈরি করা গেল না।",
		answerFormat:       "প্রশ্ন: %s\n\nউত্তর: %s",
		cancelled:          "ঠিক আছে, বাতিল করা হলো। নতুন করে শুরু করতে ভাষা বেছে নাও।",
	},
	LanguageEnglish: {
		askQuestion:        "Great! Now type your question, or say it in a voice message. 🎤",
		transcriptEcho:     "I heard your question: %s",
		askReplyMode:       "How would you like the answer?",
		unknownMode:        "Please pick one of the buttons below.",
		noPendingQuestion:  "Send a question first, then pick how you want the answer.",
		recognitionFailed:  "Sorry, I couldn't make out that voice message. Could you try again? 🙏",
		answerFailed:       "Sorry, I can't answer right now. Please try again in a bit. 🙏",
		answerStandIn:      "Sorry, an answer could not be produced right now.",
		synthesisFailed:    "Couldn't produce the voice note, so here it is in text:",
		synthesisTextIntro: "Couldn't produce the voice note.",
		answerFormat:       "Question: %s\n\nAnswer: %s",
		cancelled:          "Okay, cancelled. Pick a language to start over.",
	},
}

// Pre-language strings are bilingual since no language is chosen yet.
const (
	greetingPrompt = "👋 নমস্কার! আমি তোমার পড়াশোনার সাথী।\nHello! I'm your study companion.\n\nকোন ভাষায় কথা বলবে? / Which language shall we use?"

	languageRetryPrompt = "দয়া করে নিচের বোতাম থেকে একটি ভাষা বেছে নাও।\nPlease pick a language from the buttons below."

	languageConfirmedBengali = "বাংলা বেছে নেওয়া হলো। ✅"
	languageConfirmedEnglish = "English selected. ✅"
)

func (c catalog) confirmed(lang Language) string {
	if lang == LanguageEnglish {
		return languageConfirmedEnglish
	}
	return languageConfirmedBengali
}

func (c catalog) renderAnswer(question, answer string) string {
	return fmt.Sprintf(c.answerFormat, question, answer)
}

func messagesFor(lang Language) catalog {
	if c, ok := catalogs[lang]; ok {
		return c
	}
	return catalogs[LanguageBengali]
}

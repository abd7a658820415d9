package mediator

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message keys double as the English text
const (
	msgContinue     = "Continue with “%s”?"
	msgChildTonight = "Tonight's story for %s"
	msgFamily       = "Tonight's family story"
)

// SupportedLanguages lists the locales with translated suggestion messages
var SupportedLanguages = []language.Tag{language.English, language.Hebrew}

var matcher = language.NewMatcher(SupportedLanguages)

func init() {
	must(message.SetString(language.English, msgContinue, "Continue with “%s”?"))
	must(message.SetString(language.English, msgChildTonight, "Tonight's story for %s"))
	must(message.SetString(language.English, msgFamily, "Tonight's family story"))

	must(message.SetString(language.Hebrew, msgContinue, "ממשיכים עם \"%s\"?"))
	must(message.SetString(language.Hebrew, msgChildTonight, "סיפור הלילה של %s"))
	must(message.SetString(language.Hebrew, msgFamily, "הסיפור של הערב"))
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// MatchLanguage maps a locale string such as "he" or "en-US" to a supported language.
// Unknown or malformed locales fall back to English.
func MatchLanguage(locale string) language.Tag {
	tag, err := language.Parse(locale)
	if err != nil {
		return language.English
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return language.English
	}
	return SupportedLanguages[idx]
}

func printer(lang language.Tag) *message.Printer {
	if lang == language.Und {
		lang = language.English
	}
	return message.NewPrinter(lang)
}

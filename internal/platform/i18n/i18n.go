// Package i18n renders user-facing notification and error text.
//
// Messages are registered with golang.org/x/text/message at init; callers ask
// for a Printer by locale string and fall back to BaseLocale.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// BaseLocale is the locale used when a request names none or an unknown one.
const BaseLocale = "en-US"

// Message keys for combat notifications.
const (
	KeyConcentration = "notification.concentration"
	KeyDowned        = "notification.downed"
	KeyDead          = "notification.dead"
	KeyStable        = "notification.stable"
	KeyUpdateFailed  = "notification.update_failed"
	KeyFetchFailed   = "notification.fetch_failed"
)

var supported = []language.Tag{
	language.AmericanEnglish,
	language.BrazilianPortuguese,
}

var matcher = language.NewMatcher(supported)

var catalogs = map[language.Tag]map[string]string{
	language.AmericanEnglish: {
		KeyConcentration: "%s took damage while concentrating: roll a concentration check",
		KeyDowned:        "%s is down",
		KeyDead:          "%s is dead",
		KeyStable:        "%s is stable",
		KeyUpdateFailed:  "Could not save the sheet: %v",
		KeyFetchFailed:   "Could not load the sheet: %v",
	},
	language.BrazilianPortuguese: {
		KeyConcentration: "%s sofreu dano concentrado: faça um teste de concentração",
		KeyDowned:        "%s caiu",
		KeyDead:          "%s morreu",
		KeyStable:        "%s está estável",
		KeyUpdateFailed:  "Não foi possível salvar a ficha: %v",
		KeyFetchFailed:   "Não foi possível carregar a ficha: %v",
	},
}

func init() {
	for tag, messages := range catalogs {
		for key, msg := range messages {
			if err := message.SetString(tag, key, msg); err != nil {
				panic("register i18n message " + key + ": " + err.Error())
			}
		}
	}
}

// ResolveTag maps a locale string such as "pt-BR" or "en" onto a supported tag.
func ResolveTag(locale string) language.Tag {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return language.AmericanEnglish
	}
	parsed, err := language.Parse(locale)
	if err != nil {
		return language.AmericanEnglish
	}
	_, index, confidence := matcher.Match(parsed)
	if confidence == language.No {
		return language.AmericanEnglish
	}
	return supported[index]
}

// Printer returns a message printer for locale.
func Printer(locale string) *message.Printer {
	return message.NewPrinter(ResolveTag(locale))
}

// Sprintf renders key for locale with args.
func Sprintf(locale, key string, args ...any) string {
	return Printer(locale).Sprintf(key, args...)
}

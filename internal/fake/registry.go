package fake

import (
	"strings"
	"unicode"
)

var registry = map[string]map[string]Func{
	"person": {
		"firstName": func(g *Generator, a Args) any { return g.firstName() },
		"lastName":  func(g *Generator, a Args) any { return g.lastName() },
		"fullName": func(g *Generator, a Args) any {
			first := a.String("firstName", g.firstName())
			last := a.String("lastName", g.lastName())
			return first + " " + last
		},
		"gender":   func(g *Generator, a Args) any { return g.faker.Gender() },
		"prefix":   func(g *Generator, a Args) any { return g.faker.NamePrefix() },
		"jobTitle": func(g *Generator, a Args) any { return g.faker.JobTitle() },
	},
	"internet": {
		"email": func(g *Generator, a Args) any {
			first := a.String("firstName", g.firstName())
			last := a.String("lastName", g.lastName())
			host := a.String("provider", g.pick(g.data.emailHosts, g.faker.DomainName))
			return emailLocalPart(first) + "." + emailLocalPart(last) +
				g.faker.DigitN(2) + "@" + host
		},
		"userName": func(g *Generator, a Args) any { return g.faker.Username() },
		"url":      func(g *Generator, a Args) any { return g.faker.URL() },
		"domainName": func(g *Generator, a Args) any {
			return g.faker.DomainName()
		},
		"ip":        func(g *Generator, a Args) any { return g.faker.IPv4Address() },
		"ipv6":      func(g *Generator, a Args) any { return g.faker.IPv6Address() },
		"userAgent": func(g *Generator, a Args) any { return g.faker.UserAgent() },
		"password": func(g *Generator, a Args) any {
			return g.faker.Password(true, true, true, false, false, a.Int("length", 15))
		},
	},
	"date": {
		"past": func(g *Generator, a Args) any {
			ref := g.refDate(a)
			return isoTime(g.faker.DateRange(ref.AddDate(-a.Int("years", 1), 0, 0), ref))
		},
		"future": func(g *Generator, a Args) any {
			ref := g.refDate(a)
			return isoTime(g.faker.DateRange(ref, ref.AddDate(a.Int("years", 1), 0, 0)))
		},
		"recent": func(g *Generator, a Args) any {
			ref := g.refDate(a)
			return isoTime(g.faker.DateRange(ref.AddDate(0, 0, -a.Int("days", 1)), ref))
		},
		"soon": func(g *Generator, a Args) any {
			ref := g.refDate(a)
			return isoTime(g.faker.DateRange(ref, ref.AddDate(0, 0, a.Int("days", 1))))
		},
		"birthdate": func(g *Generator, a Args) any {
			ref := g.refDate(a)
			minAge := a.Int("min", 18)
			maxAge := a.Int("max", 80)
			if maxAge < minAge {
				maxAge = minAge
			}
			return isoTime(g.faker.DateRange(ref.AddDate(-maxAge, 0, 0), ref.AddDate(-minAge, 0, 0)))
		},
		"anytime": func(g *Generator, a Args) any {
			ref := g.refDate(a)
			return isoTime(g.faker.DateRange(ref.AddDate(-10, 0, 0), ref.AddDate(10, 0, 0)))
		},
		"timestamp": func(g *Generator, a Args) any {
			return g.now().UnixMilli()
		},
	},
	"string": {
		"uuid": func(g *Generator, a Args) any { return g.faker.UUID() },
		"alpha": func(g *Generator, a Args) any {
			return g.faker.LetterN(uint(positive(a.Int("length", 1))))
		},
		"numeric": func(g *Generator, a Args) any {
			return g.faker.DigitN(uint(positive(a.Int("length", 1))))
		},
		"alphanumeric": func(g *Generator, a Args) any {
			return g.sample(positive(a.Int("length", 1)), alphanumeric)
		},
		"sample": func(g *Generator, a Args) any {
			return g.sample(positive(a.Int("length", 10)), printable)
		},
	},
	"number": {
		"int": func(g *Generator, a Args) any {
			lo, hi := a.Int("min", 0), a.Int("max", 99999)
			if hi < lo {
				lo, hi = hi, lo
			}
			return g.faker.Number(lo, hi)
		},
		"float": func(g *Generator, a Args) any {
			lo, hi := a.Float("min", 0), a.Float("max", 1)
			if hi < lo {
				lo, hi = hi, lo
			}
			return roundTo(g.faker.Float64Range(lo, hi), a.Int("fractionDigits", 2))
		},
	},
	"datatype": {
		"boolean": func(g *Generator, a Args) any { return g.faker.Bool() },
	},
	"company": {
		"name":        func(g *Generator, a Args) any { return g.faker.Company() },
		"catchPhrase": func(g *Generator, a Args) any { return g.faker.HackerPhrase() },
		"buzzPhrase":  func(g *Generator, a Args) any { return g.faker.BS() },
	},
	"lorem": {
		"word": func(g *Generator, a Args) any { return g.faker.LoremIpsumWord() },
		"words": func(g *Generator, a Args) any {
			n := positive(a.Int("count", 3))
			words := make([]string, n)
			for i := range words {
				words[i] = g.faker.LoremIpsumWord()
			}
			return strings.Join(words, " ")
		},
		"sentence": func(g *Generator, a Args) any {
			return g.faker.LoremIpsumSentence(positive(a.Int("words", 8)))
		},
		"paragraph": func(g *Generator, a Args) any {
			return g.faker.LoremIpsumParagraph(1, positive(a.Int("sentences", 3)), 8, " ")
		},
	},
	"location": {
		"city":    func(g *Generator, a Args) any { return g.faker.City() },
		"country": func(g *Generator, a Args) any { return g.pick(g.data.countries, g.faker.Country) },
		"countryCode": func(g *Generator, a Args) any {
			return g.faker.CountryAbr()
		},
		"streetAddress": func(g *Generator, a Args) any { return g.faker.Street() },
		"zipCode":       func(g *Generator, a Args) any { return g.faker.Zip() },
		"latitude":      func(g *Generator, a Args) any { return g.faker.Latitude() },
		"longitude":     func(g *Generator, a Args) any { return g.faker.Longitude() },
	},
	"phone": {
		"number": func(g *Generator, a Args) any { return g.faker.Phone() },
	},
	"finance": {
		"amount": func(g *Generator, a Args) any {
			return roundTo(g.faker.Price(a.Float("min", 0), a.Float("max", 1000)), a.Int("dec", 2))
		},
		"currencyCode":     func(g *Generator, a Args) any { return g.faker.CurrencyShort() },
		"creditCardNumber": func(g *Generator, a Args) any { return g.faker.CreditCardNumber(nil) },
	},
}

const (
	alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	printable    = "!#$%&()*+,-./0123456789:;<=>?@ABCDEFGHIJKLMNOPQRSTUVWXYZ[]^_abcdefghijklmnopqrstuvwxyz~"
)

func (g *Generator) sample(n int, alphabet string) string {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(alphabet[g.faker.Number(0, len(alphabet)-1)])
	}
	return b.String()
}

func positive(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// emailLocalPart lowercases and drops characters that are awkward in the
// local part (spaces, apostrophes); accented letters are kept.
func emailLocalPart(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

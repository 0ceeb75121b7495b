package fake

import "strings"

const DefaultLocale = "en"

// AvailableLocales lists the locales with their own name tables. Every locale
// exposes the same namespaces and methods.
var AvailableLocales = []string{"en", "de", "fr", "es", "it", "pt_BR", "nl", "pl"}

type localeData struct {
	firstNames []string
	lastNames  []string
	countries  []string
	emailHosts []string
}

var locales = map[string]localeData{
	"de": {
		firstNames: []string{"Lukas", "Leon", "Finn", "Jonas", "Emma", "Mia", "Hannah", "Lena", "Sophie", "Felix"},
		lastNames:  []string{"Müller", "Schmidt", "Schneider", "Fischer", "Weber", "Meyer", "Wagner", "Becker", "Hoffmann", "Koch"},
		countries:  []string{"Deutschland", "Österreich", "Schweiz", "Frankreich", "Italien", "Spanien"},
		emailHosts: []string{"gmx.de", "web.de", "t-online.de"},
	},
	"fr": {
		firstNames: []string{"Jeanne", "Louise", "Camille", "Léa", "Hugo", "Lucas", "Louis", "Gabriel", "Chloé", "Manon"},
		lastNames:  []string{"Martin", "Bernard", "Dubois", "Thomas", "Robert", "Richard", "Petit", "Durand", "Leroy", "Moreau"},
		countries:  []string{"France", "Belgique", "Suisse", "Canada", "Allemagne", "Espagne"},
		emailHosts: []string{"orange.fr", "free.fr", "laposte.net"},
	},
	"es": {
		firstNames: []string{"Lucía", "Sofía", "María", "Paula", "Hugo", "Martín", "Pablo", "Daniel", "Alejandro", "Carmen"},
		lastNames:  []string{"García", "Fernández", "González", "Rodríguez", "López", "Martínez", "Sánchez", "Pérez", "Gómez", "Ruiz"},
		countries:  []string{"España", "México", "Argentina", "Colombia", "Chile", "Perú"},
		emailHosts: []string{"correo.es", "telefonica.net", "hotmail.es"},
	},
	"it": {
		firstNames: []string{"Giulia", "Sofia", "Aurora", "Alice", "Leonardo", "Francesco", "Alessandro", "Lorenzo", "Mattia", "Chiara"},
		lastNames:  []string{"Rossi", "Russo", "Ferrari", "Esposito", "Bianchi", "Romano", "Colombo", "Ricci", "Marino", "Greco"},
		countries:  []string{"Italia", "Svizzera", "Francia", "Austria", "Slovenia", "Spagna"},
		emailHosts: []string{"libero.it", "virgilio.it", "tiscali.it"},
	},
	"pt_BR": {
		firstNames: []string{"Miguel", "Arthur", "Heitor", "Bernardo", "Helena", "Alice", "Laura", "Manuela", "Valentina", "Gael"},
		lastNames:  []string{"Silva", "Santos", "Oliveira", "Souza", "Rodrigues", "Ferreira", "Alves", "Pereira", "Lima", "Gomes"},
		countries:  []string{"Brasil", "Portugal", "Argentina", "Uruguai", "Paraguai", "Chile"},
		emailHosts: []string{"uol.com.br", "bol.com.br", "terra.com.br"},
	},
	"nl": {
		firstNames: []string{"Daan", "Sem", "Lucas", "Levi", "Emma", "Julia", "Tess", "Sophie", "Noah", "Mila"},
		lastNames:  []string{"de Jong", "Jansen", "de Vries", "van den Berg", "van Dijk", "Bakker", "Visser", "Smit", "Meijer", "de Boer"},
		countries:  []string{"Nederland", "België", "Duitsland", "Frankrijk", "Luxemburg", "Spanje"},
		emailHosts: []string{"ziggo.nl", "kpnmail.nl", "hetnet.nl"},
	},
	"pl": {
		firstNames: []string{"Antoni", "Jan", "Aleksander", "Franciszek", "Zuzanna", "Julia", "Zofia", "Hanna", "Maja", "Szymon"},
		lastNames:  []string{"Nowak", "Kowalski", "Wiśniewski", "Wójcik", "Kowalczyk", "Kamiński", "Lewandowski", "Zieliński", "Szymański", "Woźniak"},
		countries:  []string{"Polska", "Niemcy", "Czechy", "Słowacja", "Litwa", "Ukraina"},
		emailHosts: []string{"wp.pl", "onet.pl", "interia.pl"},
	},
}

// NormalizeLocale maps user input like "pt-br" onto a known locale and falls
// back to DefaultLocale.
func NormalizeLocale(locale string) string {
	trimmed := strings.TrimSpace(strings.ReplaceAll(locale, "-", "_"))
	for _, known := range AvailableLocales {
		if strings.EqualFold(known, trimmed) {
			return known
		}
	}
	if idx := strings.Index(trimmed, "_"); idx > 0 {
		return NormalizeLocale(trimmed[:idx])
	}
	return DefaultLocale
}

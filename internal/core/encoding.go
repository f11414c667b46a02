package core

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

const byteOrderMark = "\ufeff"

// mojibakeTable rewrites UTF-8 text that was decoded as Windows-1252 and
// re-encoded. Longer sequences come first; the replacer tries patterns in
// argument order at each position.
var mojibakeTable = []string{
	"â€™", "’",
	"â€˜", "‘",
	"â€œ", "“",
	"â€“", "–",
	"â€”", "—",
	"â€¦", "…",
	"Ã©", "é",
	"Ã¨", "è",
	"Ãª", "ê",
	"Ã\u00a0", "à",
	"Ã¢", "â",
	"Ã¤", "ä",
	"Ã®", "î",
	"Ã¯", "ï",
	"Ã´", "ô",
	"Ã¶", "ö",
	"Ã¹", "ù",
	"Ã»", "û",
	"Ã¼", "ü",
	"Ã§", "ç",
	"Ã‰", "É",
	"Ãˆ", "È",
	"ÃŠ", "Ê",
	"Ã€", "À",
	"Ã‚", "Â",
	"ÃŽ", "Î",
	"Ã”", "Ô",
	"Ã›", "Û",
	"Ã‡", "Ç",
	"Å“", "œ",
	"Å’", "Œ",
	"Â°", "°",
	"Â«", "«",
	"Â»", "»",
	"Â\u00a0", "\u00a0",
}

var mojibakeReplacer = strings.NewReplacer(mojibakeTable...)

// truncatedTokens restores words whose accented letters were dropped by a
// lossy export. Matching is on whole letter tokens and is case-sensitive.
var truncatedTokens = map[string]string{
	"Ple":        "Pôle",
	"ple":        "pôle",
	"PLE":        "PÔLE",
	"Tlphone":    "Téléphone",
	"tlphone":    "téléphone",
	"TLPHONE":    "TÉLÉPHONE",
	"Numro":      "Numéro",
	"numro":      "numéro",
	"Rfrence":    "Référence",
	"rfrence":    "référence",
	"Socit":      "Société",
	"socit":      "société",
	"Catgorie":   "Catégorie",
	"catgorie":   "catégorie",
	"Complment":  "Complément",
	"complment":  "complément",
	"Prnom":      "Prénom",
	"prnom":      "prénom",
	"PRNOM":      "PRÉNOM",
	"Entrept":    "Entrepôt",
	"entrept":    "entrepôt",
	"Dpt":        "Dépôt",
	"Tourne":     "Tournée",
	"Modle":      "Modèle",
	"modle":      "modèle",
	"Vhicule":    "Véhicule",
	"vhicule":    "véhicule",
	"Contrle":    "Contrôle",
	"contrle":    "contrôle",
	"Libell":     "Libellé",
	"libell":     "libellé",
	"Dsignation": "Désignation",
	"Activit":    "Activité",
	"Priorit":    "Priorité",
	"Dbut":       "Début",
	"Tl":         "Tél",
}

var letterToken = regexp.MustCompile(`\p{L}+`)

// NormalizeEncoding turns raw file bytes into clean text. It is best
// effort and never fails: bytes that are not UTF-8 are read as
// Windows-1252, then the BOM, stray ë markers, double-encoded sequences
// and truncated accents are repaired in that order.
func NormalizeEncoding(data []byte) string {
	var s string
	if utf8.Valid(data) {
		s = string(data)
	} else {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			s = strings.ToValidUTF8(string(data), "\ufffd")
		} else {
			s = string(decoded)
		}
	}

	s = strings.TrimPrefix(s, byteOrderMark)
	s = strings.NewReplacer("ë", "", "Ë", "").Replace(s)
	s = mojibakeReplacer.Replace(s)
	return restoreTruncatedAccents(s)
}

func restoreTruncatedAccents(s string) string {
	return letterToken.ReplaceAllStringFunc(s, func(tok string) string {
		if fixed, ok := truncatedTokens[tok]; ok {
			return fixed
		}
		return tok
	})
}

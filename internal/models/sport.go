package models

import "regexp"

// sportsByIcon translates the numeric id embedded in a listing's sport-icon
// URL into a sport name. Ids follow the bookmaker's icon set.
var sportsByIcon = map[string]string{
	"1":  "Soccer",
	"2":  "Horse Racing",
	"3":  "Cricket",
	"5":  "Specials",
	"7":  "Golf",
	"8":  "Rugby Union",
	"9":  "Boxing",
	"10": "Formula 1",
	"12": "Tennis",
	"14": "Snooker",
	"15": "Darts",
	"16": "Baseball",
	"17": "Ice Hockey",
	"18": "Basketball",
	"19": "Rugby League",
	"24": "Speedway",
	"36": "Australian Rules",
	"38": "Cycling",
	"78": "Handball",
	"83": "Futsal",
}

var sportIconRe = regexp.MustCompile(`/(\d+)\.svg$`)

// SportFromIcon resolves a sport name from the icon URL of a promoted
// listing (".../<id>.svg"). Unknown ids and malformed URLs resolve to "".
func SportFromIcon(iconURL string) string {
	m := sportIconRe.FindStringSubmatch(iconURL)
	if m == nil {
		return ""
	}
	return sportsByIcon[m[1]]
}

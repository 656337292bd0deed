package jsonschema

// lookupFormat maps a JSON Schema "format" name to a regex over the string
// content. Unknown formats fall back to an unconstrained string.
func lookupFormat(name string) (string, bool) {
	pat, ok := formatRegexes[name]
	return pat, ok
}

const rxDate = `[0-9]{4}-(?:(?:0[13578]|1[02])-(?:0[1-9]|[12][0-9]|3[01])|(?:0[469]|11)-(?:0[1-9]|[12][0-9]|30)|02-(?:0[1-9]|1[0-9]|2[0-9]))`

const rxTime = `(?:[01][0-9]|2[0-3]):[0-5][0-9]:(?:[0-5][0-9]|60)(?:\.[0-9]+)?(?:[zZ]|[+-](?:[01][0-9]|2[0-3]):[0-5][0-9])`

const rxIPv4 = `(?:(?:25[0-5]|2[0-4][0-9]|1[0-9]{2}|[1-9]?[0-9])\.){3}(?:25[0-5]|2[0-4][0-9]|1[0-9]{2}|[1-9]?[0-9])`

const rxH16 = `[0-9a-fA-F]{1,4}`

var formatRegexes = map[string]string{
	"date":      rxDate,
	"time":      rxTime,
	"date-time": rxDate + `[tT]` + rxTime,
	"duration": `P(?:` +
		`(?:[0-9]+Y(?:[0-9]+M(?:[0-9]+D)?)?|[0-9]+M(?:[0-9]+D)?|[0-9]+D)` +
		`(?:T(?:[0-9]+H(?:[0-9]+M(?:[0-9]+S)?)?|[0-9]+M(?:[0-9]+S)?|[0-9]+S))?` +
		`|T(?:[0-9]+H(?:[0-9]+M(?:[0-9]+S)?)?|[0-9]+M(?:[0-9]+S)?|[0-9]+S)` +
		`|[0-9]+W)`,
	"email": `[a-zA-Z0-9!#$%&'*+\-/=?^_` + "`" + `{|}~]+(?:\.[a-zA-Z0-9!#$%&'*+\-/=?^_` + "`" + `{|}~]+)*` +
		`@(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]*[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]*[a-zA-Z0-9])?)*` +
		`|\[` + rxIPv4 + `\])`,
	"hostname": `[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*`,
	"ipv4":     rxIPv4,
	"ipv6": `(?:` +
		`(?:` + rxH16 + `:){7}` + rxH16 +
		`|(?:` + rxH16 + `:){1,7}:` +
		`|(?:` + rxH16 + `:){1,6}:` + rxH16 +
		`|(?:` + rxH16 + `:){1,5}(?::` + rxH16 + `){1,2}` +
		`|(?:` + rxH16 + `:){1,4}(?::` + rxH16 + `){1,3}` +
		`|(?:` + rxH16 + `:){1,3}(?::` + rxH16 + `){1,4}` +
		`|(?:` + rxH16 + `:){1,2}(?::` + rxH16 + `){1,5}` +
		`|` + rxH16 + `:(?::` + rxH16 + `){1,6}` +
		`|:(?::` + rxH16 + `){1,7}` +
		`|::)`,
	"uuid": `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`,
	"uri": `[a-zA-Z][a-zA-Z0-9+\-.]*:` +
		`(?://(?:(?:[a-zA-Z0-9\-._~!$&'()*+,;=:]|%[0-9a-fA-F]{2})*@)?` +
		`(?:\[[0-9a-fA-F:.]+\]|(?:[a-zA-Z0-9\-._~!$&'()*+,;=]|%[0-9a-fA-F]{2})*)` +
		`(?::[0-9]*)?` +
		`(?:/(?:[a-zA-Z0-9\-._~!$&'()*+,;=:@]|%[0-9a-fA-F]{2})*)*` +
		`|/(?:(?:[a-zA-Z0-9\-._~!$&'()*+,;=:@]|%[0-9a-fA-F]{2})+(?:/(?:[a-zA-Z0-9\-._~!$&'()*+,;=:@]|%[0-9a-fA-F]{2})*)*)?` +
		`|(?:[a-zA-Z0-9\-._~!$&'()*+,;=:@]|%[0-9a-fA-F]{2})+(?:/(?:[a-zA-Z0-9\-._~!$&'()*+,;=:@]|%[0-9a-fA-F]{2})*)*` +
		`|)` +
		`(?:\?(?:[a-zA-Z0-9\-._~!$&'()*+,;=:@/?]|%[0-9a-fA-F]{2})*)?` +
		`(?:#(?:[a-zA-Z0-9\-._~!$&'()*+,;=:@/?]|%[0-9a-fA-F]{2})*)?`,
}

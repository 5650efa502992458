package rules

// SQL injection signatures modeled on the CRS 942 family. Scores follow the
// CRS anomaly weights (critical 5, warning 3, notice 2).
func regexRule(id, name string, pl, score int, pattern string, tags ...string) Rule {
	return Rule{
		ID:            id,
		Name:          name,
		ParanoiaLevel: pl,
		Enabled:       true,
		Conditions: []Condition{
			{Field: "payload", Operator: "regex", Value: pattern},
		},
		OnMatch: MatchAction{ScoreAdd: score, Tags: append([]string{"attack-sqli"}, tags...)},
	}
}

// Builtin returns a fresh copy of the built-in SQLi rule set.
func Builtin() []Rule {
	return []Rule{
		// Paranoia level 1
		regexRule("942100", "SQL tautology", 1, 5,
			`(?i)(\bor\b|\|\|)\s*['"]?\s*\w+\s*['"]?\s*(=|<>|!=|like)\s*['"]?\s*\w+`, "tautology"),
		regexRule("942140", "DB name / information schema access", 1, 5,
			`(?i)\b(information_schema|mysql\.user|pg_catalog|sysobjects|syscolumns|msysaccessobjects|sqlite_master)\b`),
		regexRule("942160", "Blind SQLi via sleep/benchmark", 1, 5,
			`(?i)\b(sleep|benchmark|pg_sleep)\s*\(|\bwaitfor\s+delay\b`, "blind"),
		regexRule("942170", "Conditional blind SQLi", 1, 5,
			`(?i)\bselect\b.{0,40}\b(if|case)\s*\(?.{0,40}\b(sleep|benchmark)\b`, "blind"),
		regexRule("942190", "MSSQL code execution / information gathering", 1, 5,
			`(?i)\b(xp_cmdshell|sp_executesql|exec\s+master\.|openrowset|opendatasource)\b`),
		regexRule("942230", "Conditional injection", 1, 5,
			`(?i)[\s()]case\s+when\b.{0,60}\bthen\b`),
		regexRule("942270", "Basic union select", 1, 5,
			`(?i)\bunion\b(\s+|/\*.*?\*/)+(all\s+|distinct\s+)?(\(\s*)?select\b`, "union"),
		regexRule("942350", "UDF injection / data structure alteration", 1, 5,
			`(?i);\s*(drop|alter|create|truncate|rename)\s+(table|database|schema|function|procedure|view)\b`),
		regexRule("942360", "Concatenated basic SQL keywords", 1, 5,
			`(?i)\b(select\s+.{1,80}\s+from|insert\s+into|delete\s+from|update\s+\w+\s+set)\b`),
		regexRule("942440", "SQL comment sequence", 1, 5,
			`(?i)('|")\s*(--|#|/\*)|/\*!?\d*.*?\*/|--\s*$`, "comment"),
		regexRule("942500", "MySQL inline comment", 1, 5,
			`(?i)/\*![0-9]*\s*\w`, "comment"),

		// Paranoia level 2
		regexRule("942120", "SQL operator", 2, 5,
			`(?i)\b(rlike|regexp|sounds\s+like|not\s+between|is\s+null|xor)\b`),
		regexRule("942150", "SQL function names", 2, 5,
			`(?i)\b(concat|concat_ws|char|chr|ascii|substring|substr|mid|hex|unhex|load_file|group_concat|version|database|user)\s*\(`),
		regexRule("942180", "Basic authentication bypass", 2, 3,
			`(?i)['"]\s*(\)|;)?\s*(or|and|\|\||&&)\s*['"(]?\s*\d`, "auth-bypass"),
		regexRule("942200", "Comment or space obfuscated injection", 2, 5,
			`(?i)\w+/\*.*?\*/\w+|,\s*\(?\s*select\b`, "comment"),
		regexRule("942260", "Basic authentication bypass 2/3", 2, 5,
			`(?i)['"]\s*(and|or|xor|div|like|between)\s+['"]?\w+['"]?\s*(=|<|>)`, "auth-bypass"),
		regexRule("942370", "Classic SQL injection probing", 2, 5,
			`(?i)['"`+"`"+`]\s*\)?\s*(;|\|\||&&|\band\b|\bor\b)\s*\(?\s*['"]?\s*\d+\s*(=|<|>)`),
		regexRule("942380", "Exists / having probes", 2, 5,
			`(?i)\b(having|exists|group\s+by|order\s+by)\b\s*[\d(]`),

		// Paranoia level 3
		regexRule("942410", "Function call with parenthesis", 3, 3,
			`(?i)\b\w{2,30}\s*\(\s*(['"]|\d|select\b)`),
		regexRule("942430", "Restricted character anomaly (12)", 3, 3,
			`([~!@#$%^&*()\-+={}\[\]|:;"'`+"`"+`<>][^~!@#$%^&*()\-+={}\[\]|:;"'`+"`"+`<>]*){12}`),
		regexRule("942490", "Classic quotes and numeric probing", 3, 3,
			`(?i)['"`+"`"+`][\s\d]*?[^\w\s]\W*?\d\W*?['"`+"`"+`]`),
		{
			ID:            "942420",
			Name:          "Restricted character anomaly (8, length)",
			ParanoiaLevel: 3,
			Enabled:       true,
			Conditions: []Condition{
				{Field: "meta.special_chars", Operator: "gt", Value: 8},
			},
			OnMatch: MatchAction{ScoreAdd: 3, Tags: []string{"attack-sqli", "anomaly"}},
		},

		// Paranoia level 4
		regexRule("942421", "Restricted character anomaly (3)", 4, 3,
			`([~!@#$%^&*()\-+={}\[\]|:;"'`+"`"+`<>][^~!@#$%^&*()\-+={}\[\]|:;"'`+"`"+`<>]*){3}`),
		regexRule("942432", "Restricted character anomaly (2)", 4, 2,
			`([~!@#$%^&*()\-+={}\[\]|:;"'`+"`"+`<>][^~!@#$%^&*()\-+={}\[\]|:;"'`+"`"+`<>]*){2}`),
		regexRule("942460", "Meta-character repetition", 4, 3,
			`\W{4,}`),
		regexRule("942550", "JSON-based SQL injection", 4, 5,
			`(?i)['"][{\[].*[}\]]['"]\s*::?\s*json|json_(extract|value|query)\s*\(`),
	}
}

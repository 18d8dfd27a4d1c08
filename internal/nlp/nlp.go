// Package nlp maps Portuguese analyst questions to analysis intents.
// This is an ordered lookup table of regular expressions, not a learned
// model: scoring counts pattern hits and declaration order breaks ties,
// so behavior is reproducible and auditable.
package nlp

import (
	"regexp"
	"strconv"
	"strings"
)

// Intent identifies the kind of analysis a question asks for.
type Intent string

const (
	IntentComparePeriods Intent = "compare_periods"
	IntentSegmentGroups  Intent = "segment_groups"
	IntentCountReasons   Intent = "count_reasons"
	IntentCustomKPIs     Intent = "custom_kpis"
	IntentGreeting       Intent = "greeting"
	IntentHelp           Intent = "help"
	IntentUnknown        Intent = "unknown"
)

type rule struct {
	intent   Intent
	patterns []*regexp.Regexp
	response string
}

// The table is ordered: on a tied score the earlier intent wins.
var rules = []rule{
	{
		intent: IntentComparePeriods,
		patterns: compile(
			`compar(?:e|ar|ação)`,
			`evolu(?:ção|iu)`,
			`crescimento`,
			`varia(?:ção|ou)`,
			`(?:entre|versus|vs)\s`,
			`per[ií]odo`,
			`m[eê]s\s+a\s+m[eê]s`,
		),
		response: "Comparando os períodos solicitados.",
	},
	{
		intent: IntentSegmentGroups,
		patterns: compile(
			`segment(?:e|ar|ação)`,
			`por\s+(?:região|regiao|grupo|categoria|produto|cliente|vendedor)`,
			`agrupad[oa]`,
			`quebra\s+por`,
			`distribui(?:ção|do)`,
		),
		response: "Segmentando os dados pelos grupos indicados.",
	},
	{
		intent: IntentCountReasons,
		patterns: compile(
			`motivo`,
			`raz(?:ão|ões)`,
			`causa`,
			`perd(?:a|as|emos|ido)`,
			`churn`,
			`cancelamento`,
			`mais\s+(?:comum|frequente)`,
		),
		response: "Contabilizando os motivos registrados.",
	},
	{
		intent: IntentCustomKPIs,
		patterns: compile(
			`kpi`,
			`indicador`,
			`total\s+de`,
			`soma`,
			`m[eé]dia`,
			`quantos?`,
			`faturamento`,
			`receita`,
			`ticket\s+m[eé]dio`,
		),
		response: "Calculando os indicadores solicitados.",
	},
	{
		intent: IntentGreeting,
		patterns: compile(
			`^\s*(?:oi|ol[aá]|bom\s+dia|boa\s+tarde|boa\s+noite)\b`,
			`tudo\s+bem`,
		),
		response: "Olá! Posso comparar períodos, segmentar grupos, contar motivos de perda ou calcular KPIs.",
	},
	{
		intent: IntentHelp,
		patterns: compile(
			`ajuda`,
			`o\s+que\s+(?:você|voce)\s+faz`,
			`como\s+(?:usar|funciona)`,
		),
		response: "Pergunte, por exemplo: \"compare a receita entre janeiro e fevereiro\" ou \"quais os principais motivos de perda?\".",
	},
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

// Entities are the values recognized inside a question.
type Entities struct {
	Years    []int     `json:"years,omitempty"`
	Months   []string  `json:"months,omitempty"`
	Percents []float64 `json:"percents,omitempty"`
}

var (
	yearPattern    = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	percentPattern = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*%`)
	monthPattern   = regexp.MustCompile(`(?i)\b(janeiro|fevereiro|mar[çc]o|abril|maio|junho|julho|agosto|setembro|outubro|novembro|dezembro)\b`)
)

func extractEntities(question string) Entities {
	var e Entities
	for _, m := range yearPattern.FindAllString(question, -1) {
		if y, err := strconv.Atoi(m); err == nil {
			e.Years = append(e.Years, y)
		}
	}
	for _, m := range monthPattern.FindAllString(question, -1) {
		month := strings.ToLower(m)
		month = strings.ReplaceAll(month, "ç", "c")
		e.Months = append(e.Months, month)
	}
	for _, m := range percentPattern.FindAllStringSubmatch(question, -1) {
		raw := strings.Replace(m[1], ",", ".", 1)
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			e.Percents = append(e.Percents, v)
		}
	}
	return e
}

// Analysis is the outcome of interpreting one question.
type Analysis struct {
	Intent     Intent            `json:"intent"`
	Confidence float64           `json:"confidence"`
	Entities   Entities          `json:"entities"`
	Params     map[string]string `json:"params"`
	Response   string            `json:"response"`
}

// Analyze interprets a question. An empty or unrecognized question yields
// IntentUnknown with zero confidence.
func Analyze(question string) *Analysis {
	entities := extractEntities(question)
	best := &Analysis{
		Intent:   IntentUnknown,
		Entities: entities,
		Params:   map[string]string{},
		Response: "Não entendi a pergunta. Peça ajuda para ver exemplos.",
	}
	if strings.TrimSpace(question) == "" {
		return best
	}

	bestScore := 0
	for _, r := range rules {
		score := 0
		for _, p := range r.patterns {
			if p.MatchString(question) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best.Intent = r.intent
			best.Response = r.response
			best.Confidence = confidence(score)
		}
	}
	best.Params = analysisParams(best.Intent, entities)
	return best
}

// confidence grows with pattern hits and saturates: one hit is a weak
// signal, three or more a strong one.
func confidence(score int) float64 {
	c := float64(score) / 3.0
	if c > 1 {
		c = 1
	}
	return c
}

func analysisParams(intent Intent, e Entities) map[string]string {
	params := map[string]string{"type": string(intent)}
	switch intent {
	case IntentComparePeriods:
		params["period_column"] = "mes"
		params["value_column"] = "receita"
		if len(e.Months) >= 2 {
			params["period_start"] = e.Months[0]
			params["period_end"] = e.Months[1]
		}
	case IntentSegmentGroups:
		params["group_column"] = "regiao"
		params["value_column"] = "receita"
	case IntentCountReasons:
		params["reason_column"] = "motivo_da_perda"
	case IntentCustomKPIs:
		params["value_column"] = "receita"
	}
	return params
}

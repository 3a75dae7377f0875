package service

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"disc-assess/internal/domain"
)

var errMalformedAnalysis = errors.New("malformed analysis response")

// stripCodeFence deja solo el cuerpo de un bloque ```json ... ``` (o ``` ... ```).
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "\uFEFF"))
	body, fenced := strings.CutPrefix(s, "```")
	if !fenced {
		return s
	}
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
	}
	body = strings.TrimSpace(body)
	return strings.TrimSpace(strings.TrimSuffix(body, "```"))
}

// balancedObject busca el primer {...} completo; las llaves dentro de strings JSON no cuentan.
func balancedObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	quoted, escaped := false, false
	for i, ch := range []byte(text[start:]) {
		switch {
		case escaped:
			escaped = false
		case quoted && ch == '\\':
			escaped = true
		case ch == '"':
			quoted = !quoted
		case quoted:
		case ch == '{':
			depth++
		case ch == '}':
			if depth--; depth == 0 {
				return text[start : start+i+1], true
			}
		}
	}
	return "", false
}

// parseAnalysis decodifica la respuesta del modelo y normaliza los tipos de cada campo.
// Sin summary la respuesta se considera malformada.
func parseAnalysis(raw string) (domain.AnalysisRecord, error) {
	body := stripCodeFence(raw)
	if body == "" {
		return domain.AnalysisRecord{}, errMalformedAnalysis
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		// el modelo a veces agrega texto antes o despues del objeto
		obj, ok := balancedObject(body)
		if !ok {
			return domain.AnalysisRecord{}, errMalformedAnalysis
		}
		if err := json.Unmarshal([]byte(obj), &fields); err != nil {
			return domain.AnalysisRecord{}, errMalformedAnalysis
		}
	}

	rec := coerceAnalysis(fields)
	if !rec.WellFormed() {
		return domain.AnalysisRecord{}, errMalformedAnalysis
	}
	return rec, nil
}

func coerceAnalysis(fields map[string]any) domain.AnalysisRecord {
	return domain.AnalysisRecord{
		Summary:              strings.TrimSpace(stringify(fields["summary"])),
		Strengths:            stringList(fields["strengths"]),
		DevelopmentAreas:     stringList(fields["developmentAreas"]),
		WorkStyleInsights:    strings.TrimSpace(stringify(fields["workStyleInsights"])),
		TeamDynamicsInsights: strings.TrimSpace(stringify(fields["teamDynamicsInsights"])),
		TraitDescriptions:    stringMap(fields["traitDescriptions"]),
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// stringList conserva solo los items string no vacios; cualquier otro tipo da lista vacia.
func stringList(v any) []string {
	out := []string{}
	items, ok := v.([]any)
	if !ok {
		return out
	}
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func stringMap(v any) map[string]string {
	out := map[string]string{}
	m, ok := v.(map[string]any)
	if !ok {
		return out
	}
	for k, raw := range m {
		if s := strings.TrimSpace(stringify(raw)); s != "" {
			out[k] = s
		}
	}
	return out
}

package anomaly

import (
	"strings"

	"github.com/gyaneshwarpardhi/flowlens/internal/config"
	"github.com/gyaneshwarpardhi/flowlens/internal/session"
)

// KeywordDetector flags events whose selector or label mentions an error token.
type KeywordDetector struct {
	tokens []string // lower-cased, config order
}

// NewKeywordDetector builds a KeywordDetector from validated configuration.
func NewKeywordDetector(cfg config.KeywordConf) *KeywordDetector {
	tokens := make([]string, 0, len(cfg.Tokens))
	for _, t := range cfg.Tokens {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			tokens = append(tokens, t)
		}
	}
	return &KeywordDetector{tokens: tokens}
}

func (d *KeywordDetector) Name() string { return string(KindErrorSignal) }
func (d *KeywordDetector) Scope() Scope { return ScopeSession }

func (d *KeywordDetector) Detect(tl *session.Timeline) []Record {
	var out []Record
	for _, s := range tl.Sessions {
		for _, ev := range s.Events {
			selector := strings.ToLower(ev.Selector)
			label := strings.ToLower(ev.Label)
			if selector == "" && label == "" {
				continue
			}

			var matched []string
			inSelector, inLabel := false, false
			for _, tok := range d.tokens {
				hitS := strings.Contains(selector, tok)
				hitL := strings.Contains(label, tok)
				if !hitS && !hitL {
					continue
				}
				matched = append(matched, tok)
				inSelector = inSelector || hitS
				inLabel = inLabel || hitL
			}
			if len(matched) == 0 {
				continue
			}

			var fields []string
			if inSelector {
				fields = append(fields, "selector")
			}
			if inLabel {
				fields = append(fields, "label")
			}
			sev := SeverityMedium
			if len(matched) > 1 {
				sev = SeverityHigh
			}
			out = append(out, Record{
				Kind:      KindErrorSignal,
				UserID:    s.UserID,
				SessionID: s.ID,
				Severity:  sev,
				Evidence: KeywordEvidence{
					Event:    ev.Ref(),
					Tokens:   matched,
					Fields:   fields,
					Selector: ev.Selector,
					Label:    ev.Label,
				},
				DetectedAt: Anchor{
					EventIDs:  []string{ev.ID},
					Timestamp: ev.Timestamp,
				},
			})
		}
	}
	return out
}
